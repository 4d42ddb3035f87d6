// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"context"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/infrastructure/attachment"
	"employee_chat_server/internal/infrastructure/bus"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/infrastructure/mq"
	"employee_chat_server/internal/service/compose"
	"employee_chat_server/internal/service/distribution"
	"employee_chat_server/internal/service/message"
	"employee_chat_server/internal/service/overview"
	"employee_chat_server/internal/service/presence"
)

// Infra Service 层依赖的基础设施
type Infra struct {
	Config    *config.Config
	Repos     *repository.Repositories
	Presence  presence.Tracker
	Directory directory.Directory
	Cache     overview.CacheEvicter // 目录缓存维护，可为 nil
	Bus       bus.DeliveryBus
	Store     attachment.Store
}

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层与 WebSocket 网关通过此结构访问各个 Service
type Services struct {
	Message  MessageService
	Compose  ComposeService
	Overview OverviewService

	// 网关直接使用的基础设施
	Presence  presence.Tracker
	Directory directory.Directory
	Bus       bus.DeliveryBus

	fanout      mq.FanoutChannel
	broadcaster *overview.Broadcaster
}

// NewServices 创建并注入所有 Service 实例
// 依赖注入流程：
//  1. 侧边栏 Builder 与异步 Broadcaster
//  2. 分发处理器，挂到异步分发通道上
//  3. 消息 / 回复转发 / 侧边栏 Service
func NewServices(in Infra) (*Services, error) {
	builder := overview.NewBuilder(in.Repos, in.Presence, in.Directory, in.Bus)
	broadcaster, err := overview.NewBroadcaster(builder, in.Directory, in.Bus, in.Config.OverviewConfig)
	if err != nil {
		return nil, err
	}

	processor := distribution.NewProcessor(in.Repos, in.Presence, in.Directory, in.Bus, broadcaster)
	fanout, err := mq.NewFanout(in.Config, processor.Handle)
	if err != nil {
		broadcaster.Close(time.Second)
		return nil, err
	}

	messageSvc := message.NewMessageService(message.Deps{
		Repos:    in.Repos,
		Presence: in.Presence,
		Fanout:   fanout,
		Bus:      in.Bus,
		Overview: broadcaster,
		Store:    in.Store,
		Members:  in.Directory,
	})

	return &Services{
		Message:     messageSvc,
		Compose:     compose.NewComposeService(in.Repos, messageSvc, in.Store),
		Overview:    overview.NewService(builder, broadcaster, in.Cache),
		Presence:    in.Presence,
		Directory:   in.Directory,
		Bus:         in.Bus,
		fanout:      fanout,
		broadcaster: broadcaster,
	}, nil
}

// Start 启动异步分发消费（kafka 模式下启动消费者组）
func (s *Services) Start(ctx context.Context) {
	s.fanout.Start(ctx)
}

// Close 先停分发通道（等待在途任务），再停侧边栏广播池
func (s *Services) Close(timeout time.Duration) {
	s.fanout.Close()
	s.broadcaster.Close(timeout)
}
