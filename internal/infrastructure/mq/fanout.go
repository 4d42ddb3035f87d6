// Package mq 实现异步分发通道
// 消息持久化之后经由此通道交给分发处理器，两种实现：
//   - channel：进程内有界队列（单机 / 开发环境）
//   - kafka：写入 Kafka 主题，由消费者组读取后交给本机 Worker
package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/pkg/errorx"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Action 分发动作
type Action string

const (
	ActionSend   Action = "SEND"   // 新消息（发送 / 回复 / 转发 / 上传）
	ActionDelete Action = "DELETE" // 全员撤回
)

// FanoutEvent 通道中传递的事件，只携带消息 ID，处理器自行加载最新状态
type FanoutEvent struct {
	MessageID       int64  `json:"messageId"`
	Action          Action `json:"action"`
	ConversationKey string `json:"conversationKey"` // Kafka 分区键，保证同一会话落在同一分区
}

// Handler 处理单个分发事件
// 返回 errorx.CodeNotFound 类错误视为永久失败，不再重试
type Handler func(ctx context.Context, ev FanoutEvent) error

// FanoutChannel 异步分发通道
type FanoutChannel interface {
	// Submit 提交事件；队列满或 Broker 写入失败时返回可重试错误
	Submit(ctx context.Context, ev FanoutEvent) error
	// Start 启动消费（channel 模式为空操作）
	Start(ctx context.Context)
	// Close 停止接收并等待在途任务完成
	Close()
}

// NewFanout 按配置创建分发通道
func NewFanout(cfg *config.Config, handler Handler) (FanoutChannel, error) {
	switch cfg.FanoutConfig.Mode {
	case "", "channel":
		f, err := NewChannelFanout(cfg.FanoutConfig, handler)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "kafka":
		f, err := NewKafkaFanout(cfg.KafkaConfig, cfg.FanoutConfig, handler)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown fanout mode %q", cfg.FanoutConfig.Mode)
}

// newBackOff 重试间隔策略
var newBackOff = func() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

// runWithRetry 指数退避重试，重试耗尽后记录错误
// 消息已持久化，这里失败只影响实时推送，客户端刷新后仍能看到
func runWithRetry(ctx context.Context, handler Handler, ev FanoutEvent, maxRetries uint64) {
	op := func() error {
		err := handler(ctx, ev)
		if err != nil && (errorx.IsNotFound(err) || errors.Is(err, context.Canceled)) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		zap.L().Warn("分发处理失败，准备重试",
			zap.Int64("message_id", ev.MessageID),
			zap.String("action", string(ev.Action)),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		zap.L().Error("分发处理最终失败",
			zap.Int64("message_id", ev.MessageID),
			zap.String("action", string(ev.Action)),
			zap.Error(err))
	}
}
