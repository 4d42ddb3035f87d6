// Package bus 投递总线：把投递事件广播给所有后端实例
// 每个实例订阅全部事件，由网关决定推给本机哪些会话
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/dto/event"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrClosed 总线已关闭
var ErrClosed = errors.New("delivery bus closed")

// Handler 事件回调，在总线的分发协程中串行调用
type Handler func(env *event.Envelope)

// DeliveryBus 投递总线
type DeliveryBus interface {
	// Publish 发布事件，返回时事件已交给总线（不代表已推送）
	Publish(ctx context.Context, env *event.Envelope) error
	// Subscribe 注册本实例的事件回调，阻塞直到 ctx 结束或总线关闭
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// New 按配置创建总线
// redisClient 仅在 redis 模式下使用
func New(cfg *config.Config, redisClient *redis.Client) (DeliveryBus, error) {
	switch cfg.BusConfig.Mode {
	case "", "local":
		return NewLocalBus(1024), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis bus requires a redis client")
		}
		return NewRedisBus(redisClient, cfg.BusConfig.Channel), nil
	case "nats":
		return NewNatsBus(cfg.NatsConfig, cfg.BusConfig.Channel)
	default:
		return nil, fmt.Errorf("unknown bus mode: %q", cfg.BusConfig.Mode)
	}
}

func encode(env *event.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// decode 解析失败只记日志，不中断订阅
func decode(data []byte) (*event.Envelope, bool) {
	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		zap.L().Error("解析投递事件失败", zap.Error(err), zap.ByteString("data", data))
		return nil, false
	}
	return &env, true
}

// dispatch 调用回调并兜住 panic，单个坏事件不能拖垮订阅循环
func dispatch(h Handler, env *event.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("投递事件处理 panic", zap.Any("panic", r), zap.String("type", string(env.Type)))
		}
	}()
	h(env)
}
