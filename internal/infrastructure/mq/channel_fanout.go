package mq

import (
	"context"

	"employee_chat_server/internal/config"
)

// ChannelFanout 单机模式：事件直接进入本机有界 Worker 池
type ChannelFanout struct {
	pool       *WorkerPool
	handler    Handler
	maxRetries uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewChannelFanout 创建单机分发通道
func NewChannelFanout(cfg config.FanoutConfig, handler Handler) (*ChannelFanout, error) {
	pool, err := NewWorkerPool(cfg.Workers, cfg.QueueSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ChannelFanout{
		pool:       pool,
		handler:    handler,
		maxRetries: cfg.MaxRetries,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Submit 队列满时返回 errorx.ErrFanoutFull
// 处理使用通道自身的 ctx，请求结束不会中断分发
func (f *ChannelFanout) Submit(_ context.Context, ev FanoutEvent) error {
	return f.pool.TrySubmit(func() {
		runWithRetry(f.ctx, f.handler, ev, f.maxRetries)
	})
}

func (f *ChannelFanout) Start(context.Context) {}

// Close 等待已排队事件处理完毕后取消 ctx
func (f *ChannelFanout) Close() {
	f.pool.Close()
	f.cancel()
}
