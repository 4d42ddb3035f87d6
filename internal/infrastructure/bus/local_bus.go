package bus

import (
	"context"
	"sync"

	"employee_chat_server/internal/dto/event"
)

// LocalBus 单实例总线，基于带缓冲的 channel
type LocalBus struct {
	ch   chan *event.Envelope
	quit chan struct{}
	once sync.Once
}

// NewLocalBus 创建单实例总线
func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 1
	}
	return &LocalBus{
		ch:   make(chan *event.Envelope, buffer),
		quit: make(chan struct{}),
	}
}

func (b *LocalBus) Publish(ctx context.Context, env *event.Envelope) error {
	select {
	case <-b.quit:
		return ErrClosed
	default:
	}
	select {
	case b.ch <- env:
		return nil
	case <-b.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBus) Subscribe(ctx context.Context, h Handler) error {
	for {
		select {
		case env := <-b.ch:
			dispatch(h, env)
		case <-ctx.Done():
			return ctx.Err()
		case <-b.quit:
			return nil
		}
	}
}

func (b *LocalBus) Close() error {
	b.once.Do(func() { close(b.quit) })
	return nil
}
