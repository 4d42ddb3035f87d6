package bus

import (
	"context"
	"errors"
	"strings"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/dto/event"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NatsBus 基于 NATS Core 的多实例总线，至多一次投递
type NatsBus struct {
	nc      *nats.Conn
	subject string
}

// NewNatsBus 连接 NATS
func NewNatsBus(cfg config.NatsConfig, subject string) (*NatsBus, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	reconnectWait := cfg.ReconnectWait * time.Millisecond
	if reconnectWait <= 0 {
		reconnectWait = 500 * time.Millisecond
	}
	timeout := cfg.Timeout * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				zap.L().Warn("NATS 连接断开", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			zap.L().Info("NATS 已重连", zap.String("url", c.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &NatsBus{nc: nc, subject: subject}, nil
}

func (b *NatsBus) Publish(ctx context.Context, env *event.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.nc.IsClosed() {
		return ErrClosed
	}
	data, err := encode(env)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject, data)
}

func (b *NatsBus) Subscribe(ctx context.Context, h Handler) error {
	msgs := make(chan *nats.Msg, 1024)
	sub, err := b.nc.ChanSubscribe(b.subject, msgs)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()
	if err := b.nc.Flush(); err != nil {
		return err
	}
	zap.L().Info("已订阅投递总线", zap.String("subject", b.subject))

	closed := make(chan struct{})
	b.nc.SetClosedHandler(func(*nats.Conn) { close(closed) })
	for {
		select {
		case msg := <-msgs:
			if env, ok := decode(msg.Data); ok {
				dispatch(h, env)
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return nil
		}
	}
}

// Close 排空未发送的消息后关闭连接
func (b *NatsBus) Close() error {
	if b.nc.IsClosed() {
		return nil
	}
	return b.nc.Drain()
}
