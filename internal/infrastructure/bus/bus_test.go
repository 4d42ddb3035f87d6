package bus

import (
	"context"
	"testing"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/dto/event"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func collect(ctx context.Context, b DeliveryBus) <-chan *event.Envelope {
	out := make(chan *event.Envelope, 16)
	go func() { _ = b.Subscribe(ctx, func(env *event.Envelope) { out <- env }) }()
	return out
}

func TestLocalBusDelivers(t *testing.T) {
	b := NewLocalBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := collect(ctx, b)

	env, err := event.ToUser(event.TypeTyping, "u2", "/queue/typing-status", map[string]bool{"typing": true})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, env))

	select {
	case got := <-out:
		require.Equal(t, env.ID, got.ID)
		require.Equal(t, "u2", got.TargetUser)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestLocalBusHandlerPanicKeepsLoop(t *testing.T) {
	b := NewLocalBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	go func() {
		_ = b.Subscribe(ctx, func(env *event.Envelope) {
			if env.TargetUser == "boom" {
				panic("bad handler")
			}
			got <- env.TargetUser
		})
	}()

	require.NoError(t, b.Publish(ctx, &event.Envelope{Type: event.TypeTyping, TargetUser: "boom"}))
	require.NoError(t, b.Publish(ctx, &event.Envelope{Type: event.TypeTyping, TargetUser: "ok"}))
	select {
	case u := <-got:
		require.Equal(t, "ok", u)
	case <-time.After(time.Second):
		t.Fatal("loop stopped after panic")
	}
}

func TestLocalBusClosed(t *testing.T) {
	b := NewLocalBus(1)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.ErrorIs(t, b.Publish(context.Background(), &event.Envelope{}), ErrClosed)
	require.NoError(t, b.Subscribe(context.Background(), func(*event.Envelope) {}))
}

func TestLocalBusPublishRespectsContext(t *testing.T) {
	b := NewLocalBus(1)
	require.NoError(t, b.Publish(context.Background(), &event.Envelope{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, b.Publish(ctx, &event.Envelope{}), context.DeadlineExceeded)
}

func TestRedisBusRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewRedisBus(client, "chat.delivery")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := collect(ctx, b)

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, "chat.delivery").Result()
		return err == nil && n["chat.delivery"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	env, err := event.ToTopic(event.TypeSidebar, "/topic/team-t1", map[string]int{"n": 1})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, env))

	select {
	case got := <-out:
		require.Equal(t, env.ID, got.ID)
		require.Equal(t, event.TypeSidebar, got.Type)
		require.JSONEq(t, `{"n":1}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	require.NoError(t, b.Close())
}

func TestNewBusModes(t *testing.T) {
	cfg := config.Default()
	b, err := New(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &LocalBus{}, b)

	cfg.BusConfig.Mode = "redis"
	_, err = New(cfg, nil)
	require.Error(t, err)

	cfg.BusConfig.Mode = "nats"
	cfg.NatsConfig.Servers = nil
	_, err = New(cfg, nil)
	require.Error(t, err)

	cfg.BusConfig.Mode = "carrier-pigeon"
	_, err = New(cfg, nil)
	require.Error(t, err)
}
