package mq

import (
	"context"
	"testing"
	"time"

	"employee_chat_server/internal/config"

	"github.com/stretchr/testify/require"
)

func TestTopicConfigDefaultsToSinglePartition(t *testing.T) {
	tc := topicConfig(config.KafkaConfig{ChatTopic: "chat.fanout"})
	require.Equal(t, "chat.fanout", tc.Topic)
	require.Equal(t, 1, tc.NumPartitions)
	require.Equal(t, 1, tc.ReplicationFactor)

	tc = topicConfig(config.KafkaConfig{ChatTopic: "chat.fanout", Partition: 6})
	require.Equal(t, 6, tc.NumPartitions)
}

// Broker 不可达时建主题失败只记日志，消费循环照常启动并能正常关闭
func TestKafkaFanoutStartWithoutBroker(t *testing.T) {
	f, err := NewKafkaFanout(
		config.KafkaConfig{HostPort: "127.0.0.1:1", ChatTopic: "chat.fanout", GroupID: "test", Timeout: 1},
		config.FanoutConfig{Workers: 1, QueueSize: 1},
		func(context.Context, FanoutEvent) error { return nil },
	)
	require.NoError(t, err)
	f.Start(context.Background())

	done := make(chan struct{})
	go func() {
		f.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}
