package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/pkg/errorx"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaFanout 分布式模式：事件写入 Kafka，消费者组内任一实例读取后交给本机 Worker 池
// 同一会话的事件按 ConversationKey 哈希到同一分区
type KafkaFanout struct {
	cfg        config.KafkaConfig
	writer     *kafka.Writer
	reader     *kafka.Reader
	pool       *WorkerPool
	handler    Handler
	maxRetries uint64
	cancel     context.CancelFunc // 停止消费循环
	procCtx    context.Context    // 处理事件使用，Close 时在 Worker 退出后取消
	procCancel context.CancelFunc
	done       chan struct{}
}

// NewKafkaFanout 创建 Kafka 分发通道
func NewKafkaFanout(kcfg config.KafkaConfig, fcfg config.FanoutConfig, handler Handler) (*KafkaFanout, error) {
	pool, err := NewWorkerPool(fcfg.Workers, fcfg.QueueSize)
	if err != nil {
		return nil, err
	}
	timeout := kcfg.Timeout * time.Second
	procCtx, procCancel := context.WithCancel(context.Background())
	return &KafkaFanout{
		cfg: kcfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(kcfg.HostPort),
			Topic:                  kcfg.ChatTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           timeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        []string{kcfg.HostPort},
			Topic:          kcfg.ChatTopic,
			GroupID:        kcfg.GroupID,
			CommitInterval: timeout,
			StartOffset:    kafka.LastOffset,
		}),
		pool:       pool,
		handler:    handler,
		maxRetries: fcfg.MaxRetries,
		procCtx:    procCtx,
		procCancel: procCancel,
		done:       make(chan struct{}),
	}, nil
}

// EnsureTopic 主题不存在时创建
func (f *KafkaFanout) EnsureTopic() {
	conn, err := kafka.Dial("tcp", f.cfg.HostPort)
	if err != nil {
		zap.L().Error("连接 Kafka 失败", zap.Error(err))
		return
	}
	defer conn.Close()

	if err := conn.CreateTopics(topicConfig(f.cfg)); err != nil {
		zap.L().Warn("创建 Kafka 主题失败", zap.String("topic", f.cfg.ChatTopic), zap.Error(err))
	}
}

// topicConfig 分区数未配置时按单分区创建
func topicConfig(cfg config.KafkaConfig) kafka.TopicConfig {
	partitions := cfg.Partition
	if partitions <= 0 {
		partitions = 1
	}
	return kafka.TopicConfig{Topic: cfg.ChatTopic, NumPartitions: partitions, ReplicationFactor: 1}
}

// Submit 同步写入 Kafka，写入失败返回可重试错误
func (f *KafkaFanout) Submit(ctx context.Context, ev FanoutEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "序列化分发事件失败")
	}
	if err := f.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.ConversationKey), Value: value}); err != nil {
		return errorx.Wrap(err, errorx.CodeRetryable, "写入分发队列失败，请稍后重试")
	}
	return nil
}

// Start 确保主题存在后启动消费循环
// Writer 不自动建主题，首次部署由这里按配置的分区数创建
// Worker 池满时阻塞读取，未读消息留在 Kafka 中形成背压
func (f *KafkaFanout) Start(ctx context.Context) {
	f.EnsureTopic()
	ctx, f.cancel = context.WithCancel(ctx)
	go func() {
		defer close(f.done)
		defer func() {
			if rec := recover(); rec != nil {
				zap.L().Error("kafka fanout consumer panic", zap.Any("recover", rec))
			}
		}()
		for {
			msg, err := f.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				zap.L().Error("读取 Kafka 消息失败", zap.Error(err))
				continue
			}
			var ev FanoutEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				zap.L().Error("分发事件反序列化失败",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				continue
			}
			if err := f.pool.SubmitWait(ctx, func() {
				runWithRetry(f.procCtx, f.handler, ev, f.maxRetries)
			}); err != nil {
				return
			}
		}
	}()
}

// Close 停止消费，等待在途任务，关闭读写端
func (f *KafkaFanout) Close() {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	f.pool.Close()
	f.procCancel()
	if err := f.writer.Close(); err != nil {
		zap.L().Error("关闭 Kafka Writer 失败", zap.Error(err))
	}
	if err := f.reader.Close(); err != nil {
		zap.L().Error("关闭 Kafka Reader 失败", zap.Error(err))
	}
}
