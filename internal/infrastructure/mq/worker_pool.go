package mq

import (
	"context"
	"errors"
	"sync"

	"employee_chat_server/pkg/errorx"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ErrPoolClosed 线程池已关闭
var ErrPoolClosed = errors.New("worker pool closed")

// WorkerPool 有界排队 + ants 协程池
// 排队任务达到上限时 TrySubmit 立即拒绝，调用方据此返回可重试错误
type WorkerPool struct {
	pool  *ants.Pool
	slots chan struct{} // 排队名额，任务开始执行时归还
	tasks chan func()
	quit  chan struct{}
	done  chan struct{} // 派发循环退出

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWorkerPool 创建协程池并启动派发循环
func NewWorkerPool(workers, queueSize int) (*WorkerPool, error) {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(rec any) {
		zap.L().Error("fanout worker panic", zap.Any("recover", rec))
	}))
	if err != nil {
		return nil, err
	}
	p := &WorkerPool{
		pool:  pool,
		slots: make(chan struct{}, queueSize),
		tasks: make(chan func(), queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go p.dispatch()
	zap.L().Info("fanout workers started", zap.Int("workers", workers), zap.Int("queue", queueSize))
	return p, nil
}

// dispatch 按提交顺序把任务交给 ants，没有空闲 Worker 时阻塞
// 关闭后先执行完已排队的任务再退出
func (p *WorkerPool) dispatch() {
	defer close(p.done)
	for {
		select {
		case task := <-p.tasks:
			p.run(task)
		case <-p.quit:
			for {
				select {
				case task := <-p.tasks:
					p.run(task)
				default:
					return
				}
			}
		}
	}
}

func (p *WorkerPool) run(task func()) {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		<-p.slots
		task()
	})
	if err != nil {
		<-p.slots
		p.wg.Done()
		zap.L().Error("提交分发任务失败", zap.Error(err))
	}
}

// enqueue 调用方已占到名额；名额数不超过 tasks 容量，发送不会阻塞
func (p *WorkerPool) enqueue(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		<-p.slots
		return ErrPoolClosed
	}
	p.tasks <- task
	return nil
}

// TrySubmit 非阻塞提交，排队已满返回 errorx.ErrFanoutFull
func (p *WorkerPool) TrySubmit(task func()) error {
	select {
	case p.slots <- struct{}{}:
	default:
		select {
		case <-p.quit:
			return ErrPoolClosed
		default:
			return errorx.ErrFanoutFull
		}
	}
	return p.enqueue(task)
}

// SubmitWait 阻塞提交，直到拿到排队名额、ctx 结束或线程池关闭
// Kafka 消费循环使用它做背压，消息留在 Broker 中不会丢
func (p *WorkerPool) SubmitWait(ctx context.Context, task func()) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
	return p.enqueue(task)
}

// Close 停止接收新任务，等待已排队和执行中的任务完成
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.quit)
		p.mu.Unlock()

		<-p.done
		p.wg.Wait()
		p.pool.Release()
	})
}
