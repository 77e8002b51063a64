package pool

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Task 表示提交给协程池的一个异步任务。
type Task func(ctx context.Context)

var (
	// ErrPoolStopped 协程池已停止,拒绝新任务
	ErrPoolStopped = errors.New("worker pool stopped")
	// ErrQueueFull 任务队列已满
	ErrQueueFull = errors.New("worker pool queue full")
)

// WorkerPool 固定大小协程池,用于通知分发等后台任务。
// 队列满时 TrySubmit 立即返回错误,由调用方决定降级策略。
type WorkerPool struct {
	maxWorkers int
	tasks      chan Task
	log        *zap.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewWorkerPool 创建协程池,maxWorkers 为并发协程数,queueSize 为缓冲队列长度。
func NewWorkerPool(maxWorkers, queueSize int, log *zap.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = maxWorkers * 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		tasks:      make(chan Task, queueSize),
		log:        log,
	}
}

// Start 启动所有工作协程。重复调用无效果。
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx, i)
	}
}

// Submit 提交任务,队列满时阻塞直至有空位或池已停止。
func (p *WorkerPool) Submit(task Task) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.mu.Unlock()

	p.tasks <- task
	return nil
}

// TrySubmit 非阻塞提交,队列满时返回 ErrQueueFull。
func (p *WorkerPool) TrySubmit(task Task) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.mu.Unlock()

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop 停止接收新任务,排空队列后返回。
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped || !p.started {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runTask(ctx, id, task)
	}
}

func (p *WorkerPool) runTask(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker task panic",
				zap.Int("worker", id),
				zap.Any("panic", r))
		}
	}()
	task(ctx)
}
