package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Processor handles one inbound image end to end.
type Processor interface {
	Process(ctx context.Context, in entity.Inbound) error
}

// Queue feeds inbound images to a fixed set of workers. Orders never share a worker
// goroutine concurrently, so with one worker rows are appended in arrival order.
type Queue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan entity.Inbound
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.ch = make(chan entity.Inbound, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(proc Processor, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:    proc,
		logger:  logger,
		workers: 1,
		timeout: 3 * time.Minute,
		ch:      make(chan entity.Inbound, 32),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for in := range q.ch {
					q.process(workerID, in)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) process(workerID int, in entity.Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("processing panicked", "worker_id", workerID, "chat_id", in.ChatID, "message_id", in.MessageID, "panic", fmt.Sprint(r))
		}
	}()

	start := time.Now()
	if err := q.proc.Process(ctx, in); err != nil {
		q.logger.Warn("processing failed", "worker_id", workerID, "chat_id", in.ChatID, "message_id", in.MessageID, "error", err)
		return
	}
	q.logger.Info("processed image successfully", "worker_id", workerID, "chat_id", in.ChatID, "message_id", in.MessageID, "elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, in entity.Inbound) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "chat_id", in.ChatID, "message_id", in.MessageID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- in:
		q.logger.Debug("queued image for processing", "chat_id", in.ChatID, "message_id", in.MessageID)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "chat_id", in.ChatID, "message_id", in.MessageID)
	select {
	case q.ch <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued images to drain, or for ctx.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
		return ctx.Err()
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
		return nil
	}
}
