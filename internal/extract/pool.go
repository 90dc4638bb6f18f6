package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
	"github.com/joseph-ayodele/receipt-sheets-bot/internal/llm"
)

type job struct {
	ctx   context.Context
	req   llm.ExtractRequest
	reply chan Result
}

// Pool isolates provider calls from the caller: each request is handed to a
// worker goroutine and the caller waits on a reply channel or its own context.
type Pool struct {
	extractor llm.FieldExtractor
	logger    *slog.Logger
	workers   int
	timeout   time.Duration

	ch   chan job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithCallTimeout bounds every provider call.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(extractor llm.FieldExtractor, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		extractor: extractor,
		logger:    logger,
		workers:   2,
		timeout:   45 * time.Second,
		ch:        make(chan job),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("extract.worker.started", "worker_id", workerID)
				for j := range p.ch {
					j.reply <- p.run(j)
				}
				p.logger.Debug("extract.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Extract returns the structured order for rawText. It never fails: provider
// errors, timeouts and malformed payloads come back as a degraded Result.
func (p *Pool) Extract(ctx context.Context, rawText string, fields []entity.Field) Result {
	if len(fields) == 0 {
		return Result{Status: StatusOK}
	}
	if strings.TrimSpace(rawText) == "" {
		return degraded("empty text", nil)
	}

	j := job{
		ctx:   ctx,
		req:   llm.ExtractRequest{OCRText: rawText, Fields: fields},
		reply: make(chan Result, 1),
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return degraded("extractor closed", nil)
	}
	select {
	case p.ch <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return degraded("canceled while waiting for a worker: "+ctx.Err().Error(), nil)
	}

	select {
	case r := <-j.reply:
		return r
	case <-ctx.Done():
		return degraded("canceled: "+ctx.Err().Error(), nil)
	}
}

func (p *Pool) run(j job) (res Result) {
	start := time.Now()
	orderID := common.OrderIDFromContext(j.ctx)

	defer func() {
		if rec := recover(); rec != nil {
			res = degraded(fmt.Sprintf("extractor panic: %v", rec), nil)
		}
		if !res.OK() {
			p.logger.Warn("extract.degraded",
				"order_id", orderID,
				"reason", res.Reason,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(j.ctx, p.timeout)
	defer cancel()

	order, raw, err := p.extractor.ExtractFields(ctx, j.req)
	if err != nil {
		return degraded(err.Error(), raw)
	}
	return Result{Order: keepRequested(order, j.req.Fields), Status: StatusOK, Raw: raw}
}

// keepRequested blanks every field the caller did not ask for.
func keepRequested(o entity.Order, fields []entity.Field) entity.Order {
	var out entity.Order
	for _, f := range fields {
		v := o.Get(f)
		switch f {
		case entity.FieldOrderDate:
			out.OrderDate = v
		case entity.FieldSeller:
			out.Seller = v
		case entity.FieldBuyerName:
			out.BuyerName = v
		case entity.FieldBuyerEmail:
			out.BuyerEmail = v
		case entity.FieldAddress:
			out.Address = v
		case entity.FieldPhone:
			out.Phone = v
		case entity.FieldProduct:
			out.Product = v
		case entity.FieldSerialNumber:
			out.SerialNumber = v
		}
	}
	return out
}

// Close stops accepting work and waits for in-flight calls to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("extract.pool.closed")
}
