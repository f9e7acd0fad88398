package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ChainWatch/internal/aggregator"
	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"
	"ChainWatch/pkg/logger"

	"github.com/shopspring/decimal"
)

// WorkerPool drains the opportunity queue with a fixed set of workers,
// dispatching each item to its category handler and recording the outcome.
type WorkerPool struct {
	queue    *OpportunityQueue
	handlers map[models.Category]drepo.HandlerFunc
	agg      *aggregator.Aggregator
	archive  drepo.Archive
	metrics  drepo.Metrics
	log      *logger.Logger
	size     int

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// PoolOption configures WorkerPool.
type PoolOption func(*WorkerPool)

// WithArchive persists terminal opportunities to the given archive.
func WithArchive(a drepo.Archive) PoolOption {
	return func(p *WorkerPool) { p.archive = a }
}

// NewWorkerPool creates a pool of size workers over the given queue.
func NewWorkerPool(
	size int,
	q *OpportunityQueue,
	handlers map[models.Category]drepo.HandlerFunc,
	agg *aggregator.Aggregator,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...PoolOption,
) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	p := &WorkerPool{
		queue:    q,
		handlers: handlers,
		agg:      agg,
		metrics:  metrics,
		log:      log,
		size:     size,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Idempotent.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info("worker pool started", logger.Int("workers", p.size))
}

// Stop shuts the queue and waits for workers to finish their in-flight
// items. Safe to call more than once.
func (p *WorkerPool) Stop() {
	p.queue.Shutdown()
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		opp, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		p.metrics.SetQueueDepth(p.queue.Len())
		p.execute(ctx, id, opp)
	}
}

// execute runs one opportunity through its handler. A failing handler is
// recorded and never stops the worker.
func (p *WorkerPool) execute(ctx context.Context, id int, opp *models.Opportunity) {
	start := time.Now()

	handler, ok := p.handlers[opp.Category]
	if !ok {
		p.log.Warn("unknown opportunity category, dropping",
			logger.String("category", string(opp.Category)),
			logger.String("id", opp.ID))
		p.metrics.RecordError("unknown_category")
		return
	}

	profit, err := p.safeHandle(ctx, handler, opp)
	elapsed := time.Since(start)

	if err != nil {
		p.agg.RecordExecution(opp.Category, decimal.Zero, elapsed, false)
		p.metrics.RecordError("handler")
		p.log.Warn("handler failed",
			logger.String("category", string(opp.Category)),
			logger.String("id", opp.ID),
			logger.Error(err))
	} else {
		p.agg.RecordExecution(opp.Category, profit, elapsed, true)
		p.metrics.RecordProfit(string(opp.Category), mustFloat(profit))
	}
	p.metrics.RecordLatency("execute", elapsed.Seconds())

	if p.archive != nil {
		if aerr := p.archive.Store(ctx, opp, profit, err == nil); aerr != nil {
			p.metrics.RecordError("archive")
			p.log.Warn("archive store failed", logger.Error(aerr))
		}
	}
}

// safeHandle isolates handler panics so one bad item cannot kill a worker.
func (p *WorkerPool) safeHandle(ctx context.Context, h drepo.HandlerFunc, opp *models.Opportunity) (profit decimal.Decimal, err error) {
	defer func() {
		if r := recover(); r != nil {
			profit = decimal.Zero
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, opp)
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
