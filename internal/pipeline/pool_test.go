package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"ChainWatch/internal/aggregator"
	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"
	"ChainWatch/pkg/logger"

	"github.com/shopspring/decimal"
)

type nopMetrics struct{}

func (nopMetrics) RecordOpportunity(string)      {}
func (nopMetrics) RecordProfit(string, float64)  {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) SetQueueDepth(int)             {}
func (nopMetrics) SetEndpointHealth(string, float64, int, int) {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestPoolExecutesAndRecordsOutcome(t *testing.T) {
	q := NewOpportunityQueue(10, 0)
	agg := aggregator.New()

	handlers := map[models.Category]drepo.HandlerFunc{
		models.CategoryArbitrage: func(_ context.Context, o *models.Opportunity) (decimal.Decimal, error) {
			if o.ID == "bad" {
				return decimal.Zero, errors.New("simulated failure")
			}
			return o.NetValue(), nil
		},
	}

	pool := NewWorkerPool(3, q, handlers, agg, nopMetrics{}, testLogger(t))
	pool.Start(context.Background())

	good := &models.Opportunity{
		ID:             "good",
		Category:       models.CategoryArbitrage,
		EstimatedValue: decimal.NewFromInt(5),
		Cost:           decimal.NewFromInt(1),
	}
	bad := &models.Opportunity{ID: "bad", Category: models.CategoryArbitrage}

	if err := q.Enqueue(good); err != nil {
		t.Fatalf("enqueue good: %v", err)
	}
	if err := q.Enqueue(bad); err != nil {
		t.Fatalf("enqueue bad: %v", err)
	}

	pool.Stop()

	snap := agg.Snapshot()
	if len(snap.SuccessSamples) != 2 {
		t.Fatalf("expected 2 execution samples, got %d", len(snap.SuccessSamples))
	}
	if snap.SuccessRate() != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", snap.SuccessRate())
	}
	if !snap.TotalProfit.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected profit 4, got %s", snap.TotalProfit)
	}
}

func TestPoolDropsUnknownCategory(t *testing.T) {
	q := NewOpportunityQueue(4, 0)
	agg := aggregator.New()

	pool := NewWorkerPool(1, q, map[models.Category]drepo.HandlerFunc{}, agg, nopMetrics{}, testLogger(t))
	pool.Start(context.Background())

	if err := q.Enqueue(&models.Opportunity{ID: "x", Category: "mystery"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.Stop()

	snap := agg.Snapshot()
	if len(snap.SuccessSamples) != 0 {
		t.Fatalf("unknown category should not record an execution")
	}
}

func TestPoolSurvivesHandlerPanic(t *testing.T) {
	q := NewOpportunityQueue(4, 0)
	agg := aggregator.New()

	handlers := map[models.Category]drepo.HandlerFunc{
		models.CategorySandwich: func(context.Context, *models.Opportunity) (decimal.Decimal, error) {
			panic("boom")
		},
	}
	pool := NewWorkerPool(1, q, handlers, agg, nopMetrics{}, testLogger(t))
	pool.Start(context.Background())

	if err := q.Enqueue(&models.Opportunity{ID: "p", Category: models.CategorySandwich}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not survive handler panic")
	}

	snap := agg.Snapshot()
	if len(snap.SuccessSamples) != 1 || snap.SuccessSamples[0] {
		t.Fatalf("panic should be recorded as a failed execution")
	}
}
