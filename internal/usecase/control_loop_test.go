package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ChainWatch/internal/aggregator"
	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"
	"ChainWatch/internal/pipeline"
	"ChainWatch/internal/swarm"
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

type okTransport struct{}

func (okTransport) Do(context.Context, string, string, []any) (json.RawMessage, error) {
	return json.RawMessage(`"ok"`), nil
}

type okProber struct{}

func (okProber) Probe(context.Context, *models.Endpoint) (models.Sample, error) {
	return models.Sample{Connections: 1, ChainHeight: 1}, nil
}

// fakeSource hands out a single batch and fails the first failures calls.
type fakeSource struct {
	mu       sync.Mutex
	failures int
	batches  [][]*models.TxRecord
	calls    int
}

func (f *fakeSource) BestHeight(context.Context) (int64, error) { return 123, nil }

func (f *fakeSource) PendingBatch(context.Context, int) ([]*models.TxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rpc unavailable")
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeSource) RecordDetail(_ context.Context, id string) (*models.TxRecord, error) {
	return &models.TxRecord{ID: id, Markers: map[string]string{"liquidation": "1"}}, nil
}

type fakeSink struct {
	mu        sync.Mutex
	snapshots []*models.MetricsSnapshot
	alerts    []*models.Alert
}

func (f *fakeSink) Publish(_ context.Context, snap *models.MetricsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func (f *fakeSink) PublishAlert(_ context.Context, a *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots), len(f.alerts)
}

type fixedClassifier struct {
	value decimal.Decimal
}

func (c fixedClassifier) Classify(_ context.Context, rec *models.TxRecord) (*models.Candidate, error) {
	if rec == nil || rec.Markers == nil {
		return nil, nil
	}
	return &models.Candidate{
		Category:       models.CategoryLiquidation,
		EstimatedValue: c.value,
		Cost:           decimal.Zero,
	}, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestLoop(t *testing.T, cfg LoopConfig, source drepo.ChainSource, sink drepo.Sink, value decimal.Decimal) (*ControlLoop, *aggregator.Aggregator) {
	t.Helper()

	log := testLogger(t)
	router, err := swarm.NewRouter(
		[]string{"http://primary"},
		okProber{}, okTransport{}, nopMetrics{}, log,
		swarm.WithRefreshInterval(time.Hour),
	)
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	agg := aggregator.New()
	queue := pipeline.NewOpportunityQueue(100, 0)
	handlers := map[models.Category]drepo.HandlerFunc{
		models.CategoryLiquidation: func(_ context.Context, o *models.Opportunity) (decimal.Decimal, error) {
			return o.NetValue(), nil
		},
	}
	pool := pipeline.NewWorkerPool(2, queue, handlers, agg, nopMetrics{}, log)

	loop := NewControlLoop(cfg, router, source, nil, fixedClassifier{value: value},
		queue, pool, agg, sink, nopMetrics{}, log)
	return loop, agg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestControlLoopLifecycle(t *testing.T) {
	source := &fakeSource{batches: [][]*models.TxRecord{
		{{ID: "tx1", Markers: map[string]string{"liquidation": "1"}}},
	}}
	sink := &fakeSink{}
	loop, agg := newTestLoop(t, LoopConfig{TickInterval: 5 * time.Millisecond}, source, sink, decimal.NewFromInt(2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return loop.State() == StateRunning })
	waitFor(t, 2*time.Second, func() bool {
		snap := agg.Snapshot()
		return snap.OpportunitiesFound == 1 && len(snap.SuccessSamples) == 1
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}

	if loop.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", loop.State())
	}

	// stop publishes the final snapshot
	snaps, _ := sink.counts()
	if snaps == 0 {
		t.Fatalf("expected final snapshot publish")
	}
}

func TestControlLoopTrapsTickErrors(t *testing.T) {
	source := &fakeSource{
		failures: 3,
		batches: [][]*models.TxRecord{
			{{ID: "tx1", Markers: map[string]string{"liquidation": "1"}}},
		},
	}
	sink := &fakeSink{}
	cfg := LoopConfig{TickInterval: time.Millisecond, ErrorBackoff: time.Millisecond}
	loop, agg := newTestLoop(t, cfg, source, sink, decimal.NewFromInt(2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// the loop must survive the failed ticks and still process the batch
	waitFor(t, 2*time.Second, func() bool {
		return agg.Snapshot().OpportunitiesFound == 1
	})

	cancel()
	<-done

	source.mu.Lock()
	calls := source.calls
	source.mu.Unlock()
	if calls < 4 {
		t.Fatalf("expected retries past the failures, got %d calls", calls)
	}
}

func TestControlLoopAlertsAboveThreshold(t *testing.T) {
	source := &fakeSource{batches: [][]*models.TxRecord{
		{{ID: "big", Markers: map[string]string{"liquidation": "1"}}},
	}}
	sink := &fakeSink{}
	cfg := LoopConfig{
		TickInterval:   5 * time.Millisecond,
		AlertThreshold: decimal.RequireFromString("0.05"),
	}
	loop, _ := newTestLoop(t, cfg, source, sink, decimal.NewFromInt(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		_, alerts := sink.counts()
		return alerts == 1
	})

	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	a := sink.alerts[0]
	if a.Category != models.CategoryLiquidation || a.RecordID != "big" {
		t.Fatalf("unexpected alert %+v", a)
	}
	if !a.Value.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected alert value 10, got %s", a.Value)
	}
}
