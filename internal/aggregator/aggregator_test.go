package aggregator

import (
	"sync"
	"testing"
	"time"

	"ChainWatch/internal/domain/models"

	"github.com/shopspring/decimal"
)

func TestCategoryCountsSumToGlobal(t *testing.T) {
	a := New()
	a.RecordFound(models.CategoryArbitrage)
	a.RecordFound(models.CategoryArbitrage)
	a.RecordFound(models.CategoryLiquidation)
	a.RecordFound(models.CategorySandwich)

	snap := a.Snapshot()
	var sum int64
	for _, st := range snap.Categories {
		sum += st.Count
	}
	if sum != snap.OpportunitiesFound {
		t.Fatalf("category counts sum %d != global %d", sum, snap.OpportunitiesFound)
	}
	if snap.OpportunitiesFound != 4 {
		t.Fatalf("expected 4 found, got %d", snap.OpportunitiesFound)
	}
}

func TestExecutionProfitOnlyOnSuccess(t *testing.T) {
	a := New()
	a.RecordFound(models.CategoryArbitrage)
	a.RecordFound(models.CategoryArbitrage)

	a.RecordExecution(models.CategoryArbitrage, decimal.NewFromFloat(1.5), 10*time.Millisecond, true)
	a.RecordExecution(models.CategoryArbitrage, decimal.NewFromFloat(9.9), 20*time.Millisecond, false)

	snap := a.Snapshot()
	if !snap.TotalProfit.Equal(decimal.NewFromFloat(1.5)) {
		t.Fatalf("expected profit 1.5, got %s", snap.TotalProfit)
	}
	if got := snap.Categories[models.CategoryArbitrage].Profit; !got.Equal(decimal.NewFromFloat(1.5)) {
		t.Fatalf("expected category profit 1.5, got %s", got)
	}
	if len(snap.LatencySamples) != 2 || len(snap.SuccessSamples) != 2 {
		t.Fatalf("expected 2 samples, got %d/%d", len(snap.LatencySamples), len(snap.SuccessSamples))
	}
	if snap.SuccessRate() != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", snap.SuccessRate())
	}
}

func TestFlushResetsSamplesKeepsTotals(t *testing.T) {
	a := New()
	a.RecordFound(models.CategoryLiquidation)
	a.RecordExecution(models.CategoryLiquidation, decimal.NewFromInt(2), 5*time.Millisecond, true)
	a.RecordScan(100, 850000)

	first := a.Flush()
	if len(first.LatencySamples) != 1 {
		t.Fatalf("expected 1 latency sample, got %d", len(first.LatencySamples))
	}

	second := a.Flush()
	if len(second.LatencySamples) != 0 || len(second.SuccessSamples) != 0 {
		t.Fatalf("samples not reset by flush")
	}
	if second.OpportunitiesFound != 1 {
		t.Fatalf("cumulative found lost on flush: %d", second.OpportunitiesFound)
	}
	if !second.TotalProfit.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("cumulative profit lost on flush: %s", second.TotalProfit)
	}
	if second.RecordsScanned != 100 || second.BestHeight != 850000 {
		t.Fatalf("scan stats lost on flush: %d/%d", second.RecordsScanned, second.BestHeight)
	}
}

func TestBestHeightMonotonic(t *testing.T) {
	a := New()
	a.RecordScan(0, 100)
	a.RecordScan(0, 50)
	if snap := a.Snapshot(); snap.BestHeight != 100 {
		t.Fatalf("best height regressed to %d", snap.BestHeight)
	}
}

func TestConcurrentRecording(t *testing.T) {
	a := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.RecordFound(models.CategoryArbitrage)
				a.RecordExecution(models.CategoryArbitrage, decimal.NewFromInt(1), time.Millisecond, true)
			}
		}()
	}
	wg.Wait()

	snap := a.Snapshot()
	if snap.OpportunitiesFound != 1000 {
		t.Fatalf("expected 1000 found, got %d", snap.OpportunitiesFound)
	}
	if !snap.TotalProfit.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected profit 1000, got %s", snap.TotalProfit)
	}
}
