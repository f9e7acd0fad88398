// Package aggregator accumulates pipeline performance metrics under
// concurrent access and produces consistent snapshots.
package aggregator

import (
	"sync"
	"time"

	"ChainWatch/internal/domain/models"

	"github.com/shopspring/decimal"
)

type categoryBucket struct {
	count  int64
	profit decimal.Decimal
}

// Aggregator is safe for concurrent use by all workers and the control
// loop. One mutex guards every bucket so a snapshot is never torn.
type Aggregator struct {
	mu sync.Mutex

	categories map[models.Category]*categoryBucket

	opportunitiesFound int64
	totalProfit        decimal.Decimal

	latencySamples []time.Duration
	successSamples []bool

	recordsScanned int64
	bestHeight     int64
}

// New creates an empty aggregator with buckets for every known category.
func New() *Aggregator {
	a := &Aggregator{
		categories:  make(map[models.Category]*categoryBucket, len(models.Categories)),
		totalProfit: decimal.Zero,
	}
	for _, c := range models.Categories {
		a.categories[c] = &categoryBucket{profit: decimal.Zero}
	}
	return a
}

// RecordFound counts one detected opportunity, per category and globally,
// so category counts always sum to the global total.
func (a *Aggregator) RecordFound(c models.Category) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b := a.categories[c]
	if b == nil {
		b = &categoryBucket{profit: decimal.Zero}
		a.categories[c] = b
	}
	b.count++
	a.opportunitiesFound++
}

// RecordExecution records the outcome of one handler run. Profit only
// accumulates on success; latency and success samples always do.
func (a *Aggregator) RecordExecution(c models.Category, profit decimal.Decimal, latency time.Duration, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b := a.categories[c]
	if b == nil {
		b = &categoryBucket{profit: decimal.Zero}
		a.categories[c] = b
	}
	if ok && profit.IsPositive() {
		b.profit = b.profit.Add(profit)
		a.totalProfit = a.totalProfit.Add(profit)
	}
	a.latencySamples = append(a.latencySamples, latency)
	a.successSamples = append(a.successSamples, ok)
}

// RecordScan accumulates scanned record counts and the observed best height.
func (a *Aggregator) RecordScan(records int, bestHeight int64) {
	a.mu.Lock()
	a.recordsScanned += int64(records)
	if bestHeight > a.bestHeight {
		a.bestHeight = bestHeight
	}
	a.mu.Unlock()
}

// Flush atomically captures a snapshot and resets the rolling sample
// buffers. Cumulative counts and profit totals persist across flushes.
func (a *Aggregator) Flush() *models.MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := &models.MetricsSnapshot{
		TakenAt:            time.Now(),
		Categories:         make(map[models.Category]models.CategoryStats, len(a.categories)),
		OpportunitiesFound: a.opportunitiesFound,
		TotalProfit:        a.totalProfit,
		LatencySamples:     a.latencySamples,
		SuccessSamples:     a.successSamples,
		RecordsScanned:     a.recordsScanned,
		BestHeight:         a.bestHeight,
	}
	for c, b := range a.categories {
		snap.Categories[c] = models.CategoryStats{Count: b.count, Profit: b.profit}
	}

	a.latencySamples = nil
	a.successSamples = nil

	return snap
}

// Snapshot is Flush without resetting the sample buffers, for read-only
// status queries.
func (a *Aggregator) Snapshot() *models.MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := &models.MetricsSnapshot{
		TakenAt:            time.Now(),
		Categories:         make(map[models.Category]models.CategoryStats, len(a.categories)),
		OpportunitiesFound: a.opportunitiesFound,
		TotalProfit:        a.totalProfit,
		LatencySamples:     append([]time.Duration(nil), a.latencySamples...),
		SuccessSamples:     append([]bool(nil), a.successSamples...),
		RecordsScanned:     a.recordsScanned,
		BestHeight:         a.bestHeight,
	}
	for c, b := range a.categories {
		snap.Categories[c] = models.CategoryStats{Count: b.count, Profit: b.profit}
	}
	return snap
}
