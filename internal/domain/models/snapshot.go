package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryStats holds cumulative totals for one opportunity category.
type CategoryStats struct {
	Count  int64           `json:"count"`
	Profit decimal.Decimal `json:"profit"`
}

// MetricsSnapshot is an atomic capture of the aggregator. Sample buffers
// (latency, success) are the delta since the previous flush; counts and
// profit totals are cumulative since process start.
type MetricsSnapshot struct {
	TakenAt time.Time `json:"taken_at"`

	Categories map[Category]CategoryStats `json:"categories"`

	OpportunitiesFound int64           `json:"opportunities_found"`
	TotalProfit        decimal.Decimal `json:"total_profit"`

	LatencySamples []time.Duration `json:"-"`
	SuccessSamples []bool          `json:"-"`

	RecordsScanned int64 `json:"records_scanned"`
	BestHeight     int64 `json:"best_height"`
}

// AvgLatency is the mean of the rolling latency samples, zero when empty.
func (s *MetricsSnapshot) AvgLatency() time.Duration {
	if len(s.LatencySamples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s.LatencySamples {
		sum += d
	}
	return sum / time.Duration(len(s.LatencySamples))
}

// SuccessRate is the fraction of successful executions in the rolling
// window, zero when no samples were recorded.
func (s *MetricsSnapshot) SuccessRate() float64 {
	if len(s.SuccessSamples) == 0 {
		return 0
	}
	var ok int
	for _, b := range s.SuccessSamples {
		if b {
			ok++
		}
	}
	return float64(ok) / float64(len(s.SuccessSamples))
}

// Alert is an out-of-band event for the telemetry sink.
type Alert struct {
	Kind     string          `json:"kind"` // "significant_opportunity", "loop_error", ...
	Category Category        `json:"category,omitempty"`
	RecordID string          `json:"record_id,omitempty"`
	Value    decimal.Decimal `json:"value"`
	Message  string          `json:"message,omitempty"`
	At       time.Time       `json:"at"`
}
