package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ChainWatch/internal/domain/models"

	"github.com/redis/go-redis/v9"
)

const (
	keyPerformance = "chainwatch:performance_metrics"
	keyCategories  = "chainwatch:category_stats"
	keyChainStats  = "chainwatch:chain_stats"
	keyAlerts      = "chainwatch:alerts"

	// alerts list is capped so a long-running process cannot grow it
	// without bound
	maxAlerts = 10000
)

// RedisSink publishes snapshots as hashes and alerts as a capped list.
type RedisSink struct {
	cli *redis.Client
}

// NewRedisSink creates a sink over an existing client.
func NewRedisSink(cli *redis.Client) *RedisSink {
	return &RedisSink{cli: cli}
}

// Publish writes the snapshot's rollups into Redis hashes.
func (s *RedisSink) Publish(ctx context.Context, snap *models.MetricsSnapshot) error {
	perf := map[string]any{
		"opportunities_found": snap.OpportunitiesFound,
		"total_profit":        snap.TotalProfit.String(),
		"avg_latency_ms":      float64(snap.AvgLatency()) / float64(time.Millisecond),
		"success_rate":        snap.SuccessRate(),
		"last_update":         snap.TakenAt.Unix(),
	}
	if err := s.cli.HSet(ctx, keyPerformance, perf).Err(); err != nil {
		return fmt.Errorf("redis publish performance: %w", err)
	}

	cats := make(map[string]any, len(snap.Categories)*2)
	for c, st := range snap.Categories {
		cats[string(c)+":count"] = st.Count
		cats[string(c)+":profit"] = st.Profit.String()
	}
	if len(cats) > 0 {
		if err := s.cli.HSet(ctx, keyCategories, cats).Err(); err != nil {
			return fmt.Errorf("redis publish categories: %w", err)
		}
	}

	chain := map[string]any{
		"records_scanned": snap.RecordsScanned,
		"best_height":     snap.BestHeight,
		"last_update":     snap.TakenAt.Unix(),
	}
	if err := s.cli.HSet(ctx, keyChainStats, chain).Err(); err != nil {
		return fmt.Errorf("redis publish chain stats: %w", err)
	}
	return nil
}

// PublishAlert appends an alert to the capped alert list.
func (s *RedisSink) PublishAlert(ctx context.Context, a *models.Alert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	pipe := s.cli.TxPipeline()
	pipe.RPush(ctx, keyAlerts, b)
	pipe.LTrim(ctx, keyAlerts, -maxAlerts, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish alert: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSink) Close() error {
	return s.cli.Close()
}
