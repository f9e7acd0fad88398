// Package chainrpc implements the chain source collaborators over the
// swarm router: JSON-RPC transport, polling source and pending-tx stream.
package chainrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ChainWatch/internal/domain/models"
	"ChainWatch/internal/swarm"
	"ChainWatch/pkg/cache"

	"github.com/shopspring/decimal"
)

// Source implements repository.ChainSource by routing every query through
// the swarm router. Record details are cached briefly since classification
// may refetch the same record within a tick window.
type Source struct {
	router   *swarm.Router
	cache    cache.Service
	cacheTTL time.Duration
}

// NewSource creates a source. c may be nil to disable record caching.
func NewSource(router *swarm.Router, c cache.Service, cacheTTL time.Duration) *Source {
	return &Source{router: router, cache: c, cacheTTL: cacheTTL}
}

// BestHeight returns the best chain height seen by the selected endpoint.
func (s *Source) BestHeight(ctx context.Context) (int64, error) {
	raw, err := s.router.Call(ctx, "getblockcount", nil, "")
	if err != nil {
		return 0, err
	}
	var height int64
	if err := json.Unmarshal(raw, &height); err != nil {
		return 0, fmt.Errorf("decode height: %w", err)
	}
	return height, nil
}

// PendingBatch lists up to limit pending record ids. Records are returned
// thin; detail fetching belongs inside the classification fan-out.
func (s *Source) PendingBatch(ctx context.Context, limit int) ([]*models.TxRecord, error) {
	raw, err := s.router.Call(ctx, "getrawmempool", nil, "")
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode mempool: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	records := make([]*models.TxRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, &models.TxRecord{ID: id})
	}
	return records, nil
}

type rawDetail struct {
	Fee     float64           `json:"fee"`
	Height  int64             `json:"height"`
	Venues  []string          `json:"venues"`
	Markers map[string]string `json:"markers"`
	Vout    []rawVout         `json:"vout"`
}

type rawVout struct {
	ScriptPubKey struct {
		Addresses []string `json:"addresses"`
	} `json:"scriptPubKey"`
}

// RecordDetail fetches the raw fields of one record, consulting the cache
// first.
func (s *Source) RecordDetail(ctx context.Context, id string) (*models.TxRecord, error) {
	key := cache.GenerateKey("record", id)
	if s.cache != nil {
		var cached string
		if err := s.cache.Get(ctx, key, &cached); err == nil && cached != "" {
			var rec models.TxRecord
			if err := json.Unmarshal([]byte(cached), &rec); err == nil {
				return &rec, nil
			}
		}
	}

	raw, err := s.router.Call(ctx, "getrawtransaction", []any{id, true}, "")
	if err != nil {
		return nil, err
	}

	var d rawDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}

	rec := &models.TxRecord{
		ID:       id,
		Height:   d.Height,
		CostHint: decimal.NewFromFloat(d.Fee),
		Venues:   d.Venues,
		Markers:  d.Markers,
	}
	if rec.Markers == nil {
		rec.Markers = map[string]string{}
	}
	for _, v := range d.Vout {
		rec.Venues = append(rec.Venues, v.ScriptPubKey.Addresses...)
	}

	if s.cache != nil {
		if b, err := json.Marshal(rec); err == nil {
			_ = s.cache.Set(ctx, key, string(b), s.cacheTTL)
		}
	}
	return rec, nil
}
