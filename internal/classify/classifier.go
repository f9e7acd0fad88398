// Package classify provides the default heuristic classifier. The pipeline
// only depends on the Classifier interface, so it can be swapped out.
package classify

import (
	"context"

	"ChainWatch/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Heuristic classifies records by shape: the number of distinct venues
// touched and explicit markers in the raw fields. At most one category is
// returned per record.
type Heuristic struct {
	minProfit decimal.Decimal
	maxCost   decimal.Decimal
}

// NewHeuristic creates a classifier that drops candidates below minProfit
// or costing more than maxCost.
func NewHeuristic(minProfit, maxCost decimal.Decimal) *Heuristic {
	return &Heuristic{minProfit: minProfit, maxCost: maxCost}
}

// Classify inspects one record. A nil candidate means no opportunity.
func (h *Heuristic) Classify(_ context.Context, rec *models.TxRecord) (*models.Candidate, error) {
	if rec == nil {
		return nil, nil
	}
	if h.maxCost.IsPositive() && rec.CostHint.GreaterThan(h.maxCost) {
		return nil, nil
	}

	category, value := h.match(rec)
	if category == "" {
		return nil, nil
	}
	if value.Sub(rec.CostHint).LessThan(h.minProfit) {
		return nil, nil
	}

	return &models.Candidate{
		Category:       category,
		EstimatedValue: value,
		Cost:           rec.CostHint,
		Details: map[string]string{
			"venues": joinVenues(rec.Venues),
		},
	}, nil
}

func (h *Heuristic) match(rec *models.TxRecord) (models.Category, decimal.Decimal) {
	value, _ := decimal.NewFromString(rec.Markers["estimated_value"])

	switch {
	case rec.Markers["liquidation"] != "":
		return models.CategoryLiquidation, value
	case rec.Markers["sandwich"] != "":
		return models.CategorySandwich, value
	case rec.Markers["jit"] != "":
		return models.CategoryJustInTime, value
	case rec.Markers["reorg_depth"] != "":
		return models.CategoryTimeBandit, value
	case rec.Markers["frontrun"] != "":
		return models.CategoryFrontrun, value
	case rec.Markers["backrun"] != "":
		return models.CategoryBackrun, value
	case countDistinct(rec.Venues) > 1:
		// swaps across more than one venue in a single record
		return models.CategoryArbitrage, value
	}
	return "", decimal.Zero
}

func countDistinct(venues []string) int {
	seen := make(map[string]struct{}, len(venues))
	for _, v := range venues {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func joinVenues(venues []string) string {
	out := ""
	for i, v := range venues {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}
