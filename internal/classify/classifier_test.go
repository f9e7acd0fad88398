package classify

import (
	"context"
	"testing"

	"ChainWatch/internal/domain/models"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func newTestClassifier() *Heuristic {
	return NewHeuristic(dec("0.001"), dec("300"))
}

func TestClassifyMarkers(t *testing.T) {
	cases := []struct {
		marker string
		want   models.Category
	}{
		{"liquidation", models.CategoryLiquidation},
		{"sandwich", models.CategorySandwich},
		{"jit", models.CategoryJustInTime},
		{"reorg_depth", models.CategoryTimeBandit},
		{"frontrun", models.CategoryFrontrun},
		{"backrun", models.CategoryBackrun},
	}

	h := newTestClassifier()
	for _, tc := range cases {
		rec := &models.TxRecord{
			ID:      "tx1",
			Markers: map[string]string{tc.marker: "1", "estimated_value": "2.5"},
		}
		cand, err := h.Classify(context.Background(), rec)
		if err != nil {
			t.Fatalf("%s: %v", tc.marker, err)
		}
		if cand == nil {
			t.Fatalf("%s: expected candidate", tc.marker)
		}
		if cand.Category != tc.want {
			t.Fatalf("%s: expected %s got %s", tc.marker, tc.want, cand.Category)
		}
	}
}

func TestClassifyArbitrageAcrossVenues(t *testing.T) {
	h := newTestClassifier()
	rec := &models.TxRecord{
		ID:      "tx2",
		Venues:  []string{"venue-a", "venue-b"},
		Markers: map[string]string{"estimated_value": "1.0"},
	}
	cand, err := h.Classify(context.Background(), rec)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cand == nil || cand.Category != models.CategoryArbitrage {
		t.Fatalf("expected arbitrage, got %+v", cand)
	}
}

func TestClassifySingleVenueNoMatch(t *testing.T) {
	h := newTestClassifier()
	rec := &models.TxRecord{
		ID:      "tx3",
		Venues:  []string{"venue-a", "venue-a"},
		Markers: map[string]string{"estimated_value": "1.0"},
	}
	cand, err := h.Classify(context.Background(), rec)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cand != nil {
		t.Fatalf("duplicate venues are one venue, got %+v", cand)
	}
}

func TestClassifyCostCeiling(t *testing.T) {
	h := newTestClassifier()
	rec := &models.TxRecord{
		ID:       "tx4",
		CostHint: dec("301"),
		Markers:  map[string]string{"liquidation": "1", "estimated_value": "500"},
	}
	cand, err := h.Classify(context.Background(), rec)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cand != nil {
		t.Fatalf("cost above ceiling must be dropped, got %+v", cand)
	}
}

func TestClassifyMinProfitFilter(t *testing.T) {
	h := newTestClassifier()
	rec := &models.TxRecord{
		ID:       "tx5",
		CostHint: dec("1.0"),
		Markers:  map[string]string{"sandwich": "1", "estimated_value": "1.0005"},
	}
	cand, err := h.Classify(context.Background(), rec)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cand != nil {
		t.Fatalf("net below min profit must be dropped, got %+v", cand)
	}
}

func TestClassifyNilRecord(t *testing.T) {
	h := newTestClassifier()
	cand, err := h.Classify(context.Background(), nil)
	if err != nil || cand != nil {
		t.Fatalf("nil record: cand=%+v err=%v", cand, err)
	}
}
