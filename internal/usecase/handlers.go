package usecase

import (
	"context"
	"fmt"

	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// DefaultHandlers returns the paper-execution handler registry: each
// category books the opportunity's net value as realized profit without
// moving any funds. Real executors register over the same map.
func DefaultHandlers() map[models.Category]drepo.HandlerFunc {
	handlers := make(map[models.Category]drepo.HandlerFunc, len(models.Categories))
	for _, c := range models.Categories {
		handlers[c] = paperExecute
	}
	return handlers
}

func paperExecute(_ context.Context, opp *models.Opportunity) (decimal.Decimal, error) {
	net := opp.NetValue()
	if !net.IsPositive() {
		return decimal.Zero, fmt.Errorf("rejected: net value %s not positive", net)
	}
	return net, nil
}
