package repository

import (
	"context"
	"time"

	"ChainWatch/internal/domain/models"

	"github.com/shopspring/decimal"
)

// ChainSource is the upstream query surface the control loop polls. It is
// opaque beyond record identifiers and the raw fields classifiers inspect.
type ChainSource interface {
	BestHeight(ctx context.Context) (int64, error)
	PendingBatch(ctx context.Context, limit int) ([]*models.TxRecord, error)
	RecordDetail(ctx context.Context, id string) (*models.TxRecord, error)
}

// ChainStream pushes candidate record ids as they appear, complementing the
// polling source. Shape follows a reconnecting websocket subscription.
type ChainStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan string, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Classifier inspects one record and returns at most one candidate.
// A nil candidate with nil error means no opportunity; errors are treated
// the same way by the caller and only surface in metrics.
type Classifier interface {
	Classify(ctx context.Context, rec *models.TxRecord) (*models.Candidate, error)
}

// HandlerFunc executes one opportunity and returns realized profit.
type HandlerFunc func(ctx context.Context, opp *models.Opportunity) (decimal.Decimal, error)

// Sink receives flushed snapshots and alert events; wire format is its
// concern.
type Sink interface {
	Publish(ctx context.Context, snap *models.MetricsSnapshot) error
	PublishAlert(ctx context.Context, a *models.Alert) error
	Close() error
}

// Archive persists terminal opportunities so long-running processes do not
// accumulate them in memory.
type Archive interface {
	Store(ctx context.Context, opp *models.Opportunity, profit decimal.Decimal, ok bool) error
	Query(ctx context.Context, category models.Category, from, to time.Time, limit int) ([]*models.ArchivedOpportunity, error)
	Close() error
}

// Metrics is the process-level metrics recorder.
type Metrics interface {
	RecordOpportunity(category string)
	RecordProfit(category string, profit float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetQueueDepth(n int)
	SetEndpointHealth(id string, latencySeconds float64, connections, backlog int)
}
