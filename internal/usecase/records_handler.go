package usecase

import (
	"context"
	"encoding/json"
	"time"

	"ChainWatch/internal/aggregator"
	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"
	"ChainWatch/internal/pipeline"
	pkgkafka "ChainWatch/pkg/kafka"

	"github.com/shopspring/decimal"
)

// KafkaRecordsHandler ingests candidate records from a Kafka topic as an
// alternative to RPC polling, classifying each and enqueueing matches.
type KafkaRecordsHandler struct {
	topic      string
	classifier drepo.Classifier
	queue      *pipeline.OpportunityQueue
	agg        *aggregator.Aggregator
	metrics    drepo.Metrics
}

func NewKafkaRecordsHandler(
	topic string,
	classifier drepo.Classifier,
	queue *pipeline.OpportunityQueue,
	agg *aggregator.Aggregator,
	metrics drepo.Metrics,
) *KafkaRecordsHandler {
	return &KafkaRecordsHandler{
		topic:      topic,
		classifier: classifier,
		queue:      queue,
		agg:        agg,
		metrics:    metrics,
	}
}

func (h *KafkaRecordsHandler) Topic() string { return h.topic }

// incoming message schema: {id, height, cost_hint, venues, markers}
func (h *KafkaRecordsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID       string            `json:"id"`
		Height   int64             `json:"height"`
		CostHint string            `json:"cost_hint"`
		Venues   []string          `json:"venues"`
		Markers  map[string]string `json:"markers"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	cost, _ := decimal.NewFromString(m.CostHint)
	rec := &models.TxRecord{
		ID:       m.ID,
		Height:   m.Height,
		CostHint: cost,
		Venues:   m.Venues,
		Markers:  m.Markers,
	}
	h.agg.RecordScan(1, m.Height)

	start := time.Now()
	cand, err := h.classifier.Classify(ctx, rec)
	h.metrics.RecordLatency("classify", time.Since(start).Seconds())
	if err != nil || cand == nil {
		if err != nil {
			h.metrics.RecordError("classify")
		}
		return nil
	}

	opp := &models.Opportunity{
		ID:             string(cand.Category) + "-" + rec.ID,
		Category:       cand.Category,
		SourceRecordID: rec.ID,
		EstimatedValue: cand.EstimatedValue,
		Cost:           cand.Cost,
		DetectedAt:     time.Now(),
		Details:        cand.Details,
	}
	h.agg.RecordFound(opp.Category)
	h.metrics.RecordOpportunity(string(opp.Category))

	if err := h.queue.Enqueue(opp); err != nil {
		h.metrics.RecordError("queue_full")
		// surface backpressure to the consumer's retry machinery
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRecordsHandler)(nil)
