package repository

import (
	"context"
	"fmt"

	"ChainWatch/internal/domain/models"
	pkgkafka "ChainWatch/pkg/kafka"
)

// KafkaSink publishes snapshots and alerts to Kafka topics.
type KafkaSink struct {
	producer      *pkgkafka.Producer
	snapshotTopic string
	alertTopic    string
}

// NewKafkaSink creates a sink over an existing producer.
func NewKafkaSink(producer *pkgkafka.Producer, snapshotTopic, alertTopic string) *KafkaSink {
	return &KafkaSink{
		producer:      producer,
		snapshotTopic: snapshotTopic,
		alertTopic:    alertTopic,
	}
}

// Publish sends a snapshot to the snapshot topic.
func (s *KafkaSink) Publish(ctx context.Context, snap *models.MetricsSnapshot) error {
	if err := s.producer.Publish(ctx, s.snapshotTopic, nil, snap); err != nil {
		return fmt.Errorf("kafka publish snapshot: %w", err)
	}
	return nil
}

// PublishAlert sends an alert keyed by kind so one kind stays ordered.
func (s *KafkaSink) PublishAlert(ctx context.Context, a *models.Alert) error {
	if err := s.producer.Publish(ctx, s.alertTopic, []byte(a.Kind), a); err != nil {
		return fmt.Errorf("kafka publish alert: %w", err)
	}
	return nil
}

// Close closes the producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
