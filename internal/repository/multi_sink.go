package repository

import (
	"context"
	"errors"

	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"
)

// MultiSink fans publishes out to every configured sink. Errors are joined
// so one failing sink does not hide the others.
type MultiSink struct {
	sinks []drepo.Sink
}

// NewMultiSink combines the given sinks. An empty set is valid and makes
// every publish a no-op.
func NewMultiSink(sinks ...drepo.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(ctx context.Context, snap *models.MetricsSnapshot) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) PublishAlert(ctx context.Context, a *models.Alert) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.PublishAlert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
