package pipeline

import (
	"errors"
	"time"

	"ChainWatch/internal/domain/models"
	"ChainWatch/pkg/queue"
)

// ErrQueueFull signals backpressure: the pipeline is saturated and the
// producer must shed load or wait.
var ErrQueueFull = errors.New("opportunity queue full")

// OpportunityQueue is the bounded buffer between classification fan-out and
// the worker pool.
type OpportunityQueue struct {
	q              *queue.Bounded[*models.Opportunity]
	enqueueTimeout time.Duration
}

// NewOpportunityQueue creates a queue with the given capacity. A zero
// enqueueTimeout makes Enqueue block indefinitely.
func NewOpportunityQueue(capacity int, enqueueTimeout time.Duration) *OpportunityQueue {
	return &OpportunityQueue{
		q:              queue.NewBounded[*models.Opportunity](capacity),
		enqueueTimeout: enqueueTimeout,
	}
}

// Enqueue adds an opportunity, blocking under backpressure up to the
// configured timeout, then returning ErrQueueFull.
func (oq *OpportunityQueue) Enqueue(opp *models.Opportunity) error {
	err := oq.q.Enqueue(opp, oq.enqueueTimeout)
	switch {
	case errors.Is(err, queue.ErrFull):
		return ErrQueueFull
	case errors.Is(err, queue.ErrClosed):
		return err
	}
	return err
}

// Dequeue blocks until an item is available or the queue is shut down,
// in which case ok is false.
func (oq *OpportunityQueue) Dequeue() (*models.Opportunity, bool) {
	return oq.q.Dequeue()
}

// Len returns the current queue depth.
func (oq *OpportunityQueue) Len() int { return oq.q.Len() }

// Cap returns the configured capacity.
func (oq *OpportunityQueue) Cap() int { return oq.q.Cap() }

// Shutdown stops accepting opportunities; queued items remain drainable.
func (oq *OpportunityQueue) Shutdown() { oq.q.Close() }
