package pipeline

import (
	"errors"
	"testing"
	"time"

	"ChainWatch/internal/domain/models"
)

func opp(id string) *models.Opportunity {
	return &models.Opportunity{ID: id, Category: models.CategoryArbitrage}
}

func TestOpportunityQueueFIFO(t *testing.T) {
	q := NewOpportunityQueue(10, 0)
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(opp(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatalf("dequeue: not ok")
		}
		if got.ID != want {
			t.Fatalf("expected %s got %s", want, got.ID)
		}
	}
}

func TestOpportunityQueueFull(t *testing.T) {
	q := NewOpportunityQueue(2, 50*time.Millisecond)
	if err := q.Enqueue(opp("a")); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Enqueue(opp("b")); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	err := q.Enqueue(opp("c"))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 2 || q.Cap() != 2 {
		t.Fatalf("len=%d cap=%d", q.Len(), q.Cap())
	}
}

func TestOpportunityQueueShutdown(t *testing.T) {
	q := NewOpportunityQueue(4, 0)
	if err := q.Enqueue(opp("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Shutdown()

	if err := q.Enqueue(opp("b")); err == nil {
		t.Fatalf("expected error after shutdown")
	}

	// queued item stays drainable
	if got, ok := q.Dequeue(); !ok || got.ID != "a" {
		t.Fatalf("drain after shutdown: ok=%v", ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected ok=false once drained")
	}
}
