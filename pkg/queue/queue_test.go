package queue

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBoundedFIFO(t *testing.T) {
	q := NewBounded[int](10)
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(i, 0); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Dequeue()
		if !ok {
			t.Fatalf("dequeue %d: not ok", i)
		}
		if v != i {
			t.Fatalf("expected %d got %d", i, v)
		}
	}
}

func TestBoundedFullTimeout(t *testing.T) {
	q := NewBounded[string](2)
	if err := q.Enqueue("a", 0); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Enqueue("b", 0); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	err := q.Enqueue("c", 50*time.Millisecond)
	if !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
}

func TestBoundedEnqueueUnblocksOnDequeue(t *testing.T) {
	q := NewBounded[int](1)
	if err := q.Enqueue(1, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(2, time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	if v, ok := q.Dequeue(); !ok || v != 1 {
		t.Fatalf("dequeue: got %d ok=%v", v, ok)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked enqueue: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue never unblocked")
	}

	if v, ok := q.Dequeue(); !ok || v != 2 {
		t.Fatalf("dequeue second: got %d ok=%v", v, ok)
	}
}

func TestBoundedCloseDrains(t *testing.T) {
	q := NewBounded[int](4)
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(i, 0); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	q.Close()

	if err := q.Enqueue(9, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	for i := 0; i < 3; i++ {
		v, ok := q.Dequeue()
		if !ok || v != i {
			t.Fatalf("drain %d: got %d ok=%v", i, v, ok)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected ok=false after drain")
	}
}

func TestBoundedCloseWakesConsumers(t *testing.T) {
	q := NewBounded[int](4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := q.Dequeue(); !ok {
					return
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("consumers never woke after close")
	}
}
