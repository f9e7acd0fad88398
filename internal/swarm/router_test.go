package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ChainWatch/internal/domain/models"
	"ChainWatch/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordOpportunity(string)      {}
func (nopMetrics) RecordProfit(string, float64)  {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) SetQueueDepth(int)             {}
func (nopMetrics) SetEndpointHealth(string, float64, int, int) {}

type fakeTransport struct {
	mu    sync.Mutex
	fail  map[string]error // per address
	calls []string         // addresses in call order
}

func (f *fakeTransport) Do(_ context.Context, address, method string, _ []any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	if err, ok := f.fail[address]; ok {
		return nil, err
	}
	return json.RawMessage(`"ok"`), nil
}

type fakeProber struct {
	samples map[string]models.Sample
	fail    map[string]error
}

func (f *fakeProber) Probe(_ context.Context, ep *models.Endpoint) (models.Sample, error) {
	if err, ok := f.fail[ep.ID]; ok {
		return models.Sample{}, err
	}
	return f.samples[ep.ID], nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestRouter(t *testing.T, transport Transport, prober Prober, opts ...RouterOption) *Router {
	t.Helper()
	r, err := NewRouter(
		[]string{"http://primary", "http://sec-a", "http://sec-b"},
		prober, transport, nopMetrics{}, testLogger(t),
		opts...,
	)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r
}

// seed installs probe results directly so scoring can be tested without
// wall-clock latency.
func seed(r *Router, id string, conns, backlog int, latency time.Duration, stale bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.endpoints {
		if ep.ID != id {
			continue
		}
		ep.Connections = conns
		ep.BacklogSize = backlog
		ep.Latency = latency
		ep.Stale = stale
		ep.LastProbeTime = time.Now()
	}
}

func TestSelectBestPrefersHighScoreWithinBound(t *testing.T) {
	r := newTestRouter(t, &fakeTransport{}, &fakeProber{})

	// primary: 5*1.0 + 100*0.1 = 15
	seed(r, "primary", 5, 100, 50*time.Millisecond, false)
	// sec-a would win on connections but sits above the 1s admission bound
	seed(r, "secondary-1", 50, 10, 1500*time.Millisecond, false)
	// sec-b: 8*1.0 + 80*0.1 + (1-0.2)*0.2 = 16.16
	seed(r, "secondary-2", 8, 80, 200*time.Millisecond, false)

	r.SelectBest()
	if best := r.Best(); best.ID != "secondary-2" {
		t.Fatalf("expected secondary-2, got %s", best.ID)
	}
}

func TestSelectBestFallsBackToPrimary(t *testing.T) {
	r := newTestRouter(t, &fakeTransport{}, &fakeProber{})

	// every secondary stale or slow; primary never probed successfully
	seed(r, "secondary-1", 9, 10, 2*time.Second, false)
	seed(r, "secondary-2", 9, 10, 100*time.Millisecond, true)

	r.SelectBest()
	if best := r.Best(); best.ID != "primary" {
		t.Fatalf("expected primary fallback, got %s", best.ID)
	}
}

func TestSelectBestKeepsIncumbentOnTie(t *testing.T) {
	r := newTestRouter(t, &fakeTransport{}, &fakeProber{})

	seed(r, "secondary-1", 10, 0, 500*time.Millisecond, false)
	seed(r, "secondary-2", 10, 0, 500*time.Millisecond, false)

	r.SelectBest()
	first := r.Best().ID

	r.SelectBest()
	if got := r.Best().ID; got != first {
		t.Fatalf("tie flipped selection from %s to %s", first, got)
	}
}

func TestCallFallsBackToPrimaryOnce(t *testing.T) {
	tr := &fakeTransport{fail: map[string]error{
		"http://sec-b": errors.New("connection refused"),
	}}
	r := newTestRouter(t, tr, &fakeProber{})
	seed(r, "secondary-2", 10, 0, 100*time.Millisecond, false)
	r.SelectBest()

	raw, err := r.Call(context.Background(), "getblockcount", nil, "")
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if string(raw) != `"ok"` {
		t.Fatalf("unexpected payload %s", raw)
	}
	if len(tr.calls) != 2 || tr.calls[0] != "http://sec-b" || tr.calls[1] != "http://primary" {
		t.Fatalf("expected one fallback retry, got calls %v", tr.calls)
	}
}

func TestCallPrimaryFailureNotRetried(t *testing.T) {
	tr := &fakeTransport{fail: map[string]error{
		"http://primary": errors.New("down"),
	}}
	r := newTestRouter(t, tr, &fakeProber{})

	_, err := r.Call(context.Background(), "getblockcount", nil, "")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("primary failure must not retry, got calls %v", tr.calls)
	}
}

func TestCallExplicitTarget(t *testing.T) {
	tr := &fakeTransport{}
	r := newTestRouter(t, tr, &fakeProber{})
	seed(r, "secondary-2", 10, 0, 100*time.Millisecond, false)
	r.SelectBest()

	if _, err := r.Call(context.Background(), "getblockcount", nil, "http://sec-a"); err != nil {
		t.Fatalf("explicit call: %v", err)
	}
	if tr.calls[0] != "http://sec-a" {
		t.Fatalf("explicit target ignored, called %s", tr.calls[0])
	}
}

func TestRefreshHealthMarksFailedProbesStale(t *testing.T) {
	p := &fakeProber{
		samples: map[string]models.Sample{
			"primary":     {Connections: 5, ChainHeight: 100, BacklogSize: 10},
			"secondary-1": {Connections: 9, ChainHeight: 100, BacklogSize: 5},
		},
		fail: map[string]error{
			"secondary-2": errors.New("timeout"),
		},
	}
	r := newTestRouter(t, &fakeTransport{}, p)

	r.RefreshHealth(context.Background(), true)

	for _, st := range r.Status() {
		switch st.ID {
		case "secondary-2":
			if !st.Stale {
				t.Fatalf("failed probe must mark endpoint stale")
			}
		case "secondary-1":
			if st.Stale {
				t.Fatalf("healthy probe marked stale")
			}
			if st.Connections != 9 {
				t.Fatalf("sample not applied: %+v", st)
			}
		}
	}

	// healthy fast secondary should now be selected
	if best := r.Best(); best.ID != "secondary-1" {
		t.Fatalf("expected secondary-1, got %s", best.ID)
	}
}

func TestRefreshHealthIntervalGate(t *testing.T) {
	p := &fakeProber{samples: map[string]models.Sample{}}
	r := newTestRouter(t, &fakeTransport{}, p, WithRefreshInterval(time.Hour))

	r.RefreshHealth(context.Background(), true)
	before := r.Status()

	seed(r, "secondary-1", 99, 0, time.Millisecond, false)
	r.RefreshHealth(context.Background(), false) // gated: no reprobe, no reselect

	after := r.Status()
	if len(before) != len(after) {
		t.Fatalf("endpoint set changed")
	}
	if r.Best().ID != "primary" {
		t.Fatalf("gated refresh must not reselect, got %s", r.Best().ID)
	}
}
