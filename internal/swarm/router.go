// Package swarm scores a set of upstream RPC endpoints and routes calls to
// the healthiest one, falling back to the primary on failure.
package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"
	"ChainWatch/internal/service/ratelimit"
	"ChainWatch/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Weights tunes the endpoint score. Connections and backlog count
// positively; secondaries additionally earn a bonus for sub-second latency.
type Weights struct {
	Connections float64
	Backlog     float64
	Latency     float64
}

// DefaultWeights favor well-connected endpoints; backlog breaks ties
// between similarly connected nodes.
var DefaultWeights = Weights{Connections: 1.0, Backlog: 0.1, Latency: 0.2}

// Router holds the endpoint set, refreshes health on an interval and
// selects the best endpoint for calls. All endpoint mutation happens under
// the router's lock; other components only read the selected reference.
type Router struct {
	prober    Prober
	transport Transport
	metrics   drepo.Metrics
	log       *logger.Logger

	refreshInterval time.Duration
	probeTimeout    time.Duration
	callTimeout     time.Duration
	admissionBound  time.Duration
	weights         Weights
	secondaryRPS    float64
	limiter         *ratelimit.Limiter

	mu          sync.RWMutex
	endpoints   []*models.Endpoint // primary first
	best        *models.Endpoint
	lastRefresh time.Time
}

// RouterOption configures Router.
type RouterOption func(*Router)

// WithRefreshInterval sets the minimum gap between health refreshes.
func WithRefreshInterval(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.refreshInterval = d
		}
	}
}

// WithProbeTimeout sets the per-probe timeout.
func WithProbeTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.probeTimeout = d
		}
	}
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithAdmissionBound sets the latency ceiling above which a secondary is
// ineligible for selection.
func WithAdmissionBound(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.admissionBound = d
		}
	}
}

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) RouterOption {
	return func(r *Router) { r.weights = w }
}

// WithSecondaryRPS caps the call rate against each secondary endpoint.
func WithSecondaryRPS(rps float64) RouterOption {
	return func(r *Router) {
		if rps > 0 {
			r.secondaryRPS = rps
		}
	}
}

// NewRouter builds a router over the given addresses; the first address is
// the primary, the rest are secondaries.
func NewRouter(
	addresses []string,
	prober Prober,
	transport Transport,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...RouterOption,
) (*Router, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("swarm: at least one endpoint required")
	}

	r := &Router{
		prober:          prober,
		transport:       transport,
		metrics:         metrics,
		log:             log,
		refreshInterval: 15 * time.Second,
		probeTimeout:    5 * time.Second,
		callTimeout:     5 * time.Second,
		admissionBound:  time.Second,
		weights:         DefaultWeights,
		secondaryRPS:    50,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.limiter = ratelimit.New(r.secondaryRPS, r.secondaryRPS)

	for i, addr := range addresses {
		role := models.RoleSecondary
		id := fmt.Sprintf("secondary-%d", i)
		if i == 0 {
			role = models.RolePrimary
			id = "primary"
		}
		r.endpoints = append(r.endpoints, &models.Endpoint{
			ID:      id,
			Address: addr,
			Role:    role,
		})
	}

	return r, nil
}

// RefreshHealth probes every endpoint concurrently and reselects the best
// one. Cheap to call every tick: it is a no-op until the refresh interval
// has elapsed. force bypasses the gate.
func (r *Router) RefreshHealth(ctx context.Context, force bool) {
	r.mu.Lock()
	if !force && time.Since(r.lastRefresh) < r.refreshInterval {
		r.mu.Unlock()
		return
	}
	r.lastRefresh = time.Now()
	endpoints := r.endpoints
	r.mu.Unlock()

	// one goroutine per endpoint; parallelism bounded by endpoint count
	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range endpoints {
		ep := ep
		g.Go(func() error {
			r.probeOne(gctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	r.SelectBest()
}

// probeOne updates a single endpoint in place. A failed probe keeps the
// previous sample and marks it stale so scoring degrades without flapping.
func (r *Router) probeOne(ctx context.Context, ep *models.Endpoint) {
	pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	start := time.Now()
	sample, err := r.prober.Probe(pctx, ep)
	rtt := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		ep.Stale = true
		r.metrics.RecordError("probe")
		r.log.Warn("health probe failed",
			logger.String("endpoint", ep.ID),
			logger.Error(err))
		return
	}

	ep.Connections = sample.Connections
	ep.ChainHeight = sample.ChainHeight
	ep.BacklogSize = sample.BacklogSize
	ep.Latency = rtt
	ep.LastProbeTime = time.Now()
	ep.Stale = false

	r.metrics.SetEndpointHealth(ep.ID, rtt.Seconds(), sample.Connections, sample.BacklogSize)
}

// SelectBest recomputes the current best endpoint from the latest samples.
// Secondaries above the admission latency bound are excluded; the primary is
// always admissible. Equal scores keep the incumbent to avoid oscillation.
func (r *Router) SelectBest() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *models.Endpoint
	bestScore := 0.0

	for _, ep := range r.endpoints {
		if !r.admissible(ep) {
			continue
		}
		score := r.score(ep)
		switch {
		case best == nil, score > bestScore:
			best, bestScore = ep, score
		case score == bestScore && ep == r.best:
			best = ep
		}
	}

	if best == nil {
		best = r.endpoints[0] // primary fallback regardless of score
	}

	if best != r.best {
		r.log.Info("best endpoint changed",
			logger.String("endpoint", best.ID),
			logger.String("address", best.Address))
	}
	r.best = best
}

func (r *Router) admissible(ep *models.Endpoint) bool {
	if ep.Role == models.RolePrimary {
		return true
	}
	if ep.LastProbeTime.IsZero() || ep.Stale {
		return false
	}
	return ep.Latency <= r.admissionBound
}

func (r *Router) score(ep *models.Endpoint) float64 {
	s := float64(ep.Connections)*r.weights.Connections +
		float64(ep.BacklogSize)*r.weights.Backlog
	if ep.Role != models.RolePrimary {
		if bonus := 1.0 - ep.Latency.Seconds(); bonus > 0 {
			s += bonus * r.weights.Latency
		}
	}
	if ep.Stale {
		s = 0
	}
	return s
}

// Best returns the currently selected endpoint, never nil.
func (r *Router) Best() *models.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.best != nil {
		return r.best
	}
	return r.endpoints[0]
}

// Primary returns the primary endpoint.
func (r *Router) Primary() *models.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[0]
}

// Call routes one RPC. Order of preference: explicit target, current best,
// primary. A failure against a non-primary target is retried exactly once
// against the primary; a second failure is returned as *RPCError.
func (r *Router) Call(ctx context.Context, method string, params []any, explicitTarget string) (json.RawMessage, error) {
	target := explicitTarget
	if target == "" {
		best := r.Best()
		target = best.Address
		// rate-limited secondaries spill to the primary
		if best.Role != models.RolePrimary && !r.limiter.Allow(best.ID) {
			target = r.Primary().Address
		}
	}

	raw, err := r.do(ctx, target, method, params)
	if err == nil {
		return raw, nil
	}

	primary := r.Primary().Address
	if target == primary {
		return nil, &RPCError{Method: method, Endpoint: target, Err: err}
	}

	r.metrics.RecordError("rpc_fallback")
	r.log.Warn("rpc failed, falling back to primary",
		logger.String("method", method),
		logger.String("endpoint", target),
		logger.Error(err))

	raw, err = r.do(ctx, primary, method, params)
	if err != nil {
		return nil, &RPCError{Method: method, Endpoint: primary, Err: err}
	}
	return raw, nil
}

func (r *Router) do(ctx context.Context, address, method string, params []any) (json.RawMessage, error) {
	cctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return r.transport.Do(cctx, address, method, params)
}

// Status returns a read-only view of the swarm for the status API.
func (r *Router) Status() []models.EndpointStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.EndpointStatus, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, models.EndpointStatus{
			ID:          ep.ID,
			Address:     ep.Address,
			Role:        ep.Role,
			Connections: ep.Connections,
			ChainHeight: ep.ChainHeight,
			BacklogSize: ep.BacklogSize,
			LatencyMs:   float64(ep.Latency) / float64(time.Millisecond),
			Stale:       ep.Stale,
			Best:        ep == r.best,
			LastProbe:   ep.LastProbeTime,
		})
	}
	return out
}
