package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ChainWatch/internal/aggregator"
	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"
	"ChainWatch/internal/pipeline"
	"ChainWatch/internal/swarm"
	"ChainWatch/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// LoopState is the control loop lifecycle state.
type LoopState int32

const (
	StateStarting LoopState = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// LoopConfig carries the control loop's tunables.
type LoopConfig struct {
	TickInterval   time.Duration
	BatchSize      int
	Fanout         int
	FlushInterval  time.Duration
	ReportInterval time.Duration
	ErrorBackoff   time.Duration
	AlertThreshold decimal.Decimal
}

// ControlLoop ties periodic health refresh, classification fan-out, metrics
// flush and reporting together. It is designed to run indefinitely: any
// tick error is trapped, logged and followed by a short backoff.
type ControlLoop struct {
	cfg        LoopConfig
	router     *swarm.Router
	source     drepo.ChainSource
	stream     drepo.ChainStream // optional
	classifier drepo.Classifier
	queue      *pipeline.OpportunityQueue
	pool       *pipeline.WorkerPool
	agg        *aggregator.Aggregator
	sink       drepo.Sink
	metrics    drepo.Metrics
	log        *logger.Logger

	state      atomic.Int32
	lastFlush  time.Time
	lastReport time.Time

	// ids forwarded from the stream; owned by the forwarding goroutine,
	// read only by collect
	streamIDs chan string
}

// NewControlLoop builds the loop. stream may be nil when only polling is
// configured.
func NewControlLoop(
	cfg LoopConfig,
	router *swarm.Router,
	source drepo.ChainSource,
	stream drepo.ChainStream,
	classifier drepo.Classifier,
	queue *pipeline.OpportunityQueue,
	pool *pipeline.WorkerPool,
	agg *aggregator.Aggregator,
	sink drepo.Sink,
	metrics drepo.Metrics,
	log *logger.Logger,
) *ControlLoop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = 20
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 100 * time.Millisecond
	}
	return &ControlLoop{
		cfg:        cfg,
		router:     router,
		source:     source,
		stream:     stream,
		classifier: classifier,
		queue:      queue,
		pool:       pool,
		agg:        agg,
		sink:       sink,
		metrics:    metrics,
		log:        log,
	}
}

// State returns the current lifecycle state.
func (l *ControlLoop) State() LoopState {
	return LoopState(l.state.Load())
}

// Run drives the loop until ctx is cancelled, then drains the pool and
// flushes final metrics. It always returns nil after a clean stop.
func (l *ControlLoop) Run(ctx context.Context) error {
	l.state.Store(int32(StateStarting))

	l.pool.Start(ctx)
	l.startStream(ctx)

	now := time.Now()
	l.lastFlush = now
	l.lastReport = now

	l.state.Store(int32(StateRunning))
	l.log.Info("control loop running",
		logger.Duration("tick", l.cfg.TickInterval),
		logger.Int("batch_size", l.cfg.BatchSize),
		logger.Int("fanout", l.cfg.Fanout))

	for {
		select {
		case <-ctx.Done():
			l.stop(ctx)
			return nil
		default:
		}

		if err := l.safeTick(ctx); err != nil {
			l.metrics.RecordError("tick")
			l.log.Error("tick failed", logger.Error(err))
			l.sleep(ctx, l.cfg.ErrorBackoff)
			continue
		}

		l.sleep(ctx, l.cfg.TickInterval)
	}
}

// stop transitions Stopping -> Stopped: close the queue, wait for workers
// to drain in-flight items, flush and publish the final snapshot.
func (l *ControlLoop) stop(ctx context.Context) {
	l.state.Store(int32(StateStopping))
	l.log.Info("control loop stopping")

	if l.stream != nil {
		_ = l.stream.Close()
	}
	l.pool.Stop()

	snap := l.agg.Flush()
	// detached context: the run context is already cancelled
	pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.sink.Publish(pctx, snap); err != nil {
		l.log.Warn("final snapshot publish failed", logger.Error(err))
	}

	l.state.Store(int32(StateStopped))
	l.log.Info("control loop stopped")
}

// safeTick runs one tick, converting panics into errors so nothing can
// terminate the loop.
func (l *ControlLoop) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return l.tick(ctx)
}

func (l *ControlLoop) tick(ctx context.Context) error {
	l.router.RefreshHealth(ctx, false)

	records, err := l.collect(ctx)
	if err != nil {
		return err
	}
	l.agg.RecordScan(len(records), 0)

	if len(records) > 0 {
		l.fanout(ctx, records)
	}

	if l.cfg.FlushInterval > 0 && time.Since(l.lastFlush) >= l.cfg.FlushInterval {
		l.flush(ctx)
		l.lastFlush = time.Now()
	}

	if l.cfg.ReportInterval > 0 && time.Since(l.lastReport) >= l.cfg.ReportInterval {
		l.report()
		l.lastReport = time.Now()
	}

	return nil
}

// collect merges the polled pending batch with any ids pushed by the
// stream since the last tick.
func (l *ControlLoop) collect(ctx context.Context) ([]*models.TxRecord, error) {
	records, err := l.source.PendingBatch(ctx, l.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("pending batch: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.ID] = struct{}{}
	}

drain:
	for l.streamIDs != nil && len(records) < l.cfg.BatchSize*2 {
		select {
		case id := <-l.streamIDs:
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			records = append(records, &models.TxRecord{ID: id})
		default:
			break drain
		}
	}

	return records, nil
}

// fanout classifies the batch across a bounded concurrent task set and
// joins before returning. Matched candidates are enqueued; a full queue is
// an explicit shed signal, never a silent drop.
func (l *ControlLoop) fanout(ctx context.Context, records []*models.TxRecord) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Fanout)

	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			l.classifyOne(gctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *ControlLoop) classifyOne(ctx context.Context, rec *models.TxRecord) {
	start := time.Now()

	// thin records from the mempool listing need their detail fetched
	// here, inside the bounded fan-out
	if rec.Markers == nil && len(rec.Venues) == 0 {
		detail, err := l.source.RecordDetail(ctx, rec.ID)
		if err != nil {
			l.metrics.RecordError("record_detail")
			return
		}
		rec = detail
	}

	cand, err := l.classifier.Classify(ctx, rec)
	l.metrics.RecordLatency("classify", time.Since(start).Seconds())
	if err != nil {
		// classifier errors mean "no opportunity found"
		l.metrics.RecordError("classify")
		return
	}
	if cand == nil {
		return
	}

	opp := &models.Opportunity{
		ID:             fmt.Sprintf("%s-%s-%d", cand.Category, rec.ID, time.Now().UnixNano()),
		Category:       cand.Category,
		SourceRecordID: rec.ID,
		EstimatedValue: cand.EstimatedValue,
		Cost:           cand.Cost,
		DetectedAt:     time.Now(),
		Details:        cand.Details,
	}

	l.agg.RecordFound(opp.Category)
	l.metrics.RecordOpportunity(string(opp.Category))

	if l.cfg.AlertThreshold.IsPositive() && opp.NetValue().GreaterThan(l.cfg.AlertThreshold) {
		l.alert(ctx, opp)
	}

	if err := l.queue.Enqueue(opp); err != nil {
		l.metrics.RecordError("queue_full")
		l.log.Warn("opportunity shed, queue saturated",
			logger.String("category", string(opp.Category)),
			logger.String("record", rec.ID))
	}
	l.metrics.SetQueueDepth(l.queue.Len())
}

func (l *ControlLoop) alert(ctx context.Context, opp *models.Opportunity) {
	a := &models.Alert{
		Kind:     "significant_opportunity",
		Category: opp.Category,
		RecordID: opp.SourceRecordID,
		Value:    opp.NetValue(),
		At:       time.Now(),
	}
	if err := l.sink.PublishAlert(ctx, a); err != nil {
		l.metrics.RecordError("alert")
		l.log.Warn("alert publish failed", logger.Error(err))
	}
}

// flush captures a snapshot, annotates it with the current best height and
// hands it to the sink.
func (l *ControlLoop) flush(ctx context.Context) {
	if height, err := l.source.BestHeight(ctx); err == nil {
		l.agg.RecordScan(0, height)
	}

	snap := l.agg.Flush()
	if err := l.sink.Publish(ctx, snap); err != nil {
		l.metrics.RecordError("snapshot_publish")
		l.log.Warn("snapshot publish failed", logger.Error(err))
	}
}

// report emits the human-readable progress summary.
func (l *ControlLoop) report() {
	snap := l.agg.Snapshot()

	l.log.Info("progress report",
		logger.Int64("opportunities_found", snap.OpportunitiesFound),
		logger.String("total_profit", snap.TotalProfit.String()),
		logger.String("success_rate", fmt.Sprintf("%.2f%%", snap.SuccessRate()*100)),
		logger.Duration("avg_latency", snap.AvgLatency()),
		logger.Int64("records_scanned", snap.RecordsScanned),
		logger.Int64("best_height", snap.BestHeight),
		logger.Int("queue_depth", l.queue.Len()))

	for _, st := range l.router.Status() {
		l.log.Info("swarm endpoint",
			logger.String("endpoint", st.ID),
			logger.Int("connections", st.Connections),
			logger.Int("backlog", st.BacklogSize),
			logger.String("latency_ms", fmt.Sprintf("%.0f", st.LatencyMs)),
			logger.Bool("best", st.Best),
			logger.Bool("stale", st.Stale))
	}
}

func (l *ControlLoop) startStream(ctx context.Context) {
	if l.stream == nil {
		return
	}
	if err := l.stream.Connect(ctx); err != nil {
		l.log.Warn("stream connect failed, polling only", logger.Error(err))
		l.stream = nil
		return
	}
	if err := l.stream.Subscribe(ctx); err != nil {
		l.log.Warn("stream subscribe failed, polling only", logger.Error(err))
		_ = l.stream.Close()
		l.stream = nil
		return
	}
	l.streamIDs = make(chan string, 4096)
	ids, errs := l.stream.Read(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case id, ok := <-ids:
				if !ok {
					ids = nil
					continue
				}
				select {
				case l.streamIDs <- id:
				default:
					// polling will catch up
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					if ids == nil {
						return
					}
					continue
				}
				if err != nil {
					l.metrics.RecordError("stream")
					if rerr := l.stream.Reconnect(ctx); rerr == nil {
						ids, errs = l.stream.Read(ctx)
					} else {
						return
					}
				}
			}
		}
	}()
}

func (l *ControlLoop) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
