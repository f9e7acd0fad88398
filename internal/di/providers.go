package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"ChainWatch/internal/aggregator"
	"ChainWatch/internal/classify"
	"ChainWatch/internal/domain/models"
	"ChainWatch/internal/domain/repository"
	"ChainWatch/internal/handler/api"
	"ChainWatch/internal/pipeline"
	internalrepo "ChainWatch/internal/repository"
	"ChainWatch/internal/service/chainrpc"
	"ChainWatch/internal/swarm"
	"ChainWatch/internal/usecase"
	pkgcache "ChainWatch/pkg/cache"
	pkgch "ChainWatch/pkg/clickhouse"
	"ChainWatch/pkg/config"
	pkgkafka "ChainWatch/pkg/kafka"
	applogger "ChainWatch/pkg/logger"
	"ChainWatch/pkg/metrics"
	"ChainWatch/pkg/server"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ProvideLogger creates the application logger with an attached error
// collector so the status API can expose recent errors.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		RecentCapacity: 50,
	})
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTransport creates the JSON-RPC transport shared by probes and calls.
func ProvideTransport(cfg *config.Config) *chainrpc.Transport {
	return chainrpc.NewTransport(cfg.Swarm.RPCUser, cfg.Swarm.RPCPass, cfg.Swarm.CallTimeout)
}

// ProvideProber creates the health prober over the shared transport.
func ProvideProber(t *chainrpc.Transport) swarm.Prober {
	return swarm.NewRPCProber(t)
}

// ProvideRouter creates the swarm router over the configured endpoints.
func ProvideRouter(
	cfg *config.Config,
	prober swarm.Prober,
	transport *chainrpc.Transport,
	m repository.Metrics,
	l *applogger.Logger,
) (*swarm.Router, error) {
	return swarm.NewRouter(
		cfg.Swarm.Endpoints,
		prober,
		transport,
		m,
		l,
		swarm.WithRefreshInterval(cfg.Swarm.HealthRefreshInterval),
		swarm.WithProbeTimeout(cfg.Swarm.ProbeTimeout),
		swarm.WithCallTimeout(cfg.Swarm.CallTimeout),
		swarm.WithAdmissionBound(cfg.Swarm.AdmissionLatencyBound),
		swarm.WithWeights(swarm.Weights{
			Connections: cfg.Swarm.ConnectionsWeight,
			Backlog:     cfg.Swarm.BacklogWeight,
			Latency:     cfg.Swarm.LatencyWeight,
		}),
		swarm.WithSecondaryRPS(cfg.Swarm.SecondaryRPS),
	)
}

// ProvideRecordCache creates the record detail cache: layered over Redis
// when Redis is configured, in-memory otherwise.
func ProvideRecordCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}

	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}

	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideChainSource creates the polling source routed through the swarm.
func ProvideChainSource(router *swarm.Router, c pkgcache.Service, cfg *config.Config) repository.ChainSource {
	return chainrpc.NewSource(router, c, cfg.Monitor.RecordCacheTTL)
}

// ProvideChainStream creates the websocket stream, or nil when polling only.
func ProvideChainStream(cfg *config.Config) repository.ChainStream {
	if !cfg.Monitor.StreamEnabled || cfg.Monitor.StreamURL == "" {
		return nil
	}
	return chainrpc.NewStream(cfg.Monitor.StreamURL, cfg.Monitor.ReconnectDelay, cfg.Monitor.PingInterval)
}

// ProvideClassifier creates the default heuristic classifier.
func ProvideClassifier(cfg *config.Config) (repository.Classifier, error) {
	minProfit, err := decimal.NewFromString(cfg.Monitor.MinProfit)
	if err != nil {
		return nil, fmt.Errorf("monitor.min_profit: %w", err)
	}
	maxCost, err := decimal.NewFromString(cfg.Monitor.MaxCost)
	if err != nil {
		return nil, fmt.Errorf("monitor.max_cost: %w", err)
	}
	return classify.NewHeuristic(minProfit, maxCost), nil
}

// ProvideQueue creates the bounded opportunity queue.
func ProvideQueue(cfg *config.Config) *pipeline.OpportunityQueue {
	return pipeline.NewOpportunityQueue(cfg.Pipeline.QueueCapacity, cfg.Pipeline.EnqueueTimeout)
}

// ProvideAggregator creates the shared metrics aggregator.
func ProvideAggregator() *aggregator.Aggregator {
	return aggregator.New()
}

// ProvideHandlers returns the execution handler registry.
func ProvideHandlers() map[models.Category]repository.HandlerFunc {
	return usecase.DefaultHandlers()
}

// ProvideClickHouseClient creates a ClickHouse client with the archive
// schema initialized, or nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database, "opportunities")); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideArchive creates the opportunity archive, or nil without ClickHouse.
func ProvideArchive(chClient *pkgch.Client, cfg *config.Config) repository.Archive {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewOpportunityArchive(chClient.DB(), cfg.ClickHouse.Database+".opportunities")
}

// ProvideWorkerPool creates the execution worker pool.
func ProvideWorkerPool(
	cfg *config.Config,
	q *pipeline.OpportunityQueue,
	handlers map[models.Category]repository.HandlerFunc,
	agg *aggregator.Aggregator,
	archive repository.Archive,
	m repository.Metrics,
	l *applogger.Logger,
) *pipeline.WorkerPool {
	opts := []pipeline.PoolOption{}
	if archive != nil {
		opts = append(opts, pipeline.WithArchive(archive))
	}
	return pipeline.NewWorkerPool(cfg.Pipeline.Workers, q, handlers, agg, m, l, opts...)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSink combines every configured telemetry sink. An empty
// configuration yields a no-op multi sink.
func ProvideSink(cfg *config.Config, producer *pkgkafka.Producer) repository.Sink {
	var sinks []repository.Sink

	if cfg.Redis.Enabled {
		cli := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sinks = append(sinks, internalrepo.NewRedisSink(cli))
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaSink(producer, cfg.Kafka.SnapshotTopic, cfg.Kafka.AlertTopic))
	}

	return internalrepo.NewMultiSink(sinks...)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when no record
// topic is configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.RecordTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRecordsHandler registers the handler for the record topic.
func ProvideRecordsHandler(
	cfg *config.Config,
	classifier repository.Classifier,
	q *pipeline.OpportunityQueue,
	agg *aggregator.Aggregator,
	m repository.Metrics,
) *usecase.KafkaRecordsHandler {
	if cfg.Kafka.RecordTopic == "" {
		return nil
	}
	return usecase.NewKafkaRecordsHandler(cfg.Kafka.RecordTopic, classifier, q, agg, m)
}

// ProvideControlLoop creates the monitoring control loop.
func ProvideControlLoop(
	cfg *config.Config,
	router *swarm.Router,
	source repository.ChainSource,
	stream repository.ChainStream,
	classifier repository.Classifier,
	q *pipeline.OpportunityQueue,
	pool *pipeline.WorkerPool,
	agg *aggregator.Aggregator,
	sink repository.Sink,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.ControlLoop, error) {
	threshold, err := decimal.NewFromString(cfg.Monitor.AlertThreshold)
	if err != nil {
		return nil, fmt.Errorf("monitor.alert_threshold: %w", err)
	}
	return usecase.NewControlLoop(
		usecase.LoopConfig{
			TickInterval:   cfg.Monitor.TickInterval,
			BatchSize:      cfg.Monitor.BatchSize,
			Fanout:         cfg.FanoutConcurrency(),
			FlushInterval:  cfg.Monitor.FlushInterval,
			ReportInterval: cfg.Monitor.ReportInterval,
			ErrorBackoff:   cfg.Monitor.ErrorBackoff,
			AlertThreshold: threshold,
		},
		router, source, stream, classifier, q, pool, agg, sink, m, l,
	), nil
}

// ProvideStatusHandler creates the HTTP status handler.
func ProvideStatusHandler(
	l *applogger.Logger,
	loop *usecase.ControlLoop,
	router *swarm.Router,
	q *pipeline.OpportunityQueue,
	agg *aggregator.Aggregator,
	archive repository.Archive,
) *api.StatusEchoHandler {
	return api.NewStatusEchoHandler(l, loop, router, q, agg, archive)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	loop *usecase.ControlLoop,
	consumer *pkgkafka.Consumer,
	rh *usecase.KafkaRecordsHandler,
	sh *api.StatusEchoHandler,
	chClient *pkgch.Client,
	sink repository.Sink,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, loop, consumer, rh, sh, chClient, sink)
}
