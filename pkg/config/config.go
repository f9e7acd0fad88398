package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Swarm struct {
		Endpoints             []string      `yaml:"endpoints" validate:"min=1"`
		RPCUser               string        `yaml:"rpc_user"`
		RPCPass               string        `yaml:"rpc_pass"`
		ProbeTimeout          time.Duration `yaml:"probe_timeout" default:"5s"`
		HealthRefreshInterval time.Duration `yaml:"health_refresh_interval" default:"15s"`
		AdmissionLatencyBound time.Duration `yaml:"admission_latency_bound" default:"1s"`
		CallTimeout           time.Duration `yaml:"call_timeout" default:"5s"`
		ConnectionsWeight     float64       `yaml:"connections_weight" default:"1.0"`
		BacklogWeight         float64       `yaml:"backlog_weight" default:"0.1"`
		LatencyWeight         float64       `yaml:"latency_weight" default:"0.2"`
		SecondaryRPS          float64       `yaml:"secondary_rps" default:"50"`
	} `yaml:"swarm"`
	Monitor struct {
		TickInterval    time.Duration `yaml:"tick_interval" default:"50ms"`
		BatchSize       int           `yaml:"batch_size" default:"500"`
		FanoutWidth     int           `yaml:"fanout_width" default:"20"`
		DeepAnalysis    bool          `yaml:"deep_analysis"`
		FlushInterval   time.Duration `yaml:"flush_interval" default:"30s"`
		ReportInterval  time.Duration `yaml:"report_interval" default:"2m"`
		ErrorBackoff    time.Duration `yaml:"error_backoff" default:"100ms"`
		MaxCost         string        `yaml:"max_cost" default:"300"`
		MinProfit       string        `yaml:"min_profit" default:"0.001"`
		AlertThreshold  string        `yaml:"alert_threshold" default:"0.05"`
		RecordCacheTTL  time.Duration `yaml:"record_cache_ttl" default:"10s"`
		StreamEnabled   bool          `yaml:"stream_enabled"`
		StreamURL       string        `yaml:"stream_url"`
		ReconnectDelay  time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval    time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"monitor"`
	Pipeline struct {
		QueueCapacity  int           `yaml:"queue_capacity" default:"1000"`
		Workers        int           `yaml:"workers" default:"20"`
		EnqueueTimeout time.Duration `yaml:"enqueue_timeout" default:"2s"`
	} `yaml:"pipeline"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		AlertTopic    string   `yaml:"alert_topic" default:"chainwatch.alerts"`
		SnapshotTopic string   `yaml:"snapshot_topic" default:"chainwatch.snapshots"`
		RecordTopic   string   `yaml:"record_topic"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"gzip"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"chainwatch"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"chainwatch"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file, applying defaults first.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("RPC_URLS"); v != "" {
		c.Swarm.Endpoints = strings.Split(v, ",")
	}
	if v := os.Getenv("RPC_USER"); v != "" {
		c.Swarm.RPCUser = v
	}
	if v := os.Getenv("RPC_PASS"); v != "" {
		c.Swarm.RPCPass = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if len(c.Swarm.Endpoints) == 0 {
		return fmt.Errorf("swarm.endpoints cannot be empty")
	}
	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("pipeline.queue_capacity must be positive")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	if c.Monitor.FanoutWidth <= 0 {
		return fmt.Errorf("monitor.fanout_width must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required when clickhouse is enabled")
	}
	return nil
}

// FanoutConcurrency returns the classification fan-out width, doubled when
// deep analysis is configured.
func (c *Config) FanoutConcurrency() int {
	if c.Monitor.DeepAnalysis {
		return c.Monitor.FanoutWidth * 2
	}
	return c.Monitor.FanoutWidth
}
