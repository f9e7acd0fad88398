package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
environment: test
swarm:
  endpoints:
    - http://127.0.0.1:8332
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Monitor.TickInterval != 50*time.Millisecond {
		t.Fatalf("expected tick 50ms, got %v", cfg.Monitor.TickInterval)
	}
	if cfg.Monitor.BatchSize != 500 {
		t.Fatalf("expected batch 500, got %d", cfg.Monitor.BatchSize)
	}
	if cfg.Pipeline.QueueCapacity != 1000 || cfg.Pipeline.Workers != 20 {
		t.Fatalf("pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Swarm.AdmissionLatencyBound != time.Second {
		t.Fatalf("expected 1s admission bound, got %v", cfg.Swarm.AdmissionLatencyBound)
	}
	if cfg.Swarm.ConnectionsWeight != 1.0 || cfg.Swarm.BacklogWeight != 0.1 {
		t.Fatalf("weight defaults: %+v", cfg.Swarm)
	}
}

func TestLoadRejectsMissingEndpoints(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\n"))
	if err == nil {
		t.Fatalf("expected validation error without endpoints")
	}
}

func TestLoadRejectsKafkaWithoutBrokers(t *testing.T) {
	body := minimalConfig + `
kafka:
  enabled: true
`
	_, err := Load(writeConfig(t, body))
	if err == nil {
		t.Fatalf("expected validation error for kafka without brokers")
	}
}

func TestFanoutConcurrencyDoublesOnDeepAnalysis(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.FanoutConcurrency(); got != 20 {
		t.Fatalf("expected fanout 20, got %d", got)
	}

	cfg.Monitor.DeepAnalysis = true
	if got := cfg.FanoutConcurrency(); got != 40 {
		t.Fatalf("expected deep fanout 40, got %d", got)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("RPC_URLS", "http://n1:8332,http://n2:8332")
	t.Setenv("RPC_USER", "watcher")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Swarm.Endpoints) != 2 || cfg.Swarm.Endpoints[0] != "http://n1:8332" {
		t.Fatalf("env endpoints not applied: %v", cfg.Swarm.Endpoints)
	}
	if cfg.Swarm.RPCUser != "watcher" {
		t.Fatalf("env rpc user not applied: %s", cfg.Swarm.RPCUser)
	}
}
