package models

import "time"

// Role distinguishes the primary endpoint from the fast secondaries.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Sample is one health probe result for an endpoint.
type Sample struct {
	Connections int
	ChainHeight int64
	BacklogSize int
}

// Endpoint is one upstream data-source connection target plus its live
// health sample. Samples are written only by the router's refresh path;
// scoring reads them under the router's lock.
type Endpoint struct {
	ID      string
	Address string
	Role    Role

	Connections   int
	ChainHeight   int64
	BacklogSize   int
	Latency       time.Duration
	LastProbeTime time.Time
	Stale         bool // last probe failed; sample kept to avoid flapping
}

// EndpointStatus is the read-only view exposed on the status API.
type EndpointStatus struct {
	ID          string        `json:"id"`
	Address     string        `json:"address"`
	Role        Role          `json:"role"`
	Connections int           `json:"connections"`
	ChainHeight int64         `json:"chain_height"`
	BacklogSize int           `json:"backlog_size"`
	LatencyMs   float64       `json:"latency_ms"`
	Stale       bool          `json:"stale"`
	Best        bool          `json:"best"`
	LastProbe   time.Time     `json:"last_probe"`
	Age         time.Duration `json:"-"`
}
