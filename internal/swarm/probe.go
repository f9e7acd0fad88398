package swarm

import (
	"context"
	"encoding/json"
	"fmt"

	"ChainWatch/internal/domain/models"
)

// Transport issues one RPC against a specific endpoint address. The swarm
// owns target selection; the transport only moves bytes.
type Transport interface {
	Do(ctx context.Context, address, method string, params []any) (json.RawMessage, error)
}

// Prober queries one endpoint for liveness and load. Pure query, fixed
// timeout, no retries; retry policy belongs to the router.
type Prober interface {
	Probe(ctx context.Context, ep *models.Endpoint) (models.Sample, error)
}

type chainInfo struct {
	Connections int   `json:"connections"`
	Blocks      int64 `json:"blocks"`
}

type backlogInfo struct {
	Size int `json:"size"`
}

// RPCProber probes endpoints over the shared transport with two cheap
// info calls: node state and backlog state.
type RPCProber struct {
	transport Transport
}

// NewRPCProber creates a prober over the given transport.
func NewRPCProber(t Transport) *RPCProber {
	return &RPCProber{transport: t}
}

// Probe fetches the endpoint's current sample. The caller measures latency
// as the wall-clock round trip of this call.
func (p *RPCProber) Probe(ctx context.Context, ep *models.Endpoint) (models.Sample, error) {
	raw, err := p.transport.Do(ctx, ep.Address, "getblockchaininfo", nil)
	if err != nil {
		return models.Sample{}, &ProbeError{EndpointID: ep.ID, Err: err}
	}
	var info chainInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return models.Sample{}, &ProbeError{EndpointID: ep.ID, Err: fmt.Errorf("decode chain info: %w", err)}
	}

	raw, err = p.transport.Do(ctx, ep.Address, "getmempoolinfo", nil)
	if err != nil {
		return models.Sample{}, &ProbeError{EndpointID: ep.ID, Err: err}
	}
	var backlog backlogInfo
	if err := json.Unmarshal(raw, &backlog); err != nil {
		return models.Sample{}, &ProbeError{EndpointID: ep.ID, Err: fmt.Errorf("decode mempool info: %w", err)}
	}

	return models.Sample{
		Connections: info.Connections,
		ChainHeight: info.Blocks,
		BacklogSize: backlog.Size,
	}, nil
}
