package swarm

import "fmt"

// ProbeError marks a failed health probe. Non-fatal: it degrades the
// endpoint's score but never halts the loop.
type ProbeError struct {
	EndpointID string
	Err        error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.EndpointID, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// RPCError is a call failure surfaced after the single primary fallback.
// The caller decides whether to retry or skip.
type RPCError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s via %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }
