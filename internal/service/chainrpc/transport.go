package chainrpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	xhttp "ChainWatch/pkg/http"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Transport issues JSON-RPC calls over HTTP with basic auth. It implements
// swarm.Transport; target selection stays with the router.
type Transport struct {
	client *xhttp.Client
	auth   string // precomputed basic auth header, empty when unauthenticated
}

// NewTransport creates a transport. user may be empty for open endpoints.
func NewTransport(user, pass string, timeout time.Duration) *Transport {
	var auth string
	if user != "" {
		auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
	}
	return &Transport{
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
		auth:   auth,
	}
}

// Do sends one JSON-RPC request to address and returns the raw result.
func (t *Transport) Do(ctx context.Context, address, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if t.auth != "" {
		headers["Authorization"] = t.auth
	}

	var resp rpcResponse
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     address,
		Headers: headers,
		Body: rpcRequest{
			JSONRPC: "1.0",
			ID:      "chainwatch",
			Method:  method,
			Params:  params,
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
