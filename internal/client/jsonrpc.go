package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// JSONRPC fetches the light status through a JSON-RPC 2.0 endpoint:
// POST {"jsonrpc":"2.0","method":"fetch","params":[name],"id":n}.
type JSONRPC struct {
	url    string
	hc     *http.Client
	nextID atomic.Int64
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

func NewJSONRPC(url string, timeout time.Duration) *JSONRPC {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &JSONRPC{
		url: url,
		// One shared client so keep-alive connections are reused
		// across requests, matching a persistent session.
		hc: &http.Client{Timeout: timeout},
	}
}

func (c *JSONRPC) Protocol() string { return "jsonrpc" }

func (c *JSONRPC) Fetch(ctx context.Context, vehicleName string) Outcome {
	start := time.Now()
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "fetch",
		Params:  []any{vehicleName},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return failure(c.Protocol(), start, 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return failure(c.Protocol(), start, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return failure(c.Protocol(), start, 0, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(c.Protocol(), start, 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		return failure(c.Protocol(), start, len(data),
			protocolErrorf("unexpected status %d", resp.StatusCode))
	}
	// Minimal validation only: the benchmark cares that the body is
	// well-formed JSON, not what the result field holds.
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		return failure(c.Protocol(), start, len(data),
			decodeErrorf("response is not a JSON object: %v", err))
	}
	return success(c.Protocol(), start, len(data))
}
