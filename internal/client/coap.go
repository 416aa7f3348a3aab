package client

import (
	"context"
	"strings"
	"time"

	"github.com/obulab/obu-bench/internal/coapbridge"
	"github.com/obulab/obu-bench/internal/codec"
)

// CoAP fetches the light status with a FETCH request over the shared
// bridge session and decodes the CBOR CompactRecord response. A decode
// failure is a partial failure: latency and byte length still count,
// only the error class is set.
type CoAP struct {
	bridge  *coapbridge.Bridge
	path    string
	tmpl    *codec.Template
	timeout time.Duration
}

// NewCoAP acquires the bridge for addr. A bridge startup failure
// escalates here, to the caller wiring the adapter, and disables only
// this protocol.
func NewCoAP(addr, path string, tmpl *codec.Template, timeout time.Duration) (*CoAP, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	b, err := coapbridge.Acquire(addr, coapbridge.DefaultStartupGrace)
	if err != nil {
		return nil, err
	}
	path = "/" + strings.TrimPrefix(path, "/")
	return &CoAP{bridge: b, path: path, tmpl: tmpl, timeout: timeout}, nil
}

func (c *CoAP) Protocol() string { return "coap" }

func (c *CoAP) Fetch(ctx context.Context, vehicleName string) Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.bridge.Fetch(ctx, c.path, []byte(vehicleName))
	if err != nil {
		return failure(c.Protocol(), start, len(body), err)
	}
	if _, err := c.tmpl.Decode(body); err != nil {
		return failure(c.Protocol(), start, len(body), err)
	}
	return success(c.Protocol(), start, len(body))
}
