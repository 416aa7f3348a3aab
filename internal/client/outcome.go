// Package client holds the protocol adapters driven by the load
// harness. Every adapter answers the same question over a different
// transport: what is the current light status of a named vehicle?
package client

import (
	"context"
	"time"
)

// Class buckets a request failure for the aggregate error breakdown.
type Class string

const (
	ClassNone          Class = ""
	ClassTimeout       Class = "timeout"
	ClassTransport     Class = "transport"
	ClassProtocol      Class = "protocol"
	ClassDecode        Class = "decode"
	ClassUnknownStatus Class = "unknown-status"
	ClassBridgeStartup Class = "bridge-startup"
)

// Outcome is the immutable record of one completed or failed fetch
// attempt. Adapters create it, the metrics sink consumes it exactly
// once; nothing mutates it in between.
type Outcome struct {
	Protocol string
	Start    time.Time
	Elapsed  time.Duration
	Bytes    int
	OK       bool
	Class    Class
	Err      error
}

// Adapter is one protocol variant of the light-status fetch. Fetch
// never lets a failure escape as an error or panic; timeouts,
// connection failures, and malformed responses are all folded into the
// returned Outcome.
type Adapter interface {
	Protocol() string
	Fetch(ctx context.Context, vehicleName string) Outcome
}

// DefaultTimeout bounds a single request on every transport.
const DefaultTimeout = 10 * time.Second

func success(protocol string, start time.Time, bytes int) Outcome {
	return Outcome{
		Protocol: protocol,
		Start:    start,
		Elapsed:  time.Since(start),
		Bytes:    bytes,
		OK:       true,
	}
}

func failure(protocol string, start time.Time, bytes int, err error) Outcome {
	return Outcome{
		Protocol: protocol,
		Start:    start,
		Elapsed:  time.Since(start),
		Bytes:    bytes,
		Class:    Classify(err),
		Err:      err,
	}
}
