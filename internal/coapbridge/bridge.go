// Package coapbridge owns the process-wide CoAP client sessions. The
// load harness runs many preemptive workers, but each CoAP target gets
// exactly one long-lived UDP session owned by one background
// goroutine; workers hand their requests across a channel and block on
// a per-request completion channel. The session handle itself is never
// exposed to callers.
package coapbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/udp"
	udpclient "github.com/plgd-dev/go-coap/v3/udp/client"

	"github.com/obulab/obu-bench/internal/monitoring"
)

// ErrStartup is wrapped by every failure to bring the background
// session up within the grace period. Fatal to the adapter that asked
// for the bridge, never to the harness.
var ErrStartup = errors.New("coap bridge startup failed")

// codeFETCH is the RFC 8132 FETCH request code (0.05), which go-coap
// does not name.
const codeFETCH = codes.Code(5)

// DefaultStartupGrace bounds how long Acquire waits for the background
// session to come up.
const DefaultStartupGrace = 10 * time.Second

type job struct {
	ctx     context.Context
	path    string
	payload []byte
	done    chan result // buffered(1): the result is delivered exactly once
}

type result struct {
	body []byte
	err  error
}

// Bridge is the per-target singleton. Zero teardown by design: the
// session lives until process exit.
type Bridge struct {
	addr     string
	jobs     chan job
	started  chan struct{}
	startErr error
	conn     *udpclient.Conn
}

var (
	mu      sync.Mutex
	bridges = map[string]*Bridge{}
)

// Acquire returns the bridge for addr, creating it on first use. The
// first caller triggers the dial; concurrent first callers share one
// bridge and one dial attempt. If the session is not up within grace,
// Acquire fails with ErrStartup.
func Acquire(addr string, grace time.Duration) (*Bridge, error) {
	if grace <= 0 {
		grace = DefaultStartupGrace
	}
	mu.Lock()
	b, ok := bridges[addr]
	if !ok {
		b = &Bridge{
			addr:    addr,
			jobs:    make(chan job),
			started: make(chan struct{}),
		}
		bridges[addr] = b
		go b.run()
	}
	mu.Unlock()

	select {
	case <-b.started:
		if b.startErr != nil {
			return nil, b.startErr
		}
		return b, nil
	case <-time.After(grace):
		return nil, fmt.Errorf("%w: no session to %s after %s", ErrStartup, addr, grace)
	}
}

func (b *Bridge) run() {
	conn, err := udp.Dial(b.addr)
	if err != nil {
		b.startErr = fmt.Errorf("%w: dial %s: %v", ErrStartup, b.addr, err)
		close(b.started)
		return
	}
	b.conn = conn
	close(b.started)
	monitoring.Logf("coap bridge up for %s", b.addr)

	// Single-consumer dispatch loop. Requests may overlap on the
	// shared session, mirroring coroutine concurrency on one
	// transport context, but only this loop ever hands jobs to it.
	for j := range b.jobs {
		j := j
		go func() {
			body, err := b.fetch(j.ctx, j.path, j.payload)
			j.done <- result{body: body, err: err}
		}()
	}
}

// Fetch submits one FETCH request and blocks the calling worker until
// its result arrives or ctx expires. Results for abandoned requests
// land in the buffered done channel and are dropped with the job.
func (b *Bridge) Fetch(ctx context.Context, path string, payload []byte) ([]byte, error) {
	j := job{ctx: ctx, path: path, payload: payload, done: make(chan result, 1)}
	select {
	case b.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-j.done:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bridge) fetch(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req := b.conn.AcquireMessage(ctx)
	defer b.conn.ReleaseMessage(req)

	token, err := message.GetToken()
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	req.SetCode(codeFETCH)
	req.SetToken(token)
	if err := req.SetPath(path); err != nil {
		return nil, fmt.Errorf("path %q: %w", path, err)
	}
	req.SetContentFormat(message.TextPlain)
	req.SetBody(bytes.NewReader(payload))

	resp, err := b.conn.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := resp.ReadBody()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.Code() != codes.Content {
		return body, &ResponseCodeError{Code: resp.Code()}
	}
	return body, nil
}

// ResponseCodeError reports a non-2.05 CoAP response.
type ResponseCodeError struct {
	Code codes.Code
}

func (e *ResponseCodeError) Error() string {
	return fmt.Sprintf("unexpected coap response code %v", e.Code)
}
