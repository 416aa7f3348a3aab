// Package loadgen spawns the simulated users that drive a protocol
// adapter in a fetch / record / think loop.
package loadgen

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obulab/obu-bench/internal/client"
	"github.com/obulab/obu-bench/internal/monitoring"
)

// Sink receives every completed outcome. Implemented by stats.Sink.
type Sink interface {
	Record(client.Outcome)
}

// VirtualUser is one simulated user bound to a single adapter for the
// whole run.
type VirtualUser struct {
	Adapter client.Adapter
}

// Config holds the harness knobs. Think-time defaults follow the
// original workload profile: a uniform 10-50ms pause between requests.
type Config struct {
	SpawnRate float64 // users started per second while ramping
	ThinkMin  time.Duration
	ThinkMax  time.Duration
	Vehicle   string
}

const (
	DefaultThinkMin = 10 * time.Millisecond
	DefaultThinkMax = 50 * time.Millisecond
)

type Harness struct {
	cfg  Config
	sink Sink
}

func New(cfg Config, sink Sink) *Harness {
	if cfg.ThinkMin <= 0 {
		cfg.ThinkMin = DefaultThinkMin
	}
	if cfg.ThinkMax < cfg.ThinkMin {
		cfg.ThinkMax = cfg.ThinkMin
	}
	if cfg.SpawnRate <= 0 {
		cfg.SpawnRate = 1
	}
	return &Harness{cfg: cfg, sink: sink}
}

// Run ramps up the users at SpawnRate per second and blocks until ctx
// is done and every user has stopped. Users observe cancellation at
// their next loop boundary; a request already in flight completes or
// times out naturally rather than being torn down.
func (h *Harness) Run(ctx context.Context, users []VirtualUser) error {
	if len(users) == 0 {
		return errors.New("loadgen: no users to run")
	}
	spawnEvery := time.Duration(float64(time.Second) / h.cfg.SpawnRate)

	var g errgroup.Group
	started := 0
	for i, u := range users {
		if i > 0 {
			select {
			case <-time.After(spawnEvery):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			break
		}
		u := u
		seed := time.Now().UnixNano() + int64(i)
		g.Go(func() error {
			h.runUser(ctx, u, rand.New(rand.NewSource(seed)))
			return nil
		})
		started++
	}
	monitoring.Debugf("loadgen: %d of %d users started", started, len(users))
	return g.Wait()
}

// runUser is the per-user state machine: Requesting -> Waiting ->
// Requesting until cancellation. Outcomes from one user are strictly
// time-ordered because the loop is sequential.
func (h *Harness) runUser(ctx context.Context, u VirtualUser, rng *rand.Rand) {
	for ctx.Err() == nil {
		// The request itself runs outside the run's cancellation
		// scope: stop means "no new requests", not "abort in
		// flight". The adapter's own timeout still bounds it.
		out := u.Adapter.Fetch(context.WithoutCancel(ctx), h.cfg.Vehicle)
		h.sink.Record(out)

		select {
		case <-time.After(h.thinkTime(rng)):
		case <-ctx.Done():
			return
		}
	}
}

func (h *Harness) thinkTime(rng *rand.Rand) time.Duration {
	span := h.cfg.ThinkMax - h.cfg.ThinkMin
	if span <= 0 {
		return h.cfg.ThinkMin
	}
	return h.cfg.ThinkMin + time.Duration(rng.Int63n(int64(span)))
}
