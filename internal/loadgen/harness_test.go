package loadgen_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obulab/obu-bench/internal/client"
	"github.com/obulab/obu-bench/internal/loadgen"
)

// stubAdapter answers every fetch after a fixed delay, succeeding or
// failing on demand.
type stubAdapter struct {
	label string
	delay time.Duration
	fail  bool
	calls atomic.Int64
}

func (a *stubAdapter) Protocol() string { return a.label }

func (a *stubAdapter) Fetch(ctx context.Context, vehicleName string) client.Outcome {
	a.calls.Add(1)
	start := time.Now()
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	out := client.Outcome{
		Protocol: a.label,
		Start:    start,
		Elapsed:  time.Since(start),
		Bytes:    64,
		OK:       !a.fail,
	}
	if a.fail {
		out.Class = client.ClassTransport
		out.Err = errors.New("stub failure")
	}
	return out
}

// memSink collects outcomes with a timestamp of when they arrived.
type memSink struct {
	mu       sync.Mutex
	outcomes []client.Outcome
	lastAt   time.Time
}

func (s *memSink) Record(out client.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, out)
	s.lastAt = time.Now()
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

func TestHarnessThroughputAgainstFastStub(t *testing.T) {
	adapter := &stubAdapter{label: "stub", delay: 5 * time.Millisecond}
	sink := &memSink{}

	think := 20 * time.Millisecond
	h := loadgen.New(loadgen.Config{
		SpawnRate: 100, // ramp fast enough to not dominate the interval
		ThinkMin:  think,
		ThinkMax:  think,
		Vehicle:   "roadrunner",
	}, sink)

	const userCount = 10
	interval := 500 * time.Millisecond
	users := make([]loadgen.VirtualUser, userCount)
	for i := range users {
		users[i] = loadgen.VirtualUser{Adapter: adapter}
	}

	ctx, cancel := context.WithTimeout(context.Background(), interval)
	defer cancel()
	require.NoError(t, h.Run(ctx, users))

	// Each user completes roughly interval/(delay+think) iterations.
	got := sink.count()
	expected := userCount * int(interval/(think+5*time.Millisecond))
	assert.Greater(t, got, expected/3, "throughput collapsed: %d outcomes", got)
	assert.Less(t, got, expected*3, "throughput impossible: %d outcomes", got)
}

func TestHarnessRecordsFailuresWithoutAborting(t *testing.T) {
	adapter := &stubAdapter{label: "stub", fail: true}
	sink := &memSink{}

	h := loadgen.New(loadgen.Config{
		SpawnRate: 100,
		ThinkMin:  5 * time.Millisecond,
		ThinkMax:  10 * time.Millisecond,
		Vehicle:   "roadrunner",
	}, sink)

	users := []loadgen.VirtualUser{{Adapter: adapter}, {Adapter: adapter}}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, h.Run(ctx, users))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.outcomes)
	for _, out := range sink.outcomes {
		assert.False(t, out.OK)
		assert.Equal(t, client.ClassTransport, out.Class)
	}
}

func TestHarnessStopsWithinOneThinkTime(t *testing.T) {
	adapter := &stubAdapter{label: "stub", delay: time.Millisecond}
	sink := &memSink{}

	think := 30 * time.Millisecond
	h := loadgen.New(loadgen.Config{
		SpawnRate: 1000,
		ThinkMin:  think,
		ThinkMax:  think,
		Vehicle:   "roadrunner",
	}, sink)

	users := make([]loadgen.VirtualUser, 5)
	for i := range users {
		users[i] = loadgen.VirtualUser{Adapter: adapter}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, users) }()

	time.Sleep(100 * time.Millisecond)
	cancelled := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(think + 200*time.Millisecond):
		t.Fatal("workers did not stop within one think-time of cancellation")
	}

	// Nothing is recorded after Run returns.
	settled := sink.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, sink.count())

	sink.mu.Lock()
	last := sink.lastAt
	sink.mu.Unlock()
	if !last.IsZero() {
		assert.Less(t, last.Sub(cancelled), think+200*time.Millisecond)
	}
}

func TestHarnessRequiresUsers(t *testing.T) {
	t.Parallel()
	h := loadgen.New(loadgen.Config{}, &memSink{})
	assert.Error(t, h.Run(context.Background(), nil))
}
