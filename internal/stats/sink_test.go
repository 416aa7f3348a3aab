package stats_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obulab/obu-bench/internal/client"
	"github.com/obulab/obu-bench/internal/stats"
)

func outcome(label string, elapsed time.Duration, ok bool, class client.Class) client.Outcome {
	out := client.Outcome{
		Protocol: label,
		Start:    time.Now(),
		Elapsed:  elapsed,
		Bytes:    100,
		OK:       ok,
		Class:    class,
	}
	if !ok {
		out.Err = errors.New("synthetic")
	}
	return out
}

func TestSinkCountsAndBytes(t *testing.T) {
	t.Parallel()
	s := stats.New()
	for i := 0; i < 10; i++ {
		s.Record(outcome("rest", 5*time.Millisecond, true, client.ClassNone))
	}
	s.Record(outcome("rest", 5*time.Millisecond, false, client.ClassTimeout))

	snap, ok := s.Snapshot("rest")
	require.True(t, ok)
	assert.Equal(t, int64(11), snap.Count)
	assert.Equal(t, int64(10), snap.Successes)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, snap.Count, snap.Successes+snap.Failures)
	assert.Equal(t, int64(1100), snap.Bytes)
	assert.InDelta(t, 1.0/11.0, snap.ErrorRate(), 1e-9)
}

func TestSinkErrorBreakdown(t *testing.T) {
	t.Parallel()
	s := stats.New()
	for i := 0; i < 7; i++ {
		s.Record(outcome("coap", time.Millisecond, false, client.ClassTimeout))
	}
	for i := 0; i < 3; i++ {
		s.Record(outcome("coap", time.Millisecond, false, client.ClassDecode))
	}

	snap, ok := s.Snapshot("coap")
	require.True(t, ok)
	assert.Equal(t, int64(10), snap.Count)
	assert.Zero(t, snap.Successes)
	assert.Equal(t, int64(7), snap.Errors[client.ClassTimeout])
	assert.Equal(t, int64(3), snap.Errors[client.ClassDecode])

	var breakdownTotal int64
	for _, n := range snap.Errors {
		breakdownTotal += n
	}
	assert.Equal(t, snap.Failures, breakdownTotal)
}

func TestSinkPercentiles(t *testing.T) {
	t.Parallel()
	s := stats.New()
	// 1..100ms uniformly.
	for i := 1; i <= 100; i++ {
		s.Record(outcome("jsonrpc", time.Duration(i)*time.Millisecond, true, client.ClassNone))
	}

	snap, ok := s.Snapshot("jsonrpc")
	require.True(t, ok)
	assert.InDelta(t, 50, float64(snap.P50)/float64(time.Millisecond), 2)
	assert.InDelta(t, 90, float64(snap.P90)/float64(time.Millisecond), 2)
	assert.InDelta(t, 95, float64(snap.P95)/float64(time.Millisecond), 2)
	assert.InDelta(t, 99, float64(snap.P99)/float64(time.Millisecond), 2)
	assert.LessOrEqual(t, snap.P50, snap.P90)
	assert.LessOrEqual(t, snap.P90, snap.P95)
	assert.LessOrEqual(t, snap.P95, snap.P99)
}

func TestSinkReservoirBounds(t *testing.T) {
	t.Parallel()
	s := stats.NewWithReservoir(100)
	for i := 0; i < 10000; i++ {
		s.Record(outcome("rest", 5*time.Millisecond, true, client.ClassNone))
	}
	snap, ok := s.Snapshot("rest")
	require.True(t, ok)
	assert.Equal(t, int64(10000), snap.Count, "count keeps running even when samples are dropped")
	assert.InDelta(t, 5, float64(snap.P99)/float64(time.Millisecond), 1)
}

func TestSinkUnknownLabel(t *testing.T) {
	t.Parallel()
	s := stats.New()
	_, ok := s.Snapshot("nope")
	assert.False(t, ok)
	assert.Empty(t, s.Labels())
}

func TestSinkConcurrentRecordAndSnapshot(t *testing.T) {
	t.Parallel()
	s := stats.New()
	labels := []string{"jsonrpc", "coap", "rest"}

	var wg sync.WaitGroup
	for _, label := range labels {
		label := label
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					s.Record(outcome(label, time.Millisecond, i%10 != 0, client.ClassTransport))
				}
			}()
		}
	}
	// Snapshots race with the recorders; every view must be
	// internally consistent.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			for _, snap := range s.SnapshotAll() {
				var errTotal int64
				for _, n := range snap.Errors {
					errTotal += n
				}
				if snap.Successes+errTotal != snap.Count {
					t.Errorf("torn snapshot for %s: %d + %d != %d",
						snap.Protocol, snap.Successes, errTotal, snap.Count)
					return
				}
			}
		}
	}()
	wg.Wait()

	snaps := s.SnapshotAll()
	require.Len(t, snaps, 3)
	for _, snap := range snaps {
		assert.Equal(t, int64(2000), snap.Count)
	}
}
