// Package resultsdb persists per-request outcomes and the final
// aggregates of a benchmark run into sqlite for offline analysis.
package resultsdb

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/obulab/obu-bench/internal/client"
	"github.com/obulab/obu-bench/internal/stats"
)

// DB wraps the run store. Record buffers outcomes in memory so the hot
// path never blocks on disk; Flush writes everything in one
// transaction at the end of the run.
type DB struct {
	db    *sql.DB
	runID string

	mu      sync.Mutex
	pending []client.Outcome
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT,
			protocol TEXT,
			started_at_unix_ns BIGINT,
			elapsed_ns BIGINT,
			bytes INT,
			ok BOOLEAN,
			error_class TEXT,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS aggregates (
			run_id TEXT,
			protocol TEXT,
			count BIGINT,
			p50_ms DOUBLE,
			p90_ms DOUBLE,
			p95_ms DOUBLE,
			p99_ms DOUBLE,
			error_rate DOUBLE,
			bytes BIGINT,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	runID := uuid.NewString()
	if _, err := db.Exec("INSERT INTO runs (run_id) VALUES (?)", runID); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register run: %w", err)
	}
	return &DB{db: db, runID: runID}, nil
}

// RunID identifies this run in all three tables.
func (d *DB) RunID() string { return d.runID }

// Record buffers one outcome for the next Flush. Safe for concurrent
// use from the harness workers.
func (d *DB) Record(out client.Outcome) {
	d.mu.Lock()
	d.pending = append(d.pending, out)
	d.mu.Unlock()
}

// Flush writes all buffered outcomes and the given aggregates.
func (d *DB) Flush(snaps []stats.Snapshot) error {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO outcomes
		(run_id, protocol, started_at_unix_ns, elapsed_ns, bytes, ok, error_class)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, out := range pending {
		_, err := stmt.Exec(d.runID, out.Protocol, out.Start.UnixNano(),
			int64(out.Elapsed), out.Bytes, out.OK, string(out.Class))
		if err != nil {
			return fmt.Errorf("failed to record outcome: %w", err)
		}
	}

	for _, s := range snaps {
		_, err := tx.Exec(`INSERT INTO aggregates
			(run_id, protocol, count, p50_ms, p90_ms, p95_ms, p99_ms, error_rate, bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.runID, s.Protocol, s.Count,
			durMs(s.P50), durMs(s.P90), durMs(s.P95), durMs(s.P99),
			s.ErrorRate(), s.Bytes)
		if err != nil {
			return fmt.Errorf("failed to record aggregate: %w", err)
		}
	}
	return tx.Commit()
}

func (d *DB) Close() error { return d.db.Close() }

func durMs(dur time.Duration) float64 {
	return float64(dur) / float64(time.Millisecond)
}
