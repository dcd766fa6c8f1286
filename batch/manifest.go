// Copyright (c) 2025 Neomantra Corp

// Package batch runs the streaming pipeline over many symbols in parallel,
// tracking progress in a resumable manifest (§4.5).
package batch

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// JobState mirrors hist/batch.go's JobState string-enum idiom (explicit
// String() and JobStateFromString), re-keyed to the batch
// engine's per-symbol lifecycle rather than a remote API's job lifecycle.
type JobState string

const (
	JobState_Pending   JobState = "pending"
	JobState_Running   JobState = "running"
	JobState_Completed JobState = "completed"
	JobState_Failed    JobState = "failed"
)

func (j JobState) String() string { return string(j) }

func JobStateFromString(s string) (JobState, error) {
	switch strings.ToLower(s) {
	case "pending":
		return JobState_Pending, nil
	case "running":
		return JobState_Running, nil
	case "completed":
		return JobState_Completed, nil
	case "failed":
		return JobState_Failed, nil
	default:
		return "", fmt.Errorf("batch: unknown job state %q", s)
	}
}

// ManifestEntry tracks one symbol's progress through the batch run.
type ManifestEntry struct {
	Symbol      string
	State       JobState
	BarsWritten int64
	Error       string
	UpdatedAt   time.Time
}

// Manifest is a DuckDB-backed resumable record of a batch run's per-symbol
// progress, grounded on internal/mcp_data/cache.go's database/sql +
// duckdb-go/v2 usage (parameterized queries over a local file-backed DB).
type Manifest struct {
	db *sql.DB
}

// OpenManifest opens (creating if necessary) a manifest database at path.
// Pass ":memory:" for an ephemeral, non-resumable manifest (tests).
func OpenManifest(path string) (*Manifest, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("batch: open manifest: %w", err)
	}
	m := &Manifest{db: db}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manifest) migrate() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS manifest (
			symbol       VARCHAR PRIMARY KEY,
			state        VARCHAR NOT NULL,
			bars_written BIGINT NOT NULL DEFAULT 0,
			error        VARCHAR NOT NULL DEFAULT '',
			updated_at   TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("batch: create manifest table: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (m *Manifest) Close() error { return m.db.Close() }

// Seed inserts `symbol` as pending if it's not already tracked. Idempotent:
// safe to call on every run so a resumed batch doesn't reset completed work.
func (m *Manifest) Seed(symbol string) error {
	_, err := m.db.Exec(
		`INSERT INTO manifest (symbol, state, bars_written, error, updated_at)
		 VALUES (?, ?, 0, '', ?)
		 ON CONFLICT (symbol) DO NOTHING`,
		symbol, string(JobState_Pending), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("batch: seed %s: %w", symbol, err)
	}
	return nil
}

// MarkRunning transitions symbol to running.
func (m *Manifest) MarkRunning(symbol string) error {
	return m.update(symbol, JobState_Running, 0, "", true)
}

// MarkCompleted transitions symbol to completed with its final bar count.
func (m *Manifest) MarkCompleted(symbol string, barsWritten int64) error {
	return m.update(symbol, JobState_Completed, barsWritten, "", true)
}

// MarkFailed transitions symbol to failed, recording the error message.
func (m *Manifest) MarkFailed(symbol string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return m.update(symbol, JobState_Failed, 0, msg, false)
}

func (m *Manifest) update(symbol string, state JobState, barsWritten int64, errMsg string, resetBars bool) error {
	var err error
	if resetBars {
		_, err = m.db.Exec(
			`UPDATE manifest SET state = ?, bars_written = ?, error = ?, updated_at = ? WHERE symbol = ?`,
			string(state), barsWritten, errMsg, time.Now().UTC(), symbol,
		)
	} else {
		_, err = m.db.Exec(
			`UPDATE manifest SET state = ?, error = ?, updated_at = ? WHERE symbol = ?`,
			string(state), errMsg, time.Now().UTC(), symbol,
		)
	}
	if err != nil {
		return fmt.Errorf("batch: update %s: %w", symbol, err)
	}
	return nil
}

// Pending returns every symbol still in the pending or failed state — the
// set a resumed run should retry. Completed symbols are never re-processed.
func (m *Manifest) Pending() ([]string, error) {
	rows, err := m.db.Query(
		`SELECT symbol FROM manifest WHERE state IN (?, ?) ORDER BY symbol`,
		string(JobState_Pending), string(JobState_Failed),
	)
	if err != nil {
		return nil, fmt.Errorf("batch: query pending: %w", err)
	}
	defer rows.Close()
	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Entries returns every tracked symbol's current state, for CLI/TUI display.
func (m *Manifest) Entries() ([]ManifestEntry, error) {
	rows, err := m.db.Query(`SELECT symbol, state, bars_written, error, updated_at FROM manifest ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("batch: query entries: %w", err)
	}
	defer rows.Close()
	var out []ManifestEntry
	for rows.Next() {
		var e ManifestEntry
		var state string
		if err := rows.Scan(&e.Symbol, &state, &e.BarsWritten, &e.Error, &e.UpdatedAt); err != nil {
			return nil, err
		}
		js, err := JobStateFromString(state)
		if err != nil {
			return nil, err
		}
		e.State = js
		out = append(out, e)
	}
	return out, rows.Err()
}
