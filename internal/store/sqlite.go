// Package store persists job snapshots and terminal-job history in sqlite,
// and keeps the per-video analysis cache as atomic JSON files.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anl331/vid-clipper/internal/job"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	video_id   TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	snapshot   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_video_id ON jobs(video_id);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id     TEXT NOT NULL,
	video_id   TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	clip_count INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	ended_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_job_id ON history(job_id);
`

// JobStore is the sqlite repository for job snapshots and history.
type JobStore struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the database at path and applies the
// schema.
func Open(path string) (*JobStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &JobStore{db: db}
	if err := s.markInterrupted(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *JobStore) Close() error { return s.db.Close() }

// markInterrupted flags jobs left non-terminal by a previous process as
// errored, so restarts never strand a "running" row.
func (s *JobStore) markInterrupted() error {
	rows, err := s.db.Query(`SELECT id, snapshot FROM jobs WHERE status NOT IN ('done', 'error')`)
	if err != nil {
		return fmt.Errorf("find interrupted jobs: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id   string
		snap job.Snapshot
	}
	var found []pending
	for rows.Next() {
		var p pending
		var raw string
		if err := rows.Scan(&p.id, &raw); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(raw), &p.snap); err != nil {
			continue
		}
		found = append(found, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range found {
		p.snap.Status = job.StatusError
		p.snap.Error = "interrupted by restart"
		p.snap.UpdatedAt = time.Now().UTC()
		if err := s.SaveSnapshot(context.Background(), p.snap); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot upserts the job's full snapshot.
func (s *JobStore) SaveSnapshot(ctx context.Context, snap job.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, video_id, status, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			video_id = excluded.video_id,
			status = excluded.status,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, snap.ID, snap.VideoID, string(snap.Status), string(raw),
		snap.CreatedAt.Format(time.RFC3339), snap.UpdatedAt.Format(time.RFC3339))
	return err
}

// GetSnapshot returns one job snapshot, or nil when unknown.
func (s *JobStore) GetSnapshot(ctx context.Context, id string) (*job.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM jobs WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap job.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// ListSnapshots returns the most recent jobs, newest first.
func (s *JobStore) ListSnapshots(ctx context.Context, limit int) ([]job.Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []job.Snapshot
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var snap job.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// AppendHistory records a terminal job in the append-only history table.
func (s *JobStore) AppendHistory(ctx context.Context, snap job.Snapshot) error {
	clipCount := 0
	for _, c := range snap.Clips {
		if c.Err == "" {
			clipCount++
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (job_id, video_id, status, clip_count, error, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.VideoID, string(snap.Status), clipCount, snap.Error,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// HistoryEntry is one row of the terminal-job history.
type HistoryEntry struct {
	JobID     string    `json:"job_id"`
	VideoID   string    `json:"video_id"`
	Status    string    `json:"status"`
	ClipCount int       `json:"clip_count"`
	Error     string    `json:"error,omitempty"`
	EndedAt   time.Time `json:"ended_at"`
}

// ListHistory returns recent history entries, newest first.
func (s *JobStore) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, video_id, status, clip_count, error, ended_at
		FROM history ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var endedAt string
		if err := rows.Scan(&e.JobID, &e.VideoID, &e.Status, &e.ClipCount, &e.Error, &endedAt); err != nil {
			return nil, err
		}
		e.EndedAt, _ = time.Parse(time.RFC3339, endedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
