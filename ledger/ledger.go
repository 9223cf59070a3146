// Package ledger records generation runs and the artifacts they wrote in
// the SQLite database opened by package db.
//
// A run row is inserted with status "running" before the first worker
// starts and finished with its counters once the batch ends, so an
// interrupted run remains visible as running or failed.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/progress"
	"github.com/teranos/traitmint/trait"
)

// Run kinds.
const (
	KindGenerate   = "generate"
	KindRegenerate = "regenerate"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded invocation.
type Run struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Status     string            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Amount     int               `json:"amount"`
	StartID    int               `json:"start_id"`
	OutputDir  string            `json:"output_dir"`
	Workers    int               `json:"workers"`
	Seed       uint64            `json:"seed"`
	Counters   progress.Snapshot `json:"counters"`
	Error      string            `json:"error,omitempty"`
}

// Duration is the wall time of a finished run, or zero while it runs.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ArtifactRecord is one stored artifact.
type ArtifactRecord struct {
	RunID       string            `json:"run_id"`
	Index       int               `json:"index"`
	Path        string            `json:"path"`
	Group       string            `json:"group"`
	Fingerprint string            `json:"fingerprint"`
	Attributes  []trait.Attribute `json:"attributes"`
}

// Store reads and writes the run ledger.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger.OrNop(log)}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// StartRun inserts run with status running. An empty ID is filled in.
func (s *Store) StartRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = StatusRunning

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, status, started_at, amount, start_id, output_dir, workers, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Status, run.StartedAt, run.Amount, run.StartID,
		run.OutputDir, run.Workers, strconv.FormatUint(run.Seed, 10),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record run %s", run.ID)
	}
	s.logger.Debugw("Recorded run start", logger.FieldRunID, run.ID, logger.FieldAmount, run.Amount)
	return nil
}

// FinishRun stores the final counters. A nil runErr marks the run completed.
func (s *Store) FinishRun(ctx context.Context, id string, counters progress.Snapshot, runErr error) error {
	status := StatusCompleted
	var msg sql.NullString
	if runErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, finished_at = ?, attempts = ?, accepted = ?,
		    rule_rejected = ?, duplicate_rejected = ?, error = ?
		WHERE id = ?`,
		status, time.Now().UTC(), counters.Attempts, counters.Accepted,
		counters.RuleRejected, counters.DuplicateRejected, msg, id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to finish run %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf("run %s not found", id)
	}
	return nil
}

// RecordArtifacts stores artifacts of a run in one transaction.
func (s *Store) RecordArtifacts(ctx context.Context, runID string, artifacts []trait.Artifact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin artifact transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO artifacts (run_id, artifact_index, path, group_name, fingerprint, attributes)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare artifact insert")
	}
	defer stmt.Close()

	for _, a := range artifacts {
		attrs, err := json.Marshal(a.Set.Attrs)
		if err != nil {
			return errors.Wrapf(err, "failed to encode attributes of artifact %d", a.Index)
		}
		if _, err := stmt.ExecContext(ctx, runID, a.Index, a.Path, a.Set.Group, a.Set.Fingerprint().String(), string(attrs)); err != nil {
			return errors.Wrapf(err, "failed to record artifact %d", a.Index)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit artifacts")
	}
	s.logger.Debugw("Recorded artifacts", logger.FieldRunID, runID, logger.FieldCount, len(artifacts))
	return nil
}

const runColumns = `id, kind, status, started_at, finished_at, amount, start_id, output_dir, workers, seed,
	attempts, accepted, rule_rejected, duplicate_rejected, error`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r        Run
		finished sql.NullTime
		seed     string
		msg      sql.NullString
	)
	err := row.Scan(&r.ID, &r.Kind, &r.Status, &r.StartedAt, &finished, &r.Amount, &r.StartID,
		&r.OutputDir, &r.Workers, &seed, &r.Counters.Attempts, &r.Counters.Accepted,
		&r.Counters.RuleRejected, &r.Counters.DuplicateRejected, &msg)
	if err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	r.Seed, _ = strconv.ParseUint(seed, 10, 64)
	r.Error = msg.String
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "failed to iterate runs")
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.Newf("run %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", id)
	}
	return &r, nil
}

// Artifacts returns the artifacts of a run in index order.
func (s *Store) Artifacts(ctx context.Context, runID string) ([]ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, artifact_index, path, group_name, fingerprint, attributes
		FROM artifacts WHERE run_id = ? ORDER BY artifact_index`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list artifacts of run %s", runID)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var (
			a     ArtifactRecord
			attrs string
		)
		if err := rows.Scan(&a.RunID, &a.Index, &a.Path, &a.Group, &a.Fingerprint, &attrs); err != nil {
			return nil, errors.Wrap(err, "failed to scan artifact")
		}
		if err := json.Unmarshal([]byte(attrs), &a.Attributes); err != nil {
			return nil, errors.Wrapf(err, "artifact %d has malformed attributes", a.Index)
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate artifacts")
}
