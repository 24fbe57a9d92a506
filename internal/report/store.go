package report

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current results schema version.
const schemaVersion = 1

var (
	// ErrSchemaMismatch indicates the results file was written by an incompatible version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
	// ErrStoreLocked indicates another process is writing the results file.
	ErrStoreLocked = errors.New("results database is locked by another process")
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists runs in SQLite. The store holds an exclusive file lock on
// path + ".lock" until Close.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// StoredRun is a row of the runs table.
type StoredRun struct {
	ID        string
	StartedAt time.Time
	MJDNow    float64
	Model     string
	Objects   int
	Labelled  int
	Correct   int
}

// StoredPrediction is a row of the predictions table.
type StoredPrediction struct {
	RunID          string
	SNID           int64
	TrueClass      string
	Gentype        sql.NullInt64
	PredictedClass string
	Probability    float64
	Probabilities  map[string]float64
}

// OpenStore opens or creates the results database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("results database path required")
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire results lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, lock: lock}
	if err := store.initSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
	}
	return errors.Join(errs...)
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// SaveRun writes run and all of its predictions in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	return retryOnBusy(ctx, func() error {
		return s.saveRun(ctx, run)
	})
}

func (s *Store) saveRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, mjd_now, model, object_count, labelled_count, correct_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.MJDNow, run.Model,
		run.Summary.Objects, run.Summary.Labelled, run.Summary.Correct,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, result := range run.Objects {
		probabilities := make(map[string]float64, len(result.Prediction.Leaves))
		for _, leaf := range result.Prediction.Leaves {
			probabilities[leaf.Class] = leaf.Probability
		}
		encoded, err := json.Marshal(probabilities)
		if err != nil {
			return fmt.Errorf("encode probabilities: %w", err)
		}
		var gentype sql.NullInt64
		if result.HasTruth {
			gentype = sql.NullInt64{Int64: result.Gentype, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO predictions (run_id, snid, true_class, gentype, predicted_class, probability, probabilities)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, result.SNID, result.TrueClass, gentype, result.Prediction.Class,
			result.Prediction.Probability, string(encoded),
		); err != nil {
			return fmt.Errorf("insert prediction %d: %w", result.SNID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]StoredRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, mjd_now, model, object_count, labelled_count, correct_count
		 FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []StoredRun
	for rows.Next() {
		var (
			run     StoredRun
			started string
		)
		if err := rows.Scan(&run.ID, &started, &run.MJDNow, &run.Model, &run.Objects, &run.Labelled, &run.Correct); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Predictions returns the predictions recorded for runID ordered by SNID.
func (s *Store) Predictions(ctx context.Context, runID string) ([]StoredPrediction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, snid, true_class, gentype, predicted_class, probability, probabilities
		 FROM predictions WHERE run_id = ? ORDER BY snid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []StoredPrediction
	for rows.Next() {
		var (
			p       StoredPrediction
			encoded string
		)
		if err := rows.Scan(&p.RunID, &p.SNID, &p.TrueClass, &p.Gentype, &p.PredictedClass, &p.Probability, &encoded); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &p.Probabilities); err != nil {
			return nil, fmt.Errorf("decode probabilities for %d: %w", p.SNID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
