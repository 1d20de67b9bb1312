// Package sqlite stores evaluations in a local SQLite database. Discharge series are kept as
// msgpack-encoded blobs next to the evaluation row.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/hymod/internal/log"
	"github.com/chrissnell/hymod/internal/storage"
	"github.com/chrissnell/hymod/internal/types"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

const engineName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	forcing_path TEXT,
	gage_id      TEXT,
	latitude     REAL NOT NULL,
	start_date   TEXT NOT NULL,
	days         INTEGER NOT NULL,
	start_day    INTEGER NOT NULL,
	nq           INTEGER NOT NULL,
	kv           REAL NOT NULL,
	snow         INTEGER NOT NULL,
	warmup_days  INTEGER NOT NULL,
	started_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS evaluations (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	sample       INTEGER NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT,
	ks REAL, kq REAL, ddf REAL, tb REAL, tth REAL, alpha REAL, b REAL, huz REAL,
	summary_days INTEGER,
	sum_q        REAL,
	sum_observed REAL,
	missing_observed INTEGER,
	sum_precip   REAL,
	sum_ae       REAL,
	mean_q       REAL,
	runoff_ratio REAL,
	q            BLOB,
	evaluated_at TEXT NOT NULL,
	PRIMARY KEY (run_id, sample)
);
`

// Storage holds the connection for a SQLite storage backend
type Storage struct {
	db *sql.DB
}

// New opens or creates the results database at path
func New(ctx context.Context, path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	log.Info("creating SQLite results schema...")
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results schema: %w", err)
	}

	storage.GlobalHealthManager.UpdateHealth(engineName, storage.StatusHealthy, "SQLite results database ready", nil)
	return &Storage{db: db}, nil
}

// StartStorageEngine creates a goroutine loop to receive evaluations and write them to SQLite
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Evaluation {
	log.Info("starting SQLite storage engine...")
	evalChan := make(chan types.Evaluation, 10)
	wg.Add(1)
	go storage.ProcessEvaluations(wg, evalChan, func(e types.Evaluation) error {
		return s.StoreEvaluation(context.WithoutCancel(ctx), e)
	}, engineName)
	return evalChan
}

// RegisterRun stores the run record
func (s *Storage) RegisterRun(ctx context.Context, r types.Run) error {
	query := `
		INSERT INTO runs (
			id, name, forcing_path, gage_id, latitude, start_date, days, start_day,
			nq, kv, snow, warmup_days, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Name, r.ForcingPath, r.GageID, r.Latitude, r.StartDate.Format(time.DateOnly),
		r.Days, r.StartDay, r.Nq, r.Kv, r.Snow, r.WarmupDays, r.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("could not store run: %w", err)
	}
	return nil
}

// StoreEvaluation stores one evaluation
func (s *Storage) StoreEvaluation(ctx context.Context, e types.Evaluation) error {
	var q []byte
	if len(e.Q) > 0 {
		var err error
		q, err = msgpack.Marshal(e.Q)
		if err != nil {
			return fmt.Errorf("could not encode discharge series: %w", err)
		}
	}

	query := `
		INSERT OR REPLACE INTO evaluations (
			run_id, sample, status, error,
			ks, kq, ddf, tb, tth, alpha, b, huz,
			summary_days, sum_q, sum_observed, missing_observed, sum_precip, sum_ae, mean_q, runoff_ratio,
			q, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.RunID, e.Sample, e.Status, e.Error,
		e.Ks, e.Kq, e.DDF, e.Tb, e.Tth, e.Alpha, e.B, e.Huz,
		e.SummaryDays, e.SumQ, e.SumObserved, e.MissingObserved, e.SumPrecip, e.SumAE, e.MeanQ, e.RunoffRatio,
		q, e.EvaluatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("could not store evaluation %d: %w", e.Sample, err)
	}
	return nil
}

// LoadRun returns a stored run
func (s *Storage) LoadRun(ctx context.Context, id string) (types.Run, error) {
	query := `
		SELECT id, name, forcing_path, gage_id, latitude, start_date, days, start_day,
		       nq, kv, snow, warmup_days, started_at
		FROM runs WHERE id = ?
	`
	var (
		r                    types.Run
		forcingPath, gageID  sql.NullString
		startDate, startedAt string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Name, &forcingPath, &gageID, &r.Latitude, &startDate, &r.Days, &r.StartDay,
		&r.Nq, &r.Kv, &r.Snow, &r.WarmupDays, &startedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return types.Run{}, fmt.Errorf("could not load run: %w", err)
	}
	r.ForcingPath = forcingPath.String
	r.GageID = gageID.String

	if r.StartDate, err = time.Parse(time.DateOnly, startDate); err != nil {
		return types.Run{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return types.Run{}, fmt.Errorf("invalid start time %q: %w", startedAt, err)
	}
	return r, nil
}

// LoadEvaluations returns the evaluations of a run ordered by sample
func (s *Storage) LoadEvaluations(ctx context.Context, runID string) ([]types.Evaluation, error) {
	query := `
		SELECT run_id, sample, status, error,
		       ks, kq, ddf, tb, tth, alpha, b, huz,
		       summary_days, sum_q, sum_observed, missing_observed, sum_precip, sum_ae, mean_q, runoff_ratio,
		       q, evaluated_at
		FROM evaluations
		WHERE run_id = ?
		ORDER BY sample
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []types.Evaluation
	for rows.Next() {
		var (
			e           types.Evaluation
			errText     sql.NullString
			q           []byte
			evaluatedAt string
		)
		err := rows.Scan(
			&e.RunID, &e.Sample, &e.Status, &errText,
			&e.Ks, &e.Kq, &e.DDF, &e.Tb, &e.Tth, &e.Alpha, &e.B, &e.Huz,
			&e.SummaryDays, &e.SumQ, &e.SumObserved, &e.MissingObserved, &e.SumPrecip, &e.SumAE, &e.MeanQ, &e.RunoffRatio,
			&q, &evaluatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation row: %w", err)
		}
		e.Error = errText.String
		if len(q) > 0 {
			if err := msgpack.Unmarshal(q, &e.Q); err != nil {
				return nil, fmt.Errorf("could not decode discharge series of sample %d: %w", e.Sample, err)
			}
		}
		if e.EvaluatedAt, err = time.Parse(time.RFC3339Nano, evaluatedAt); err != nil {
			return nil, fmt.Errorf("invalid evaluation time %q: %w", evaluatedAt, err)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
