// Package timescaledb stores evaluations in PostgreSQL with the TimescaleDB extension: run and
// evaluation rows in plain tables, daily discharge series in a hypertable.
package timescaledb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/hymod/internal/database"
	"github.com/chrissnell/hymod/internal/log"
	"github.com/chrissnell/hymod/internal/storage"
	"github.com/chrissnell/hymod/internal/types"
	"gorm.io/gorm"
)

const (
	engineName = "timescaledb"
	batchSize  = 1000
)

// Storage holds the configuration for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB

	mu        sync.Mutex
	startDate time.Time
}

// Discharge is one day of a stored discharge series
type Discharge struct {
	Time   time.Time `gorm:"column:time"`
	RunID  string    `gorm:"column:run_id"`
	Sample int       `gorm:"column:sample"`
	Q      float64   `gorm:"column:q"`
}

// TableName implements the Tabler interface for the Discharge struct
func (Discharge) TableName() string {
	return "discharge"
}

// StartStorageEngine creates a goroutine loop to receive evaluations and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Evaluation {
	log.Info("starting TimescaleDB storage engine...")
	evalChan := make(chan types.Evaluation, 10)
	wg.Add(1)
	go storage.ProcessEvaluations(wg, evalChan, func(e types.Evaluation) error {
		return t.StoreEvaluation(context.WithoutCancel(ctx), e)
	}, engineName)
	return evalChan
}

// RegisterRun stores the run record
func (t *Storage) RegisterRun(ctx context.Context, r types.Run) error {
	if err := t.TimescaleDBConn.WithContext(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("could not store run: %w", err)
	}

	t.mu.Lock()
	t.startDate = r.StartDate
	t.mu.Unlock()
	return nil
}

// StoreEvaluation stores an evaluation and, when present, its discharge series
func (t *Storage) StoreEvaluation(ctx context.Context, e types.Evaluation) error {
	return t.TimescaleDBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&e).Error; err != nil {
			return fmt.Errorf("could not store evaluation %d: %w", e.Sample, err)
		}
		if len(e.Q) == 0 {
			return nil
		}

		rows := dischargeRows(t.seriesStart(), e)
		if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("could not store discharge of evaluation %d: %w", e.Sample, err)
		}
		return nil
	})
}

func (t *Storage) seriesStart() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startDate
}

// dischargeRows dates the series from start, one row per day.
func dischargeRows(start time.Time, e types.Evaluation) []Discharge {
	rows := make([]Discharge, len(e.Q))
	for i, q := range e.Q {
		rows[i] = Discharge{
			Time:   start.AddDate(0, 0, i),
			RunID:  e.RunID,
			Sample: e.Sample,
			Q:      q,
		}
	}
	return rows
}

// Close closes the database connection
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// New sets up a new TimescaleDB storage backend
func New(ctx context.Context, connectionString string) (*Storage, error) {
	var err error
	t := Storage{}

	t.TimescaleDBConn, err = database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		desc  string
		query string
	}{
		{"creating runs table", createRunsTableSQL},
		{"creating evaluations table", createEvaluationsTableSQL},
		{"creating discharge table", createDischargeTableSQL},
		{"creating TimescaleDB extension", createExtensionSQL},
		{"creating hypertable", createHypertableSQL},
		{"creating discharge index", createDischargeIndexSQL},
		{"creating yearly discharge view", createYearlyViewSQL},
	}

	for _, s := range steps {
		log.Infof("%s...", s.desc)
		if err := t.TimescaleDBConn.WithContext(ctx).Exec(s.query).Error; err != nil {
			log.Warnf("warning: failed %s", s.desc)
			t.Close()
			return nil, fmt.Errorf("%s: %w", s.desc, err)
		}
	}

	t.checkHealth(ctx)
	return &t, nil
}
