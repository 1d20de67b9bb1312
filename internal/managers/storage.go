// Package managers fans evaluations out to the configured storage backends.
package managers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chrissnell/hymod/internal/log"
	"github.com/chrissnell/hymod/internal/storage"
	"github.com/chrissnell/hymod/internal/storage/msgpack"
	"github.com/chrissnell/hymod/internal/storage/sqlite"
	"github.com/chrissnell/hymod/internal/storage/timescaledb"
	"github.com/chrissnell/hymod/internal/types"
	"github.com/chrissnell/hymod/pkg/config"
)

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines               []StorageEngine
	EvaluationDistributor chan types.Evaluation

	wg        *sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing evaluations to the engine
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- types.Evaluation
}

// NewStorageManager creates a StorageManager object, populated with all configured StorageEngines
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c *config.StorageData) (*StorageManager, error) {
	s := &StorageManager{
		EvaluationDistributor: make(chan types.Evaluation, 20),
		wg:                    wg,
		done:                  make(chan struct{}),
	}

	// Check the configuration for the supported storage backends and enable them if found
	if c.SQLite != nil {
		if err := s.AddEngine(ctx, wg, "sqlite", c); err != nil {
			return nil, s.abort(fmt.Errorf("could not add SQLite storage backend: %w", err))
		}
	}

	if c.TimescaleDB != nil {
		if err := s.AddEngine(ctx, wg, "timescaledb", c); err != nil {
			return nil, s.abort(fmt.Errorf("could not add TimescaleDB storage backend: %w", err))
		}
	}

	if c.Msgpack != nil {
		if err := s.AddEngine(ctx, wg, "msgpack", c); err != nil {
			return nil, s.abort(fmt.Errorf("could not add msgpack storage backend: %w", err))
		}
	}

	// The distributor starts after every engine so that it never sees a partial engine list
	go s.startEvaluationDistributor()

	return s, nil
}

// GetEvaluationDistributor returns the evaluation distributor channel
func (s *StorageManager) GetEvaluationDistributor() chan<- types.Evaluation {
	return s.EvaluationDistributor
}

// AddEngine adds a new StorageEngine of name engineName to our StorageManager
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, engineName string, c *config.StorageData) error {
	var (
		engine storage.StorageEngineInterface
		err    error
	)

	switch engineName {
	case "sqlite":
		engine, err = sqlite.New(ctx, c.SQLite.Path)
	case "timescaledb":
		engine, err = timescaledb.New(ctx, c.TimescaleDB.ConnectionString)
	case "msgpack":
		engine, err = msgpack.New(c.Msgpack.Path)
	default:
		return fmt.Errorf("unknown storage engine %q", engineName)
	}
	if err != nil {
		return err
	}

	s.Engines = append(s.Engines, StorageEngine{
		Name:   engineName,
		Engine: engine,
		C:      engine.StartStorageEngine(ctx, wg),
	})
	return nil
}

// abort stops and closes the engines started so far when a later one fails to start
func (s *StorageManager) abort(err error) error {
	for _, e := range s.Engines {
		close(e.C)
	}
	s.wg.Wait()

	errs := []error{err}
	for _, e := range s.Engines {
		if cerr := e.Engine.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, cerr))
		}
	}
	s.Engines = nil
	return errors.Join(errs...)
}

// RegisterRun records the run with every backend before any of its evaluations arrive
func (s *StorageManager) RegisterRun(ctx context.Context, r types.Run) error {
	var errs []error
	for _, e := range s.Engines {
		if err := e.Engine.RegisterRun(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

// startEvaluationDistributor receives evaluations from the run loop and fans them out to the
// storage backends until the distributor channel is closed
func (s *StorageManager) startEvaluationDistributor() {
	defer close(s.done)

	evaluationCount := 0
	for ev := range s.EvaluationDistributor {
		evaluationCount++
		for _, e := range s.Engines {
			e.C <- ev
		}
	}

	for _, e := range s.Engines {
		close(e.C)
	}
	log.Debugf("evaluation distributor stopped after %d evaluations", evaluationCount)
}

// Close stops accepting evaluations, waits for every backend to drain and closes them.
// Nothing may be sent to the distributor after Close.
func (s *StorageManager) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		close(s.EvaluationDistributor)
		<-s.done
		s.wg.Wait()

		for _, e := range s.Engines {
			if err := e.Engine.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			}
		}
	})
	return errors.Join(errs...)
}
