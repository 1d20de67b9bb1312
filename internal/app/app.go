// Package app drives HyMod runs: it loads the run configuration and forcing, streams
// parameter vectors through a simulation and hands every evaluation to the storage backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chrissnell/hymod/internal/hymod"
	"github.com/chrissnell/hymod/internal/log"
	"github.com/chrissnell/hymod/internal/managers"
	"github.com/chrissnell/hymod/internal/sample"
	"github.com/chrissnell/hymod/internal/storage"
	"github.com/chrissnell/hymod/internal/types"
	"github.com/chrissnell/hymod/pkg/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// progressInterval is the number of samples between progress messages
const progressInterval = 100

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Report summarises a finished run
type Report struct {
	RunID     string        `json:"run_id"`
	Evaluated int           `json:"evaluated"`
	Invalid   int           `json:"invalid"`
	Cancelled bool          `json:"cancelled,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// loadConfig loads and validates the run configuration
func (a *App) loadConfig() (*config.ConfigData, error) {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// prepare loads the configuration and the basin and builds a simulation over it
func (a *App) prepare() (*config.ConfigData, *Basin, *hymod.Simulation, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	basin, err := LoadBasin(&cfg.Forcing)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not load forcing: %w", err)
	}
	a.logger.Infow("forcing loaded",
		"gage", basin.Data.GageID,
		"latitude", basin.Data.Latitude,
		"start", basin.Data.Dates[0].String(),
		"days", basin.Data.Len(),
		"start_day", basin.StartDay,
	)

	sim, err := hymod.NewSimulation(basin.Forcing, basin.PE, hymod.Options{
		Snow:        cfg.Model.Snow,
		KeepHistory: cfg.Simulation.KeepHistory,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, basin, sim, nil
}

// Run evaluates every parameter vector of the sample file and blocks until the results have
// been handed to the storage backends. SIGINT and SIGTERM stop the run after the current
// sample; results gathered so far are still stored.
func (a *App) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	log.GetWarningBuffer().Clear()
	storage.GlobalHealthManager.Reset()

	cfg, basin, sim, err := a.prepare()
	if err != nil {
		return nil, err
	}
	if cfg.Samples.Path == "" {
		return nil, errors.New("no sample file configured")
	}

	samples, err := sample.Open(cfg.Samples.Path)
	if err != nil {
		return nil, err
	}
	defer samples.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	storageManager, err := managers.NewStorageManager(ctx, &wg, &cfg.Storage)
	if err != nil {
		return nil, err
	}

	run := newRun(cfg, basin)
	if err := storageManager.RegisterRun(ctx, run); err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("could not register run: %w", err)
	}
	a.logger.Infow("run started", "run_id", run.ID, "name", run.Name)

	report := a.evaluate(ctx, cfg, sim, samples, run.ID, storageManager.GetEvaluationDistributor())
	report.RunID = run.ID

	log.Info("waiting for storage backends to drain...")
	if err := storageManager.Close(); err != nil {
		log.Errorf("error closing storage backends: %v", err)
	}
	report.Duration = time.Since(started)

	a.logSummary(report)
	return report, nil
}

// evaluate streams samples through sim until the sample file or the configured count is
// exhausted, or ctx is cancelled
func (a *App) evaluate(ctx context.Context, cfg *config.ConfigData, sim *hymod.Simulation, samples *sample.Reader,
	runID string, out chan<- types.Evaluation) *Report {
	report := &Report{}

	for n := 0; cfg.Samples.Count == 0 || n < cfg.Samples.Count; n++ {
		if ctx.Err() != nil {
			log.Warnf("run cancelled after %d samples", n)
			report.Cancelled = true
			break
		}

		v, err := samples.Next()
		if errors.Is(err, hymod.ErrInputExhausted) {
			if !errors.Is(err, io.EOF) {
				log.Warnw("incomplete parameter vector at end of input", "line", samples.Line(), "error", err)
			}
			log.Infof("sample input exhausted after %d vectors on %d lines", samples.Count(), samples.Line())
			break
		}
		if err != nil && !errors.Is(err, sample.ErrMalformed) {
			log.Errorf("could not read samples: %v", err)
			break
		}

		ev := types.NewEvaluation(runID, n, v)
		if err != nil {
			log.Warnw("skipping malformed parameter vector", "sample", n, "line", samples.Line(), "error", err)
			ev.Fail(err)
		} else if err := evaluateVector(sim, cfg, v, &ev); err != nil {
			log.Warnw("parameter set rejected", "sample", n, "error", err)
			ev.Fail(err)
		}
		if ev.Status != types.StatusOK {
			report.Invalid++
		}
		report.Evaluated++

		out <- ev

		if report.Evaluated%progressInterval == 0 {
			a.logger.Infof("%d samples evaluated", report.Evaluated)
		}
	}

	return report
}

// evaluateVector runs one parameter vector and records its outcome in ev
func evaluateVector(sim *hymod.Simulation, cfg *config.ConfigData, v []float64, ev *types.Evaluation) error {
	par, err := hymod.ParametersFromVector(v, cfg.Model.Nq, cfg.Model.Kv)
	if err != nil {
		return err
	}
	res, err := sim.Run(par)
	if err != nil {
		return err
	}

	ev.SetSummary(res.Summary(cfg.Simulation.WarmupDays))
	if cfg.Storage.StoreSeries {
		// the result buffers are reused by the next run
		ev.Q = append([]float64(nil), res.Q()...)
	}
	return nil
}

func newRun(cfg *config.ConfigData, basin *Basin) types.Run {
	start := basin.Data.Dates[0]
	return types.Run{
		ID:          uuid.NewString(),
		Name:        cfg.Name,
		ForcingPath: cfg.Forcing.Path,
		GageID:      basin.Data.GageID,
		Latitude:    basin.Data.Latitude,
		StartDate:   time.Date(start.Year, time.Month(start.Month), start.Day, 0, 0, 0, 0, time.UTC),
		Days:        basin.Data.Len(),
		StartDay:    basin.StartDay,
		Nq:          cfg.Model.Nq,
		Kv:          cfg.Model.Kv,
		Snow:        cfg.Model.Snow,
		WarmupDays:  cfg.Simulation.WarmupDays,
		StartedAt:   time.Now().UTC(),
	}
}

func (a *App) logSummary(r *Report) {
	a.logger.Infow("run finished",
		"run_id", r.RunID,
		"evaluated", r.Evaluated,
		"invalid", r.Invalid,
		"cancelled", r.Cancelled,
		"duration", r.Duration.String(),
	)

	for name, h := range storage.GlobalHealthManager.GetAllHealth() {
		if !storage.GlobalHealthManager.IsHealthy(name) {
			a.logger.Warnw("storage backend unhealthy", "backend", name, "message", h.Message, "error", h.Error)
		}
		a.logger.Infow("storage backend", "backend", name, "status", h.Status, "stored", h.Stored, "failed", h.Failed)
	}

	warnings := log.GetWarningBuffer()
	total := warnings.Total()
	if total == 0 {
		return
	}
	entries := warnings.Entries()
	a.logger.Infof("%d warnings logged during the run, last %d:", total, len(entries))
	for _, e := range entries {
		a.logger.Infow("  "+e.Message, "level", e.Level, "time", e.Timestamp.Format(time.RFC3339), "caller", e.Caller)
	}
}

// Simulate runs a single parameter vector over the configured forcing window.
func (a *App) Simulate(vector []float64) (*hymod.Result, hymod.Summary, error) {
	cfg, _, sim, err := a.prepare()
	if err != nil {
		return nil, hymod.Summary{}, err
	}

	par, err := hymod.ParametersFromVector(vector, cfg.Model.Nq, cfg.Model.Kv)
	if err != nil {
		return nil, hymod.Summary{}, err
	}
	res, err := sim.Run(par)
	if err != nil {
		return nil, hymod.Summary{}, err
	}
	return res, res.Summary(cfg.Simulation.WarmupDays), nil
}

// PE loads the configured forcing window and its potential evapotranspiration series.
func (a *App) PE() (*Basin, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return LoadBasin(&cfg.Forcing)
}
