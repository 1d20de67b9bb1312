package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/hymod/internal/hymod"
	"github.com/chrissnell/hymod/internal/log"
	"github.com/chrissnell/hymod/internal/storage"
	"github.com/chrissnell/hymod/internal/storage/msgpack"
	"github.com/chrissnell/hymod/internal/storage/sqlite"
	"github.com/chrissnell/hymod/internal/types"
	"github.com/chrissnell/hymod/pkg/config"
	"github.com/chrissnell/hymod/pkg/mopex"
)

// writeBasin writes a MOPEX file of n days starting on 1961-01-01 with a seasonal
// temperature cycle and rain every third day.
func writeBasin(t *testing.T, dir string, n int) string {
	t.Helper()

	var b strings.Builder
	fmt.Fprintf(&b, "<GAGE_ID> 01643000\n<GAGE_LATITUDE> 39.3867\n<GAGE_LONGITUDE> -77.3797\n")
	fmt.Fprintf(&b, "<DRAINAGE_AREA> 2116.0\n<TIME_STEPS> %d\n<DATA_START>\n", n)

	start := time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		precip := 0.0
		if i%3 == 0 {
			precip = 8
		}
		mean := 12 - 14*math.Cos(2*math.Pi*float64(i)/365)
		fmt.Fprintf(&b, "%d %d %d %.4f 2.0000 1.2000 %.4f %.4f\n",
			d.Year(), int(d.Month()), d.Day(), precip, mean+5, mean-5)
	}

	path := filepath.Join(dir, "basin.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type staticProvider struct {
	cfg *config.ConfigData
}

func (p staticProvider) LoadConfig() (*config.ConfigData, error)        { return p.cfg, nil }
func (p staticProvider) GetForcingConfig() (*config.ForcingData, error) { return &p.cfg.Forcing, nil }
func (p staticProvider) GetStorageConfig() (*config.StorageData, error) { return &p.cfg.Storage, nil }
func (p staticProvider) IsReadOnly() bool                               { return true }
func (p staticProvider) Close() error                                   { return nil }

const samples = `# ks kq ddf tb tth alpha b huz
0.02 0.45 1.1 0.0 0.5 0.6 0.8 120
0.05 0.30 2.5 0.0 0.0 0.4 0.5 80
0.02 0.45 1.1 0.0 0.5 0.6 0.8 not-a-number
0.02 1.45 1.1 0.0 0.5 0.6 0.8 120
0.01 0.60 0.8 -1.0 1.0 0.7 1.2 250 extra columns
`

func TestRun(t *testing.T) {
	if err := log.Init(false); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	cfg := config.NewDefaultConfig()
	cfg.Name = "test"
	cfg.Forcing = config.ForcingData{
		Path:      writeBasin(t, dir, 800),
		StartDate: "1961-03-01",
		EndDate:   "1962-02-28",
	}
	cfg.Simulation.WarmupDays = 30
	cfg.Samples.Path = writeFile(t, dir, "samples.txt", samples)
	cfg.Storage = config.StorageData{
		SQLite:      &config.SQLiteData{Path: filepath.Join(dir, "results.db")},
		Msgpack:     &config.MsgpackData{Path: filepath.Join(dir, "results.msgpack")},
		StoreSeries: true,
	}

	a := New(staticProvider{cfg: cfg}, log.GetSugaredLogger())
	report, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Evaluated != 5 || report.Invalid != 2 || report.Cancelled {
		t.Errorf("report %+v", report)
	}

	// the warning buffer and backend counters cover this run only
	var messages []string
	for _, e := range log.GetWarningBuffer().Entries() {
		messages = append(messages, e.Message)
	}
	joined := strings.Join(messages, "\n")
	if !strings.Contains(joined, "skipping malformed parameter vector") || !strings.Contains(joined, "parameter set rejected") {
		t.Errorf("warnings not captured: %q", messages)
	}
	for _, backend := range []string{"sqlite", "msgpack"} {
		h, ok := storage.GlobalHealthManager.GetHealth(backend)
		if !ok || h.Stored != 5 || h.Failed != 0 || !storage.GlobalHealthManager.IsHealthy(backend) {
			t.Errorf("%s health %+v", backend, h)
		}
	}

	ctx := context.Background()
	db, err := sqlite.New(ctx, cfg.Storage.SQLite.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	run, err := db.LoadRun(ctx, report.RunID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run.Days != 365 || run.StartDay != 60 || run.GageID != "01643000" {
		t.Errorf("run %+v", run)
	}

	evals, err := db.LoadEvaluations(ctx, report.RunID)
	if err != nil {
		t.Fatalf("LoadEvaluations: %v", err)
	}
	if len(evals) != 5 {
		t.Fatalf("got %d evaluations, want 5", len(evals))
	}
	wantStatus := []string{types.StatusOK, types.StatusOK, types.StatusInvalid, types.StatusInvalid, types.StatusOK}
	for i, e := range evals {
		if e.Sample != i || e.Status != wantStatus[i] {
			t.Errorf("evaluation %d: sample %d status %s (%s)", i, e.Sample, e.Status, e.Error)
		}
		if e.Status == types.StatusOK {
			if e.SummaryDays != 335 || e.SumQ <= 0 || len(e.Q) != 365 {
				t.Errorf("evaluation %d: days %d sum %v series %d", i, e.SummaryDays, e.SumQ, len(e.Q))
			}
		}
	}
	if evals[4].Huz != 250 {
		t.Errorf("extra columns shifted the vector: %+v", evals[4].Vector())
	}

	records, err := msgpack.ReadFile(cfg.Storage.Msgpack.Path)
	if err != nil {
		t.Fatalf("msgpack.ReadFile: %v", err)
	}
	if len(records) != 6 || records[0].Kind != msgpack.KindRun {
		t.Errorf("got %d msgpack records", len(records))
	}
}

func TestRunSampleCount(t *testing.T) {
	dir := t.TempDir()

	cfg := config.NewDefaultConfig()
	cfg.Forcing.Path = writeBasin(t, dir, 400)
	cfg.Samples = config.SamplesData{Path: writeFile(t, dir, "samples.txt", samples), Count: 2}

	report, err := New(staticProvider{cfg: cfg}, log.GetSugaredLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Evaluated != 2 || report.Invalid != 0 {
		t.Errorf("report %+v", report)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()

	cfg := config.NewDefaultConfig()
	cfg.Forcing.Path = writeBasin(t, dir, 400)
	cfg.Samples.Path = writeFile(t, dir, "samples.txt", samples)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(staticProvider{cfg: cfg}, log.GetSugaredLogger()).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Cancelled || report.Evaluated != 0 {
		t.Errorf("report %+v", report)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	basin := writeBasin(t, dir, 100)

	tests := []struct {
		name   string
		mutate func(c *config.ConfigData)
	}{
		{name: "no samples", mutate: func(c *config.ConfigData) {}},
		{name: "missing sample file", mutate: func(c *config.ConfigData) { c.Samples.Path = filepath.Join(dir, "none.txt") }},
		{name: "invalid config", mutate: func(c *config.ConfigData) { c.Model.Nq = 0 }},
		{name: "start outside data", mutate: func(c *config.ConfigData) { c.Forcing.StartDate = "1970-01-01" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			cfg.Forcing.Path = basin
			tt.mutate(cfg)
			if _, err := New(staticProvider{cfg: cfg}, log.GetSugaredLogger()).Run(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSimulate(t *testing.T) {
	dir := t.TempDir()

	cfg := config.NewDefaultConfig()
	cfg.Forcing = config.ForcingData{Path: writeBasin(t, dir, 800), StartDate: "1961-10-01", Days: 100, StartDay: 274}
	cfg.Simulation = config.SimulationData{WarmupDays: 10, KeepHistory: true}
	a := New(staticProvider{cfg: cfg}, log.GetSugaredLogger())

	res, summary, err := a.Simulate([]float64{0.02, 0.45, 1.1, 0, 0.5, 0.6, 0.8, 120})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(res.Q()) != 100 || len(res.States) != 100 {
		t.Errorf("series %d states %d, want 100", len(res.Q()), len(res.States))
	}
	if summary.Days != 90 {
		t.Errorf("summary days %d, want 90", summary.Days)
	}
	if wb := res.WaterBalance(); math.Abs(wb) > 1e-6 {
		t.Errorf("water balance %v", wb)
	}

	if _, _, err := a.Simulate([]float64{0.02, 0.45}); !errors.Is(err, hymod.ErrConfig) {
		t.Errorf("expected ErrConfig for short vector, got %v", err)
	}
}

func TestSimulateMissingFlow(t *testing.T) {
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("<GAGE_ID> 01643000\n<GAGE_LATITUDE> 39.3867\n<TIME_STEPS> 10\n<DATA_START>\n")
	for i := 0; i < 10; i++ {
		flow := 1.2
		if i == 5 {
			flow = -99
		}
		fmt.Fprintf(&b, "1961 7 %d 4.0000 2.0000 %.4f 25.0000 15.0000\n", i+1, flow)
	}

	cfg := config.NewDefaultConfig()
	cfg.Forcing.Path = writeFile(t, dir, "basin.txt", b.String())
	cfg.Simulation.WarmupDays = 0

	_, summary, err := New(staticProvider{cfg: cfg}, log.GetSugaredLogger()).Simulate(
		[]float64{0.02, 0.45, 1.1, 0, 0.5, 0.6, 0.8, 120})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if math.Abs(summary.SumObserved-10.8) > 1e-9 || summary.MissingObserved != 1 {
		t.Errorf("SumObserved %v missing %d, want 10.8 and 1", summary.SumObserved, summary.MissingObserved)
	}
}

func TestLoadBasinGap(t *testing.T) {
	dir := t.TempDir()
	content := "<GAGE_ID> 1\n<GAGE_LATITUDE> 40\n<DATA_START>\n" +
		"1961 1 1 1.0 1.0 1.0 5.0 1.0\n" +
		"1961 1 2 1.0 1.0 1.0 5.0 1.0\n" +
		"1961 1 4 1.0 1.0 1.0 5.0 1.0\n"
	f := &config.ForcingData{Path: writeFile(t, dir, "gap.txt", content)}

	_, err := LoadBasin(f)
	var fe *hymod.ForcingError
	if !errors.As(err, &fe) || fe.Index != 2 {
		t.Errorf("expected ForcingError at 2, got %v", err)
	}
}

func TestPE(t *testing.T) {
	dir := t.TempDir()

	cfg := config.NewDefaultConfig()
	cfg.Forcing = config.ForcingData{Path: writeBasin(t, dir, 400), StartDate: "1961-10-01"}
	basin, err := New(staticProvider{cfg: cfg}, log.GetSugaredLogger()).PE()
	if err != nil {
		t.Fatalf("PE: %v", err)
	}
	if basin.StartDay != 274 {
		t.Errorf("start day %d, want 274", basin.StartDay)
	}
	if len(basin.PE) != 400-273 {
		t.Errorf("PE series %d values", len(basin.PE))
	}
	for i, pe := range basin.PE {
		if pe < 0 || math.IsNaN(pe) {
			t.Fatalf("PE[%d] = %v", i, pe)
		}
	}
	if basin.Data.Dates[0] != (mopex.Date{Year: 1961, Month: 10, Day: 1}) {
		t.Errorf("window starts %v", basin.Data.Dates[0])
	}
}

func TestLoadBasinMissingValue(t *testing.T) {
	dir := t.TempDir()
	content := "<GAGE_ID> 1\n<GAGE_LATITUDE> 40\n<DATA_START>\n" +
		"1961 1 1 1.0 1.0 1.0 5.0 1.0\n" +
		"1961 1 2 -99.0 1.0 1.0 5.0 1.0\n"
	f := &config.ForcingData{Path: writeFile(t, dir, "gap.txt", content)}

	_, err := LoadBasin(f)
	var fe *hymod.ForcingError
	if !errors.As(err, &fe) || fe.Index != 1 {
		t.Errorf("expected ForcingError at 1, got %v", err)
	}
}
