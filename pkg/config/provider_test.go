package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const runYAML = `
name: calibration
forcing:
  path: ${HYMOD_TEST_DATA}/01643000.txt
  start-date: "1961-10-01"
  end-date: "1972-09-30"
  start-day: 274
model:
  nq: 3
  snow: false
simulation:
  keep-history: true
samples:
  path: samples.txt
  count: 1000
storage:
  sqlite:
    path: results.db
  msgpack:
    path: results.msgpack
  store-series: true
`

func TestParseYAML(t *testing.T) {
	t.Setenv("HYMOD_TEST_DATA", "/data/mopex")

	c, err := ParseYAML([]byte(runYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &ConfigData{
		Name: "calibration",
		Forcing: ForcingData{
			Path:      "/data/mopex/01643000.txt",
			StartDate: "1961-10-01",
			EndDate:   "1972-09-30",
			StartDay:  274,
		},
		Model:      ModelData{Nq: 3, Kv: DefaultKv, Snow: false},
		Simulation: SimulationData{WarmupDays: DefaultWarmupDays, KeepHistory: true},
		Samples:    SamplesData{Path: "samples.txt", Count: 1000},
		Storage: StorageData{
			SQLite:      &SQLiteData{Path: "results.db"},
			Msgpack:     &MsgpackData{Path: "results.msgpack"},
			StoreSeries: true,
		},
	}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("got %+v\nwant %+v", c, want)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseYAMLDefaults(t *testing.T) {
	c, err := ParseYAML([]byte("forcing:\n  path: basin.txt\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != DefaultRunName || c.Model.Nq != DefaultNq || c.Model.Kv != DefaultKv || !c.Model.Snow {
		t.Errorf("defaults not applied: %+v", c)
	}
	if c.Simulation.WarmupDays != DefaultWarmupDays {
		t.Errorf("warmup %d, want %d", c.Simulation.WarmupDays, DefaultWarmupDays)
	}

	// an explicit zero is kept
	c, err = ParseYAML([]byte("forcing:\n  path: basin.txt\nsimulation:\n  warmup-days: 0\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Simulation.WarmupDays != 0 {
		t.Errorf("warmup %d, want 0", c.Simulation.WarmupDays)
	}
}

func TestParseYAMLUnknownKey(t *testing.T) {
	if _, err := ParseYAML([]byte("forcing:\n  path: basin.txt\n  latitud: 40\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestParseYAMLHyphenatedKeys(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"warmup_days", "forcing:\n  path: basin.txt\nsimulation:\n  warmup_days: 0\n"},
		{"keep_history", "forcing:\n  path: basin.txt\nsimulation:\n  keep_history: true\n"},
		{"start_date", "forcing:\n  path: basin.txt\n  start_date: \"1961-10-01\"\n"},
		{"start_day", "forcing:\n  path: basin.txt\n  start_day: 274\n"},
		{"store_series", "forcing:\n  path: basin.txt\nstorage:\n  store_series: true\n"},
		{"connection_string", "forcing:\n  path: basin.txt\nstorage:\n  timescaledb:\n    connection_string: postgres://x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseYAML([]byte(tt.yaml)); err == nil {
				t.Errorf("expected %s to be rejected", tt.name)
			}
			hyphen := strings.ReplaceAll(tt.yaml, tt.name, strings.ReplaceAll(tt.name, "_", "-"))
			if _, err := ParseYAML([]byte(hyphen)); err != nil {
				t.Errorf("hyphenated form rejected: %v", err)
			}
		})
	}
}

func TestYAMLProvider(t *testing.T) {
	t.Setenv("HYMOD_TEST_DATA", "/data")
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(runYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewYAMLProvider(path)
	defer p.Close()

	f, err := p.GetForcingConfig()
	if err != nil {
		t.Fatalf("GetForcingConfig: %v", err)
	}
	if f.Path != "/data/01643000.txt" {
		t.Errorf("forcing path %q", f.Path)
	}
	s, err := p.GetStorageConfig()
	if err != nil {
		t.Fatalf("GetStorageConfig: %v", err)
	}
	if s.SQLite == nil || s.TimescaleDB != nil {
		t.Errorf("storage %+v", s)
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}

	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "none.yaml")).LoadConfig(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	c := NewDefaultConfig()
	c.Forcing.Path = "basin.txt"
	c.Simulation.WarmupDays = 0
	c.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: "postgres://localhost/hymod"}

	out, err := MarshalYAML(c)
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	back, err := ParseYAML(out)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if !reflect.DeepEqual(c, back) {
		t.Errorf("got %+v, want %+v", back, c)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ConfigData)
		wantErr string
	}{
		{name: "valid", mutate: func(c *ConfigData) {}},
		{name: "missing forcing path", mutate: func(c *ConfigData) { c.Forcing.Path = "" }, wantErr: "forcing"},
		{name: "bad start date", mutate: func(c *ConfigData) { c.Forcing.StartDate = "10/01/1961" }, wantErr: "start_date"},
		{name: "end before start", mutate: func(c *ConfigData) {
			c.Forcing.StartDate, c.Forcing.EndDate = "1972-09-30", "1961-10-01"
		}, wantErr: "precedes"},
		{name: "end date and days", mutate: func(c *ConfigData) {
			c.Forcing.EndDate, c.Forcing.Days = "1972-09-30", 4017
		}, wantErr: "mutually exclusive"},
		{name: "start day out of range", mutate: func(c *ConfigData) { c.Forcing.StartDay = 400 }, wantErr: "start_day"},
		{name: "zero reservoirs", mutate: func(c *ConfigData) { c.Model.Nq = 0 }, wantErr: "nq"},
		{name: "vegetation factor too high", mutate: func(c *ConfigData) { c.Model.Kv = 2.5 }, wantErr: "kv"},
		{name: "negative warmup", mutate: func(c *ConfigData) { c.Simulation.WarmupDays = -1 }, wantErr: "warmup_days"},
		{name: "negative sample count", mutate: func(c *ConfigData) { c.Samples.Count = -5 }, wantErr: "count"},
		{name: "sqlite without path", mutate: func(c *ConfigData) { c.Storage.SQLite = &SQLiteData{} }, wantErr: "sqlite"},
		{name: "timescaledb without connection", mutate: func(c *ConfigData) {
			c.Storage.TimescaleDB = &TimescaleDBData{}
		}, wantErr: "timescaledb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDefaultConfig()
			c.Forcing.Path = "basin.txt"
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateReportsFields(t *testing.T) {
	m := ModelData{Nq: -1, Kv: 3}
	var verrs validation.Errors
	if !errors.As(m.Validate(), &verrs) {
		t.Fatal("expected validation.Errors")
	}
	if _, ok := verrs["nq"]; !ok {
		t.Errorf("no error for nq: %v", verrs)
	}
	if _, ok := verrs["kv"]; !ok {
		t.Errorf("no error for kv: %v", verrs)
	}
}
