// Package config loads HyMod run configurations from YAML files or a SQLite database.
package config

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Defaults applied when a configuration leaves a setting out.
const (
	DefaultNq         = 1
	DefaultKv         = 1.0
	DefaultWarmupDays = 365
	DefaultRunName    = "default"

	DateLayout = time.DateOnly
)

// ErrNotFound is returned when a named run does not exist in the configuration store.
var ErrNotFound = errors.New("run configuration not found")

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetForcingConfig() (*ForcingData, error)
	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration of one run
type ConfigData struct {
	Name       string         `json:"name"`
	Forcing    ForcingData    `json:"forcing"`
	Model      ModelData      `json:"model"`
	Simulation SimulationData `json:"simulation"`
	Samples    SamplesData    `json:"samples,omitempty"`
	Storage    StorageData    `json:"storage,omitempty"`
	Debug      bool           `json:"debug,omitempty"`
}

// ForcingData selects the forcing file and the simulation period within it
type ForcingData struct {
	Path      string `json:"path"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	// Days overrides EndDate with an explicit period length.
	Days int `json:"days,omitempty"`
	// StartDay seeds the PE day counter. Zero derives it from the start date.
	StartDay int `json:"start_day,omitempty"`
}

// ModelData holds settings that are fixed for every parameter set of a run
type ModelData struct {
	Nq   int     `json:"nq"`
	Kv   float64 `json:"kv"`
	Snow bool    `json:"snow"`
}

// SimulationData holds settings of the simulation driver and its reporting
type SimulationData struct {
	WarmupDays  int  `json:"warmup_days"`
	KeepHistory bool `json:"keep_history,omitempty"`
}

// SamplesData points at the parameter sample file. Count zero reads every vector.
type SamplesData struct {
	Path  string `json:"path,omitempty"`
	Count int    `json:"count,omitempty"`
}

// StorageData holds the configuration for the result storage backends
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	Msgpack     *MsgpackData     `json:"msgpack,omitempty"`
	// StoreSeries stores the full daily discharge series with every evaluation, not only
	// its summary.
	StoreSeries bool `json:"store_series,omitempty"`
}

// Storage backend configuration structs
type SQLiteData struct {
	Path string `json:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

type MsgpackData struct {
	Path string `json:"path"`
}

// NewDefaultConfig returns a ConfigData holding every default.
func NewDefaultConfig() *ConfigData {
	return &ConfigData{
		Name: DefaultRunName,
		Model: ModelData{
			Nq:   DefaultNq,
			Kv:   DefaultKv,
			Snow: true,
		},
		Simulation: SimulationData{
			WarmupDays: DefaultWarmupDays,
		},
	}
}

// Validate validates the configuration.
func (c *ConfigData) Validate() error {
	if err := c.Forcing.Validate(); err != nil {
		return fmt.Errorf("forcing: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Samples.Validate(); err != nil {
		return fmt.Errorf("samples: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// Validate validates the forcing configuration.
func (f *ForcingData) Validate() error {
	err := validation.ValidateStruct(f,
		validation.Field(&f.Path, validation.Required),
		validation.Field(&f.StartDate, validation.Date(DateLayout)),
		validation.Field(&f.EndDate, validation.Date(DateLayout)),
		validation.Field(&f.Days, validation.Min(0)),
		validation.Field(&f.StartDay, validation.Min(0), validation.Max(366)),
	)
	if err != nil {
		return err
	}
	if f.Days > 0 && f.EndDate != "" {
		return errors.New("end_date and days are mutually exclusive")
	}
	if f.StartDate != "" && f.EndDate != "" {
		start, _ := time.Parse(DateLayout, f.StartDate)
		end, _ := time.Parse(DateLayout, f.EndDate)
		if end.Before(start) {
			return fmt.Errorf("end_date %s precedes start_date %s", f.EndDate, f.StartDate)
		}
	}
	return nil
}

// Validate validates the model configuration.
func (m *ModelData) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.Nq, validation.Required, validation.Min(1)),
		validation.Field(&m.Kv, validation.Min(0.0), validation.Max(2.0)),
	)
}

// Validate validates the simulation configuration.
func (s *SimulationData) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.WarmupDays, validation.Min(0)),
	)
}

// Validate validates the samples configuration.
func (s *SamplesData) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Count, validation.Min(0)),
	)
}

// Validate validates the storage configuration.
func (s *StorageData) Validate() error {
	if s.SQLite != nil && s.SQLite.Path == "" {
		return errors.New("sqlite: path is required")
	}
	if s.TimescaleDB != nil && s.TimescaleDB.ConnectionString == "" {
		return errors.New("timescaledb: connection_string is required")
	}
	if s.Msgpack != nil && s.Msgpack.Path == "" {
		return errors.New("msgpack: path is required")
	}
	return nil
}
