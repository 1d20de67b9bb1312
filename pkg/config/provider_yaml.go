package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file. ${VAR} references are
// expanded from the environment before parsing.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", y.filename, err)
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML parses a YAML run configuration, applying defaults for omitted settings.
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict([]byte(os.ExpandEnv(string(data))), &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := NewDefaultConfig()
	if yamlConfig.Name != "" {
		config.Name = yamlConfig.Name
	}
	config.Debug = yamlConfig.Debug

	config.Forcing = ForcingData{
		Path:      yamlConfig.Forcing.Path,
		StartDate: yamlConfig.Forcing.StartDate,
		EndDate:   yamlConfig.Forcing.EndDate,
		Days:      yamlConfig.Forcing.Days,
		StartDay:  yamlConfig.Forcing.StartDay,
	}

	if yamlConfig.Model.Nq != nil {
		config.Model.Nq = *yamlConfig.Model.Nq
	}
	if yamlConfig.Model.Kv != nil {
		config.Model.Kv = *yamlConfig.Model.Kv
	}
	if yamlConfig.Model.Snow != nil {
		config.Model.Snow = *yamlConfig.Model.Snow
	}

	if yamlConfig.Simulation.WarmupDays != nil {
		config.Simulation.WarmupDays = *yamlConfig.Simulation.WarmupDays
	}
	config.Simulation.KeepHistory = yamlConfig.Simulation.KeepHistory

	config.Samples = SamplesData{
		Path:  yamlConfig.Samples.Path,
		Count: yamlConfig.Samples.Count,
	}

	// Convert storage
	config.Storage.StoreSeries = yamlConfig.Storage.StoreSeries
	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: yamlConfig.Storage.SQLite.Path}
	}
	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}
	if yamlConfig.Storage.Msgpack != nil {
		config.Storage.Msgpack = &MsgpackData{Path: yamlConfig.Storage.Msgpack.Path}
	}

	return config, nil
}

// GetForcingConfig returns forcing configuration
func (y *YAMLProvider) GetForcingConfig() (*ForcingData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Forcing, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs. Optional settings are pointers so omitted keys keep their defaults.
type ConfigYAML struct {
	Name       string         `yaml:"name,omitempty"`
	Forcing    ForcingYAML    `yaml:"forcing"`
	Model      ModelYAML      `yaml:"model,omitempty"`
	Simulation SimulationYAML `yaml:"simulation,omitempty"`
	Samples    SamplesYAML    `yaml:"samples,omitempty"`
	Storage    StorageYAML    `yaml:"storage,omitempty"`
	Debug      bool           `yaml:"debug,omitempty"`
}

type ForcingYAML struct {
	Path      string `yaml:"path"`
	StartDate string `yaml:"start-date,omitempty"`
	EndDate   string `yaml:"end-date,omitempty"`
	Days      int    `yaml:"days,omitempty"`
	StartDay  int    `yaml:"start-day,omitempty"`
}

type ModelYAML struct {
	Nq   *int     `yaml:"nq,omitempty"`
	Kv   *float64 `yaml:"kv,omitempty"`
	Snow *bool    `yaml:"snow,omitempty"`
}

type SimulationYAML struct {
	WarmupDays  *int `yaml:"warmup-days,omitempty"`
	KeepHistory bool `yaml:"keep-history,omitempty"`
}

type SamplesYAML struct {
	Path  string `yaml:"path,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

type StorageYAML struct {
	SQLite      *SQLiteYAML      `yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
	Msgpack     *MsgpackYAML     `yaml:"msgpack,omitempty"`
	StoreSeries bool             `yaml:"store-series,omitempty"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type MsgpackYAML struct {
	Path string `yaml:"path"`
}

// MarshalYAML renders c in the YAML file format.
func MarshalYAML(c *ConfigData) ([]byte, error) {
	nq, kv, snow, warmup := c.Model.Nq, c.Model.Kv, c.Model.Snow, c.Simulation.WarmupDays

	out := ConfigYAML{
		Name: c.Name,
		Forcing: ForcingYAML{
			Path:      c.Forcing.Path,
			StartDate: c.Forcing.StartDate,
			EndDate:   c.Forcing.EndDate,
			Days:      c.Forcing.Days,
			StartDay:  c.Forcing.StartDay,
		},
		Model: ModelYAML{Nq: &nq, Kv: &kv, Snow: &snow},
		Simulation: SimulationYAML{
			WarmupDays:  &warmup,
			KeepHistory: c.Simulation.KeepHistory,
		},
		Samples: SamplesYAML{Path: c.Samples.Path, Count: c.Samples.Count},
		Storage: StorageYAML{StoreSeries: c.Storage.StoreSeries},
		Debug:   c.Debug,
	}
	if c.Storage.SQLite != nil {
		out.Storage.SQLite = &SQLiteYAML{Path: c.Storage.SQLite.Path}
	}
	if c.Storage.TimescaleDB != nil {
		out.Storage.TimescaleDB = &TimescaleDBYAML{ConnectionString: c.Storage.TimescaleDB.ConnectionString}
	}
	if c.Storage.Msgpack != nil {
		out.Storage.Msgpack = &MsgpackYAML{Path: c.Storage.Msgpack.Path}
	}
	return yaml.Marshal(&out)
}
