package config

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	name          TEXT PRIMARY KEY,
	forcing_path  TEXT NOT NULL,
	start_date    TEXT,
	end_date      TEXT,
	days          INTEGER NOT NULL DEFAULT 0,
	start_day     INTEGER NOT NULL DEFAULT 0,
	nq            INTEGER NOT NULL DEFAULT 1,
	kv            REAL NOT NULL DEFAULT 1.0,
	snow          INTEGER NOT NULL DEFAULT 1,
	warmup_days   INTEGER NOT NULL DEFAULT 365,
	keep_history  INTEGER NOT NULL DEFAULT 0,
	samples_path  TEXT,
	samples_count INTEGER NOT NULL DEFAULT 0,
	store_series  INTEGER NOT NULL DEFAULT 0,
	debug         INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_storage (
	run_name     TEXT NOT NULL REFERENCES runs(name) ON DELETE CASCADE,
	backend_type TEXT NOT NULL,
	enabled      INTEGER NOT NULL DEFAULT 1,
	path         TEXT,
	connection_string TEXT,
	PRIMARY KEY (run_name, backend_type)
);
`

// SQLiteProvider implements ConfigProvider for run configurations kept in a SQLite database.
// One database holds any number of named runs.
type SQLiteProvider struct {
	db      *sql.DB
	dbPath  string
	runName string
}

// NewSQLiteProvider creates a new SQLite configuration provider for the run named runName,
// creating the schema if needed.
func NewSQLiteProvider(dbPath, runName string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create configuration schema: %w", err)
	}

	if runName == "" {
		runName = DefaultRunName
	}

	return &SQLiteProvider{
		db:      db,
		dbPath:  dbPath,
		runName: runName,
	}, nil
}

// LoadConfig loads the complete configuration of the provider's run
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	query := `
		SELECT name, forcing_path, start_date, end_date, days, start_day,
		       nq, kv, snow, warmup_days, keep_history,
		       samples_path, samples_count, store_series, debug
		FROM runs
		WHERE name = ?
	`

	config := NewDefaultConfig()
	var startDate, endDate, samplesPath sql.NullString

	err := s.db.QueryRow(query, s.runName).Scan(
		&config.Name, &config.Forcing.Path, &startDate, &endDate,
		&config.Forcing.Days, &config.Forcing.StartDay,
		&config.Model.Nq, &config.Model.Kv, &config.Model.Snow,
		&config.Simulation.WarmupDays, &config.Simulation.KeepHistory,
		&samplesPath, &config.Samples.Count, &config.Storage.StoreSeries, &config.Debug,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.runName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", s.runName, err)
	}

	// Convert nullable string fields to empty strings if NULL
	if startDate.Valid {
		config.Forcing.StartDate = startDate.String
	}
	if endDate.Valid {
		config.Forcing.EndDate = endDate.String
	}
	if samplesPath.Valid {
		config.Samples.Path = samplesPath.String
	}

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	storage.StoreSeries = config.Storage.StoreSeries
	config.Storage = *storage

	return config, nil
}

// GetForcingConfig returns forcing configuration from the database
func (s *SQLiteProvider) GetForcingConfig() (*ForcingData, error) {
	config, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Forcing, nil
}

// GetStorageConfig returns the enabled storage backends of the run
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend_type, path, connection_string
		FROM run_storage
		WHERE run_name = ? AND enabled = 1
	`

	rows, err := s.db.Query(query, s.runName)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backendType string
		var path, connectionString sql.NullString

		if err := rows.Scan(&backendType, &path, &connectionString); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "sqlite":
			storage.SQLite = &SQLiteData{Path: path.String}
		case "msgpack":
			storage.Msgpack = &MsgpackData{Path: path.String}
		case "timescaledb":
			storage.TimescaleDB = &TimescaleDBData{ConnectionString: connectionString.String}
		default:
			return nil, fmt.Errorf("unknown storage backend %q", backendType)
		}
	}

	return storage, rows.Err()
}

// ListRuns returns the names of every stored run
func (s *SQLiteProvider) ListRuns() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM runs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig stores configData under its own name, replacing any run of the same name
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	name := configData.Name
	if name == "" {
		name = DefaultRunName
	}

	// Start transaction
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM run_storage WHERE run_name = ?", name); err != nil {
		return fmt.Errorf("failed to clear existing storage configs: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO runs (
			name, forcing_path, start_date, end_date, days, start_day,
			nq, kv, snow, warmup_days, keep_history,
			samples_path, samples_count, store_series, debug, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`
	_, err = tx.Exec(query,
		name, configData.Forcing.Path,
		nullString(configData.Forcing.StartDate), nullString(configData.Forcing.EndDate),
		configData.Forcing.Days, configData.Forcing.StartDay,
		configData.Model.Nq, configData.Model.Kv, configData.Model.Snow,
		configData.Simulation.WarmupDays, configData.Simulation.KeepHistory,
		nullString(configData.Samples.Path), configData.Samples.Count,
		configData.Storage.StoreSeries, configData.Debug,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", name, err)
	}

	if err := s.insertStorageConfigs(tx, name, &configData.Storage); err != nil {
		return fmt.Errorf("failed to insert storage configs: %w", err)
	}

	// Commit transaction
	return tx.Commit()
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, runName string, storage *StorageData) error {
	query := `
		INSERT INTO run_storage (run_name, backend_type, enabled, path, connection_string)
		VALUES (?, ?, 1, ?, ?)
	`

	if storage.SQLite != nil {
		if _, err := tx.Exec(query, runName, "sqlite", storage.SQLite.Path, nil); err != nil {
			return err
		}
	}
	if storage.Msgpack != nil {
		if _, err := tx.Exec(query, runName, "msgpack", storage.Msgpack.Path, nil); err != nil {
			return err
		}
	}
	if storage.TimescaleDB != nil {
		if _, err := tx.Exec(query, runName, "timescaledb", nil, storage.TimescaleDB.ConnectionString); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRun removes a run and its storage configuration
func (s *SQLiteProvider) DeleteRun(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM run_storage WHERE run_name = ?", name); err != nil {
		return fmt.Errorf("failed to delete storage configs: %w", err)
	}

	result, err := tx.Exec("DELETE FROM runs WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
