package timescaledb

const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id text PRIMARY KEY,
    name text NOT NULL,
    forcing_path text NULL,
    gage_id text NULL,
    latitude float8 NOT NULL,
    start_date date NOT NULL,
    days integer NOT NULL,
    start_day integer NOT NULL,
    nq integer NOT NULL,
    kv float8 NOT NULL,
    snow boolean NOT NULL,
    warmup_days integer NOT NULL,
    started_at timestamp WITH TIME ZONE NOT NULL
);`

const createEvaluationsTableSQL = `
CREATE TABLE IF NOT EXISTS evaluations (
    run_id text NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    sample integer NOT NULL,
    status text NOT NULL,
    error text NULL,
    ks float8 NULL,
    kq float8 NULL,
    ddf float8 NULL,
    tb float8 NULL,
    tth float8 NULL,
    alpha float8 NULL,
    b float8 NULL,
    huz float8 NULL,
    summary_days integer NULL,
    sum_q float8 NULL,
    sum_observed float8 NULL,
    missing_observed integer NULL,
    sum_precip float8 NULL,
    sum_ae float8 NULL,
    mean_q float8 NULL,
    runoff_ratio float8 NULL,
    evaluated_at timestamp WITH TIME ZONE NOT NULL,
    PRIMARY KEY (run_id, sample)
);`

const createDischargeTableSQL = `
CREATE TABLE IF NOT EXISTS discharge (
    time timestamp WITH TIME ZONE NOT NULL,
    run_id text NOT NULL,
    sample integer NOT NULL,
    q float8 NOT NULL
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('discharge', 'time', if_not_exists => true, migrate_data => true);`

const createDischargeIndexSQL = `CREATE INDEX IF NOT EXISTS discharge_run_sample_idx ON discharge (run_id, sample, time DESC);`

// Yearly discharge totals per evaluation, the usual basis for comparing calibration candidates.
const createYearlyViewSQL = `
CREATE MATERIALIZED VIEW IF NOT EXISTS discharge_1y
WITH (timescaledb.continuous, timescaledb.materialized_only = false) AS
SELECT
    time_bucket('1 year', time) AS bucket,
    run_id,
    sample,
    sum(q) AS sum_q,
    avg(q) AS mean_q,
    max(q) AS max_q
FROM discharge
GROUP BY bucket, run_id, sample
WITH NO DATA;`
