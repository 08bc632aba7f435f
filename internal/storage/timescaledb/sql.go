package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS nws_forecasts (
    method text NOT NULL,
    location text NOT NULL,
    event_ts bigint NOT NULL,
    issued_ts bigint NOT NULL,
    date_time bigint NOT NULL,
    office text NOT NULL DEFAULT '',
    duration bigint NOT NULL DEFAULT 0,
    ingest_id uuid NULL,
    data jsonb NOT NULL DEFAULT '{}',
    updated_at timestamp WITH TIME ZONE NOT NULL DEFAULT now(),
    PRIMARY KEY (method, location, event_ts)
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

// event_ts holds epoch seconds, so the chunk interval is a week in seconds.
const createHypertableSQL = `SELECT create_hypertable('nws_forecasts', 'event_ts', chunk_time_interval => 604800, if_not_exists => TRUE, migrate_data => TRUE);`

const createIssuedIndexSQL = `CREATE INDEX IF NOT EXISTS nws_forecasts_issued_idx ON nws_forecasts (method, location, issued_ts);`
