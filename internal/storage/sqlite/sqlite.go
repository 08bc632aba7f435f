// Package sqlite stores forecast records in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/pfmforecast/internal/pfm"
	"github.com/chrissnell/pfmforecast/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS forecasts (
	method     TEXT    NOT NULL,
	location   TEXT    NOT NULL,
	event_ts   INTEGER NOT NULL,
	issued_ts  INTEGER NOT NULL,
	date_time  INTEGER NOT NULL,
	office     TEXT    NOT NULL DEFAULT '',
	duration   INTEGER NOT NULL DEFAULT 0,
	ingest_id  TEXT    NOT NULL DEFAULT '',
	data       TEXT    NOT NULL DEFAULT '{}',
	PRIMARY KEY (method, location, event_ts)
);
CREATE INDEX IF NOT EXISTS idx_forecasts_issued ON forecasts(method, location, issued_ts);
`

const upsert = `
INSERT INTO forecasts (method, location, event_ts, issued_ts, date_time, office, duration, ingest_id, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(method, location, event_ts) DO UPDATE SET
	issued_ts = excluded.issued_ts,
	date_time = excluded.date_time,
	office    = excluded.office,
	duration  = excluded.duration,
	ingest_id = excluded.ingest_id,
	data      = excluded.data
WHERE excluded.issued_ts >= forecasts.issued_ts
`

// Repository is a storage.ForecastRepository backed by SQLite.
type Repository struct {
	db     *sql.DB
	path   string
	logger *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

var _ storage.ForecastRepository = (*Repository)(nil)

// Open opens or creates the database at path and makes sure the schema
// exists.
func Open(path string, logger *zap.SugaredLogger) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serialises writers; SQLite allows one at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Infof("opened SQLite forecast store at %s", path)
	return &Repository{db: db, path: path, logger: logger}, nil
}

func (r *Repository) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return storage.ErrClosed
	}
	return nil
}

// Append upserts records in one transaction. Every row written by a call
// shares an ingest id so a bulletin's rows can be traced together.
func (r *Repository) Append(ctx context.Context, records []pfm.ForecastRecord) (int64, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ingestID := uuid.NewString()
	var written int64
	for _, rec := range records {
		data, err := storage.EncodeValues(rec.Values)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, rec.Method, rec.Location, rec.EventTS, rec.IssuedTS,
			rec.DateTime, rec.Office, rec.Duration, ingestID, string(data))
		if err != nil {
			return 0, fmt.Errorf("upsert %s/%s@%d: %w", rec.Method, rec.Location, rec.EventTS, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.logger.Debugf("stored %d of %d forecast records (ingest %s)", written, len(records), ingestID)
	return written, nil
}

// Query returns records matching q in event time order.
func (r *Repository) Query(ctx context.Context, q storage.Query) ([]pfm.ForecastRecord, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		where = []string{"method = ?", "location = ?"}
		args  = []any{q.Method, q.Location}
	)
	if !q.From.IsZero() {
		where = append(where, "event_ts >= ?")
		args = append(args, q.From.Unix())
	}
	if !q.To.IsZero() {
		where = append(where, "event_ts < ?")
		args = append(args, q.To.Unix())
	}
	query := `SELECT method, location, event_ts, issued_ts, date_time, office, duration, data
		FROM forecasts WHERE ` + strings.Join(where, " AND ") + ` ORDER BY event_ts`
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []pfm.ForecastRecord
	for rows.Next() {
		var (
			rec  pfm.ForecastRecord
			data string
		)
		if err := rows.Scan(&rec.Method, &rec.Location, &rec.EventTS, &rec.IssuedTS,
			&rec.DateTime, &rec.Office, &rec.Duration, &data); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		if rec.Values, err = storage.DecodeValues([]byte(data)); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Locations lists locations with records for method.
func (r *Repository) Locations(ctx context.Context, method string) ([]string, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT location FROM forecasts WHERE method = ? ORDER BY location", method)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// Prune deletes records for method whose event time is before the cutoff.
func (r *Repository) Prune(ctx context.Context, method string, before time.Time) (int64, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM forecasts WHERE method = ? AND event_ts < ?", method, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune forecasts: %w", err)
	}
	return res.RowsAffected()
}

// Vacuum rebuilds the database file.
func (r *Repository) Vacuum(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Ping checks that the database is usable.
func (r *Repository) Ping() error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	return r.db.Ping()
}

// Close closes the database. Further calls fail with storage.ErrClosed.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
