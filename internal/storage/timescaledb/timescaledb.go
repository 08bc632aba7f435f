package timescaledb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chrissnell/pfmforecast/internal/database"
	"github.com/chrissnell/pfmforecast/internal/pfm"
	"github.com/chrissnell/pfmforecast/internal/storage"
)

const tableName = "nws_forecasts"

// ForecastRow is one stored forecast record.
type ForecastRow struct {
	Method    string       `gorm:"primaryKey;column:method"`
	Location  string       `gorm:"primaryKey;column:location"`
	EventTS   int64        `gorm:"primaryKey;column:event_ts"`
	IssuedTS  int64        `gorm:"column:issued_ts;not null"`
	DateTime  int64        `gorm:"column:date_time;not null"`
	Office    string       `gorm:"column:office"`
	Duration  int64        `gorm:"column:duration"`
	IngestID  string       `gorm:"column:ingest_id;type:uuid"`
	Data      pgtype.JSONB `gorm:"column:data;type:jsonb;default:'{}';not null"`
	UpdatedAt time.Time    `gorm:"column:updated_at"`
}

// TableName implements gorm's Tabler.
func (ForecastRow) TableName() string {
	return tableName
}

func toRow(r pfm.ForecastRecord, ingestID string) (ForecastRow, error) {
	data, err := storage.EncodeValues(r.Values)
	if err != nil {
		return ForecastRow{}, err
	}
	row := ForecastRow{
		Method:   r.Method,
		Location: r.Location,
		EventTS:  r.EventTS,
		IssuedTS: r.IssuedTS,
		DateTime: r.DateTime,
		Office:   r.Office,
		Duration: r.Duration,
		IngestID: ingestID,
	}
	if err := row.Data.Set(data); err != nil {
		return ForecastRow{}, fmt.Errorf("encoding values for %s@%d: %w", r.Location, r.EventTS, err)
	}
	return row, nil
}

func fromRow(row ForecastRow) (pfm.ForecastRecord, error) {
	rec := pfm.ForecastRecord{
		EventTS:  row.EventTS,
		IssuedTS: row.IssuedTS,
		DateTime: row.DateTime,
		Method:   row.Method,
		Office:   row.Office,
		Location: row.Location,
		Duration: row.Duration,
	}
	var raw []byte
	if row.Data.Status == pgtype.Present {
		raw = row.Data.Bytes
	}
	values, err := storage.DecodeValues(raw)
	if err != nil {
		return pfm.ForecastRecord{}, err
	}
	rec.Values = values
	return rec, nil
}

// Repository is a storage.ForecastRepository backed by TimescaleDB.
type Repository struct {
	client *database.Client
	db     *gorm.DB
	logger *zap.SugaredLogger
}

var _ storage.ForecastRepository = (*Repository)(nil)

// New connects to TimescaleDB and prepares the forecast hypertable.
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Repository, error) {
	client := database.NewClient(connectionString, logger)
	if err := client.Connect(); err != nil {
		return nil, err
	}
	r := &Repository{client: client, db: client.DB, logger: logger}

	steps := []struct {
		what string
		sql  string
	}{
		{"forecast table", createTableSQL},
		{"TimescaleDB extension", createExtensionSQL},
		{"hypertable", createHypertableSQL},
		{"issuance index", createIssuedIndexSQL},
	}
	for _, s := range steps {
		logger.Infof("creating %s...", s.what)
		if err := r.db.WithContext(ctx).Exec(s.sql).Error; err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("could not create %s: %w", s.what, err)
		}
	}
	return r, nil
}

// Append upserts records; a stored row is only replaced by a record issued
// no earlier than it.
func (r *Repository) Append(ctx context.Context, records []pfm.ForecastRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	ingestID := uuid.NewString()
	rows := make([]ForecastRow, 0, len(records))
	for _, rec := range records {
		row, err := toRow(rec, ingestID)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "method"}, {Name: "location"}, {Name: "event_ts"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"issued_ts", "date_time", "office", "duration", "ingest_id", "data", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("excluded.issued_ts >= " + tableName + ".issued_ts"),
		}},
	}).CreateInBatches(rows, 500)
	if res.Error != nil {
		return 0, fmt.Errorf("storing forecasts: %w", res.Error)
	}
	r.logger.Debugf("stored %d of %d forecast records (ingest %s)", res.RowsAffected, len(records), ingestID)
	return res.RowsAffected, nil
}

// Query returns records matching q in event time order.
func (r *Repository) Query(ctx context.Context, q storage.Query) ([]pfm.ForecastRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	tx := r.db.WithContext(ctx).Where("method = ? AND location = ?", q.Method, q.Location)
	if !q.From.IsZero() {
		tx = tx.Where("event_ts >= ?", q.From.Unix())
	}
	if !q.To.IsZero() {
		tx = tx.Where("event_ts < ?", q.To.Unix())
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []ForecastRow
	if err := tx.Order("event_ts").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying forecasts: %w", err)
	}
	out := make([]pfm.ForecastRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Locations lists locations with records for method.
func (r *Repository) Locations(ctx context.Context, method string) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&ForecastRow{}).
		Where("method = ?", method).
		Distinct().
		Order("location").
		Pluck("location", &out).Error
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	return out, nil
}

// Prune deletes records for method whose event time is before the cutoff.
func (r *Repository) Prune(ctx context.Context, method string, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("method = ? AND event_ts < ?", method, before.Unix()).
		Delete(&ForecastRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning forecasts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Vacuum reclaims space in the forecast table.
func (r *Repository) Vacuum(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("VACUUM ANALYZE " + tableName).Error
}

// Ping checks the database connection.
func (r *Repository) Ping() error {
	return r.client.Ping()
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	return r.client.Close()
}
