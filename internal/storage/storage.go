// Package storage defines the forecast repository shared by the storage
// backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/pfmforecast/internal/pfm"
)

var (
	// ErrUnknownBackend is returned when no storage backend is configured.
	ErrUnknownBackend = errors.New("storage: no usable backend configured")
	// ErrClosed is returned by repositories after Close.
	ErrClosed = errors.New("storage: repository is closed")
)

// Query selects forecast records for one method and location. Zero times
// leave that end of the range open; a zero Limit returns every match.
type Query struct {
	Method   string
	Location string
	// From is inclusive.
	From time.Time
	// To is exclusive.
	To    time.Time
	Limit int
}

// Validate reports whether the query names what every backend needs.
func (q Query) Validate() error {
	if q.Method == "" || q.Location == "" {
		return fmt.Errorf("storage: query needs a method and a location")
	}
	if q.Limit < 0 {
		return fmt.Errorf("storage: negative limit %d", q.Limit)
	}
	if !q.From.IsZero() && !q.To.IsZero() && !q.To.After(q.From) {
		return fmt.Errorf("storage: empty range %s to %s", q.From, q.To)
	}
	return nil
}

// ForecastRepository stores forecast records keyed by method, location and
// event time. Appending a record for a key that already exists replaces it
// only when the new record was issued no earlier than the stored one.
type ForecastRepository interface {
	// Append upserts records and returns how many rows were written.
	Append(ctx context.Context, records []pfm.ForecastRecord) (int64, error)
	// Query returns matching records ordered by event time.
	Query(ctx context.Context, q Query) ([]pfm.ForecastRecord, error)
	// Locations lists the locations that have records for a method.
	Locations(ctx context.Context, method string) ([]string, error)
	// Prune deletes records for a method whose event time is before the
	// cutoff and returns how many were removed.
	Prune(ctx context.Context, method string, before time.Time) (int64, error)
	// Vacuum reclaims space after pruning.
	Vacuum(ctx context.Context) error
	Close() error
}

// EncodeValues serialises a record's parameter values for storage.
func EncodeValues(values map[string]string) ([]byte, error) {
	if values == nil {
		values = map[string]string{}
	}
	return json.Marshal(values)
}

// DecodeValues is the inverse of EncodeValues.
func DecodeValues(b []byte) (map[string]string, error) {
	values := make(map[string]string)
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("storage: decoding values: %w", err)
	}
	return values, nil
}
