package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/pfmforecast/internal/pfm"
	"github.com/chrissnell/pfmforecast/internal/storage"
)

// Source is the read side of a forecast repository.
type Source interface {
	Query(ctx context.Context, q storage.Query) ([]pfm.ForecastRecord, error)
	Locations(ctx context.Context, method string) ([]string, error)
}

// Service answers period and day queries for one forecast method.
type Service struct {
	source Source
	loc    *time.Location
	method string
}

// NewService returns a Service reading from source. Days are split at
// midnight in loc.
func NewService(source Source, loc *time.Location, method string) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if method == "" {
		method = pfm.DefaultMethod
	}
	return &Service{source: source, loc: loc, method: method}
}

// Method returns the method tag the service reads.
func (s *Service) Method() string { return s.method }

// Location returns the zone days are split in.
func (s *Service) Location() *time.Location { return s.loc }

// WithMethod returns a copy of the service reading another method.
func (s *Service) WithMethod(method string) *Service {
	if method == "" || method == s.method {
		return s
	}
	c := *s
	c.method = method
	return &c
}

// Periods returns up to max records for location at or after from.
func (s *Service) Periods(ctx context.Context, location string, from time.Time, max int) ([]pfm.ForecastRecord, error) {
	if max < 1 {
		return nil, fmt.Errorf("period count must be positive, got %d", max)
	}
	return s.source.Query(ctx, storage.Query{
		Method:   s.method,
		Location: location,
		From:     from,
		Limit:    max,
	})
}

// dayBounds returns local midnight of ts's day and of the day n days later.
func (s *Service) dayBounds(ts time.Time, n int) (time.Time, time.Time) {
	y, m, d := ts.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc), time.Date(y, m, d+n, 0, 0, 0, 0, s.loc)
}

// Summary aggregates the day containing ts. When periods already holds
// records for that day they are used instead of querying again. A day with
// no records returns nil.
func (s *Service) Summary(ctx context.Context, location string, ts time.Time, periods []pfm.ForecastRecord) (*DaySummary, error) {
	start, end := s.dayBounds(ts, 1)

	var day []pfm.ForecastRecord
	for _, r := range periods {
		if t := r.Time(); r.Location == location && !t.Before(start) && t.Before(end) {
			day = append(day, r)
		}
	}
	if len(day) == 0 {
		var err error
		day, err = s.source.Query(ctx, storage.Query{Method: s.method, Location: location, From: start, To: end})
		if err != nil {
			return nil, err
		}
	}
	if len(day) == 0 {
		return nil, nil
	}
	sum := Summarize(day, s.loc)
	return &sum, nil
}

// Days returns summaries for up to n days starting with the day holding
// from. Days without records are left out.
func (s *Service) Days(ctx context.Context, location string, from time.Time, n int) ([]DaySummary, error) {
	if n < 1 {
		return nil, fmt.Errorf("day count must be positive, got %d", n)
	}
	start, end := s.dayBounds(from, n)
	records, err := s.source.Query(ctx, storage.Query{Method: s.method, Location: location, From: start, To: end})
	if err != nil {
		return nil, err
	}
	return Aggregate(records, s.loc), nil
}

// Locations lists the locations with stored records.
func (s *Service) Locations(ctx context.Context) ([]string, error) {
	return s.source.Locations(ctx, s.method)
}
