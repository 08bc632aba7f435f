// Package pfm parses NWS Point Forecast Matrix bulletins into per-instant
// forecast records.
//
// A bulletin holds one block per location. Each block has a near-term table
// of 3-hourly columns and an outlook table of 6-hourly columns. Values are
// right aligned under their hour label; adjacent values sometimes run
// together and are split back apart on the column grid.
package pfm

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Options control how a Parser reads bulletins. The zero value is usable.
type Options struct {
	// Method tags every record. Defaults to DefaultMethod.
	Method string
	// Office overrides the issuing office taken from the product header.
	Office string
	// Location is the zone hour labels are read in. When nil the zone
	// named in each table's hour row is used.
	Location *time.Location
	// Clock stamps records with their production time.
	Clock clockwork.Clock
}

// Parser turns bulletin text into forecast records. A Parser holds no
// mutable state and may be shared between goroutines.
type Parser struct {
	opts Options
}

// NewParser returns a Parser using opts.
func NewParser(opts Options) *Parser {
	if opts.Method == "" {
		opts.Method = DefaultMethod
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Parser{opts: opts}
}

// Result is the outcome of parsing one location out of a bulletin.
type Result struct {
	// Found is false when the bulletin has no block for the location.
	Found       bool
	Product     Product
	Block       Block
	Issued      time.Time
	Matrix      Matrix
	Records     []ForecastRecord
	Diagnostics []Diagnostic
}

// Parse extracts the forecast for one location code. The issuance time is
// supplied by the caller and must not be zero. A missing location is not an
// error: the result comes back with Found unset and no records.
func (p *Parser) Parse(text, code string, issued time.Time) (Result, error) {
	if issued.IsZero() {
		return Result{}, fmt.Errorf("%w: zero time", ErrInvalidIssuance)
	}

	product, blocks, diags := Split(text)
	res := Result{Product: product, Issued: issued, Diagnostics: diags}

	var block *Block
	for i := range blocks {
		if blocks[i].Code == code {
			block = &blocks[i]
			break
		}
	}
	if block == nil {
		return res, nil
	}
	res.Found = true
	res.Block = *block

	m, ds := BuildMatrix(*block, issued, p.opts.Location)
	res.Matrix = m
	res.Diagnostics = append(res.Diagnostics, ds...)

	office := p.opts.Office
	if office == "" {
		office = product.Office
	}
	res.Records = Synthesize(m, Meta{
		Method:   p.opts.Method,
		Office:   office,
		Location: code,
		Issued:   issued,
		Created:  p.opts.Clock.Now(),
	})
	return res, nil
}

// ParseText is Parse with the issuance time read from the bulletin itself.
func (p *Parser) ParseText(text, code string) (Result, error) {
	issued, err := IssuanceFromBulletin(text, code, p.opts.Location)
	if err != nil {
		return Result{}, err
	}
	return p.Parse(text, code, issued)
}
