package pfm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIssuance is returned when no usable issuance time is available.
	ErrInvalidIssuance = errors.New("pfm: invalid issuance time")
	// ErrNoHourRow is returned when a table has no hour-label row to anchor its columns.
	ErrNoHourRow = errors.New("pfm: table has no hour-label row")
	// ErrNoAnchor is returned when the first day of a table cannot be dated.
	ErrNoAnchor = errors.New("pfm: no date anchor for table")
	// ErrUnreconcilable is returned when a data line does not fit the column grid.
	ErrUnreconcilable = errors.New("pfm: data line does not fit column grid")
	// ErrNotIncreasing is returned when resolved slot times go backwards.
	ErrNotIncreasing = errors.New("pfm: resolved times are not strictly increasing")
)

// Diagnostic records a non-fatal problem found while parsing a bulletin.
// Diagnostics never abort a parse; they describe what was skipped or
// assumed.
type Diagnostic struct {
	// Line is the 1-based line number in the bulletin, or 0 when the
	// problem is not tied to one line.
	Line    int    `json:"line,omitempty"`
	Block   string `json:"block,omitempty"`
	Segment string `json:"segment,omitempty"`
	Label   string `json:"label,omitempty"`
	Reason  string `json:"reason"`
}

func (d Diagnostic) String() string {
	s := d.Reason
	if d.Label != "" {
		s = fmt.Sprintf("%s: %s", d.Label, s)
	}
	if d.Segment != "" {
		s = fmt.Sprintf("[%s] %s", d.Segment, s)
	}
	if d.Block != "" {
		s = fmt.Sprintf("%s %s", d.Block, s)
	}
	if d.Line > 0 {
		s = fmt.Sprintf("line %d: %s", d.Line, s)
	}
	return s
}
