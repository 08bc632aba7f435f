package pfm

import (
	"fmt"
	"time"
)

// Matrix is a block's forecast laid out on one combined time axis: the
// near-term slots followed by the outlook slots. Every parameter array has
// exactly one entry per slot, with Missing where the bulletin had nothing.
type Matrix struct {
	Times     []time.Time
	Durations []time.Duration
	Strategy  map[string]Strategy
	Params    map[string][]string
	// Order lists parameter names in the order their rows first appeared.
	Order []string
}

// Len returns the number of slots.
func (m Matrix) Len() int { return len(m.Times) }

// Column returns the values of one parameter, or nil if the bulletin has no
// such row.
func (m Matrix) Column(name string) []string { return m.Params[name] }

type resolvedSegment struct {
	seg  *Segment
	axis TimeAxis
}

// BuildMatrix resolves both tables of a block and merges their rows into a
// single matrix. Tables whose time axis cannot be resolved and rows that do
// not fit their grid are left out and reported.
func BuildMatrix(b Block, issued time.Time, loc *time.Location) (Matrix, []Diagnostic) {
	var diags []Diagnostic
	note := func(line int, kind SegmentKind, label, format string, args ...any) {
		diags = append(diags, Diagnostic{
			Line:    line,
			Block:   b.Code,
			Segment: kind.String(),
			Label:   label,
			Reason:  fmt.Sprintf(format, args...),
		})
	}

	var parts []resolvedSegment
	for _, p := range []struct {
		kind SegmentKind
		seg  *Segment
	}{{NearTerm, b.NearTerm}, {Outlook, b.Outlook}} {
		if p.seg == nil {
			continue
		}
		axis, ds, err := ResolveAxis(p.kind, p.seg.DateRow.Text, p.seg.HourRow.Text, p.seg.UTCRow.Text, issued, loc)
		for _, d := range ds {
			d.Line, d.Block = p.seg.HourRow.Line, b.Code
			diags = append(diags, d)
		}
		if err != nil {
			note(p.seg.HourRow.Line, p.kind, "", "dropping table: %v", err)
			continue
		}
		if n := len(parts); n > 0 {
			prev := parts[n-1].axis
			if !axis.Times[0].After(prev.Times[prev.Len()-1]) {
				note(p.seg.HourRow.Line, p.kind, "", "dropping table: %v", fmt.Errorf("%w: table starts at %s before the previous one ends",
					ErrNotIncreasing, axis.Times[0].Format(time.RFC3339)))
				continue
			}
		}
		parts = append(parts, resolvedSegment{seg: p.seg, axis: axis})
	}

	m := Matrix{Params: make(map[string][]string), Strategy: make(map[string]Strategy)}
	for _, p := range parts {
		m.Times = append(m.Times, p.axis.Times...)
		for range p.axis.Times {
			m.Durations = append(m.Durations, p.axis.Interval)
		}
	}

	put := func(name string, offset int, values []string, line int, kind SegmentKind) {
		col, ok := m.Params[name]
		if !ok {
			col = make([]string, m.Len())
			for i := range col {
				col[i] = Missing
			}
			m.Params[name] = col
			m.Order = append(m.Order, name)
		}
		for k, v := range values {
			if v == Missing {
				continue
			}
			if col[offset+k] != Missing {
				if col[offset+k] != v {
					note(line, kind, name, "duplicate value %q at %s, keeping %q", v,
						m.Times[offset+k].Format(time.RFC3339), col[offset+k])
				}
				continue
			}
			col[offset+k] = v
		}
	}

	offset := 0
	for _, p := range parts {
		for _, row := range p.seg.Rows {
			line, err := Tokenize(p.axis.Columns, row.Text)
			if err != nil {
				label, _ := splitLabel(row.Text, len(row.Text))
				note(row.Line, p.axis.Kind, label, "dropping row: %v", err)
				continue
			}
			if line.Label == "" {
				note(row.Line, p.axis.Kind, "", "dropping unlabelled row")
				continue
			}

			if first, second, ok := isExtremeRow(line.Label); ok {
				// The combined extreme row alternates between its two
				// parameters starting with the one named first. An explicit
				// MM takes its turn like any other value.
				a := make([]string, len(line.Values))
				c := make([]string, len(line.Values))
				next := 0
				for k, v := range line.Values {
					a[k], c[k] = Missing, Missing
					if !line.Written[k] {
						continue
					}
					if next%2 == 0 {
						a[k] = v
					} else {
						c[k] = v
					}
					next++
				}
				put(first, offset, a, row.Line, p.axis.Kind)
				put(second, offset, c, row.Line, p.axis.Kind)
				mergeStrategy(m.Strategy, first, line.Strategy)
				mergeStrategy(m.Strategy, second, line.Strategy)
				continue
			}

			name := Canonical(line.Label)
			put(name, offset, line.Values, row.Line, p.axis.Kind)
			mergeStrategy(m.Strategy, name, line.Strategy)
		}
		offset += p.axis.Len()
	}
	return m, diags
}

// mergeStrategy records the strategy for a parameter; one fixed-width row
// marks the whole parameter.
func mergeStrategy(m map[string]Strategy, name string, s Strategy) {
	m[name] = max(m[name], s)
}
