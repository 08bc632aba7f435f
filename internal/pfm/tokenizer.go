package pfm

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Missing is the sentinel bulletins use for an unavailable value. Blank
// columns in a data line are reported with it as well.
const Missing = "MM"

// Strategy reports how a data line was split into column values.
type Strategy int

const (
	// Whitespace means every whitespace-separated run sat in a single column.
	Whitespace Strategy = iota
	// FixedWidth means at least one run crossed a column boundary and was
	// cut at the column grid.
	FixedWidth
)

func (s Strategy) String() string {
	if s == FixedWidth {
		return "fixed-width"
	}
	return "whitespace"
}

// span is a run of non-blank characters with its byte offsets in the line.
type span struct {
	text       string
	start, end int
}

// fields splits a line into non-blank runs, keeping positions.
func fields(line string) []span {
	var out []span
	start := -1
	for i := 0; i < len(line); i++ {
		blank := line[i] == ' ' || line[i] == '\t'
		switch {
		case !blank && start < 0:
			start = i
		case blank && start >= 0:
			out = append(out, span{text: line[start:i], start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{text: line[start:], start: start, end: len(line)})
	}
	return out
}

// Columns is the column grid of one table. Values in a PFM are right
// aligned under the hour labels, so each column is identified by the end
// offset of its hour label and extends left to the end of the previous one.
type Columns struct {
	ends  []int
	width int
}

func newColumns(ends []int) Columns {
	c := Columns{ends: ends, width: 3}
	if len(ends) > 1 {
		w := ends[1] - ends[0]
		for k := 2; k < len(ends); k++ {
			if d := ends[k] - ends[k-1]; d < w {
				w = d
			}
		}
		if w > 0 {
			c.width = w
		}
	}
	return c
}

// Len returns the number of columns.
func (c Columns) Len() int { return len(c.ends) }

// Width returns the narrowest column width.
func (c Columns) Width() int { return c.width }

func (c Columns) start(k int) int {
	if k == 0 {
		return c.ends[0] - c.width
	}
	return c.ends[k-1]
}

// column returns the column holding byte offset pos. Offsets left of the
// first column belong to it; offsets a little past the last column are
// tolerated, anything further is not part of the grid.
func (c Columns) column(pos int) (int, bool) {
	n := len(c.ends)
	if n == 0 {
		return 0, false
	}
	if pos >= c.ends[n-1] {
		if pos < c.ends[n-1]+c.width-1 {
			return n - 1, true
		}
		return 0, false
	}
	return sort.Search(n, func(k int) bool { return pos < c.ends[k] }), true
}

// nearest returns the column closest to pos, clamping at the edges.
func (c Columns) nearest(pos int) int {
	if k, ok := c.column(pos); ok {
		return k
	}
	return len(c.ends) - 1
}

// Line is one tokenized data line.
type Line struct {
	Label  string
	Values []string
	// Written marks the columns the line filled, including those where the
	// bulletin wrote Missing itself. Blank columns are false.
	Written  []bool
	Strategy Strategy
}

var (
	rangeRe    = regexp.MustCompile(`^\d+-\d+$`)
	sentinelRe = regexp.MustCompile(`^(MM)+$`)
)

// splitLabel returns the row label and the offset where data starts. The
// label ends at the first double blank or at the start of the first column,
// whichever comes first.
func splitLabel(line string, limit int) (string, int) {
	if limit > len(line) {
		limit = len(line)
	}
	end := limit
	if i := strings.Index(line[:limit], "  "); i >= 0 {
		end = i
	}
	return strings.TrimSpace(line[:end]), end
}

// splitRun breaks a run that holds more than one value. Sign splits and
// runs of sentinels produce pieces that fill consecutive columns ending at
// the run's last column; other pieces keep their own positions.
func splitRun(r span, width int) (pieces []span, consecutive bool) {
	switch {
	case len(r.text) > len(Missing) && sentinelRe.MatchString(r.text):
		for i := 0; i < len(r.text); i += len(Missing) {
			pieces = append(pieces, span{text: r.text[i : i+len(Missing)], start: r.start + i, end: r.start + i + len(Missing)})
		}
		return pieces, true
	case rangeRe.MatchString(r.text):
		return []span{r}, false
	}

	from := 0
	for i := 1; i < len(r.text); i++ {
		if (r.text[i] == '-' || r.text[i] == '+') && isDigit(r.text[i-1]) {
			pieces = append(pieces, span{text: r.text[from:i], start: r.start + from, end: r.start + i})
			from = i
		}
	}
	if len(pieces) > 0 {
		pieces = append(pieces, span{text: r.text[from:], start: r.start + from, end: r.end})
		return pieces, true
	}

	if len(r.text) > width && allDigits(r.text) {
		// nil pieces: cut the run at the column boundaries.
		return nil, false
	}
	return []span{r}, false
}

// Tokenize splits a data line into one value per column of the grid.
// Blank columns come back as Missing. A line whose runs cannot be placed on
// the grid without two values claiming the same column is rejected with
// ErrUnreconcilable.
func Tokenize(cols Columns, line string) (Line, error) {
	n := cols.Len()
	if n == 0 {
		return Line{}, ErrNoHourRow
	}
	line = strings.TrimRight(line, " \t\r")
	label, dataStart := splitLabel(line, cols.start(0))
	out := Line{Label: label, Values: make([]string, n), Written: make([]bool, n)}

	set := func(k int, v string) error {
		if k < 0 || k >= n {
			return fmt.Errorf("%w: value %q falls outside the %d columns", ErrUnreconcilable, v, n)
		}
		if out.Values[k] != "" {
			return fmt.Errorf("%w: values %q and %q share column %d", ErrUnreconcilable, out.Values[k], v, k)
		}
		out.Values[k] = v
		out.Written[k] = true
		return nil
	}

	for _, r := range fields(line[dataStart:]) {
		r.start += dataStart
		r.end += dataStart
		last, ok := cols.column(r.end - 1)
		if !ok {
			return Line{}, fmt.Errorf("%w: %q extends past the last column", ErrUnreconcilable, r.text)
		}

		pieces, consecutive := splitRun(r, cols.Width())
		switch {
		case pieces == nil:
			// Digits that ran together; cut them at the column boundaries.
			out.Strategy = FixedWidth
			end := r.end
			for k := last; end > r.start; k-- {
				if k < 0 {
					return Line{}, fmt.Errorf("%w: %q is wider than the grid", ErrUnreconcilable, r.text)
				}
				start := max(r.start, cols.start(k))
				if start < end {
					if err := set(k, line[start:end]); err != nil {
						return Line{}, err
					}
				}
				end = start
			}
		case consecutive:
			out.Strategy = FixedWidth
			for i, p := range pieces {
				if err := set(last-(len(pieces)-1-i), p.text); err != nil {
					return Line{}, err
				}
			}
		default:
			if err := set(last, pieces[0].text); err != nil {
				return Line{}, err
			}
		}
	}

	for k, v := range out.Values {
		if v == "" {
			out.Values[k] = Missing
		}
	}
	return out, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
