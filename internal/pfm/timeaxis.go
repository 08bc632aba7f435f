package pfm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SegmentKind identifies the table a time axis belongs to.
type SegmentKind int

const (
	NearTerm SegmentKind = iota
	Outlook
)

func (k SegmentKind) String() string {
	if k == Outlook {
		return "outlook"
	}
	return "near-term"
}

// TimeAxis is the ordered list of forecast instants for one table, one per
// column of its grid.
type TimeAxis struct {
	Kind     SegmentKind
	Interval time.Duration
	Zone     string
	Hours    []int
	Times    []time.Time
	Columns  Columns
}

// Len returns the number of slots on the axis.
func (a TimeAxis) Len() int { return len(a.Times) }

// hourRow is a parsed hour-label row such as "EDT 3HRLY 05 08 11".
type hourRow struct {
	zone     string
	utc      bool
	interval time.Duration
	hours    []int
	minutes  []int
	ends     []int
}

var hourLabelRe = regexp.MustCompile(`^([A-Z]{1,5})\s+(\d{1,2})HRLY$`)

// isHourRow reports whether a line looks like an hour-label row and
// whether it is the UTC one.
func isHourRow(line string) (ok, utc bool) {
	label, _ := splitLabel(line, len(line))
	m := hourLabelRe.FindStringSubmatch(label)
	if m == nil {
		return false, false
	}
	return true, m[1] == "UTC" || m[1] == "GMT" || m[1] == "Z"
}

func parseHourRow(line string) (hourRow, error) {
	var h hourRow
	fs := fields(strings.TrimRight(line, " \t\r"))
	i := 0
	var label []string
	for ; i < len(fs) && !allDigits(fs[i].text); i++ {
		label = append(label, fs[i].text)
	}
	m := hourLabelRe.FindStringSubmatch(strings.Join(label, " "))
	if m == nil {
		return h, fmt.Errorf("%w: %q is not an hour-label row", ErrNoHourRow, strings.TrimSpace(line))
	}
	h.zone = m[1]
	h.utc = m[1] == "UTC" || m[1] == "GMT" || m[1] == "Z"
	n, _ := strconv.Atoi(m[2])
	h.interval = time.Duration(n) * time.Hour

	for ; i < len(fs); i++ {
		t := fs[i].text
		if !allDigits(t) || (len(t) != 1 && len(t) != 2 && len(t) != 4) {
			return h, fmt.Errorf("%w: bad hour label %q", ErrNoHourRow, t)
		}
		v, _ := strconv.Atoi(t)
		hour, minute := v, 0
		if len(t) == 4 {
			hour, minute = v/100, v%100
		}
		if hour > 23 || minute > 59 {
			return h, fmt.Errorf("%w: bad hour label %q", ErrNoHourRow, t)
		}
		h.hours = append(h.hours, hour)
		h.minutes = append(h.minutes, minute)
		h.ends = append(h.ends, fs[i].end)
	}
	if len(h.hours) == 0 {
		return h, fmt.Errorf("%w: no hour labels", ErrNoHourRow)
	}
	return h, nil
}

// civilDate is a calendar date with no time or zone attached.
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

func (c civilDate) addDays(n int) civilDate {
	return dateOf(time.Date(c.year, c.month, c.day+n, 12, 0, 0, 0, time.UTC))
}

func (c civilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", c.year, c.month, c.day)
}

// dateLabel is one "SAT 05/11/13" style label in a DATE row. center is the
// byte offset of its middle, used to find the column group it sits over.
type dateLabel struct {
	text   string
	center int
	date   civilDate
	err    error
}

var dateLabelRe = regexp.MustCompile(`\b(SUN|MON|TUE|WED|THU|FRI|SAT)\s+(\S+)`)

// parseDateRow finds the date labels of a DATE row. Labels without a year
// take it from the issuance time, rolling across a year end in either
// direction.
func parseDateRow(line string, issued time.Time) []dateLabel {
	var out []dateLabel
	for _, m := range dateLabelRe.FindAllStringSubmatchIndex(line, -1) {
		l := dateLabel{
			text:   line[m[0]:m[1]],
			center: m[0] + (m[1]-m[0])/2,
		}
		l.date, l.err = parseMonthDay(line[m[4]:m[5]], issued)
		out = append(out, l)
	}
	return out
}

func parseMonthDay(s string, issued time.Time) (civilDate, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return civilDate{}, fmt.Errorf("malformed date label %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return civilDate{}, fmt.Errorf("malformed date label %q", s)
		}
		nums[i] = v
	}
	month, day := time.Month(nums[0]), nums[1]
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return civilDate{}, fmt.Errorf("malformed date label %q", s)
	}

	var year int
	switch {
	case len(nums) == 3 && nums[2] < 100:
		year = 2000 + nums[2]
	case len(nums) == 3:
		year = nums[2]
	default:
		year = issued.Year()
		candidate := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
		ref := time.Date(issued.Year(), issued.Month(), issued.Day(), 12, 0, 0, 0, time.UTC)
		const halfYear = 183 * 24 * time.Hour
		switch {
		case ref.Sub(candidate) > halfYear:
			year++
		case candidate.Sub(ref) > halfYear:
			year--
		}
	}

	d := dateOf(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
	if d.month != month || d.day != day {
		return civilDate{}, fmt.Errorf("no such date %q", s)
	}
	return d, nil
}

// axisState is the running state of the date fold over the hour labels.
type axisState struct {
	date     civilDate
	prevHour int
}

// step advances the fold by one slot. An explicit date label replaces the
// running date and restarts inference from it; otherwise the date moves
// forward a day whenever the hour label does not increase.
func step(s axisState, hour, minute int, label *civilDate, loc *time.Location) (axisState, time.Time) {
	switch {
	case label != nil:
		s.date = *label
	case s.prevHour >= 0 && hour <= s.prevHour:
		s.date = s.date.addDays(1)
	}
	s.prevHour = hour
	return s, time.Date(s.date.year, s.date.month, s.date.day, hour, minute, 0, 0, loc)
}

// usZones maps the zone abbreviations used in PFM hour rows to their UTC
// offsets in hours.
var usZones = map[string]int{
	"UTC": 0, "GMT": 0, "Z": 0,
	"AST": -4, "ADT": -3,
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
	"AKST": -9, "AKDT": -8,
	"HST": -10,
	"SST": -11,
	"CHST": 10,
}

// zoneFor returns a fixed zone for a known abbreviation.
func zoneFor(abbr string) (*time.Location, bool) {
	off, ok := usZones[strings.ToUpper(abbr)]
	if !ok {
		return nil, false
	}
	return time.FixedZone(strings.ToUpper(abbr), off*3600), true
}

// resolveZone picks the zone hour labels are read in: a configured zone
// first, then the abbreviation in the hour row, then the offset implied by
// the UTC row.
func resolveZone(configured *time.Location, local hourRow, utc *hourRow) (*time.Location, error) {
	if configured != nil {
		return configured, nil
	}
	if loc, ok := zoneFor(local.zone); ok {
		return loc, nil
	}
	if utc != nil && len(utc.hours) > 0 {
		off := local.hours[0] - utc.hours[0]
		if off > 12 {
			off -= 24
		} else if off < -12 {
			off += 24
		}
		return time.FixedZone(local.zone, off*3600), nil
	}
	return nil, fmt.Errorf("unknown time zone %q and no UTC row to derive it from", local.zone)
}

// ResolveAxis turns the header rows of one table into absolute times. The
// date row may be empty, in which case the first day is taken from the
// issuance time. A configured location overrides the zone named in the
// hour row.
func ResolveAxis(kind SegmentKind, dateRow, hourRowText, utcRowText string, issued time.Time, loc *time.Location) (TimeAxis, []Diagnostic, error) {
	var diags []Diagnostic
	note := func(format string, args ...any) {
		diags = append(diags, Diagnostic{Segment: kind.String(), Reason: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(hourRowText) == "" {
		return TimeAxis{}, nil, ErrNoHourRow
	}
	hr, err := parseHourRow(hourRowText)
	if err != nil {
		return TimeAxis{}, nil, err
	}
	if hr.utc {
		return TimeAxis{}, nil, fmt.Errorf("%w: only a UTC hour row is present", ErrNoHourRow)
	}

	var utc *hourRow
	if strings.TrimSpace(utcRowText) != "" {
		u, err := parseHourRow(utcRowText)
		switch {
		case err != nil:
			note("ignoring UTC row: %v", err)
		case len(u.hours) != len(hr.hours):
			note("ignoring UTC row: %d labels for %d columns", len(u.hours), len(hr.hours))
		default:
			utc = &u
		}
	}

	zone, err := resolveZone(loc, hr, utc)
	if err != nil {
		return TimeAxis{}, diags, err
	}

	axis := TimeAxis{
		Kind:     kind,
		Interval: hr.interval,
		Zone:     hr.zone,
		Hours:    hr.hours,
		Columns:  newColumns(hr.ends),
		Times:    make([]time.Time, len(hr.hours)),
	}

	// Group the columns into days by hour rollover, then hang each date
	// label on the first slot of the group it is centred over.
	groups := make([]int, len(hr.hours))
	starts := []int{0}
	for k := 1; k < len(hr.hours); k++ {
		groups[k] = groups[k-1]
		if hr.hours[k] <= hr.hours[k-1] {
			groups[k]++
			starts = append(starts, k)
		}
	}

	labels := make(map[int]*civilDate)
	for _, l := range parseDateRow(dateRow, issued.In(zone)) {
		g := groups[axis.Columns.nearest(l.center)]
		if l.err != nil {
			if g == 0 {
				return TimeAxis{}, diags, fmt.Errorf("%w: %v", ErrNoAnchor, l.err)
			}
			note("ignoring date label %q: %v", l.text, l.err)
			continue
		}
		if prev, ok := labels[starts[g]]; ok && *prev != l.date {
			note("date labels %s and %q sit over the same day; keeping the first", prev, l.text)
			continue
		}
		d := l.date
		labels[starts[g]] = &d
	}

	s := axisState{date: dateOf(issued.In(zone)), prevHour: -1}
	for k := range hr.hours {
		if lbl, ok := labels[k]; ok && k > 0 {
			if inferred := inferNext(s, hr.hours[k]); inferred != *lbl {
				note("date label %s disagrees with inferred %s", lbl, inferred)
			}
		}
		s, axis.Times[k] = step(s, hr.hours[k], hr.minutes[k], labels[k], zone)
		if k > 0 && !axis.Times[k].After(axis.Times[k-1]) {
			return TimeAxis{}, diags, fmt.Errorf("%w: %s follows %s", ErrNotIncreasing,
				axis.Times[k].Format(time.RFC3339), axis.Times[k-1].Format(time.RFC3339))
		}
	}

	if utc != nil {
		for k, t := range axis.Times {
			if got := t.UTC().Hour(); got != utc.hours[k] {
				note("column %d: %02d %s is %02dZ but the UTC row says %02dZ", k, hr.hours[k], hr.zone, got, utc.hours[k])
			}
		}
	}
	return axis, diags, nil
}

// inferNext returns the date the fold would assign to the next slot without
// a label.
func inferNext(s axisState, hour int) civilDate {
	if s.prevHour >= 0 && hour <= s.prevHour {
		return s.date.addDays(1)
	}
	return s.date
}
