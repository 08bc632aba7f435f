package pfm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Row is one line of a bulletin with its 1-based line number.
type Row struct {
	Text string
	Line int
}

// Segment is one table of a block: the DATE row, the local and UTC hour
// rows, and the labelled data rows beneath them.
type Segment struct {
	DateRow  Row
	HourRow  Row
	UTCRow   Row
	Rows     []Row
	Interval time.Duration
}

// Block is the forecast for one location within a bulletin.
type Block struct {
	Code        string
	Expires     string
	Name        string
	Lat         float64
	Lon         float64
	ElevationFt int
	IssuedLine  string
	NearTerm    *Segment
	Outlook     *Segment
	Line        int
}

// Product is the bulletin-wide header that precedes the location blocks.
type Product struct {
	WMOHeader  string
	AWIPSID    string
	Office     string
	IssuedLine string
}

var (
	blockHeaderRe = regexp.MustCompile(`^([A-Z]{2}[CZ]\d{3})-(\d{6})-\s*$`)
	wmoHeaderRe   = regexp.MustCompile(`^[A-Z]{4}\d{2}\s+([A-Z]{4})\s+\d{6}`)
	awipsRe       = regexp.MustCompile(`^PFM([A-Z0-9]{3})\s*$`)
	latLonRe      = regexp.MustCompile(`^(\d{1,2}(?:\.\d+)?)([NS])\s+(\d{1,3}(?:\.\d+)?)([EW])(?:\s+ELEV\.\s+(-?\d+)\s+FT)?`)
)

// Split breaks a bulletin into its product header and location blocks.
// Problems with individual lines are reported as diagnostics; Split never
// fails outright.
func Split(text string) (Product, []Block, []Diagnostic) {
	var (
		product Product
		blocks  []Block
		diags   []Diagnostic
		cur     *Block
		seg     *Segment
		segs    []*Segment
	)

	note := func(line int, format string, args ...any) {
		d := Diagnostic{Line: line, Reason: fmt.Sprintf(format, args...)}
		if cur != nil {
			d.Block = cur.Code
		}
		diags = append(diags, d)
	}

	closeBlock := func(line int, terminated bool) {
		if cur == nil {
			return
		}
		if !terminated {
			note(line, "block is not terminated by $$")
		}
		assignSegments(cur, segs, func(format string, args ...any) { note(cur.Line, format, args...) })
		blocks = append(blocks, *cur)
		cur, seg, segs = nil, nil, nil
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		n := i + 1
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)

		if m := blockHeaderRe.FindStringSubmatch(trimmed); m != nil {
			closeBlock(n, cur == nil)
			cur = &Block{Code: m[1], Expires: m[2], Line: n}
			continue
		}

		if cur == nil {
			switch {
			case trimmed == "":
			case product.WMOHeader == "" && wmoHeaderRe.MatchString(trimmed):
				product.WMOHeader = trimmed
			case product.AWIPSID == "" && awipsRe.MatchString(trimmed):
				product.AWIPSID = trimmed
				product.Office = awipsRe.FindStringSubmatch(trimmed)[1]
			case product.IssuedLine == "" && isIssuanceLine(trimmed):
				product.IssuedLine = trimmed
			}
			continue
		}

		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "$$"):
			closeBlock(n, true)
			continue
		case strings.HasPrefix(line, "DATE"):
			seg = &Segment{DateRow: Row{Text: line, Line: n}}
			segs = append(segs, seg)
			continue
		}

		if ok, utc := isHourRow(line); ok {
			switch {
			case utc && seg != nil && seg.UTCRow.Text == "":
				seg.UTCRow = Row{Text: line, Line: n}
			case utc:
				note(n, "UTC hour row outside a table")
			default:
				if seg == nil || seg.HourRow.Text != "" {
					note(n, "hour row without a DATE row")
					seg = &Segment{}
					segs = append(segs, seg)
				}
				seg.HourRow = Row{Text: line, Line: n}
				if hr, err := parseHourRow(line); err == nil {
					seg.Interval = hr.interval
				}
			}
			continue
		}

		if seg != nil {
			seg.Rows = append(seg.Rows, Row{Text: line, Line: n})
			continue
		}

		// Header lines between the block code and the first table.
		switch {
		case isIssuanceLine(trimmed):
			cur.IssuedLine = trimmed
		case latLonRe.MatchString(trimmed):
			m := latLonRe.FindStringSubmatch(trimmed)
			cur.Lat, _ = strconv.ParseFloat(m[1], 64)
			if m[2] == "S" {
				cur.Lat = -cur.Lat
			}
			cur.Lon, _ = strconv.ParseFloat(m[3], 64)
			if m[4] == "W" {
				cur.Lon = -cur.Lon
			}
			if m[5] != "" {
				cur.ElevationFt, _ = strconv.Atoi(m[5])
			}
		case cur.Name == "":
			cur.Name = trimmed
		default:
			note(n, "unexpected header line %q", trimmed)
		}
	}
	closeBlock(len(lines), false)

	return product, blocks, diags
}

// assignSegments files a block's tables as near-term and outlook. The
// 3-hourly table is the near-term one and the 6-hourly table the outlook;
// any other cadence is taken in order of appearance.
func assignSegments(b *Block, segs []*Segment, note func(string, ...any)) {
	var rest []*Segment
	for _, s := range segs {
		switch {
		case s.HourRow.Text == "":
			note("table at line %d has no hour row", s.DateRow.Line)
		case s.Interval == 3*time.Hour && b.NearTerm == nil:
			b.NearTerm = s
		case s.Interval == 6*time.Hour && b.Outlook == nil:
			b.Outlook = s
		default:
			rest = append(rest, s)
		}
	}
	for _, s := range rest {
		switch {
		case b.NearTerm == nil:
			b.NearTerm = s
		case b.Outlook == nil:
			b.Outlook = s
		default:
			note("ignoring extra table at line %d", s.HourRow.Line)
		}
	}
}

// FindBlock returns the first block in a bulletin with the given location
// code. Matching is exact and case sensitive.
func FindBlock(text, code string) (Block, bool) {
	_, blocks, _ := Split(text)
	for _, b := range blocks {
		if b.Code == code {
			return b, true
		}
	}
	return Block{}, false
}

// Codes lists the location codes of a bulletin in order of appearance.
func Codes(text string) []string {
	_, blocks, _ := Split(text)
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Code)
	}
	return out
}
