package pfm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var issuanceRe = regexp.MustCompile(`^(\d{1,4})\s+(AM|PM)\s+([A-Z]{1,5})\s+(SUN|MON|TUE|WED|THU|FRI|SAT)\s+([A-Z]{3})\s+(\d{1,2})\s+(\d{4})$`)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// isIssuanceLine reports whether a line has the shape of an issuance time.
func isIssuanceLine(line string) bool {
	return issuanceRe.MatchString(strings.TrimSpace(line))
}

// ParseIssuance parses an issuance line such as "1000 AM EDT SAT MAY 11 2013".
// When loc is nil the zone abbreviation in the line is used.
func ParseIssuance(line string, loc *time.Location) (time.Time, error) {
	m := issuanceRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidIssuance, line)
	}

	hhmm, _ := strconv.Atoi(m[1])
	hour, minute := hhmm, 0
	if len(m[1]) > 2 {
		hour, minute = hhmm/100, hhmm%100
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: bad clock time %q", ErrInvalidIssuance, m[1]+" "+m[2])
	}
	hour %= 12
	if m[2] == "PM" {
		hour += 12
	}

	month, ok := months[m[5]]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: bad month %q", ErrInvalidIssuance, m[5])
	}
	day, _ := strconv.Atoi(m[6])
	year, _ := strconv.Atoi(m[7])

	if loc == nil {
		if loc, ok = zoneFor(m[3]); !ok {
			return time.Time{}, fmt.Errorf("%w: unknown time zone %q", ErrInvalidIssuance, m[3])
		}
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: no such date %s %d %d", ErrInvalidIssuance, m[5], day, year)
	}
	return t, nil
}

// IssuanceFromBulletin finds the issuance time for a block in a bulletin.
// The block's own issuance line wins over the product header's.
func IssuanceFromBulletin(text, code string, loc *time.Location) (time.Time, error) {
	product, blocks, _ := Split(text)
	for _, b := range blocks {
		if b.Code == code && b.IssuedLine != "" {
			return ParseIssuance(b.IssuedLine, loc)
		}
	}
	if product.IssuedLine != "" {
		return ParseIssuance(product.IssuedLine, loc)
	}
	return time.Time{}, fmt.Errorf("%w: no issuance line in bulletin", ErrInvalidIssuance)
}
