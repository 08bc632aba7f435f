package pfm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// gridLine lays values out right aligned on the standard PFM grid where
// column k ends at offset 16+3k.
func gridLine(label string, values map[int]string) string {
	width := 16
	for k := range values {
		width = max(width, 16+3*k)
	}
	b := []byte(strings.Repeat(" ", width))
	copy(b, label)
	for k, v := range values {
		end := 16 + 3*k
		copy(b[end-len(v):end], v)
	}
	return strings.TrimRight(string(b), " ")
}

func hoursLine(label string, hours ...string) string {
	values := make(map[int]string, len(hours))
	for k, h := range hours {
		values[k] = h
	}
	return gridLine(label, values)
}

// putAt writes text into line starting at pos, padding as needed.
func putAt(line string, pos int, text string) string {
	if len(line) < pos+len(text) {
		line += strings.Repeat(" ", pos+len(text)-len(line))
	}
	return line[:pos] + text + line[pos+len(text):]
}

// lineStarting returns the nth line of text that starts with prefix.
func lineStarting(t *testing.T, text, prefix string, nth int) string {
	t.Helper()
	for _, l := range strings.Split(text, "\n") {
		if strings.HasPrefix(l, prefix) {
			if nth == 0 {
				return l
			}
			nth--
		}
	}
	require.FailNow(t, "no such line", "prefix %q", prefix)
	return ""
}

// insertAfter adds newLine after the first line equal to anchor.
func insertAfter(t *testing.T, text, anchor, newLine string) string {
	t.Helper()
	require.Contains(t, text, anchor+"\n")
	return strings.Replace(text, anchor+"\n", anchor+"\n"+newLine+"\n", 1)
}

var (
	edt = time.FixedZone("EDT", -4*3600)
	est = time.FixedZone("EST", -5*3600)
)

func springIssued() time.Time { return time.Date(2013, 5, 11, 10, 0, 0, 0, edt) }
func winterIssued() time.Time { return time.Date(2013, 12, 30, 4, 0, 0, 0, est) }
