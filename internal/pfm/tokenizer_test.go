package pfm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/pfmforecast/internal/pfm/testdata"
)

func columnsFor(t *testing.T, header string) Columns {
	t.Helper()
	hr, err := parseHourRow(header)
	require.NoError(t, err)
	return newColumns(hr.ends)
}

func eightColumns(t *testing.T) Columns {
	return columnsFor(t, hoursLine("EDT 3HRLY", "05", "08", "11", "14", "17", "20", "23", "02"))
}

func TestTokenizeRightAligned(t *testing.T) {
	cols := eightColumns(t)
	require.Equal(t, 8, cols.Len())
	require.Equal(t, 3, cols.Width())

	line, err := Tokenize(cols, gridLine("TEMP", map[int]string{0: "5", 3: "12", 7: "-3"}))
	require.NoError(t, err)
	assert.Equal(t, "TEMP", line.Label)
	assert.Equal(t, []string{"5", "MM", "MM", "12", "MM", "MM", "MM", "-3"}, line.Values)
	assert.Equal(t, Whitespace, line.Strategy)
}

func TestTokenizeDigitsRunTogether(t *testing.T) {
	cols := eightColumns(t)
	line, err := Tokenize(cols, gridLine("RH", map[int]string{1: "78", 2: "93", 3: "100", 4: "93"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"MM", "78", "93", "100", "93", "MM", "MM", "MM"}, line.Values)
	assert.Equal(t, FixedWidth, line.Strategy)
}

func TestTokenizeSignsRunTogether(t *testing.T) {
	cols := eightColumns(t)
	line, err := Tokenize(cols, gridLine("WIND CHILL", map[int]string{0: "-8", 1: "-12", 2: "-15", 3: "-17", 5: "3"}))
	require.NoError(t, err)
	assert.Equal(t, "WIND CHILL", line.Label)
	assert.Equal(t, []string{"-8", "-12", "-15", "-17", "MM", "3", "MM", "MM"}, line.Values)
	assert.Equal(t, FixedWidth, line.Strategy)
}

func TestTokenizeRangesAreKept(t *testing.T) {
	cols := eightColumns(t)
	line, err := Tokenize(cols, gridLine("SNOW 12HR", map[int]string{1: "00-00", 5: "1-2"}))
	require.NoError(t, err)
	assert.Equal(t, "00-00", line.Values[1])
	assert.Equal(t, "MM", line.Values[0])
	assert.Equal(t, "1-2", line.Values[5])
	assert.Equal(t, Whitespace, line.Strategy)
}

func TestTokenizeDecimalCrossingColumnStart(t *testing.T) {
	cols := eightColumns(t)
	line, err := Tokenize(cols, gridLine("QPF 12HR", map[int]string{2: "0.20", 6: "0"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"MM", "MM", "0.20", "MM", "MM", "MM", "0", "MM"}, line.Values)
}

func TestTokenizeSentinelRun(t *testing.T) {
	cols := eightColumns(t)
	line, err := Tokenize(cols, "TEMP"+strings.Repeat(" ", 10)+"18 MMMM 20")
	require.NoError(t, err)
	assert.Equal(t, []string{"18", "MM", "MM", "20", "MM", "MM", "MM", "MM"}, line.Values)
	assert.Equal(t, FixedWidth, line.Strategy)
}

func TestTokenizeMarksWrittenColumns(t *testing.T) {
	cols := eightColumns(t)
	line, err := Tokenize(cols, gridLine("MAX/MIN", map[int]string{1: "MM", 5: "55"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"MM", "MM", "MM", "MM", "MM", "55", "MM", "MM"}, line.Values)
	assert.Equal(t, []bool{false, true, false, false, false, true, false, false}, line.Written)

	line, err = Tokenize(cols, "TEMP"+strings.Repeat(" ", 10)+"18 MMMM 20")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true, true, false, false, false, false}, line.Written)
}

func TestTokenizeShortLine(t *testing.T) {
	line, err := Tokenize(eightColumns(t), "TSTMS")
	require.NoError(t, err)
	assert.Equal(t, "TSTMS", line.Label)
	for _, v := range line.Values {
		assert.Equal(t, Missing, v)
	}
}

func TestTokenizeUnreconcilable(t *testing.T) {
	cols := columnsFor(t, hoursLine("EDT 3HRLY", "05", "08", "11"))

	tests := []struct {
		name string
		line string
	}{
		{"past last column", gridLine("TEMP", map[int]string{0: "50", 1: "51", 2: "52", 3: "53"})},
		{"more values than columns", "TEMP" + strings.Repeat(" ", 10) + "-1-2-3-4"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Tokenize(cols, tc.line)
			assert.ErrorIs(t, err, ErrUnreconcilable)
		})
	}
}

func TestTokenizeBulletinRows(t *testing.T) {
	spring := testdata.Spring(t)
	cols := columnsFor(t, lineStarting(t, spring, "EDT 3HRLY", 0))
	require.Equal(t, 22, cols.Len())

	rh, err := Tokenize(cols, lineStarting(t, spring, "RH ", 0))
	require.NoError(t, err)
	assert.Equal(t, "93", rh.Values[6])
	assert.Equal(t, "100", rh.Values[7])
	assert.Equal(t, "93", rh.Values[8])
	assert.Equal(t, FixedWidth, rh.Strategy)

	winter := testdata.Winter(t)
	cols = columnsFor(t, lineStarting(t, winter, "EST 3HRLY", 0))
	chill, err := Tokenize(cols, lineStarting(t, winter, "WIND CHILL", 0))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-2", "0", "3", "-8", "MM", "MM", "-120", "-120", "-120", "-120", "-9",
		"-5", "-3", "-8", "-12", "-15", "-17", "-14", "-6", "-3", "-9", "-14",
	}, chill.Values)
	assert.Equal(t, FixedWidth, chill.Strategy)
}
