package pfm

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/pfmforecast/internal/pfm/testdata"
)

var parsedAt = time.Date(2013, 5, 11, 14, 5, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParser(Options{Clock: clockwork.NewFakeClockAt(parsedAt)})
}

func value(t *testing.T, r ForecastRecord, name string) string {
	t.Helper()
	v, ok := r.Value(name)
	require.True(t, ok, "%s missing at %s", name, r.Time())
	return v
}

func TestParseSpring(t *testing.T) {
	res, err := newTestParser().Parse(testdata.Spring(t), "CTZ002", springIssued())
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, "WINDSOR LOCKS-HARTFORD CT", res.Block.Name)

	recs := res.Records
	require.Len(t, recs, 38)
	require.Equal(t, 38, res.Matrix.Len())

	first := recs[0]
	assert.Equal(t, time.Date(2013, 5, 11, 5, 0, 0, 0, edt).Unix(), first.EventTS)
	assert.Equal(t, springIssued().Unix(), first.IssuedTS)
	assert.Equal(t, parsedAt.Unix(), first.DateTime)
	assert.Equal(t, "NWS", first.Method)
	assert.Equal(t, "BOX", first.Office)
	assert.Equal(t, "CTZ002", first.Location)
	assert.Equal(t, int64(3*3600), first.Duration)
	_, ok := first.Temp()
	assert.False(t, ok, "TEMP starts three columns in")

	assert.Equal(t, "68", value(t, recs[3], ParamTemp))
	assert.Equal(t, "71", value(t, recs[5], ParamTempMax))
	assert.Equal(t, "55", value(t, recs[9], ParamTempMin))
	assert.Equal(t, "70", value(t, recs[13], ParamTempMax))
	assert.Equal(t, "93", value(t, recs[6], ParamHumidity))
	assert.Equal(t, "100", value(t, recs[7], ParamHumidity))
	assert.Equal(t, "0.20", value(t, recs[5], ParamQPF12))
	assert.Equal(t, "0", value(t, recs[9], ParamQPF12))
	assert.Equal(t, "22", value(t, recs[9], ParamWindGust))
	assert.Equal(t, "S", value(t, recs[3], ParamWindDir))
	assert.Equal(t, "D", value(t, recs[3], ParamRainShowers))
	assert.Equal(t, "2", value(t, recs[3], "LAL"))
	_, ok = recs[10].Value(ParamRainShowers)
	assert.False(t, ok)

	assert.Equal(t, FixedWidth, res.Matrix.Strategy[ParamHumidity])
	assert.Equal(t, Whitespace, res.Matrix.Strategy[ParamTemp])

	// Outlook slots follow the near-term ones and use canonical names.
	out := recs[22]
	assert.Equal(t, time.Date(2013, 5, 14, 2, 0, 0, 0, edt).Unix(), out.EventTS)
	assert.Equal(t, int64(6*3600), out.Duration)
	assert.Equal(t, "41", value(t, out, ParamTemp))
	assert.Equal(t, "SC", value(t, out, ParamClouds))
	assert.Equal(t, "38", value(t, recs[23], ParamTempMin))
	assert.Equal(t, "63", value(t, recs[25], ParamTempMax))
	assert.Equal(t, "W", value(t, recs[23], ParamWindDir))
	assert.Equal(t, "GN", value(t, recs[23], ParamWindChar))
	assert.Equal(t, "C", value(t, recs[30], ParamRainShowers))
}

func TestParseWinter(t *testing.T) {
	res, err := newTestParser().ParseText(testdata.Winter(t), "MAZ014")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.True(t, winterIssued().Equal(res.Issued))
	assert.Empty(t, res.Diagnostics)

	recs := res.Records
	require.Len(t, recs, 38)

	assert.Equal(t, time.Date(2014, 1, 1, 1, 0, 0, 0, est).Unix(), recs[14].EventTS)
	assert.Equal(t, time.Date(2014, 1, 2, 1, 0, 0, 0, est).Unix(), recs[22].EventTS)

	// MM is absent, not a value.
	_, ok := recs[2].Value(ParamTemp)
	assert.False(t, ok)
	_, ok = recs[2].Value(ParamDewpoint)
	assert.False(t, ok)

	for k := 6; k <= 9; k++ {
		assert.Equal(t, "-120", value(t, recs[k], ParamWindChill))
	}
	_, ok = recs[4].Value(ParamWindChill)
	assert.False(t, ok)
	assert.Equal(t, "-12", value(t, recs[14], ParamWindChill))
	assert.Equal(t, "-14", value(t, recs[21], ParamWindChill))
	assert.Equal(t, "-20", value(t, recs[11], ParamMinChill))
	assert.Equal(t, FixedWidth, res.Matrix.Strategy[ParamWindChill])

	assert.Equal(t, "00-00", value(t, recs[4], ParamSnow12))
	assert.Equal(t, "1-2", value(t, recs[8], ParamSnow12))
	lo, hi, ok := recs[12].Range(ParamSnow12)
	require.True(t, ok)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 4.0, hi)

	assert.Equal(t, "F", value(t, recs[0], ParamObvis))
	assert.Equal(t, "PF", value(t, recs[1], ParamObvis))

	assert.Equal(t, "2", value(t, recs[23], ParamTempMin))
	assert.Equal(t, "15", value(t, recs[25], ParamTempMax))
	assert.Equal(t, "-3", value(t, recs[27], ParamTempMin))
	assert.Equal(t, "-2", value(t, recs[27], ParamTemp))
}

func TestParseExtremeRowWithSentinel(t *testing.T) {
	text := testdata.Spring(t)
	for _, r := range [][2]string{
		{"MAX/MIN                      71", "MAX/MIN                      MM"},
		{"MIN/MAX          38", "MIN/MAX          MM"},
	} {
		require.Contains(t, text, r[0])
		text = strings.Replace(text, r[0], r[1], 1)
	}

	res, err := newTestParser().Parse(text, "CTZ002", springIssued())
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
	recs := res.Records
	require.Len(t, recs, 38)

	// Near-term table: the missing max keeps its slot.
	_, ok := recs[5].Value(ParamTempMax)
	assert.False(t, ok)
	_, ok = recs[5].Value(ParamTempMin)
	assert.False(t, ok)
	assert.Equal(t, "55", value(t, recs[9], ParamTempMin))
	_, ok = recs[9].Value(ParamTempMax)
	assert.False(t, ok)
	assert.Equal(t, "70", value(t, recs[13], ParamTempMax))
	assert.Equal(t, "46", value(t, recs[17], ParamTempMin))

	// Outlook table: the missing min keeps its slot.
	_, ok = recs[23].Value(ParamTempMin)
	assert.False(t, ok)
	assert.Equal(t, "63", value(t, recs[25], ParamTempMax))
	_, ok = recs[25].Value(ParamTempMin)
	assert.False(t, ok)
	assert.Equal(t, "43", value(t, recs[27], ParamTempMin))

	flat := recs[5].Flat()
	assert.Nil(t, flat["tempMax"])
}

func TestParseMatrixInvariants(t *testing.T) {
	for name, text := range map[string]string{
		"spring": testdata.Spring(t),
		"winter": testdata.Winter(t),
	} {
		t.Run(name, func(t *testing.T) {
			p := newTestParser()
			for _, code := range Codes(text) {
				res, err := p.ParseText(text, code)
				require.NoError(t, err)

				m := res.Matrix
				assertIncreasing(t, m.Times)
				require.Len(t, m.Durations, m.Len())
				for param, col := range m.Params {
					assert.Len(t, col, m.Len(), param)
				}

				require.Len(t, res.Records, m.Len())
				for _, r := range res.Records {
					for param, v := range r.Values {
						assert.NotEqual(t, Missing, v, param)
						assert.NotEmpty(t, v, param)
					}
				}
			}
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	spring := testdata.Spring(t)
	a, err := newTestParser().Parse(spring, "MAZ005", springIssued())
	require.NoError(t, err)
	b, err := newTestParser().Parse(spring, "MAZ005", springIssued())
	require.NoError(t, err)
	assert.Equal(t, a.Records, b.Records)
}

func TestParseLocationNotFound(t *testing.T) {
	res, err := newTestParser().Parse(testdata.Spring(t), "RIZ001", springIssued())
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Records)
}

func TestParseZeroIssuance(t *testing.T) {
	_, err := newTestParser().Parse(testdata.Spring(t), "CTZ002", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidIssuance)
}

func TestParseDropsUnreconcilableRow(t *testing.T) {
	winter := testdata.Winter(t)
	anchor := lineStarting(t, winter, "AVG CLOUDS", 0)
	values := make(map[int]string)
	for k := range 19 {
		values[k] = "1"
	}
	text := insertAfter(t, winter, anchor, gridLine("BOGUS", values))

	res, err := newTestParser().ParseText(text, "MAZ014")
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "BOGUS", res.Diagnostics[0].Label)
	assert.Equal(t, "outlook", res.Diagnostics[0].Segment)
	assert.NotContains(t, res.Matrix.Params, "BOGUS")
	assert.Len(t, res.Records, 38)
}

func TestParseDuplicateRowKeepsFirst(t *testing.T) {
	spring := testdata.Spring(t)
	anchor := lineStarting(t, spring, "TEMP", 0)
	text := insertAfter(t, spring, anchor, gridLine("TEMP", map[int]string{3: "99", 4: "67"}))

	res, err := newTestParser().Parse(text, "CTZ002", springIssued())
	require.NoError(t, err)
	assert.Equal(t, "68", value(t, res.Records[3], ParamTemp))
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Reason, "duplicate")
}

func TestParseConfiguredOffice(t *testing.T) {
	p := NewParser(Options{Office: "XYZ", Method: "TEST", Clock: clockwork.NewFakeClockAt(parsedAt)})
	res, err := p.Parse(testdata.Spring(t), "CTZ002", springIssued())
	require.NoError(t, err)
	assert.Equal(t, "XYZ", res.Records[0].Office)
	assert.Equal(t, "TEST", res.Records[0].Method)
}

func TestRecordJSON(t *testing.T) {
	res, err := newTestParser().Parse(testdata.Spring(t), "CTZ002", springIssued())
	require.NoError(t, err)

	b, err := json.Marshal(res.Records[5])
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))

	assert.Equal(t, "CTZ002", got["location"])
	assert.Equal(t, float64(71), got["tempMax"])
	assert.Equal(t, 0.2, got["qpf"])
	assert.Equal(t, "C", got["rainshwrs"])
	assert.Contains(t, got, "tempMin")
	assert.Nil(t, got["tempMin"])
	assert.Nil(t, got["snow"])
}
