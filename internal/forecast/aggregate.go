// Package forecast turns stored forecast records into the views served to
// clients: upcoming periods and per-day summaries.
package forecast

import (
	"encoding/json"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/pfmforecast/internal/pfm"
)

// Stats summarises one continuous parameter over a day. Fields are nil when
// the day has no value for them.
type Stats struct {
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Mean  *float64 `json:"avg"`
	Sum   *float64 `json:"sum,omitempty"`
	Count int      `json:"count"`
}

// Valid reports whether any value contributed.
func (s Stats) Valid() bool { return s.Min != nil || s.Max != nil }

// Mode is the dominant value of a categorical parameter. When several
// values tie, Values lists every distinct value seen that day in order of
// first appearance and Value is empty.
type Mode struct {
	Value  string
	Values []string
}

// Empty reports whether the day had no value at all.
func (m Mode) Empty() bool { return m.Value == "" && len(m.Values) == 0 }

// Tied reports whether no single value dominated.
func (m Mode) Tied() bool { return m.Value == "" && len(m.Values) > 0 }

// Flat returns nil, the single value or the tie list.
func (m Mode) Flat() any {
	switch {
	case m.Value != "":
		return m.Value
	case len(m.Values) > 0:
		return m.Values
	}
	return nil
}

func (m Mode) MarshalJSON() ([]byte, error) { return json.Marshal(m.Flat()) }

// DaySummary aggregates the records of one local calendar day.
type DaySummary struct {
	// EventTS is local noon of the day.
	EventTS     int64
	Date        string
	Method      string
	Location    string
	Records     int
	Continuous  map[string]Stats
	Categorical map[string]Mode
	Sets        map[string][]string
	// PrecipType is the precipitation row that occurs in the most periods.
	PrecipType Mode
}

func (d DaySummary) Temp() Stats       { return d.Continuous[pfm.ParamTemp] }
func (d DaySummary) Dewpoint() Stats   { return d.Continuous[pfm.ParamDewpoint] }
func (d DaySummary) Humidity() Stats   { return d.Continuous[pfm.ParamHumidity] }
func (d DaySummary) WindSpeed() Stats  { return d.Continuous[pfm.ParamWindSpeed] }
func (d DaySummary) WindGust() Stats   { return d.Continuous[pfm.ParamWindGust] }
func (d DaySummary) WindChill() Stats  { return d.Continuous[pfm.ParamWindChill] }
func (d DaySummary) PoP() Stats        { return d.Continuous[pfm.ParamPoP12] }
func (d DaySummary) QPF() Stats        { return d.Continuous[pfm.ParamQPF12] }
func (d DaySummary) Snow() Stats       { return d.Continuous[pfm.ParamSnow12] }
func (d DaySummary) WindDir() Mode     { return d.Categorical[pfm.ParamWindDir] }
func (d DaySummary) Clouds() Mode      { return d.Categorical[pfm.ParamClouds] }
func (d DaySummary) Obvis() []string   { return d.Sets[pfm.ParamObvis] }
func (d DaySummary) Showers() []string { return d.Sets[pfm.ParamRainShowers] }

// Flat returns the summary keyed by reporting field names. Continuous
// parameters appear as <key>Min, <key>Max and <key>Avg, plus <key>Sum for
// accumulations.
func (d DaySummary) Flat() map[string]any {
	out := map[string]any{
		"event_ts":   d.EventTS,
		"date":       d.Date,
		"method":     d.Method,
		"location":   d.Location,
		"records":    d.Records,
		"precipType": d.PrecipType.Flat(),
	}
	for _, s := range pfm.Known() {
		if s.ExtremeOf != "" {
			continue
		}
		switch s.Kind {
		case pfm.KindContinuous, pfm.KindRange:
			st := d.Continuous[s.Name]
			out[s.Key+"Min"] = ptr(st.Min)
			out[s.Key+"Max"] = ptr(st.Max)
			out[s.Key+"Avg"] = ptr(st.Mean)
			if s.Amount {
				out[s.Key+"Sum"] = ptr(st.Sum)
			}
		case pfm.KindCategorical:
			out[s.Key] = d.Categorical[s.Name].Flat()
		case pfm.KindSet:
			if v := d.Sets[s.Name]; len(v) > 0 {
				out[s.Key] = v
			} else {
				out[s.Key] = nil
			}
		}
	}
	return out
}

func (d DaySummary) MarshalJSON() ([]byte, error) { return json.Marshal(d.Flat()) }

func ptr(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Aggregate groups records by local calendar day in loc and summarises each
// day. Days come back in the order they first appear; records are expected
// in time order.
func Aggregate(records []pfm.ForecastRecord, loc *time.Location) []DaySummary {
	if loc == nil {
		loc = time.UTC
	}
	var (
		order []string
		days  = make(map[string][]pfm.ForecastRecord)
	)
	for _, r := range records {
		key := r.Time().In(loc).Format(time.DateOnly)
		if _, ok := days[key]; !ok {
			order = append(order, key)
		}
		days[key] = append(days[key], r)
	}

	out := make([]DaySummary, 0, len(order))
	for _, key := range order {
		out = append(out, Summarize(days[key], loc))
	}
	return out
}

// Summarize aggregates records that all fall on one local day.
func Summarize(records []pfm.ForecastRecord, loc *time.Location) DaySummary {
	if loc == nil {
		loc = time.UTC
	}
	d := DaySummary{
		Records:     len(records),
		Continuous:  make(map[string]Stats),
		Categorical: make(map[string]Mode),
		Sets:        make(map[string][]string),
	}
	if len(records) == 0 {
		return d
	}

	y, m, day := records[0].Time().In(loc).Date()
	noon := time.Date(y, m, day, 12, 0, 0, 0, loc)
	d.EventTS = noon.Unix()
	d.Date = noon.Format(time.DateOnly)
	d.Method = records[0].Method
	d.Location = records[0].Location

	for _, s := range pfm.Known() {
		switch s.Kind {
		case pfm.KindContinuous, pfm.KindRange:
			if s.ExtremeOf != "" {
				continue
			}
			if st := continuousStats(records, s); st.Valid() {
				d.Continuous[s.Name] = st
			}
		case pfm.KindCategorical:
			if mode := modeOf(values(records, s.Name)); !mode.Empty() {
				d.Categorical[s.Name] = mode
			}
		case pfm.KindSet:
			if set := distinct(values(records, s.Name)); len(set) > 0 {
				d.Sets[s.Name] = set
			}
		}
	}

	// Vote once per record for each precipitation row present.
	var votes []string
	for _, r := range records {
		for _, s := range pfm.Known() {
			if _, ok := r.Values[s.Name]; ok && s.Precip {
				votes = append(votes, s.Name)
			}
		}
	}
	d.PrecipType = modeOf(votes)
	return d
}

// continuousStats summarises one parameter. Ranges contribute their upper
// bound. Rows that state the day's extreme explicitly take precedence over
// the extremes of the fine-grained values.
func continuousStats(records []pfm.ForecastRecord, s pfm.Spec) Stats {
	var xs []float64
	for _, r := range records {
		if f, ok := number(r, s); ok {
			xs = append(xs, f)
		}
	}

	var st Stats
	st.Count = len(xs)
	if len(xs) > 0 {
		lo, hi, mean := floats.Min(xs), floats.Max(xs), stat.Mean(xs, nil)
		st.Min, st.Max, st.Mean = &lo, &hi, &mean
		if s.Amount {
			sum := floats.Sum(xs)
			st.Sum = &sum
		}
	}

	for _, e := range pfm.Known() {
		if e.ExtremeOf != s.Name {
			continue
		}
		var explicit []float64
		for _, r := range records {
			if f, ok := r.Float(e.Name); ok {
				explicit = append(explicit, f)
			}
		}
		if len(explicit) == 0 {
			continue
		}
		if isMaxRow(e.Name) {
			v := floats.Max(explicit)
			st.Max = &v
		} else {
			v := floats.Min(explicit)
			st.Min = &v
		}
	}
	return st
}

func isMaxRow(name string) bool {
	return name == pfm.ParamTempMax || name == pfm.ParamMaxHeat
}

func number(r pfm.ForecastRecord, s pfm.Spec) (float64, bool) {
	if s.Kind == pfm.KindRange {
		_, hi, ok := r.Range(s.Name)
		return hi, ok
	}
	return r.Float(s.Name)
}

func values(records []pfm.ForecastRecord, name string) []string {
	var out []string
	for _, r := range records {
		if v, ok := r.Values[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// modeOf returns the most frequent value, or every distinct value in order
// of first appearance when the top count is shared.
func modeOf(vs []string) Mode {
	if len(vs) == 0 {
		return Mode{}
	}
	counts := make(map[string]int)
	seen := distinct(vs)
	for _, v := range vs {
		counts[v]++
	}
	best, winners := 0, 0
	var top string
	for _, v := range seen {
		switch c := counts[v]; {
		case c > best:
			best, winners, top = c, 1, v
		case c == best:
			winners++
		}
	}
	if winners == 1 {
		return Mode{Value: top}
	}
	return Mode{Values: seen}
}

func distinct(vs []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range vs {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
