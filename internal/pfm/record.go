package pfm

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DefaultMethod tags records produced from NWS point forecast matrices.
const DefaultMethod = "NWS"

// ForecastRecord is the forecast for one location at one instant.
// Values holds parameters by canonical name; a parameter that is absent
// has no value for this instant.
type ForecastRecord struct {
	EventTS  int64
	IssuedTS int64
	// DateTime is when the record was produced.
	DateTime int64
	Method   string
	Office   string
	Location string
	// Duration is the length of the period the record covers, in seconds.
	Duration int64
	Values   map[string]string
}

// Time returns the forecast instant.
func (r ForecastRecord) Time() time.Time { return time.Unix(r.EventTS, 0) }

// Issued returns the issuance time of the bulletin the record came from.
func (r ForecastRecord) Issued() time.Time { return time.Unix(r.IssuedTS, 0) }

// Value returns the raw value of a parameter.
func (r ForecastRecord) Value(name string) (string, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Float returns a parameter as a number.
func (r ForecastRecord) Float(name string) (float64, bool) {
	v, ok := r.Values[name]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Range returns a "lo-hi" parameter as its two bounds. A plain number is
// returned as a range of one value.
func (r ForecastRecord) Range(name string) (lo, hi float64, ok bool) {
	v, present := r.Values[name]
	if !present {
		return 0, 0, false
	}
	return parseRange(v)
}

func parseRange(v string) (lo, hi float64, ok bool) {
	if i := strings.IndexByte(v, '-'); i > 0 {
		a, errA := strconv.ParseFloat(v[:i], 64)
		b, errB := strconv.ParseFloat(v[i+1:], 64)
		if errA != nil || errB != nil {
			return 0, 0, false
		}
		return a, b, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, 0, false
	}
	return f, f, true
}

func (r ForecastRecord) Temp() (float64, bool)      { return r.Float(ParamTemp) }
func (r ForecastRecord) TempMax() (float64, bool)   { return r.Float(ParamTempMax) }
func (r ForecastRecord) TempMin() (float64, bool)   { return r.Float(ParamTempMin) }
func (r ForecastRecord) Dewpoint() (float64, bool)  { return r.Float(ParamDewpoint) }
func (r ForecastRecord) Humidity() (float64, bool)  { return r.Float(ParamHumidity) }
func (r ForecastRecord) WindSpeed() (float64, bool) { return r.Float(ParamWindSpeed) }
func (r ForecastRecord) WindGust() (float64, bool)  { return r.Float(ParamWindGust) }
func (r ForecastRecord) WindChill() (float64, bool) { return r.Float(ParamWindChill) }
func (r ForecastRecord) PoP() (float64, bool)       { return r.Float(ParamPoP12) }
func (r ForecastRecord) QPF() (float64, bool)       { return r.Float(ParamQPF12) }
func (r ForecastRecord) WindDir() (string, bool)    { return r.Value(ParamWindDir) }
func (r ForecastRecord) Clouds() (string, bool)     { return r.Value(ParamClouds) }

// Flat returns the record as a flat map keyed by reporting field names.
// Known parameters that are absent are present with a nil value; numeric
// parameters are numbers when they parse. Unrecognised parameters are
// carried under their bulletin label.
func (r ForecastRecord) Flat() map[string]any {
	out := map[string]any{
		"event_ts":  r.EventTS,
		"issued_ts": r.IssuedTS,
		"dateTime":  r.DateTime,
		"method":    r.Method,
		"office":    r.Office,
		"location":  r.Location,
		"duration":  r.Duration,
	}
	for _, s := range catalogue {
		out[s.Key] = nil
	}
	for name, v := range r.Values {
		s, known := specByName[name]
		if !known {
			out[name] = v
			continue
		}
		if s.Kind == KindContinuous {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[s.Key] = f
				continue
			}
		}
		out[s.Key] = v
	}
	return out
}

// MarshalJSON encodes the record in its flat form.
func (r ForecastRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flat())
}

// Meta carries the per-bulletin facts stamped on every record.
type Meta struct {
	Method   string
	Office   string
	Location string
	Issued   time.Time
	Created  time.Time
}

// normalize maps the bulletin's ways of saying "nothing here" onto absence.
func normalize(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || v == Missing {
		return "", false
	}
	return v, true
}

// Synthesize turns a matrix into one record per slot, in time order.
func Synthesize(m Matrix, meta Meta) []ForecastRecord {
	method := meta.Method
	if method == "" {
		method = DefaultMethod
	}
	out := make([]ForecastRecord, 0, m.Len())
	for i, t := range m.Times {
		r := ForecastRecord{
			EventTS:  t.Unix(),
			IssuedTS: meta.Issued.Unix(),
			DateTime: meta.Created.Unix(),
			Method:   method,
			Office:   meta.Office,
			Location: meta.Location,
			Duration: int64(m.Durations[i] / time.Second),
			Values:   make(map[string]string),
		}
		for name, col := range m.Params {
			if v, ok := normalize(col[i]); ok {
				r.Values[name] = v
			}
		}
		out = append(out, r)
	}
	return out
}
