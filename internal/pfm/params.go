package pfm

import "strings"

// Kind describes how the values of a parameter are read by consumers.
type Kind int

const (
	// KindUnknown is used for row labels that are not in the catalogue.
	KindUnknown Kind = iota
	// KindContinuous values are numbers (temperatures, speeds, percentages, amounts).
	KindContinuous
	// KindCategorical values are one discrete code per slot (wind direction, sky cover).
	KindCategorical
	// KindSet values are occurrence codes that may appear several times a day.
	KindSet
	// KindRange values are "lo-hi" amounts such as snowfall.
	KindRange
)

// Canonical parameter names. Row labels found in bulletins are mapped onto
// these; labels that are not recognised are kept verbatim.
const (
	ParamTemp         = "TEMP"
	ParamTempMax      = "TEMP MAX"
	ParamTempMin      = "TEMP MIN"
	ParamDewpoint     = "DEWPT"
	ParamHumidity     = "RH"
	ParamWindDir      = "WIND DIR"
	ParamWindSpeed    = "WIND SPD"
	ParamWindGust     = "WIND GUST"
	ParamWindChar     = "WIND CHAR"
	ParamClouds       = "CLOUDS"
	ParamPoP12        = "POP 12HR"
	ParamQPF12        = "QPF 12HR"
	ParamSnow12       = "SNOW 12HR"
	ParamRainShowers  = "RAIN SHWRS"
	ParamRain         = "RAIN"
	ParamTstms        = "TSTMS"
	ParamSnow         = "SNOW"
	ParamSnowShowers  = "SNOW SHWRS"
	ParamDrizzle      = "DRIZZLE"
	ParamFreezingRain = "FRZG RAIN"
	ParamFreezingDrzl = "FRZG DRZL"
	ParamSleet        = "SLEET"
	ParamObvis        = "OBVIS"
	ParamWindChill    = "WIND CHILL"
	ParamMinChill     = "MIN CHILL"
	ParamHeatIndex    = "HEAT INDEX"
	ParamMaxHeat      = "MAX HEAT"
)

// Spec describes one well-known parameter.
type Spec struct {
	Name string
	// Key is the flat field name used when records are handed to the
	// reporting layer.
	Key  string
	Kind Kind
	// Amount marks accumulations that are summed per day.
	Amount bool
	// Precip marks occurrence rows that describe a precipitation type.
	Precip bool
	// ExtremeOf names the parameter whose daily extreme this row states
	// explicitly (MAX/MIN for TEMP, MIN CHILL for WIND CHILL).
	ExtremeOf string
}

var catalogue = []Spec{
	{Name: ParamTemp, Key: "temp", Kind: KindContinuous},
	{Name: ParamTempMax, Key: "tempMax", Kind: KindContinuous, ExtremeOf: ParamTemp},
	{Name: ParamTempMin, Key: "tempMin", Kind: KindContinuous, ExtremeOf: ParamTemp},
	{Name: ParamDewpoint, Key: "dewpoint", Kind: KindContinuous},
	{Name: ParamHumidity, Key: "humidity", Kind: KindContinuous},
	{Name: ParamWindDir, Key: "windDir", Kind: KindCategorical},
	{Name: ParamWindSpeed, Key: "windSpeed", Kind: KindContinuous},
	{Name: ParamWindGust, Key: "windGust", Kind: KindContinuous},
	{Name: ParamWindChar, Key: "windChar", Kind: KindCategorical},
	{Name: ParamClouds, Key: "clouds", Kind: KindCategorical},
	{Name: ParamPoP12, Key: "pop", Kind: KindContinuous},
	{Name: ParamQPF12, Key: "qpf", Kind: KindContinuous, Amount: true},
	{Name: ParamSnow12, Key: "snow", Kind: KindRange, Amount: true},
	{Name: ParamRainShowers, Key: "rainshwrs", Kind: KindSet, Precip: true},
	{Name: ParamRain, Key: "rain", Kind: KindSet, Precip: true},
	{Name: ParamTstms, Key: "tstms", Kind: KindSet, Precip: true},
	{Name: ParamSnow, Key: "snowOcc", Kind: KindSet, Precip: true},
	{Name: ParamSnowShowers, Key: "snowshwrs", Kind: KindSet, Precip: true},
	{Name: ParamDrizzle, Key: "drizzle", Kind: KindSet, Precip: true},
	{Name: ParamFreezingRain, Key: "frzngrain", Kind: KindSet, Precip: true},
	{Name: ParamFreezingDrzl, Key: "frzngdrzl", Kind: KindSet, Precip: true},
	{Name: ParamSleet, Key: "sleet", Kind: KindSet, Precip: true},
	{Name: ParamObvis, Key: "obvis", Kind: KindSet},
	{Name: ParamWindChill, Key: "windChill", Kind: KindContinuous},
	{Name: ParamMinChill, Key: "minChill", Kind: KindContinuous, ExtremeOf: ParamWindChill},
	{Name: ParamHeatIndex, Key: "heatIndex", Kind: KindContinuous},
	{Name: ParamMaxHeat, Key: "maxHeat", Kind: KindContinuous, ExtremeOf: ParamHeatIndex},
}

// aliases maps alternate row labels used by the outlook table onto the
// canonical names of the near-term table.
var aliases = map[string]string{
	"AVG CLOUDS": ParamClouds,
	"PWIND DIR":  ParamWindDir,
	"PWIND SPD":  ParamWindSpeed,
	"SNOW SHWR":  ParamSnowShowers,
	"RAIN SHWR":  ParamRainShowers,
	"TSTM":       ParamTstms,
}

var specByName = func() map[string]Spec {
	m := make(map[string]Spec, len(catalogue))
	for _, s := range catalogue {
		m[s.Name] = s
	}
	return m
}()

// Lookup returns the catalogue entry for a canonical parameter name.
func Lookup(name string) (Spec, bool) {
	s, ok := specByName[name]
	return s, ok
}

// Known returns the catalogue in a stable order.
func Known() []Spec {
	out := make([]Spec, len(catalogue))
	copy(out, catalogue)
	return out
}

// Canonical maps a row label onto its canonical parameter name. Unknown
// labels come back unchanged apart from whitespace normalisation.
func Canonical(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	if c, ok := aliases[label]; ok {
		return c
	}
	return label
}

// isExtremeRow reports whether a label is the combined daily extreme row and
// which extreme comes first in it.
func isExtremeRow(label string) (first, second string, ok bool) {
	switch Canonical(label) {
	case "MAX/MIN":
		return ParamTempMax, ParamTempMin, true
	case "MIN/MAX":
		return ParamTempMin, ParamTempMax, true
	}
	return "", "", false
}
