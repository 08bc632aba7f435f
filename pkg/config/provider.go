package config

import (
	"fmt"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetStation() (*StationData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// Defaults applied when a controller leaves a field empty.
const (
	DefaultPFMURL        = "https://forecast.weather.gov/product.php?site=NWS&issuedby=%s&product=PFM&format=txt&version=1&glossary=0"
	DefaultPFMInterval   = time.Hour
	DefaultPFMMaxAge     = 168 * time.Hour
	DefaultPFMMethod     = "NWS"
	DefaultPFMUserAgent  = "pfmforecast (github.com/chrissnell/pfmforecast)"
	DefaultRESTPort      = 8080
	DefaultRESTAddr      = "0.0.0.0"
	DefaultRESTMaxPeriod = 48
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Station     StationData      `json:"station"`
	Storage     StorageData      `json:"storage,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// StationData names the station and the zone its forecast days are split in
type StationData struct {
	Name     string `json:"name,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Location loads the configured zone. An empty zone yields nil so that
// callers fall back to the zone printed in the bulletin.
func (s StationData) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid station timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// StorageData holds the configuration for the storage backends. Exactly one
// backend is expected to be set.
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// ControllerData holds the configuration for various controller backends
type ControllerData struct {
	Type       string          `json:"type,omitempty"`
	NWSPFM     *NWSPFMData     `json:"nwspfm,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty"`
}

// NWSPFMData configures the bulletin fetcher for one forecast office
type NWSPFMData struct {
	Office    string   `json:"office"`
	Locations []string `json:"locations"`
	URL       string   `json:"url,omitempty"`
	Interval  string   `json:"interval,omitempty"`
	MaxAge    string   `json:"max_age,omitempty"`
	Method    string   `json:"method,omitempty"`
	UserAgent string   `json:"user_agent,omitempty"`
}

// ProductURL returns the bulletin URL for the configured office.
func (n NWSPFMData) ProductURL() string {
	u := n.URL
	if u == "" {
		u = DefaultPFMURL
	}
	return fmt.Sprintf(u, n.Office)
}

// FetchInterval parses Interval, defaulting to one hour.
func (n NWSPFMData) FetchInterval() (time.Duration, error) {
	return parseDuration("interval", n.Interval, DefaultPFMInterval)
}

// Retention parses MaxAge, defaulting to one week.
func (n NWSPFMData) Retention() (time.Duration, error) {
	return parseDuration("max-age", n.MaxAge, DefaultPFMMaxAge)
}

// MethodTag returns the method stored with each record.
func (n NWSPFMData) MethodTag() string {
	if n.Method == "" {
		return DefaultPFMMethod
	}
	return n.Method
}

// Agent returns the User-Agent sent to the NWS.
func (n NWSPFMData) Agent() string {
	if n.UserAgent == "" {
		return DefaultPFMUserAgent
	}
	return n.UserAgent
}

type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
	MaxPeriods int    `json:"max_periods,omitempty"`
}

// Addr returns the host:port the server listens on.
func (r RESTServerData) Addr() string {
	addr, port := r.ListenAddr, r.Port
	if addr == "" {
		addr = DefaultRESTAddr
	}
	if port == 0 {
		port = DefaultRESTPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// PeriodCap returns the largest max= a periods request may ask for.
func (r RESTServerData) PeriodCap() int {
	if r.MaxPeriods <= 0 {
		return DefaultRESTMaxPeriod
	}
	return r.MaxPeriods
}

func parseDuration(field, v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", field, v)
	}
	return d, nil
}
