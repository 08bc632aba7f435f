package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

func parseYAML(b []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Station     StationYAML      `yaml:"station,omitempty"`
		Storage     StorageYAML      `yaml:"storage,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	if err := yaml.UnmarshalStrict(b, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Station: StationData{
			Name:     yamlConfig.Station.Name,
			Timezone: yamlConfig.Station.Timezone,
		},
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{
			Path: yamlConfig.Storage.SQLite.Path,
		}
	}
	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.NWSPFM != nil {
			config.Controllers[i].NWSPFM = &NWSPFMData{
				Office:    controller.NWSPFM.Office,
				Locations: controller.NWSPFM.Locations,
				URL:       controller.NWSPFM.URL,
				Interval:  controller.NWSPFM.Interval,
				MaxAge:    controller.NWSPFM.MaxAge,
				Method:    controller.NWSPFM.Method,
				UserAgent: controller.NWSPFM.UserAgent,
			}
		}

		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:       controller.RESTServer.Cert,
				Key:        controller.RESTServer.Key,
				Port:       controller.RESTServer.Port,
				ListenAddr: controller.RESTServer.ListenAddr,
				MaxPeriods: controller.RESTServer.MaxPeriods,
			}
		}
	}

	if _, err := config.Station.Location(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetStation returns the station section
func (y *YAMLProvider) GetStation() (*StationData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Station, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with kebab-case tags
type StationYAML struct {
	Name     string `yaml:"name,omitempty"`
	Timezone string `yaml:"timezone,omitempty"`
}

type StorageYAML struct {
	SQLite      *SQLiteYAML      `yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type ControllerYAML struct {
	Type       string          `yaml:"type,omitempty"`
	NWSPFM     *NWSPFMYAML     `yaml:"nwspfm,omitempty"`
	RESTServer *RESTServerYAML `yaml:"rest,omitempty"`
}

type NWSPFMYAML struct {
	Office    string   `yaml:"office"`
	Locations []string `yaml:"locations"`
	URL       string   `yaml:"url,omitempty"`
	Interval  string   `yaml:"interval,omitempty"`
	MaxAge    string   `yaml:"max-age,omitempty"`
	Method    string   `yaml:"method,omitempty"`
	UserAgent string   `yaml:"user-agent,omitempty"`
}

type RESTServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	MaxPeriods int    `yaml:"max-periods,omitempty"`
}
