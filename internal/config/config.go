package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	Region   RegionConfig   `yaml:"region" mapstructure:"region"`
	Network  NetworkConfig  `yaml:"network" mapstructure:"network"`
	Solver   SolverConfig   `yaml:"solver" mapstructure:"solver"`
	Map      MapConfig      `yaml:"map" mapstructure:"map"`
	Tiger    TigerConfig    `yaml:"tiger" mapstructure:"tiger"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatasetsConfig points at the substation and renewable plant inputs.
// Sources may be local paths or http(s)/ftp URLs.
type DatasetsConfig struct {
	Substations string `yaml:"substations" mapstructure:"substations"`
	Plants      string `yaml:"plants" mapstructure:"plants"`
	Encoding    string `yaml:"encoding" mapstructure:"encoding"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// RegionConfig selects which records belong to the study area.
type RegionConfig struct {
	State   string    `yaml:"state" mapstructure:"state"`
	Country string    `yaml:"country" mapstructure:"country"`
	BBox    BBoxValue `yaml:"bbox" mapstructure:"bbox"`
}

// BBoxValue is the config representation of a lat/lon bounding box.
type BBoxValue struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLon float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLon float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// NetworkConfig holds the connection model parameters.
type NetworkConfig struct {
	SubstationCapacityMW float64       `yaml:"substation_capacity_mw" mapstructure:"substation_capacity_mw"`
	DistanceMetric       string        `yaml:"distance_metric" mapstructure:"distance_metric"`
	CandidatesPerSite    int           `yaml:"candidates_per_site" mapstructure:"candidates_per_site"`
	Cables               []CableConfig `yaml:"cables" mapstructure:"cables"`
}

// CableConfig describes one cable size in the catalog.
type CableConfig struct {
	Name        string  `yaml:"name" mapstructure:"name"`
	CapacityMW  float64 `yaml:"capacity_mw" mapstructure:"capacity_mw"`
	CostPerUnit float64 `yaml:"cost_per_unit" mapstructure:"cost_per_unit"`
}

// SolverConfig bounds the branch-and-bound search.
type SolverConfig struct {
	NodeLimit      int `yaml:"node_limit" mapstructure:"node_limit"`
	TimeLimitSecs  int `yaml:"time_limit_secs" mapstructure:"time_limit_secs"`
	LPMaxVariables int `yaml:"lp_max_variables" mapstructure:"lp_max_variables"`
}

// MapConfig configures rendered maps.
type MapConfig struct {
	Title       string  `yaml:"title" mapstructure:"title"`
	CenterLat   float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon   float64 `yaml:"center_lon" mapstructure:"center_lon"`
	Zoom        float64 `yaml:"zoom" mapstructure:"zoom"`
	Height      int     `yaml:"height" mapstructure:"height"`
	StyleURL    string  `yaml:"style_url" mapstructure:"style_url"`
	BoundaryURL string  `yaml:"boundary_url" mapstructure:"boundary_url"`
	StateFIPS   string  `yaml:"state_fips" mapstructure:"state_fips"`
}

// TigerConfig configures Census TIGER/Line county subdivision downloads.
type TigerConfig struct {
	Year      int    `yaml:"year" mapstructure:"year"`
	StateFIPS string `yaml:"state_fips" mapstructure:"state_fips"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	TempDir   string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`

	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultCables is the cable catalog used when none is configured.
func DefaultCables() []CableConfig {
	return []CableConfig{
		{Name: "small", CapacityMW: 50, CostPerUnit: 100000},
		{Name: "medium", CapacityMW: 100, CostPerUnit: 200000},
		{Name: "large", CapacityMW: 200, CostPerUnit: 300000},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GRIDLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("datasets.substations", "datasets/pa_substations.csv")
	v.SetDefault("datasets.plants", "datasets/irena_roughly_pa_renewable_power_plants.csv")
	v.SetDefault("datasets.encoding", "utf-8")
	v.SetDefault("datasets.temp_dir", "/tmp/gridlink")
	v.SetDefault("region.state", "PA")
	v.SetDefault("region.country", "United States of America")
	v.SetDefault("region.bbox.min_lat", 39.7)
	v.SetDefault("region.bbox.max_lat", 42.5)
	v.SetDefault("region.bbox.min_lon", -80.5)
	v.SetDefault("region.bbox.max_lon", -74.7)
	v.SetDefault("network.substation_capacity_mw", 1000.0)
	v.SetDefault("network.distance_metric", "planar")
	v.SetDefault("network.candidates_per_site", 0)
	v.SetDefault("solver.node_limit", 200000)
	v.SetDefault("solver.time_limit_secs", 60)
	v.SetDefault("solver.lp_max_variables", 4000)
	v.SetDefault("map.title", "Optimized Energy Connections in Pennsylvania")
	v.SetDefault("map.center_lat", 40.9699)
	v.SetDefault("map.center_lon", -77.7278)
	v.SetDefault("map.zoom", 6.2)
	v.SetDefault("map.height", 800)
	v.SetDefault("map.style_url", "https://basemaps.cartocdn.com/gl/positron-gl-style/style.json")
	v.SetDefault("map.boundary_url", "https://raw.githubusercontent.com/plotly/datasets/master/geojson-counties-fips.json")
	v.SetDefault("map.state_fips", "42")
	v.SetDefault("tiger.year", 2019)
	v.SetDefault("tiger.state_fips", "42")
	v.SetDefault("tiger.base_url", "https://www2.census.gov/geo/tiger")
	v.SetDefault("tiger.temp_dir", "/tmp/tiger")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "gridlink/1.0")
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_reset_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "gridlink.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_per_min", 30)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Slices of structs have no viper default key, so fill them here.
	if len(cfg.Network.Cables) == 0 {
		cfg.Network.Cables = DefaultCables()
	}

	return &cfg, nil
}

// Validate checks the fields required by the given command mode
// ("plan", "serve" or "store") and returns every problem found.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "plan":
		errs = append(errs, c.validatePlan()...)
	case "serve":
		errs = append(errs, c.validatePlan()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitPerMin < 0 {
			errs = append(errs, "server.rate_limit_per_min must be >= 0")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePlan() []string {
	var errs []string
	if c.Datasets.Substations == "" {
		errs = append(errs, "datasets.substations is required")
	}
	if c.Datasets.Plants == "" {
		errs = append(errs, "datasets.plants is required")
	}
	b := c.Region.BBox
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		errs = append(errs, "region.bbox min values must not exceed max values")
	}
	if c.Network.SubstationCapacityMW <= 0 {
		errs = append(errs, "network.substation_capacity_mw must be > 0")
	}
	switch c.Network.DistanceMetric {
	case "planar", "haversine":
	default:
		errs = append(errs, fmt.Sprintf("network.distance_metric %q must be planar or haversine", c.Network.DistanceMetric))
	}
	if c.Network.CandidatesPerSite < 0 {
		errs = append(errs, "network.candidates_per_site must be >= 0")
	}
	if len(c.Network.Cables) == 0 {
		errs = append(errs, "network.cables must not be empty")
	}
	for _, cb := range c.Network.Cables {
		if cb.CapacityMW <= 0 || cb.CostPerUnit < 0 {
			errs = append(errs, fmt.Sprintf("network.cables[%s] needs capacity_mw > 0 and cost_per_unit >= 0", cb.Name))
		}
	}
	if c.Solver.NodeLimit <= 0 {
		errs = append(errs, "solver.node_limit must be > 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
