// Package config loads roadfeat settings from config.yaml, ROADFEAT_*
// environment variables and defaults, and sets up the global logger.
package config

import (
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Roster   string         `yaml:"roster" mapstructure:"roster"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run store. Driver is sqlite, postgres or none.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RasterConfig locates the elevation model and controls its reprojection.
type RasterConfig struct {
	Path     string  `yaml:"path" mapstructure:"path"`
	CacheDir string  `yaml:"cache_dir" mapstructure:"cache_dir"`
	DstCRS   string  `yaml:"dst_crs" mapstructure:"dst_crs"`
	Scale    float64 `yaml:"scale" mapstructure:"scale"`
	NoData   float64 `yaml:"nodata" mapstructure:"nodata"`
}

// ExtractConfig configures per-segment feature extraction.
type ExtractConfig struct {
	BufferRadius float64 `yaml:"buffer_radius" mapstructure:"buffer_radius"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// OutputConfig configures the result table.
type OutputConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	IncludeSlope bool   `yaml:"include_slope" mapstructure:"include_slope"`
}

// GeocodeConfig configures the Nominatim resolver and its cache.
type GeocodeConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Country       string  `yaml:"country" mapstructure:"country"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Attempts      int     `yaml:"attempts" mapstructure:"attempts"`
	PauseMs       int     `yaml:"pause_ms" mapstructure:"pause_ms"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// OverpassConfig configures the Overpass road source.
type OverpassConfig struct {
	Endpoint     string  `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	QueryTimeout int     `yaml:"query_timeout" mapstructure:"query_timeout"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Attempts     int     `yaml:"attempts" mapstructure:"attempts"`
	PauseMs      int     `yaml:"pause_ms" mapstructure:"pause_ms"`
}

// FetchConfig configures remote raster downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Attempts    int     `yaml:"attempts" mapstructure:"attempts"`
	PauseMs     int     `yaml:"pause_ms" mapstructure:"pause_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROADFEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("roster", "cities.yaml")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "roadfeat.db")
	v.SetDefault("raster.path", "")
	v.SetDefault("raster.cache_dir", ".cache/rasters")
	v.SetDefault("raster.dst_crs", "utm")
	v.SetDefault("raster.scale", 0.5)
	v.SetDefault("raster.nodata", -32768)
	v.SetDefault("extract.buffer_radius", 10.0)
	v.SetDefault("extract.concurrency", runtime.NumCPU())
	v.SetDefault("output.path", "roads_characteristics.csv")
	v.SetDefault("output.include_slope", false)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.country", "Philippines")
	v.SetDefault("geocode.user_agent", "roadfeat/1.0")
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.attempts", 3)
	v.SetDefault("geocode.pause_ms", 1000)
	v.SetDefault("geocode.cache_ttl_hours", 24*30)
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 90)
	v.SetDefault("overpass.query_timeout", 25)
	v.SetDefault("overpass.rate_limit", 0.5)
	v.SetDefault("overpass.attempts", 3)
	v.SetDefault("overpass.pause_ms", 1000)
	v.SetDefault("fetch.user_agent", "roadfeat/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.rate_limit", 5.0)
	v.SetDefault("fetch.attempts", 3)
	v.SetDefault("fetch.pause_ms", 2000)
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

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name:
// extract, join, dem or bbox.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "extract":
		errs = append(errs, c.validateRaster()...)
		errs = append(errs, c.validateStore()...)
		if c.Extract.BufferRadius <= 0 {
			errs = append(errs, "extract.buffer_radius must be > 0")
		}
		if c.Extract.Concurrency < 1 {
			errs = append(errs, "extract.concurrency must be >= 1")
		}
		if c.Output.Path == "" {
			errs = append(errs, "output.path is required")
		}
	case "dem":
		errs = append(errs, c.validateRaster()...)
	case "bbox":
		errs = append(errs, c.validateStore()...)
	case "join":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateRaster() []string {
	var errs []string
	if c.Raster.Path == "" {
		errs = append(errs, "raster.path is required")
	}
	if c.Raster.Scale <= 0 || c.Raster.Scale > 1 {
		errs = append(errs, "raster.scale must be in (0, 1]")
	}
	if c.Raster.DstCRS == "" {
		errs = append(errs, "raster.dst_crs is required")
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "none":
		return nil
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
		return nil
	default:
		return []string{"store.driver must be sqlite, postgres or none"}
	}
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
