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
	Schema SchemaConfig `yaml:"schema" mapstructure:"schema"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Raster RasterConfig `yaml:"raster" mapstructure:"raster"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SchemaConfig holds the FLO-2D control parameters.
type SchemaConfig struct {
	CellSize float64 `yaml:"cellsize" mapstructure:"cellsize"`
	Metric   int     `yaml:"metric" mapstructure:"metric"`
	Manning  float64 `yaml:"manning" mapstructure:"manning"`
	ISED     int     `yaml:"ised" mapstructure:"ised"`
	NXPRT    int     `yaml:"nxprt" mapstructure:"nxprt"`
	RaiseLev float64 `yaml:"raiselev" mapstructure:"raiselev"`
}

// Units are the labels implied by METRIC.
type Units struct {
	Length    string
	Discharge string
}

// Units returns metres and CMS when METRIC is 1, feet and CFS otherwise.
func (s SchemaConfig) Units() Units {
	if s.Metric == 1 {
		return Units{Length: "m", Discharge: "CMS"}
	}
	return Units{Length: "ft", Discharge: "CFS"}
}

// StoreConfig selects the derived table store.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// RasterConfig configures the optional elevation raster.
type RasterConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	Interpolation string `yaml:"interpolation" mapstructure:"interpolation"`
	SourceProj    string `yaml:"source_proj" mapstructure:"source_proj"`
	RasterProj    string `yaml:"raster_proj" mapstructure:"raster_proj"`
	// SampleGrid samples cell elevations when no raster is configured.
	SampleGrid bool `yaml:"sample_grid" mapstructure:"sample_grid"`
}

// ExportConfig configures DAT, shapefile and PostGIS exports.
type ExportConfig struct {
	OutDir        string `yaml:"out_dir" mapstructure:"out_dir"`
	SRID          int    `yaml:"srid" mapstructure:"srid"`
	PostGISURL    string `yaml:"postgis_url" mapstructure:"postgis_url"`
	PostGISSchema string `yaml:"postgis_schema" mapstructure:"postgis_schema"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst          int      `yaml:"burst" mapstructure:"burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings the given mode depends on. Modes are
// schematize, export and serve.
func (c *Config) Validate(mode string) error {
	var errs []string
	if err := c.validateStore(); err != nil {
		errs = append(errs, err.Error())
	}
	switch mode {
	case "schematize":
		errs = append(errs, c.validateSchema()...)
		switch c.Raster.Interpolation {
		case "", "bilinear", "nearest":
		default:
			errs = append(errs, fmt.Sprintf("raster.interpolation %q is not bilinear or nearest", c.Raster.Interpolation))
		}
	case "export":
		errs = append(errs, c.validateSchema()...)
		if c.Export.SRID < 0 {
			errs = append(errs, "export.srid must be >= 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
			errs = append(errs, "server.rate_limit and server.burst must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateSchema() []string {
	var errs []string
	s := c.Schema
	if s.CellSize <= 0 {
		errs = append(errs, "schema.cellsize is required and must be > 0")
	}
	if s.Metric != 0 && s.Metric != 1 {
		errs = append(errs, "schema.metric must be 0 or 1")
	}
	if s.ISED != 0 && s.ISED != 1 {
		errs = append(errs, "schema.ised must be 0 or 1")
	}
	if s.NXPRT != 0 && s.NXPRT != 1 {
		errs = append(errs, "schema.nxprt must be 0 or 1")
	}
	if s.Manning < 0 {
		errs = append(errs, "schema.manning must be >= 0")
	}
	return errs
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "memory":
		return nil
	case "sqlite":
		if c.Store.DSN == "" {
			return eris.New("store.dsn is required for the sqlite driver")
		}
		return nil
	default:
		return eris.Errorf("store.driver %q is not memory or sqlite", c.Store.Driver)
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
	v.SetEnvPrefix("FLO2D")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("schema.cellsize", 0.0)
	v.SetDefault("schema.metric", 1)
	v.SetDefault("schema.manning", 0.04)
	v.SetDefault("schema.ised", 0)
	v.SetDefault("schema.nxprt", 0)
	v.SetDefault("schema.raiselev", 0.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "flo2d.db")
	v.SetDefault("raster.interpolation", "bilinear")
	v.SetDefault("export.out_dir", ".")
	v.SetDefault("export.srid", 0)
	v.SetDefault("export.postgis_schema", "flo2d")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
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

	return &cfg, nil
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
