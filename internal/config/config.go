package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/sells-group/valuegrid/internal/classify"
	"github.com/sells-group/valuegrid/internal/engine"
	"github.com/sells-group/valuegrid/internal/grid"
	"github.com/sells-group/valuegrid/internal/transit"
	"github.com/sells-group/valuegrid/internal/zone"
)

// Config holds the full application configuration.
type Config struct {
	Grid     GridConfig     `yaml:"grid" mapstructure:"grid"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Transit  TransitConfig  `yaml:"transit" mapstructure:"transit"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GridConfig configures cell construction and aggregation.
type GridConfig struct {
	CellSizeMeters float64 `yaml:"cell_size_meters" mapstructure:"cell_size_meters"`
	Statistic      string  `yaml:"statistic" mapstructure:"statistic"`
	MinCount       int     `yaml:"min_count" mapstructure:"min_count"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
}

// ClassifyConfig configures class counts and colors.
type ClassifyConfig struct {
	GridClasses     int       `yaml:"grid_classes" mapstructure:"grid_classes"`
	HeatClasses     int       `yaml:"heat_classes" mapstructure:"heat_classes"`
	TierPercentiles []float64 `yaml:"tier_percentiles" mapstructure:"tier_percentiles"`
	Palette         []string  `yaml:"palette" mapstructure:"palette"`
}

// TransitConfig configures the station overlay.
type TransitConfig struct {
	Municipalities []string `yaml:"municipalities" mapstructure:"municipalities"`
	Categories     []string `yaml:"categories" mapstructure:"categories"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging. Format is json, console, or auto.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from valuegrid.yaml and VALUEGRID_* variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("valuegrid")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VALUEGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("grid.cell_size_meters", grid.QuarterMileMeters)
	v.SetDefault("grid.statistic", string(zone.Median))
	v.SetDefault("grid.min_count", 0)
	v.SetDefault("grid.workers", 1)
	v.SetDefault("classify.grid_classes", 10)
	v.SetDefault("classify.heat_classes", 4)
	v.SetDefault("classify.tier_percentiles", classify.DefaultTierPercentiles)
	v.SetDefault("transit.municipalities", transit.DefaultMunicipalities)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "valuegrid.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

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

// Validate checks the grid and classification settings.
func (c *Config) Validate() error {
	if err := c.GridOptions().Validate(); err != nil {
		return eris.Wrap(err, "config: grid")
	}
	if err := c.HeatOptions().Validate(); err != nil {
		return eris.Wrap(err, "config: heat")
	}
	if _, err := classify.Tiers([]float64{0, 1}, c.Classify.TierPercentiles); err != nil {
		return eris.Wrap(err, "config: tier percentiles")
	}
	for _, cat := range c.Transit.Categories {
		if _, err := transit.ParseCategory(cat); err != nil {
			return eris.Wrap(err, "config: transit categories")
		}
	}
	switch c.Store.Driver {
	case "", "sqlite", "postgres", "postgresql":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// GridOptions maps the config onto engine options for grid modes.
func (c *Config) GridOptions() engine.Options {
	return engine.Options{
		CellSizeMeters: c.Grid.CellSizeMeters,
		Classes:        c.Classify.GridClasses,
		Statistic:      zone.Statistic(strings.ToLower(c.Grid.Statistic)),
		Palette:        c.Classify.Palette,
		MinCount:       c.Grid.MinCount,
		Workers:        c.Grid.Workers,
	}
}

// HeatOptions is GridOptions with the heat-map class count and the built-in
// palette.
func (c *Config) HeatOptions() engine.Options {
	opts := c.GridOptions()
	opts.Classes = c.Classify.HeatClasses
	opts.Palette = nil
	return opts
}

// TransitFilter builds the station filter.
func (c *Config) TransitFilter() (transit.Filter, error) {
	f := transit.Filter{Municipalities: c.Transit.Municipalities}
	for _, s := range c.Transit.Categories {
		cat, err := transit.ParseCategory(s)
		if err != nil {
			return transit.Filter{}, err
		}
		f.Categories = append(f.Categories, cat)
	}
	return f, nil
}

// InitLogger initializes the global zap logger. The auto format picks
// console output on a terminal and JSON otherwise.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	switch resolveFormat(cfg.Format, term.IsTerminal(int(os.Stderr.Fd()))) {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	case "json":
		zapCfg = zap.NewProductionConfig()
	default:
		return eris.Errorf("config: unknown log format %q", cfg.Format)
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

func resolveFormat(format string, tty bool) string {
	switch strings.ToLower(format) {
	case "", "auto":
		if tty {
			return "console"
		}
		return "json"
	default:
		return strings.ToLower(format)
	}
}
