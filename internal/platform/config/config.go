/*
Package config loads the countrytimeline configuration.

Configuration comes from three layers, later layers winning:
  - built-in defaults (Default)
  - an optional YAML file (Load)
  - COUNTRYTIMELINE_* environment variables, optionally read from a .env
    file in the working directory (ApplyEnv)
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration. It maps directly to the YAML file.
type Config struct {
	Catalog Catalog `yaml:"catalog"`
	Flags   Flags   `yaml:"flags"`
	Chart   Chart   `yaml:"chart"`
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
}

// Catalog selects the country list.
type Catalog struct {
	Provider      string `yaml:"provider"`       // "static" (six countries) or "reference" (UN members)
	ReferenceFile string `yaml:"reference_file"` // Optional YAML reference data; embedded data when empty
}

// Flags configures flag image retrieval and caching.
type Flags struct {
	URLTemplate string        `yaml:"url_template"` // Download URL, {code} is replaced by the lower case code
	CacheDir    string        `yaml:"cache_dir"`    // Directory holding cached flags as <CODE>.png
	Timeout     time.Duration `yaml:"timeout"`      // Per-download timeout (e.g. "10s")
	Download    bool          `yaml:"download"`     // Whether to download flags missing from the caches
	RedisURL    string        `yaml:"redis_url"`    // Optional shared cache, e.g. redis://localhost:6379/0
	RedisPrefix string        `yaml:"redis_prefix"` // Key prefix for flags stored in redis
}

// Chart controls the rendered chart image.
type Chart struct {
	Format       string  `yaml:"format"`        // Default output format: "svg" or "png"
	Width        int     `yaml:"width"`         // Canvas width in pixels
	RowHeight    int     `yaml:"row_height"`    // Pixels per bar
	MinHeight    int     `yaml:"min_height"`    // Minimum canvas height in pixels
	MarginTop    int     `yaml:"margin_top"`    // Space for the title
	MarginBottom int     `yaml:"margin_bottom"` // Space for x tick labels and the axis label
	MarginLeft   int     `yaml:"margin_left"`   // Minimum space for row labels; grows with the longest label
	MarginRight  int     `yaml:"margin_right"`  // Right margin in pixels
	BarOpacity   float64 `yaml:"bar_opacity"`   // Bar fill opacity, 0..1
	Font         struct {
		Family string `yaml:"family"` // Font family for SVG text (e.g. "DejaVu Sans, Arial, sans-serif")
		Size   int    `yaml:"size"`   // Base font size in pixels
	} `yaml:"font"`
	Colors struct { // All colours are hex codes, "#rrggbb" or "#rgb"
		Background string `yaml:"background"` // Canvas background
		Grid       string `yaml:"grid"`       // Vertical gridlines
		Band       string `yaml:"band"`       // Row group background bands
		Text       string `yaml:"text"`       // Labels and title
		Axis       string `yaml:"axis"`       // Plot frame
	} `yaml:"colors"`
}

// Server configures the HTTP API.
type Server struct {
	Addr              string        `yaml:"addr"`                // Listen address, e.g. ":8080"
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"` // http.Server ReadHeaderTimeout
	RequestTimeout    time.Duration `yaml:"request_timeout"`     // Upper bound for a single request
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // Graceful shutdown window
}

// Log configures structured logging.
type Log struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn" or "error"
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when no file is given. The chart
// defaults reproduce a 16 inch wide figure at 100 dpi with one inch per bar
// and a four inch minimum height.
func Default() Config {
	var c Config

	c.Catalog.Provider = "reference"

	c.Flags.URLTemplate = "https://flagcdn.com/w40/{code}.png"
	c.Flags.CacheDir = "Flags"
	c.Flags.Timeout = 10 * time.Second
	c.Flags.Download = true
	c.Flags.RedisPrefix = "countrytimeline:flag:"

	c.Chart.Format = "svg"
	c.Chart.Width = 1600
	c.Chart.RowHeight = 100
	c.Chart.MinHeight = 400
	c.Chart.MarginTop = 60
	c.Chart.MarginBottom = 70
	c.Chart.MarginLeft = 160
	c.Chart.MarginRight = 40
	c.Chart.BarOpacity = 0.7
	c.Chart.Font.Family = "DejaVu Sans, Arial, sans-serif"
	c.Chart.Font.Size = 14
	c.Chart.Colors.Background = "#ffffff"
	c.Chart.Colors.Grid = "#808080"
	c.Chart.Colors.Band = "#d3d3d3"
	c.Chart.Colors.Text = "#222222"
	c.Chart.Colors.Axis = "#333333"

	c.Server.Addr = ":8080"
	c.Server.ReadHeaderTimeout = 5 * time.Second
	c.Server.RequestTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second

	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// Load reads configuration from a YAML file on top of the defaults, or
// returns the defaults if no file is specified. Keys missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvAddr          = "COUNTRYTIMELINE_ADDR"
	EnvCatalog       = "COUNTRYTIMELINE_CATALOG"
	EnvReferenceFile = "COUNTRYTIMELINE_REFERENCE_FILE"
	EnvFlagCacheDir  = "COUNTRYTIMELINE_FLAG_CACHE_DIR"
	EnvFlagDownload  = "COUNTRYTIMELINE_FLAG_DOWNLOAD"
	EnvRedisURL      = "COUNTRYTIMELINE_REDIS_URL"
	EnvLogLevel      = "COUNTRYTIMELINE_LOG_LEVEL"
	EnvLogFormat     = "COUNTRYTIMELINE_LOG_FORMAT"
)

// ApplyEnv overrides cfg from the environment. A .env file at envFile is
// loaded first when it exists; variables already set in the process win over
// the file.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString(EnvAddr, &cfg.Server.Addr)
	setString(EnvCatalog, &cfg.Catalog.Provider)
	setString(EnvReferenceFile, &cfg.Catalog.ReferenceFile)
	setString(EnvFlagCacheDir, &cfg.Flags.CacheDir)
	setString(EnvRedisURL, &cfg.Flags.RedisURL)
	setString(EnvLogLevel, &cfg.Log.Level)
	setString(EnvLogFormat, &cfg.Log.Format)

	if v, ok := os.LookupEnv(EnvFlagDownload); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFlagDownload, err)
		}
		cfg.Flags.Download = b
	}

	return cfg.Validate()
}

// hexColor matches the colour notation both chart surfaces understand.
var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate reports settings that cannot produce a chart.
func (c Config) Validate() error {
	var errs []error
	if c.Chart.Width <= c.Chart.MarginLeft+c.Chart.MarginRight {
		errs = append(errs, fmt.Errorf("chart.width %d leaves no room for the plot", c.Chart.Width))
	}
	if c.Chart.RowHeight <= 0 {
		errs = append(errs, fmt.Errorf("chart.row_height must be positive"))
	}
	if c.Chart.Font.Size <= 0 {
		errs = append(errs, fmt.Errorf("chart.font.size must be positive"))
	}
	if c.Chart.BarOpacity < 0 || c.Chart.BarOpacity > 1 {
		errs = append(errs, fmt.Errorf("chart.bar_opacity %.2f is outside 0..1", c.Chart.BarOpacity))
	}
	switch c.Chart.Format {
	case "svg", "png":
	default:
		errs = append(errs, fmt.Errorf("chart.format %q is not svg or png", c.Chart.Format))
	}
	for _, col := range []struct{ key, value string }{
		{"chart.colors.background", c.Chart.Colors.Background},
		{"chart.colors.grid", c.Chart.Colors.Grid},
		{"chart.colors.band", c.Chart.Colors.Band},
		{"chart.colors.text", c.Chart.Colors.Text},
		{"chart.colors.axis", c.Chart.Colors.Axis},
	} {
		if !hexColor.MatchString(col.value) {
			errs = append(errs, fmt.Errorf("%s %q is not a #rrggbb colour", col.key, col.value))
		}
	}
	if c.Flags.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("flags.timeout must be positive"))
	}
	return errors.Join(errs...)
}
