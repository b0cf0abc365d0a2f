package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/triggerpoints/internal/integration/debug"
	"github.com/dshills/triggerpoints/internal/logging"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "triggerpoints.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRIGGERPOINTS_"

// Environment variables that override file settings.
const (
	EnvLogLevel      = EnvPrefix + "LOG_LEVEL"
	EnvLogFormat     = EnvPrefix + "LOG_FORMAT"
	EnvDefaultColor  = EnvPrefix + "DEFAULT_COLOR"
	EnvDelveAddr     = EnvPrefix + "DELVE_ADDR"
	EnvDelveBinary   = EnvPrefix + "DELVE_BINARY"
	EnvMetricsListen = EnvPrefix + "METRICS_LISTEN"
)

// Config holds all triggerpoints settings.
type Config struct {
	Breakpoints BreakpointsConfig `toml:"breakpoints"`
	Palette     []SwatchConfig    `toml:"palette"`
	Logging     LoggingConfig     `toml:"logging"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Delve       DelveConfig       `toml:"delve"`
}

// BreakpointsConfig controls newly created breakpoints.
type BreakpointsConfig struct {
	DefaultMode  string `toml:"default_mode"`
	DefaultColor string `toml:"default_color"`
}

// SwatchConfig is one palette entry.
type SwatchConfig struct {
	Name string `toml:"name"`
	Hex  string `toml:"hex"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// DelveConfig locates a headless Delve server. Binary is the dlv
// executable used when triggerpoints starts the server itself.
type DelveConfig struct {
	Address     string `toml:"address"`
	DialTimeout string `toml:"dial_timeout"`
	Binary      string `toml:"binary"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Breakpoints: BreakpointsConfig{
			DefaultMode:  debug.ModeTriggerAndBreak.String(),
			DefaultColor: debug.ColorRed.String(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
		Delve: DelveConfig{
			Address:     "127.0.0.1:2345",
			DialTimeout: "5s",
			Binary:      "dlv",
		},
	}
	for _, s := range debug.DefaultSwatches() {
		cfg.Palette = append(cfg.Palette, SwatchConfig{Name: s.Name.String(), Hex: s.Hex})
	}
	return cfg
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if cfg, err = Parse(path, data); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults. Unknown keys are rejected.
// Source names the data in errors.
func Parse(source string, data []byte) (*Config, error) {
	cfg := Default()
	defaults := cfg.Palette
	cfg.Palette = nil

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, parseError(source, err)
	}

	if len(cfg.Palette) == 0 {
		cfg.Palette = defaults
	}
	return cfg, nil
}

func parseError(source string, err error) *ParseError {
	pe := &ParseError{Path: source, Message: err.Error(), Err: err}

	var decErr *toml.DecodeError
	var strictErr *toml.StrictMissingError
	switch {
	case errors.As(err, &decErr):
		pe.Line, pe.Column = decErr.Position()
	case errors.As(err, &strictErr):
		if len(strictErr.Errors) > 0 {
			first := strictErr.Errors[0]
			pe.Line, pe.Column = first.Position()
			pe.Message = "unknown setting " + strings.Join(first.Key(), ".")
		}
	}
	return pe
}

// ApplyEnv overrides settings from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvDefaultColor); ok && v != "" {
		c.Breakpoints.DefaultColor = v
	}
	if v, ok := lookup(EnvDelveAddr); ok && v != "" {
		c.Delve.Address = v
	}
	if v, ok := lookup(EnvDelveBinary); ok && v != "" {
		c.Delve.Binary = v
	}
	if v, ok := lookup(EnvMetricsListen); ok && v != "" {
		c.Metrics.Listen = v
		c.Metrics.Enabled = true
	}
}

// Validate checks every setting and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	mode, err := debug.ParseMode(c.Breakpoints.DefaultMode)
	switch {
	case err != nil:
		invalid("breakpoints.default_mode", "unknown mode %q", c.Breakpoints.DefaultMode)
	case !mode.UserSettable():
		invalid("breakpoints.default_mode", "mode %q cannot be a default", c.Breakpoints.DefaultMode)
	}

	seen := make(map[debug.Color]bool, len(c.Palette))
	for i, s := range c.Palette {
		field := fmt.Sprintf("palette[%d]", i)
		name := debug.NormalizeColor(s.Name)
		if name == "" {
			invalid(field+".name", "colour name is required")
			continue
		}
		if seen[name] {
			invalid(field+".name", "duplicate colour %q", name)
		}
		seen[name] = true
		if _, err := colorful.Hex(s.Hex); err != nil {
			invalid(field+".hex", "invalid hex colour %q", s.Hex)
		}
	}
	if len(c.Palette) == 0 {
		invalid("palette", "at least one colour is required")
	} else if !seen[debug.NormalizeColor(c.Breakpoints.DefaultColor)] {
		invalid("breakpoints.default_color", "colour %q is not in the palette", c.Breakpoints.DefaultColor)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		invalid("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch logging.Format(strings.ToLower(c.Logging.Format)) {
	case logging.FormatText, logging.FormatJSON:
	default:
		invalid("logging.format", "unknown format %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		invalid("metrics.listen", "listen address is required when metrics are enabled")
	}
	if c.Delve.Binary == "" {
		invalid("delve.binary", "dlv executable is required")
	}
	if c.Delve.DialTimeout != "" {
		if d, err := time.ParseDuration(c.Delve.DialTimeout); err != nil || d < 0 {
			invalid("delve.dial_timeout", "invalid duration %q", c.Delve.DialTimeout)
		}
	}

	return errors.Join(errs...)
}

// BuildPalette converts the palette section.
func (c *Config) BuildPalette() (*debug.Palette, error) {
	swatches := make([]debug.Swatch, len(c.Palette))
	for i, s := range c.Palette {
		swatches[i] = debug.Swatch{Name: debug.Color(s.Name), Hex: s.Hex}
	}
	return debug.NewPalette(swatches...)
}

// Defaults returns the mode and colour given to new breakpoints.
func (c *Config) Defaults() (debug.Mode, debug.Color, error) {
	mode, err := debug.ParseMode(c.Breakpoints.DefaultMode)
	if err != nil {
		return 0, "", err
	}
	return mode, debug.NormalizeColor(c.Breakpoints.DefaultColor), nil
}

// RegistryOptions returns the registry options for the palette and defaults.
func (c *Config) RegistryOptions() ([]debug.RegistryOption, error) {
	p, err := c.BuildPalette()
	if err != nil {
		return nil, err
	}
	mode, color, err := c.Defaults()
	if err != nil {
		return nil, err
	}
	return []debug.RegistryOption{
		debug.WithPalette(p),
		debug.WithDefaults(mode, color),
	}, nil
}

// Apply pushes the palette and defaults into a running registry.
func (c *Config) Apply(reg *debug.Registry) error {
	p, err := c.BuildPalette()
	if err != nil {
		return err
	}
	mode, color, err := c.Defaults()
	if err != nil {
		return err
	}
	if err := reg.SetPalette(p); err != nil {
		return err
	}
	return reg.SetDefaults(mode, color)
}

// LogConfig returns the logging configuration.
func (c *Config) LogConfig() *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Format = logging.Format(strings.ToLower(c.Logging.Format))
	return lc
}

// DialTimeout returns the Delve dial timeout, zero when unset.
func (c *Config) DialTimeout() time.Duration {
	d, err := time.ParseDuration(c.Delve.DialTimeout)
	if err != nil {
		return 0
	}
	return d
}
