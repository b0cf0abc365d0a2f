package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/triggerpoints/internal/integration/debug"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Breakpoints.DefaultColor != "red" {
		t.Errorf("expected default colour red, got %q", cfg.Breakpoints.DefaultColor)
	}
	if len(cfg.Palette) != 7 {
		t.Errorf("expected 7 palette entries, got %d", len(cfg.Palette))
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse("test.toml", []byte(`
[breakpoints]
default_mode = "not-triggered"
default_color = "teal"

[[palette]]
name = "teal"
hex = "#008080"

[[palette]]
name = "gold"
hex = "#ffd700"

[logging]
level = "debug"
format = "json"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Breakpoints.DefaultMode != "not-triggered" {
		t.Errorf("expected not-triggered, got %q", cfg.Breakpoints.DefaultMode)
	}
	if len(cfg.Palette) != 2 || cfg.Palette[1].Name != "gold" {
		t.Errorf("expected file palette to replace defaults, got %+v", cfg.Palette)
	}
	if cfg.Delve.Address != "127.0.0.1:2345" {
		t.Errorf("expected unset sections to keep defaults, got %q", cfg.Delve.Address)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestParse_KeepsDefaultPalette(t *testing.T) {
	cfg, err := Parse("test.toml", []byte("[logging]\nlevel = \"warn\"\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Palette) != 7 {
		t.Errorf("expected default palette, got %d entries", len(cfg.Palette))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"syntax", "[breakpoints\n", "parse error in bad.toml"},
		{"unknown key", "[breakpoints]\nflavour = \"mint\"\n", "unknown setting breakpoints.flavour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.toml", []byte(tt.data))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"triggered default", func(c *Config) { c.Breakpoints.DefaultMode = "triggered" }, "breakpoints.default_mode"},
		{"unknown mode", func(c *Config) { c.Breakpoints.DefaultMode = "maybe" }, "breakpoints.default_mode"},
		{"colour outside palette", func(c *Config) { c.Breakpoints.DefaultColor = "teal" }, "breakpoints.default_color"},
		{"bad hex", func(c *Config) { c.Palette[0].Hex = "#zzzzzz" }, "palette[0].hex"},
		{"duplicate", func(c *Config) { c.Palette[1].Name = "RED" }, "palette[1].name"},
		{"empty palette", func(c *Config) { c.Palette = nil }, "palette"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"metrics listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, "metrics.listen"},
		{"dial timeout", func(c *Config) { c.Delve.DialTimeout = "soon" }, "delve.dial_timeout"},
		{"binary", func(c *Config) { c.Delve.Binary = "" }, "delve.binary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:      "debug",
		EnvLogFormat:     "json",
		EnvDefaultColor:  "blue",
		EnvDelveAddr:     "localhost:4040",
		EnvDelveBinary:   "/opt/go/bin/dlv",
		EnvMetricsListen: "127.0.0.1:9000",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("expected logging overrides, got %+v", cfg.Logging)
	}
	if cfg.Breakpoints.DefaultColor != "blue" {
		t.Errorf("expected blue, got %q", cfg.Breakpoints.DefaultColor)
	}
	if cfg.Delve.Address != "localhost:4040" {
		t.Errorf("expected delve override, got %q", cfg.Delve.Address)
	}
	if cfg.Delve.Binary != "/opt/go/bin/dlv" {
		t.Errorf("expected binary override, got %q", cfg.Delve.Binary)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9000" {
		t.Errorf("expected metrics enabled on override, got %+v", cfg.Metrics)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Breakpoints.DefaultMode != debug.ModeTriggerAndBreak.String() {
		t.Errorf("expected defaults, got %+v", cfg.Breakpoints)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tp.toml")
	writeFile(t, path, "[breakpoints]\ndefault_color = \"green\"\n")
	t.Setenv(EnvDefaultColor, "pink")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Breakpoints.DefaultColor != "pink" {
		t.Errorf("expected env to win, got %q", cfg.Breakpoints.DefaultColor)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tp.toml")
	writeFile(t, path, "[breakpoints]\ndefault_color = \"teal\"\n")

	if _, err := Load(path); err == nil {
		t.Error("expected validation error")
	}
}

func TestConfig_Apply(t *testing.T) {
	cfg, err := Parse("tp.toml", []byte(`
[breakpoints]
default_mode = "trigger-and-continue"
default_color = "gold"

[[palette]]
name = "gold"
hex = "#ffd700"
`))
	if err != nil {
		t.Fatal(err)
	}

	reg := debug.NewRegistry(nil)
	if err := cfg.Apply(reg); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	mode, color := reg.Defaults()
	if mode != debug.ModeTriggerAndContinue || color != "gold" {
		t.Errorf("expected trigger-and-continue gold, got %v %v", mode, color)
	}
	if !reg.Palette().Contains("gold") || reg.Palette().Contains(debug.ColorRed) {
		t.Error("expected the file palette to be active")
	}
}

func TestConfig_RegistryOptions(t *testing.T) {
	cfg := Default()
	cfg.Breakpoints.DefaultColor = "Purple"

	opts, err := cfg.RegistryOptions()
	if err != nil {
		t.Fatal(err)
	}
	reg := debug.NewRegistry(nil, opts...)
	if _, color := reg.Defaults(); color != debug.ColorPurple {
		t.Errorf("expected purple, got %v", color)
	}
}

func TestConfig_LogConfigAndTimeout(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "JSON"

	lc := cfg.LogConfig()
	if lc.Format != "json" || lc.Level != "info" {
		t.Errorf("unexpected log config %+v", lc)
	}
	if cfg.DialTimeout() != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.DialTimeout())
	}
	cfg.Delve.DialTimeout = ""
	if cfg.DialTimeout() != 0 {
		t.Errorf("expected zero, got %v", cfg.DialTimeout())
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tp.toml")
	writeFile(t, path, "[breakpoints]\ndefault_color = \"red\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	err := Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	}, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, path, "[breakpoints]\ndefault_color = \"blue\"\n")

	select {
	case cfg := <-reloaded:
		if cfg.Breakpoints.DefaultColor != "blue" {
			t.Errorf("expected blue after reload, got %q", cfg.Breakpoints.DefaultColor)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatch_BadDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "tp.toml"), func(*Config, error) {})
	if err == nil {
		t.Error("expected error for a missing directory")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
