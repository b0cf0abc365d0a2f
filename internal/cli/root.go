// Package cli implements the triggerpoints command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/triggerpoints/internal/config"
	"github.com/dshills/triggerpoints/internal/logging"
)

// VersionInfo is build metadata injected via ldflags.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	logLevel   string
	json       bool
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand(info VersionInfo) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "triggerpoints",
		Short: "Trigger breakpoints for Delve",
		Long: `triggerpoints adds trigger breakpoints on top of a native debugger.

A trigger source (trigger-and-break, trigger-and-continue) activates every
dormant target (not-triggered) of the same colour when it is hit. Targets stay
disabled until then and return to dormant when the program is relaunched or
the session ends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Output in JSON format")

	cmd.AddCommand(
		newReplayCommand(opts),
		newAttachCommand(opts),
		newDebugCommand(opts),
		newPaletteCommand(opts),
		newVersionCommand(opts, info),
	)
	return cmd
}

// load reads the configuration and builds the logger it describes. The
// --log-level flag wins over file and environment.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		if !logging.ValidLevel(o.logLevel) {
			return nil, nil, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", o.logLevel)
		}
		cfg.Logging.Level = o.logLevel
	}

	lc := cfg.LogConfig()
	lc.Output = cmd.ErrOrStderr()
	return cfg, logging.New(lc), nil
}
