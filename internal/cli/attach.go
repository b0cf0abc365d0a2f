package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/triggerpoints/internal/config"
	"github.com/dshills/triggerpoints/internal/integration/debug"
	"github.com/dshills/triggerpoints/internal/integration/debug/adapters"
	"github.com/dshills/triggerpoints/internal/logging"
	"github.com/dshills/triggerpoints/internal/metrics"
)

// triggerSpec is a breakpoint given on the command line as
// path:line[,mode[,color]].
type triggerSpec struct {
	Location debug.Location
	Mode     debug.Mode
	HasMode  bool
	Color    debug.Color
}

func parseTriggerSpec(s string) (triggerSpec, error) {
	parts := strings.Split(s, ",")
	loc, err := debug.ParseLocation(strings.TrimSpace(parts[0]))
	if err != nil {
		return triggerSpec{}, err
	}
	spec := triggerSpec{Location: loc}
	if len(parts) > 3 {
		return triggerSpec{}, fmt.Errorf("trigger %q: want path:line[,mode[,color]]", s)
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		m, err := debug.ParseMode(parts[1])
		if err != nil {
			return triggerSpec{}, err
		}
		if !m.UserSettable() {
			return triggerSpec{}, fmt.Errorf("trigger %q: %w", s, debug.ErrReservedMode)
		}
		spec.Mode, spec.HasMode = m, true
	}
	if len(parts) > 2 {
		spec.Color = debug.NormalizeColor(parts[2])
	}
	return spec, nil
}

// apply creates the breakpoint in reg. Delve reports absolute paths, so
// relative ones are resolved first.
func (t triggerSpec) apply(reg *debug.Registry) error {
	path := t.Location.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	b := reg.Create(path, t.Location.Line)
	if t.HasMode {
		if err := reg.SetMode(b.Location(), t.Mode); err != nil {
			return err
		}
	}
	if t.Color != "" {
		if err := reg.SetColor(b.Location(), t.Color); err != nil {
			return err
		}
	}
	return nil
}

// sessionFlags are shared by the attach and debug commands.
type sessionFlags struct {
	triggers []string
	kill     bool
	serve    bool
	watch    bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.triggers, "trigger", "t", nil, "Trigger breakpoint as path:line[,mode[,color]] (repeatable)")
	cmd.Flags().BoolVar(&f.serve, "metrics", false, "Serve Prometheus metrics on the configured listen address")
	cmd.Flags().BoolVar(&f.watch, "watch-config", true, "Reload palette and defaults when the config file changes")
}

func (f *sessionFlags) specs() ([]triggerSpec, error) {
	specs := make([]triggerSpec, 0, len(f.triggers))
	for _, t := range f.triggers {
		spec, err := parseTriggerSpec(t)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func newAttachCommand(opts *globalOptions) *cobra.Command {
	var (
		addr  string
		flags sessionFlags
	)

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Drive a headless Delve server with trigger breakpoints",
		Long: `Attach connects to 'dlv --headless --api-version=2', installs the given
trigger breakpoints and runs the program, resuming automatically past
trigger-and-continue sources, until it exits or is interrupted.`,
		Example: `  dlv debug --headless --api-version=2 --listen=127.0.0.1:2345 ./cmd/server
  triggerpoints attach --trigger handler.go:42,trigger-and-break,blue \
      --trigger store.go:88,not-triggered,blue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Delve.Address
			}
			return runSession(cmd, opts, cfg, logger, addr, flags)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Delve server address (default from config)")
	cmd.Flags().BoolVar(&flags.kill, "kill", false, "Kill the debuggee when detaching")
	flags.register(cmd)
	return cmd
}

// runSession connects to the Delve server at addr and drives the program
// until it exits or the command context is cancelled.
func runSession(cmd *cobra.Command, opts *globalOptions, cfg *config.Config, logger *slog.Logger, addr string, flags sessionFlags) error {
	specs, err := flags.specs()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	native, err := adapters.NewRegistry().Create(ctx, adapters.Config{
		Kind:        adapters.KindDelve,
		Address:     addr,
		DialTimeout: cfg.DialTimeout(),
	})
	if err != nil {
		return err
	}
	delve, ok := native.(*adapters.DelveAdapter)
	if !ok || delve.Client() == nil {
		return errors.New("delve adapter has no RPC client")
	}

	s, err := newSession(cfg, native, logger)
	if err != nil {
		return err
	}
	if flags.serve || cfg.Metrics.Enabled {
		go func() {
			if err := s.collector.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}
	if flags.watch {
		err := config.Watch(ctx, opts.configPath, func(c *config.Config, err error) {
			if err != nil {
				return
			}
			if err := c.Apply(s.reg); err != nil {
				logger.Warn("config not applied", "error", err)
			}
		}, config.WithWatchLogger(logger))
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		}
	}

	for _, spec := range specs {
		if err := spec.apply(s.reg); err != nil {
			return err
		}
	}

	host := adapters.NewDelveHost(delve.Client(), s.ctrl, logger)
	return s.drive(ctx, cmd, host, flags.kill)
}

// session wires a registry, controller and metrics around a native adapter.
type session struct {
	reg       *debug.Registry
	ctrl      *debug.Controller
	collector *metrics.Collector
	logger    *slog.Logger
}

func newSession(cfg *config.Config, native debug.Adapter, logger *slog.Logger) (*session, error) {
	regOpts, err := cfg.RegistryOptions()
	if err != nil {
		return nil, err
	}
	collector := metrics.New()
	regOpts = append(regOpts, debug.WithLogger(logger), debug.WithRecorder(collector))

	reg := debug.NewRegistry(native, regOpts...)
	collector.TrackRegistry(reg)

	s := &session{
		reg:       reg,
		ctrl:      debug.NewController(reg, debug.WithControllerLogger(logger), debug.WithControllerRecorder(collector)),
		collector: collector,
		logger:    logger,
	}

	_, err = reg.Notifier().Subscribe(func(c debug.Change) {
		s.logger.Info("breakpoint "+c.Kind.String(),
			logging.KeyLocation, c.Location.String(),
			logging.KeyMode, c.Mode.String(),
			logging.KeyColor, c.Color.String(),
		)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// stepper is the run control used by drive; *adapters.DelveHost satisfies it.
type stepper interface {
	Launch(ctx context.Context) (adapters.Stop, error)
	Resume(ctx context.Context) (adapters.Stop, error)
	End(kill bool) error
}

// drive runs the program to completion, printing each stop.
func (s *session) drive(ctx context.Context, cmd *cobra.Command, host stepper, kill bool) error {
	stop, err := host.Launch(ctx)
	for err == nil && !stop.Exited {
		s.printStop(cmd, stop)
		stop, err = host.Resume(ctx)
	}

	if endErr := host.End(kill); endErr != nil {
		s.logger.Warn("detach failed", "error", endErr)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	cmd.Println(renderOK(fmt.Sprintf("program exited with status %d", stop.ExitStatus)))
	return nil
}

func (s *session) printStop(cmd *cobra.Command, stop adapters.Stop) {
	if !stop.Breakpoint {
		cmd.Println(styleMuted.Render("stopped"))
		return
	}
	header := fmt.Sprintf("stopped at %s", stop.Location)
	if stop.AutoResumed > 0 {
		header += fmt.Sprintf(" (%d auto-resumed)", stop.AutoResumed)
	}
	cmd.Println(styleHeader.Render(header))

	palette := s.reg.Palette()
	for _, b := range s.reg.All() {
		cmd.Println("  " + renderBreakpoint(palette, b.Snapshot()))
	}
}
