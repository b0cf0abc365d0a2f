package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/triggerpoints/internal/process"
)

func newDebugCommand(opts *globalOptions) *cobra.Command {
	var (
		mode    string
		listen  string
		timeout time.Duration
		flags   sessionFlags
	)

	cmd := &cobra.Command{
		Use:   "debug <package|binary> [-- args...]",
		Short: "Start Delve on a program and drive it with trigger breakpoints",
		Long: `Debug starts a headless Delve server for the target, then behaves like
attach. The server and the debuggee are stopped when the session ends.`,
		Example: `  triggerpoints debug ./cmd/server -t handler.go:42,break,blue -t store.go:88,dormant,blue
  triggerpoints debug --mode exec ./bin/server -- -port 8080`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.Delve.Address
			}

			proc, err := process.StartDelve(cmd.Context(), process.DelveOptions{
				Binary:       cfg.Delve.Binary,
				Mode:         mode,
				Target:       args[0],
				Args:         args[1:],
				Listen:       listen,
				StartTimeout: timeout,
				Stdout:       cmd.OutOrStdout(),
				Stderr:       cmd.ErrOrStderr(),
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := proc.Stop(5 * time.Second); err != nil {
					logger.Warn("stopping delve failed", "error", err)
				}
			}()

			// The server goes away with the session, so the debuggee goes too.
			flags.kill = true
			return runSession(cmd, opts, cfg, logger, listen, flags)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", process.ModeDebug, "Delve mode: debug, exec or test")
	cmd.Flags().StringVar(&listen, "listen", "", "Address for the Delve server (default from config)")
	cmd.Flags().DurationVar(&timeout, "start-timeout", time.Minute, "How long to wait for Delve to build and listen")
	flags.register(cmd)
	return cmd
}
