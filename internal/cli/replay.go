package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/triggerpoints/internal/integration/debug"
	"github.com/dshills/triggerpoints/internal/metrics"
	"github.com/dshills/triggerpoints/internal/scenario"
)

var errScenarioFailed = errors.New("scenarios failed")

type replayResult struct {
	File        string           `json:"file"`
	Name        string           `json:"name"`
	Steps       int              `json:"steps"`
	Passed      bool             `json:"passed"`
	Error       string           `json:"error,omitempty"`
	Breakpoints []debug.Snapshot `json:"breakpoints"`
}

func newReplayCommand(opts *globalOptions) *cobra.Command {
	var showState bool

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>...",
		Short: "Replay scripted debugger sessions",
		Long: `Replay runs YAML scenarios against an in-memory debugger and checks
their expectations. Each file gets a fresh session using the configured
palette and defaults.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			regOpts, err := cfg.RegistryOptions()
			if err != nil {
				return err
			}
			palette, err := cfg.BuildPalette()
			if err != nil {
				return err
			}

			collector := metrics.New()
			runner := scenario.NewRunner(
				scenario.WithLogger(logger),
				scenario.WithRecorder(collector),
				scenario.WithRegistryOptions(regOpts...),
			)

			var (
				results []replayResult
				failed  int
			)
			for _, file := range args {
				res := replayResult{File: file}
				s, err := scenario.Load(file)
				if err == nil {
					res.Name = s.Name
					var report *scenario.Report
					report, err = runner.Run(s)
					if report != nil {
						res.Steps = report.Steps
						res.Breakpoints = report.Breakpoints
					}
				}
				res.Passed = err == nil
				if err != nil {
					res.Error = err.Error()
					failed++
				}
				results = append(results, res)
			}

			if opts.json {
				data, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results: %w", err)
				}
				cmd.Println(string(data))
			} else {
				for _, res := range results {
					label := fmt.Sprintf("%s (%d steps)", res.File, res.Steps)
					if res.Passed {
						cmd.Println(renderOK(label))
					} else {
						cmd.Println(renderError(label + ": " + res.Error))
					}
					if showState {
						for _, s := range res.Breakpoints {
							cmd.Println("    " + renderBreakpoint(palette, s))
						}
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errScenarioFailed, failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showState, "state", false, "Print the final breakpoint state of each scenario")
	return cmd
}
