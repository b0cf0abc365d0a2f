package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-delve/delve/service/api"

	"github.com/dshills/triggerpoints/internal/integration/debug"
	"github.com/dshills/triggerpoints/internal/logging"
)

// DelveRunner is the subset of the Delve JSON-RPC client used to drive
// execution. *rpc2.RPCClient satisfies it.
type DelveRunner interface {
	Continue() <-chan *api.DebuggerState
	Halt() (*api.DebuggerState, error)
	Restart(rerecord bool) ([]api.DiscardedBreakpoint, error)
	Detach(kill bool) error
}

// Stop describes where execution came to rest.
type Stop struct {
	// Location is the breakpoint location when stopped on a breakpoint.
	Location debug.Location

	// Breakpoint is true when execution stopped on a breakpoint.
	Breakpoint bool

	// Exited is true when the debuggee has terminated.
	Exited bool

	// ExitStatus is the debuggee exit code when Exited.
	ExitStatus int

	// AutoResumed counts hits that resumed automatically before this stop.
	AutoResumed int
}

// DelveHost turns Delve run-state into controller events. It emits
// RunStarted on launch, BreakEntered on every breakpoint stop, resuming
// automatically while the controller answers ActionGo, and
// DesignModeEntered when the debuggee exits or the session ends.
type DelveHost struct {
	runner DelveRunner
	ctrl   *debug.Controller
	logger *slog.Logger
}

// NewDelveHost creates a host over runner.
func NewDelveHost(runner DelveRunner, ctrl *debug.Controller, logger *slog.Logger) *DelveHost {
	return &DelveHost{
		runner: runner,
		ctrl:   ctrl,
		logger: logging.WithComponent(logger, "delve-host"),
	}
}

// Launch resets trigger targets and runs the debuggee to its next stop.
func (h *DelveHost) Launch(ctx context.Context) (Stop, error) {
	h.ctrl.Handle(debug.RunStarted{Reason: debug.ReasonLaunchProgram})
	return h.run(ctx)
}

// Resume continues from a stop without resetting trigger state.
func (h *DelveHost) Resume(ctx context.Context) (Stop, error) {
	h.ctrl.Handle(debug.RunStarted{Reason: debug.ReasonGo})
	return h.run(ctx)
}

// Restart restarts the debuggee and launches it again.
func (h *DelveHost) Restart(ctx context.Context) (Stop, error) {
	discarded, err := h.runner.Restart(false)
	if err != nil {
		return Stop{}, fmt.Errorf("delve restart: %w", err)
	}
	for _, d := range discarded {
		if d.Breakpoint == nil {
			continue
		}
		h.logger.Warn("breakpoint discarded on restart",
			logging.KeyLocation, debug.Loc(d.Breakpoint.File, d.Breakpoint.Line).String(),
			"reason", d.Reason,
		)
	}
	return h.Launch(ctx)
}

// End finishes the session, resetting trigger targets, and detaches.
func (h *DelveHost) End(kill bool) error {
	h.ctrl.Handle(debug.DesignModeEntered{Reason: debug.ReasonStopDebugging})
	if err := h.runner.Detach(kill); err != nil {
		return fmt.Errorf("delve detach: %w", err)
	}
	return nil
}

func (h *DelveHost) run(ctx context.Context) (Stop, error) {
	var stop Stop
	for {
		state, err := h.continueOnce(ctx)
		if err != nil {
			return stop, err
		}

		if state.Exited {
			h.ctrl.Handle(debug.DesignModeEntered{Reason: debug.ReasonEndProgram})
			stop.Exited = true
			stop.ExitStatus = state.ExitStatus
			return stop, nil
		}

		loc, ok := breakpointLocation(state)
		if !ok {
			h.ctrl.Handle(debug.BreakEntered{Reason: debug.ReasonUserBreak})
			return stop, nil
		}

		action := h.ctrl.Handle(debug.BreakEntered{Reason: debug.ReasonBreakpoint, Location: loc})
		if action == debug.ActionGo {
			stop.AutoResumed++
			h.logger.Debug("auto-resuming", logging.KeyLocation, loc.String())
			continue
		}

		stop.Location = loc
		stop.Breakpoint = true
		return stop, nil
	}
}

// continueOnce issues a continue and returns the final state. If ctx ends
// first the debuggee is halted and ctx.Err is returned.
func (h *DelveHost) continueOnce(ctx context.Context) (*api.DebuggerState, error) {
	states := h.runner.Continue()

	var last *api.DebuggerState
	for {
		select {
		case state, ok := <-states:
			if !ok {
				if last == nil {
					return nil, errors.New("delve continue returned no state")
				}
				if last.Err != nil && !last.Exited {
					return nil, fmt.Errorf("delve continue: %w", last.Err)
				}
				return last, nil
			}
			last = state
		case <-ctx.Done():
			if _, err := h.runner.Halt(); err != nil {
				h.logger.Warn("halt failed", "error", err)
			}
			for range states {
			}
			return nil, ctx.Err()
		}
	}
}

func breakpointLocation(state *api.DebuggerState) (debug.Location, bool) {
	th := state.CurrentThread
	if th == nil || th.Breakpoint == nil {
		return debug.Location{}, false
	}
	if th.Breakpoint.File != "" {
		return debug.Loc(th.Breakpoint.File, th.Breakpoint.Line), true
	}
	return debug.Loc(th.File, th.Line), true
}
