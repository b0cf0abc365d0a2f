package debug

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dshills/triggerpoints/internal/logging"
)

// Reason is why the host debugger changed run state.
type Reason int

const (
	// ReasonNone is an unspecified reason.
	ReasonNone Reason = iota
	// ReasonLaunchProgram is an explicit launch of the debuggee.
	ReasonLaunchProgram
	// ReasonAttachProgram is an attach to a running process.
	ReasonAttachProgram
	// ReasonGo is a resume after a break.
	ReasonGo
	// ReasonStep is a step operation.
	ReasonStep
	// ReasonBreakpoint is a native breakpoint hit.
	ReasonBreakpoint
	// ReasonUserBreak is a user-requested pause.
	ReasonUserBreak
	// ReasonException is a thrown exception.
	ReasonException
	// ReasonEndProgram is the debuggee exiting.
	ReasonEndProgram
	// ReasonStopDebugging is the user ending the session.
	ReasonStopDebugging
	// ReasonDetachProgram is a detach from the debuggee.
	ReasonDetachProgram
)

// String returns a string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonLaunchProgram:
		return "launch"
	case ReasonAttachProgram:
		return "attach"
	case ReasonGo:
		return "go"
	case ReasonStep:
		return "step"
	case ReasonBreakpoint:
		return "breakpoint"
	case ReasonUserBreak:
		return "user-break"
	case ReasonException:
		return "exception"
	case ReasonEndProgram:
		return "end"
	case ReasonStopDebugging:
		return "stop"
	case ReasonDetachProgram:
		return "detach"
	default:
		return "unknown"
	}
}

// ParseReason parses the string form of a reason.
func ParseReason(s string) (Reason, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r := ReasonNone; r <= ReasonDetachProgram; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown reason %q", s)
}

// ExecutionAction tells the host what to do after a break.
type ExecutionAction int

const (
	// ActionBreak leaves the debuggee stopped.
	ActionBreak ExecutionAction = iota
	// ActionGo resumes execution.
	ActionGo
)

// String returns a string representation of the action.
func (a ExecutionAction) String() string {
	if a == ActionGo {
		return "go"
	}
	return "break"
}

// Event is a host debugger notification.
type Event interface {
	isEvent()
}

// RunStarted is delivered when the debuggee is about to execute.
type RunStarted struct {
	Reason Reason
}

// DesignModeEntered is delivered when the debug session has ended.
type DesignModeEntered struct {
	Reason Reason
}

// BreakEntered is delivered when the debuggee stops.
type BreakEntered struct {
	Reason   Reason
	Location Location
}

func (RunStarted) isEvent()        {}
func (DesignModeEntered) isEvent() {}
func (BreakEntered) isEvent()      {}

// HitResult describes the outcome of a breakpoint hit.
type HitResult struct {
	// Action is ActionGo when the hit source requests auto-resume.
	Action ExecutionAction

	// Managed is false when the location holds no live trigger record.
	Managed bool

	// Mode is the hit record's mode at the time of the hit.
	Mode Mode

	// Activated lists the targets that moved to Triggered.
	Activated []Location
}

// Controller applies trigger semantics to host debugger events.
//
// Event handling is serialized; the controller may be driven from several
// goroutines, though hosts normally deliver events from one.
type Controller struct {
	mu       sync.Mutex
	registry *Registry
	recorder Recorder
	logger   *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the controller logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithControllerRecorder sets the activity recorder.
func WithControllerRecorder(rec Recorder) ControllerOption {
	return func(c *Controller) {
		if rec != nil {
			c.recorder = rec
		}
	}
}

// NewController creates a controller over reg.
func NewController(reg *Registry, opts ...ControllerOption) *Controller {
	c := &Controller{
		registry: reg,
		recorder: NopRecorder{},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.KeyComponent, "trigger")
	return c
}

// Registry returns the registry the controller drives.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Handle dispatches a host event and returns the action for the host to
// take. Only BreakEntered can yield ActionGo.
func (c *Controller) Handle(ev Event) ExecutionAction {
	switch ev := ev.(type) {
	case RunStarted:
		c.HandleRunStarted(ev.Reason)
	case DesignModeEntered:
		c.HandleDesignMode(ev.Reason)
	case BreakEntered:
		return c.HandleBreak(ev.Reason, ev.Location)
	}
	return ActionBreak
}

// HandleRunStarted returns all targets to the dormant state when the
// debuggee is launched. Other run reasons, such as resuming after a break,
// leave trigger state alone.
func (c *Controller) HandleRunStarted(reason Reason) int {
	if reason != ReasonLaunchProgram {
		return 0
	}
	return c.reset(reason)
}

// HandleDesignMode returns all targets to the dormant state when the debug
// session ends, however it ended.
func (c *Controller) HandleDesignMode(reason Reason) int {
	return c.reset(reason)
}

func (c *Controller) reset(reason Reason) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	done := c.registry.Transition(func(s Snapshot) bool {
		return s.Mode.IsTriggerTarget()
	}, ModeNotTriggered, DisableNative)

	c.recorder.Reset(reason, len(done))
	c.logger.Debug("trigger targets reset",
		logging.KeyReason, reason.String(),
		logging.KeyCount, len(done),
	)
	return len(done)
}

// HandleBreak processes a break. Only breaks caused by a breakpoint are
// considered.
func (c *Controller) HandleBreak(reason Reason, loc Location) ExecutionAction {
	if reason != ReasonBreakpoint {
		return ActionBreak
	}
	return c.HandleBreakpointHit(loc).Action
}

// HandleBreakpointHit applies trigger semantics to a hit at loc.
//
// A trigger source activates every other dormant target of its colour in a
// single pass over the pre-hit state, so activated targets never cascade
// further within the same hit. TriggerAndContinue additionally requests
// auto-resume. Hits on targets and on unmanaged or invalid locations change
// nothing.
func (c *Controller) HandleBreakpointHit(loc Location) HitResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.registry.Lookup(loc)
	if !ok {
		return HitResult{Action: ActionBreak}
	}
	hit := b.Snapshot()
	if !hit.Valid {
		return HitResult{Action: ActionBreak}
	}

	res := HitResult{
		Action:  ActionBreak,
		Managed: true,
		Mode:    hit.Mode,
	}
	c.recorder.Hit(hit.Mode)

	if hit.Mode.IsTriggerSource() {
		res.Activated = c.registry.Transition(func(s Snapshot) bool {
			return s.Location != hit.Location &&
				s.Color == hit.Color &&
				s.Mode == ModeNotTriggered
		}, ModeTriggered, EnableNative)

		c.recorder.Cascade(hit.Color, len(res.Activated))
		c.logger.Debug("trigger fired",
			logging.KeyLocation, loc.String(),
			logging.KeyColor, hit.Color.String(),
			logging.KeyCount, len(res.Activated),
		)
	}

	if hit.Mode == ModeTriggerAndContinue {
		res.Action = ActionGo
	}
	return res
}
