package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dshills/triggerpoints/internal/integration/debug"
	"github.com/dshills/triggerpoints/internal/integration/debug/adapters"
	"github.com/dshills/triggerpoints/internal/logging"
)

// Report summarizes a completed replay.
type Report struct {
	Name  string
	Steps int

	// Breakpoints is the final registry state in registry order.
	Breakpoints []debug.Snapshot

	// Native is the final native breakpoint table.
	Native []adapters.NativeBreakpoint

	// Changes lists every registry notification in delivery order.
	Changes []debug.Change
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger passed to the registry and controller.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRecorder sets the activity recorder.
func WithRecorder(rec debug.Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithRegistryOptions adds registry options, such as a palette from
// configuration. Scenario defaults are applied after them.
func WithRegistryOptions(opts ...debug.RegistryOption) Option {
	return func(r *Runner) {
		r.registryOpts = append(r.registryOpts, opts...)
	}
}

// Runner replays scenarios, each against a fresh in-memory session.
type Runner struct {
	logger       *slog.Logger
	recorder     debug.Recorder
	registryOpts []debug.RegistryOption
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

type session struct {
	native *adapters.MemoryAdapter
	reg    *debug.Registry
	ctrl   *debug.Controller
}

// Run replays s. It stops at the first failing step and returns a
// *StepError together with the report so far.
func (r *Runner) Run(s *Scenario) (*Report, error) {
	opts := slices.Clone(r.registryOpts)
	opts = append(opts, debug.WithLogger(r.logger), debug.WithRecorder(r.recorder))

	sess := &session{native: adapters.NewMemoryAdapter()}
	sess.reg = debug.NewRegistry(sess.native, opts...)
	sess.ctrl = debug.NewController(sess.reg,
		debug.WithControllerLogger(r.logger),
		debug.WithControllerRecorder(r.recorder),
	)

	report := &Report{Name: s.Name}
	sub, err := sess.reg.Notifier().Subscribe(func(c debug.Change) {
		report.Changes = append(report.Changes, c)
	})
	if err != nil {
		return nil, err
	}
	defer sess.reg.Notifier().Unsubscribe(sub)

	if s.Defaults.Mode != "" || s.Defaults.Color != "" {
		if err := applyDefaults(sess.reg, s.Defaults); err != nil {
			return report, fmt.Errorf("scenario defaults: %w", err)
		}
	}

	logger := r.logger.With(logging.KeyComponent, "scenario", "scenario", s.Name)
	for i, step := range s.Steps {
		logger.Debug("step", "index", i+1, logging.KeyOp, step.Op, "at", step.At)
		err := sess.exec(step)
		report.Steps = i + 1
		if err != nil {
			r.finish(sess, report)
			return report, &StepError{Index: i, Op: step.Op, Err: err}
		}
	}

	r.finish(sess, report)
	return report, nil
}

func (r *Runner) finish(sess *session, report *Report) {
	for _, b := range sess.reg.All() {
		report.Breakpoints = append(report.Breakpoints, b.Snapshot())
	}
	report.Native = sess.native.Breakpoints()
}

func applyDefaults(reg *debug.Registry, d Defaults) error {
	mode, color := reg.Defaults()
	if d.Mode != "" {
		m, err := debug.ParseMode(d.Mode)
		if err != nil {
			return err
		}
		mode = m
	}
	if d.Color != "" {
		color = debug.Color(d.Color)
	}
	return reg.SetDefaults(mode, color)
}

func (s *session) exec(step Step) error {
	err := s.apply(step)
	switch {
	case step.Error == "" && err != nil:
		return err
	case step.Error != "" && err == nil:
		return fmt.Errorf("%w: expected error containing %q", ErrExpectation, step.Error)
	case step.Error != "" && !strings.Contains(err.Error(), step.Error):
		return fmt.Errorf("%w: expected error containing %q, got %q", ErrExpectation, step.Error, err)
	}
	return nil
}

func (s *session) apply(step Step) error {
	switch step.Op {
	case OpCreate:
		loc, err := debug.ParseLocation(step.At)
		if err != nil {
			return err
		}
		s.reg.Create(loc.Path, loc.Line)
		if step.Mode != "" {
			if err := s.setMode(loc, step.Mode); err != nil {
				return err
			}
		}
		if step.Color != "" {
			return s.reg.SetColor(loc, debug.Color(step.Color))
		}
		return nil

	case OpRemove:
		loc, err := debug.ParseLocation(step.At)
		if err != nil {
			return err
		}
		s.reg.Remove(loc.Path, loc.Line)
		return nil

	case OpSetMode:
		loc, err := debug.ParseLocation(step.At)
		if err != nil {
			return err
		}
		return s.setMode(loc, step.Mode)

	case OpSetColor:
		loc, err := debug.ParseLocation(step.At)
		if err != nil {
			return err
		}
		return s.reg.SetColor(loc, debug.Color(step.Color))

	case OpHit:
		loc, err := debug.ParseLocation(step.At)
		if err != nil {
			return err
		}
		res := s.ctrl.HandleBreakpointHit(loc)
		if err := expectAction(step.Action, res.Action); err != nil {
			return err
		}
		if step.Activated != nil {
			return expectLocations("activated", step.Activated, res.Activated)
		}
		return nil

	case OpBreak:
		reason, err := reasonOr(step.Reason, debug.ReasonBreakpoint)
		if err != nil {
			return err
		}
		var loc debug.Location
		if step.At != "" {
			if loc, err = debug.ParseLocation(step.At); err != nil {
				return err
			}
		}
		action := s.ctrl.Handle(debug.BreakEntered{Reason: reason, Location: loc})
		return expectAction(step.Action, action)

	case OpRun:
		reason, err := reasonOr(step.Reason, debug.ReasonLaunchProgram)
		if err != nil {
			return err
		}
		s.ctrl.Handle(debug.RunStarted{Reason: reason})
		return nil

	case OpDesign:
		reason, err := reasonOr(step.Reason, debug.ReasonStopDebugging)
		if err != nil {
			return err
		}
		s.ctrl.Handle(debug.DesignModeEntered{Reason: reason})
		return nil

	case OpDeleteNative:
		loc, err := debug.ParseLocation(step.At)
		if err != nil {
			return err
		}
		if !s.native.DeleteOutOfBand(loc) {
			return fmt.Errorf("no native breakpoint at %s", loc)
		}
		return nil

	case OpMoveNative:
		loc, err := debug.ParseLocation(step.At)
		if err != nil {
			return err
		}
		if !s.native.MoveLine(loc, step.Line) {
			return fmt.Errorf("no native breakpoint at %s", loc)
		}
		return nil

	case OpFailNative:
		loc, err := debug.ParseLocation(step.At)
		if err != nil {
			return err
		}
		b, ok := s.reg.Lookup(loc)
		if !ok {
			return fmt.Errorf("fail native at %s: %w", loc, debug.ErrBreakpointNotFound)
		}
		h, attached := b.Handle()
		if !attached {
			return fmt.Errorf("no native breakpoint at %s", loc)
		}
		s.native.FailHandle(h)
		return nil

	case OpResync:
		path := step.Path
		if path == "" {
			loc, err := debug.ParseLocation(step.At)
			if err != nil {
				return fmt.Errorf("resync needs path or at: %w", err)
			}
			path = loc.Path
		}
		moved := s.reg.Resync(path)
		if step.Moved != nil {
			return expectLocations("moved", step.Moved, moved)
		}
		return nil

	case OpPurge:
		purged := s.reg.PurgeInvalid()
		if step.Purged != nil {
			return expectLocations("purged", step.Purged, purged)
		}
		return nil

	case OpExpect:
		return s.expect(step)
	}
	return fmt.Errorf("unknown operation %q", step.Op)
}

func (s *session) setMode(loc debug.Location, mode string) error {
	m, err := debug.ParseMode(mode)
	if err != nil {
		return err
	}
	return s.reg.SetMode(loc, m)
}

func (s *session) expect(step Step) error {
	if step.Count != nil && s.reg.Len() != *step.Count {
		return fmt.Errorf("%w: expected %d breakpoints, got %d", ErrExpectation, *step.Count, s.reg.Len())
	}
	if step.At == "" {
		return nil
	}

	loc, err := debug.ParseLocation(step.At)
	if err != nil {
		return err
	}
	b, ok := s.reg.Lookup(loc)
	if step.Exists != nil && ok != *step.Exists {
		return fmt.Errorf("%w: expected exists=%t at %s", ErrExpectation, *step.Exists, loc)
	}
	if !ok {
		if step.Exists == nil {
			return fmt.Errorf("%w: no breakpoint at %s", ErrExpectation, loc)
		}
		return nil
	}

	snap := b.Snapshot()
	if step.Mode != "" {
		want, err := debug.ParseMode(step.Mode)
		if err != nil {
			return err
		}
		if snap.Mode != want {
			return fmt.Errorf("%w: %s mode is %s, expected %s", ErrExpectation, loc, snap.Mode, want)
		}
	}
	if step.Color != "" && snap.Color != debug.NormalizeColor(step.Color) {
		return fmt.Errorf("%w: %s colour is %s, expected %s", ErrExpectation, loc, snap.Color, step.Color)
	}
	if step.Valid != nil && snap.Valid != *step.Valid {
		return fmt.Errorf("%w: %s valid is %t, expected %t", ErrExpectation, loc, snap.Valid, *step.Valid)
	}
	if step.Enabled != nil {
		if got := s.native.Enabled(loc); got != *step.Enabled {
			return fmt.Errorf("%w: %s native enabled is %t, expected %t", ErrExpectation, loc, got, *step.Enabled)
		}
	}
	return nil
}

func reasonOr(s string, def debug.Reason) (debug.Reason, error) {
	if s == "" {
		return def, nil
	}
	return debug.ParseReason(s)
}

func expectAction(want string, got debug.ExecutionAction) error {
	if want == "" || strings.EqualFold(want, got.String()) {
		return nil
	}
	return fmt.Errorf("%w: action %s, expected %s", ErrExpectation, got, want)
}

func expectLocations(what string, want []string, got []debug.Location) error {
	parsed := make([]debug.Location, 0, len(want))
	for _, w := range want {
		loc, err := debug.ParseLocation(w)
		if err != nil {
			return err
		}
		parsed = append(parsed, loc)
	}
	if !slices.Equal(parsed, got) {
		return fmt.Errorf("%w: %s %v, expected %v", ErrExpectation, what, got, parsed)
	}
	return nil
}

// IsExpectationFailure reports whether err came from a failed assertion
// rather than an invalid step.
func IsExpectationFailure(err error) bool {
	return errors.Is(err, ErrExpectation)
}
