// Package scenario replays scripted debugger sessions against the trigger
// controller.
//
// A scenario is a YAML document listing steps. Each step performs one
// operation on an in-memory session and may assert on the outcome:
//
//	name: cascade
//	steps:
//	  - op: create
//	    at: a.cs:10
//	  - op: create
//	    at: a.cs:20
//	    mode: not-triggered
//	  - op: hit
//	    at: a.cs:10
//	    action: break
//	    activated: [a.cs:20]
//	  - op: run
//	    reason: launch
//	  - op: expect
//	    at: a.cs:20
//	    mode: not-triggered
//	    enabled: false
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Operations understood by the runner.
const (
	OpCreate       = "create"
	OpRemove       = "remove"
	OpSetMode      = "set-mode"
	OpSetColor     = "set-color"
	OpHit          = "hit"
	OpBreak        = "break"
	OpRun          = "run"
	OpDesign       = "design"
	OpDeleteNative = "delete-native"
	OpMoveNative   = "move-native"
	OpFailNative   = "fail-native"
	OpResync       = "resync"
	OpPurge        = "purge"
	OpExpect       = "expect"
)

var knownOps = map[string]bool{
	OpCreate: true, OpRemove: true, OpSetMode: true, OpSetColor: true,
	OpHit: true, OpBreak: true, OpRun: true, OpDesign: true,
	OpDeleteNative: true, OpMoveNative: true, OpFailNative: true,
	OpResync: true, OpPurge: true, OpExpect: true,
}

// ErrExpectation is wrapped by StepError when an assertion does not hold.
var ErrExpectation = errors.New("expectation failed")

// Scenario is a scripted session.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Defaults    Defaults `yaml:"defaults,omitempty"`
	Steps       []Step   `yaml:"steps"`
}

// Defaults overrides the registry defaults for the scenario.
type Defaults struct {
	Mode  string `yaml:"mode,omitempty"`
	Color string `yaml:"color,omitempty"`
}

// Step is one operation plus optional assertions. Which fields apply
// depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// At is the target location as path:line.
	At string `yaml:"at,omitempty"`

	// Path selects a file for resync.
	Path string `yaml:"path,omitempty"`

	// Mode and Color are inputs for create, set-mode and set-color, and
	// assertions for expect.
	Mode  string `yaml:"mode,omitempty"`
	Color string `yaml:"color,omitempty"`

	// Reason is the run, design or break reason.
	Reason string `yaml:"reason,omitempty"`

	// Line is the new native line for move-native.
	Line int `yaml:"line,omitempty"`

	// Assertions.
	Action    string   `yaml:"action,omitempty"`
	Activated []string `yaml:"activated,omitempty"`
	Moved     []string `yaml:"moved,omitempty"`
	Purged    []string `yaml:"purged,omitempty"`
	Enabled   *bool    `yaml:"enabled,omitempty"`
	Valid     *bool    `yaml:"valid,omitempty"`
	Exists    *bool    `yaml:"exists,omitempty"`
	Count     *int     `yaml:"count,omitempty"`
	Error     string   `yaml:"error,omitempty"`
}

// StepError reports the step at which a scenario failed.
type StepError struct {
	Index int
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario and checks its structure. Unknown fields and
// operations are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty scenario")
		}
		return nil, err
	}
	if len(s.Steps) == 0 {
		return nil, errors.New("scenario has no steps")
	}
	for i, step := range s.Steps {
		if !knownOps[step.Op] {
			return nil, &StepError{Index: i, Op: step.Op, Err: errors.New("unknown operation")}
		}
	}
	return &s, nil
}
