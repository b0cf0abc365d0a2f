package debug

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Mode is the trigger mode of a breakpoint.
//
// TriggerAndBreak and TriggerAndContinue mark a trigger source. NotTriggered
// and Triggered mark a trigger target that is either dormant or activated.
type Mode int

const (
	// ModeTriggerAndBreak activates same-coloured targets and breaks.
	ModeTriggerAndBreak Mode = iota
	// ModeTriggerAndContinue activates same-coloured targets and resumes.
	ModeTriggerAndContinue
	// ModeNotTriggered is a dormant target; its native breakpoint is disabled.
	ModeNotTriggered
	// ModeTriggered is an activated target. Only the controller enters it.
	ModeTriggered
)

// String returns a string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeTriggerAndBreak:
		return "trigger-and-break"
	case ModeTriggerAndContinue:
		return "trigger-and-continue"
	case ModeNotTriggered:
		return "not-triggered"
	case ModeTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// ParseMode parses the string form of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trigger-and-break", "triggerandbreak", "break":
		return ModeTriggerAndBreak, nil
	case "trigger-and-continue", "triggerandcontinue", "continue":
		return ModeTriggerAndContinue, nil
	case "not-triggered", "nottriggered", "dormant":
		return ModeNotTriggered, nil
	case "triggered":
		return ModeTriggered, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// IsTriggerSource reports whether hitting a breakpoint in this mode
// activates other breakpoints.
func (m Mode) IsTriggerSource() bool {
	return m == ModeTriggerAndBreak || m == ModeTriggerAndContinue
}

// IsTriggerTarget reports whether the mode belongs to a trigger target.
func (m Mode) IsTriggerTarget() bool {
	return m == ModeNotTriggered || m == ModeTriggered
}

// UserSettable reports whether a user may assign this mode directly.
func (m Mode) UserSettable() bool {
	return m == ModeTriggerAndBreak || m == ModeTriggerAndContinue || m == ModeNotTriggered
}

// Location identifies a breakpoint by source file and 1-based line.
type Location struct {
	Path string `json:"path" yaml:"path"`
	Line int    `json:"line" yaml:"line"`
}

// Loc is shorthand for constructing a Location.
func Loc(path string, line int) Location {
	return Location{Path: path, Line: line}
}

// String returns path:line.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// ParseLocation parses path:line. The last colon separates the line, so
// Windows drive letters survive.
func ParseLocation(s string) (Location, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return Location{}, fmt.Errorf("location %q: want path:line", s)
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line < 1 {
		return Location{}, fmt.Errorf("location %q: invalid line", s)
	}
	return Loc(s[:i], line), nil
}

// Compare orders locations by path, then by line.
func (l Location) Compare(other Location) int {
	if c := strings.Compare(l.Path, other.Path); c != 0 {
		return c
	}
	return cmp.Compare(l.Line, other.Line)
}

// Handle is the adapter-issued identifier of a native breakpoint.
type Handle int

// Breakpoint is a trigger breakpoint record. Records are created and owned
// by a Registry; other components hold non-owning references.
// Accessors are safe to call concurrently with registry mutations.
type Breakpoint struct {
	mu *sync.RWMutex // owning registry's lock

	loc    Location
	mode   Mode
	color  Color
	valid  bool
	handle Handle
	native bool
}

// Location returns the identity of the breakpoint.
func (b *Breakpoint) Location() Location {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loc
}

// Path returns the source file path.
func (b *Breakpoint) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loc.Path
}

// Line returns the line number.
func (b *Breakpoint) Line() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loc.Line
}

// Mode returns the current trigger mode.
func (b *Breakpoint) Mode() Mode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mode
}

// Color returns the trigger colour.
func (b *Breakpoint) Color() Color {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.color
}

// Valid reports whether the native breakpoint can still be resolved.
// An invalid breakpoint is dead and should be purged by whoever observes it.
func (b *Breakpoint) Valid() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.valid
}

// Handle returns the native handle and whether one is attached.
func (b *Breakpoint) Handle() (Handle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle, b.native
}

// Snapshot returns a copy of the breakpoint's observable state.
func (b *Breakpoint) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot()
}

func (b *Breakpoint) snapshot() Snapshot {
	return Snapshot{
		Location: b.loc,
		Mode:     b.mode,
		Color:    b.color,
		Valid:    b.valid,
	}
}

func (b *Breakpoint) setMode(m Mode) bool {
	if b.mode == m {
		return false
	}
	b.mode = m
	return true
}

func (b *Breakpoint) setColor(c Color) bool {
	if b.color == c {
		return false
	}
	b.color = c
	return true
}

// invalidate marks the record dead and reports whether it was alive.
func (b *Breakpoint) invalidate() bool {
	if !b.valid {
		return false
	}
	b.valid = false
	return true
}

// Snapshot is an immutable copy of a breakpoint's state.
type Snapshot struct {
	Location Location `json:"location" yaml:"location"`
	Mode     Mode     `json:"mode" yaml:"mode"`
	Color    Color    `json:"color" yaml:"color"`
	Valid    bool     `json:"valid" yaml:"valid"`
}
