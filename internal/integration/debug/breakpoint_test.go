package debug

import (
	"errors"
	"fmt"
	"testing"
)

// fakeAdapter is a minimal Adapter for in-package tests.
type fakeAdapter struct {
	next    Handle
	lines   map[Handle]int
	enabled map[Handle]bool
	fail    map[string]bool
	calls   []string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		next:    1,
		lines:   make(map[Handle]int),
		enabled: make(map[Handle]bool),
		fail:    make(map[string]bool),
	}
}

func (f *fakeAdapter) Attach(loc Location) (Handle, error) {
	f.calls = append(f.calls, OpAttach)
	if f.fail[OpAttach] {
		return 0, ErrNativeNotFound
	}
	h := f.next
	f.next++
	f.lines[h] = loc.Line
	f.enabled[h] = true
	return h, nil
}

func (f *fakeAdapter) Enable(h Handle) error  { return f.set(OpEnable, h, true) }
func (f *fakeAdapter) Disable(h Handle) error { return f.set(OpDisable, h, false) }

func (f *fakeAdapter) set(op string, h Handle, on bool) error {
	f.calls = append(f.calls, op)
	if f.fail[op] {
		return fmt.Errorf("%s %d: %w", op, h, ErrNativeNotFound)
	}
	f.enabled[h] = on
	return nil
}

func (f *fakeAdapter) Delete(h Handle) error {
	f.calls = append(f.calls, OpDelete)
	if f.fail[OpDelete] {
		return ErrNativeNotFound
	}
	delete(f.lines, h)
	delete(f.enabled, h)
	return nil
}

func (f *fakeAdapter) CurrentLine(h Handle) (int, error) {
	f.calls = append(f.calls, OpCurrentLine)
	line, ok := f.lines[h]
	if !ok || f.fail[OpCurrentLine] {
		return 0, ErrNativeNotFound
	}
	return line, nil
}

func TestMode_String(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeTriggerAndBreak, "trigger-and-break"},
		{ModeTriggerAndContinue, "trigger-and-continue"},
		{ModeNotTriggered, "not-triggered"},
		{ModeTriggered, "triggered"},
		{Mode(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", int(tt.mode), got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeTriggerAndBreak, ModeTriggerAndContinue, ModeNotTriggered, ModeTriggered} {
		got, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("ParseMode(%q) failed: %v", m.String(), err)
		}
		if got != m {
			t.Errorf("expected %v, got %v", m, got)
		}
	}

	if _, err := ParseMode("sometimes"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}

func TestMode_Classification(t *testing.T) {
	if !ModeTriggerAndBreak.IsTriggerSource() || !ModeTriggerAndContinue.IsTriggerSource() {
		t.Error("expected trigger modes to be sources")
	}
	if ModeNotTriggered.IsTriggerSource() || ModeTriggered.IsTriggerSource() {
		t.Error("expected target modes not to be sources")
	}
	if !ModeNotTriggered.IsTriggerTarget() || !ModeTriggered.IsTriggerTarget() {
		t.Error("expected target modes to be targets")
	}
	if ModeTriggered.UserSettable() {
		t.Error("triggered must not be user settable")
	}
}

func TestMode_TextRoundTrip(t *testing.T) {
	text, err := ModeTriggerAndContinue.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	var m Mode
	if err := m.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if m != ModeTriggerAndContinue {
		t.Errorf("expected trigger-and-continue, got %v", m)
	}
}

func TestLocation_Compare(t *testing.T) {
	tests := []struct {
		a, b Location
		want int
	}{
		{Loc("a.go", 10), Loc("a.go", 10), 0},
		{Loc("a.go", 9), Loc("a.go", 10), -1},
		{Loc("a.go", 100), Loc("b.go", 1), -1},
		{Loc("b.go", 1), Loc("a.go", 100), 1},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLocation_Equality(t *testing.T) {
	if Loc("a.go", 3) != (Location{Path: "a.go", Line: 3}) {
		t.Error("expected equal locations")
	}
	if Loc("a.go", 3) == Loc("a.go", 4) {
		t.Error("expected different lines to differ")
	}
	if got := Loc("a.go", 3).String(); got != "a.go:3" {
		t.Errorf("expected a.go:3, got %s", got)
	}
}

func TestBreakpoint_SetReportsChange(t *testing.T) {
	reg := NewRegistry(nil)
	bp := reg.Create("a.go", 1)

	reg.mu.Lock()
	first := bp.setMode(ModeNotTriggered)
	second := bp.setMode(ModeNotTriggered)
	colour := bp.setColor(ColorRed)
	reg.mu.Unlock()

	if !first {
		t.Error("expected first setMode to report a change")
	}
	if second {
		t.Error("expected repeated setMode to report no change")
	}
	if colour {
		t.Error("expected setting the current colour to report no change")
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    Location
		wantErr bool
	}{
		{"a.cs:10", Loc("a.cs", 10), false},
		{"/src/pkg/main.go:7", Loc("/src/pkg/main.go", 7), false},
		{`C:\src\main.go:3`, Loc(`C:\src\main.go`, 3), false},
		{"main.go", Location{}, true},
		{":4", Location{}, true},
		{"main.go:0", Location{}, true},
		{"main.go:x", Location{}, true},
	}
	for _, tt := range tests {
		got, err := ParseLocation(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLocation(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
