package adapters

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/dshills/triggerpoints/internal/integration/debug"
)

// NativeBreakpoint is a breakpoint held by a MemoryAdapter.
type NativeBreakpoint struct {
	Handle  debug.Handle
	Path    string
	Line    int
	Enabled bool
}

// Call records one adapter invocation.
type Call struct {
	Op     string
	Handle debug.Handle
}

// MemoryAdapter is an in-process native breakpoint table. It backs the
// scenario runner and tests, and lets callers simulate out-of-band edits
// such as a breakpoint deleted in the debugger UI or a line shift.
type MemoryAdapter struct {
	mu     sync.Mutex
	nextID debug.Handle
	bps    map[debug.Handle]*NativeBreakpoint
	calls  []Call

	// failing forces operations on a handle to fail.
	failing map[debug.Handle]bool
}

// NewMemoryAdapter creates an empty table.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		nextID:  1,
		bps:     make(map[debug.Handle]*NativeBreakpoint),
		failing: make(map[debug.Handle]bool),
	}
}

// Attach binds to the breakpoint at loc or creates an enabled one.
func (m *MemoryAdapter) Attach(loc debug.Location) (debug.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range sortedKeys(m.bps) {
		bp := m.bps[h]
		if bp.Path == loc.Path && bp.Line == loc.Line {
			m.record(debug.OpAttach, h)
			return h, nil
		}
	}

	h := m.nextID
	m.nextID++
	m.bps[h] = &NativeBreakpoint{
		Handle:  h,
		Path:    loc.Path,
		Line:    loc.Line,
		Enabled: true,
	}
	m.record(debug.OpAttach, h)
	return h, nil
}

// Enable enables a breakpoint.
func (m *MemoryAdapter) Enable(h debug.Handle) error {
	return m.setEnabled(debug.OpEnable, h, true)
}

// Disable disables a breakpoint.
func (m *MemoryAdapter) Disable(h debug.Handle) error {
	return m.setEnabled(debug.OpDisable, h, false)
}

func (m *MemoryAdapter) setEnabled(op string, h debug.Handle, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(op, h)
	bp, err := m.resolve(h)
	if err != nil {
		return err
	}
	bp.Enabled = enabled
	return nil
}

// Delete removes a breakpoint.
func (m *MemoryAdapter) Delete(h debug.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(debug.OpDelete, h)
	if _, err := m.resolve(h); err != nil {
		return err
	}
	delete(m.bps, h)
	return nil
}

// CurrentLine returns the breakpoint's line.
func (m *MemoryAdapter) CurrentLine(h debug.Handle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(debug.OpCurrentLine, h)
	bp, err := m.resolve(h)
	if err != nil {
		return 0, err
	}
	return bp.Line, nil
}

func (m *MemoryAdapter) resolve(h debug.Handle) (*NativeBreakpoint, error) {
	if m.failing[h] {
		return nil, fmt.Errorf("handle %d: %w", h, debug.ErrNativeNotFound)
	}
	bp, ok := m.bps[h]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, debug.ErrNativeNotFound)
	}
	return bp, nil
}

func (m *MemoryAdapter) record(op string, h debug.Handle) {
	m.calls = append(m.calls, Call{Op: op, Handle: h})
}

// DeleteOutOfBand removes the breakpoint at loc without going through the
// registry, as a user deleting it in the debugger UI would.
func (m *MemoryAdapter) DeleteOutOfBand(loc debug.Location) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for h, bp := range m.bps {
		if bp.Path == loc.Path && bp.Line == loc.Line {
			delete(m.bps, h)
			return true
		}
	}
	return false
}

// MoveLine shifts the breakpoint at loc to line, as a source edit would.
func (m *MemoryAdapter) MoveLine(loc debug.Location, line int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bp := range m.bps {
		if bp.Path == loc.Path && bp.Line == loc.Line {
			bp.Line = line
			return true
		}
	}
	return false
}

// FailHandle makes every later operation on h fail.
func (m *MemoryAdapter) FailHandle(h debug.Handle) {
	m.mu.Lock()
	m.failing[h] = true
	m.mu.Unlock()
}

// Lookup returns a copy of the breakpoint at loc.
func (m *MemoryAdapter) Lookup(loc debug.Location) (NativeBreakpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bp := range m.bps {
		if bp.Path == loc.Path && bp.Line == loc.Line {
			return *bp, true
		}
	}
	return NativeBreakpoint{}, false
}

// Enabled reports whether a live breakpoint at loc is enabled.
func (m *MemoryAdapter) Enabled(loc debug.Location) bool {
	bp, ok := m.Lookup(loc)
	return ok && bp.Enabled
}

// Breakpoints returns copies of all breakpoints ordered by handle.
func (m *MemoryAdapter) Breakpoints() []NativeBreakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]NativeBreakpoint, 0, len(m.bps))
	for _, h := range sortedKeys(m.bps) {
		out = append(out, *m.bps[h])
	}
	return out
}

// Calls returns the recorded invocations.
func (m *MemoryAdapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// ResetCalls clears the invocation log.
func (m *MemoryAdapter) ResetCalls() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
