package debug

// Adapter is the host-owned bridge to the native debugger's breakpoint
// collection. Calls are synchronous and expected to return quickly.
//
// Any error is treated as a resolution failure: the native breakpoint is
// considered gone and the owning record is invalidated.
type Adapter interface {
	// Attach binds to an existing native breakpoint at loc or creates one.
	Attach(loc Location) (Handle, error)

	// Enable enables the native breakpoint.
	Enable(h Handle) error

	// Disable disables the native breakpoint.
	Disable(h Handle) error

	// Delete removes the native breakpoint.
	Delete(h Handle) error

	// CurrentLine returns the line the native breakpoint currently sits on,
	// which drifts when the source is edited.
	CurrentLine(h Handle) (int, error)
}

// NativeOp is a single native operation applied during a transition.
type NativeOp struct {
	Name  string
	Apply func(a Adapter, h Handle) error
}

// Native operations used by the trigger controller.
var (
	EnableNative = NativeOp{
		Name:  OpEnable,
		Apply: func(a Adapter, h Handle) error { return a.Enable(h) },
	}
	DisableNative = NativeOp{
		Name:  OpDisable,
		Apply: func(a Adapter, h Handle) error { return a.Disable(h) },
	}
)
