package debug

import (
	"errors"
	"fmt"
)

// Sentinel errors for trigger breakpoints.
var (
	// ErrBreakpointNotFound is returned when no record exists at a location.
	ErrBreakpointNotFound = errors.New("breakpoint not found")

	// ErrReservedMode is returned when a caller tries to assign a mode only
	// the controller may enter.
	ErrReservedMode = errors.New("mode is reserved for the trigger controller")

	// ErrInvalidMode is returned for unparseable modes.
	ErrInvalidMode = errors.New("invalid breakpoint mode")

	// ErrUnknownColor is returned for colours outside the palette.
	ErrUnknownColor = errors.New("unknown colour")

	// ErrNativeNotFound is returned by adapters when the native breakpoint
	// no longer exists.
	ErrNativeNotFound = errors.New("native breakpoint not found")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// Native operation names used in ResolutionError and metrics.
const (
	OpAttach      = "attach"
	OpEnable      = "enable"
	OpDisable     = "disable"
	OpDelete      = "delete"
	OpCurrentLine = "current-line"
)

// ResolutionError records an adapter failure to act on a native breakpoint.
// The core never returns it to the host; it is logged and the affected
// record is invalidated.
type ResolutionError struct {
	Op       string
	Location Location
	Err      error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
}

// Unwrap returns the underlying adapter error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsResolutionFailure reports whether err is or wraps a ResolutionError.
func IsResolutionFailure(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
