package debug

// Recorder observes controller and registry activity, typically for metrics.
type Recorder interface {
	// Hit is called for every managed breakpoint hit.
	Hit(mode Mode)

	// Cascade is called after a trigger source activates targets.
	Cascade(color Color, activated int)

	// Reset is called after targets are returned to the dormant state.
	Reset(reason Reason, count int)

	// Invalidated is called when a native operation fails.
	Invalidated(op string)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) Hit(Mode)           {}
func (NopRecorder) Cascade(Color, int) {}
func (NopRecorder) Reset(Reason, int)  {}
func (NopRecorder) Invalidated(string) {}
