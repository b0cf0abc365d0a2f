// Package debug adds trigger semantics to debugger breakpoints.
//
// Breakpoints are grouped by colour. A breakpoint marked as a trigger
// source enables every dormant breakpoint of its colour when it is hit,
// optionally resuming execution afterwards.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Controller                                  │
//	│  - Consumes run / break / design-mode events from the host      │
//	│  - Resets targets, runs colour cascades, requests auto-resume   │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Registry                                    │
//	│  - Owns records keyed by (path, line)                           │
//	│  - Publishes changes through a Notifier                         │
//	│  - Calls the host Adapter for native enable/disable/delete      │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Modes
//
//   - TriggerAndBreak: trigger source, the debugger stops as usual
//   - TriggerAndContinue: trigger source, execution resumes
//   - NotTriggered: dormant target, native breakpoint disabled
//   - Triggered: activated target, entered only by the Controller
//
// Targets are reset to NotTriggered and disabled whenever the program is
// launched and whenever the session ends.
//
// # Native failures
//
// The native debugger owns the real breakpoints and may drop them at any
// time. A failing Adapter call invalidates the record instead of returning
// an error; the presentation layer observes Valid() == false and calls
// Registry.PurgeInvalid or Registry.Remove.
//
// # Usage
//
//	reg := debug.NewRegistry(adapter, debug.WithDefaults(debug.ModeNotTriggered, debug.ColorRed))
//	ctrl := debug.NewController(reg)
//
//	reg.Create("main.go", 10)
//	reg.SetMode(debug.Loc("main.go", 10), debug.ModeTriggerAndContinue)
//	reg.Create("main.go", 42)
//
//	ctrl.Handle(debug.RunStarted{Reason: debug.ReasonLaunchProgram})
//	action := ctrl.Handle(debug.BreakEntered{
//	    Reason:   debug.ReasonBreakpoint,
//	    Location: debug.Loc("main.go", 10),
//	})
//
// # Subpackages
//
//   - adapters: in-memory and Delve implementations of Adapter, plus a
//     Delve-driven event source
package debug
