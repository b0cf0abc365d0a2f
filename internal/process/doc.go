// Package process runs the headless Delve server a debug session attaches
// to.
//
// StartDelve builds the dlv command line, starts it and waits until its
// JSON-RPC listener accepts connections:
//
//	proc, err := process.StartDelve(ctx, process.DelveOptions{
//	    Target: "./cmd/server",
//	    Listen: "127.0.0.1:2345",
//	})
//	if err != nil {
//	    return err
//	}
//	defer proc.Stop(5 * time.Second)
//
// # Process
//
// Each Process wraps an exec.Cmd with exit tracking:
//
//   - Done channel closed on exit
//   - Exit code and killed-by-signal state
//   - Graceful Stop: SIGINT, then SIGKILL after a grace period
//
// Process is safe for concurrent use.
package process
