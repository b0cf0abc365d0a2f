package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/dshills/triggerpoints/internal/integration/debug/adapters"
	"github.com/dshills/triggerpoints/internal/logging"
)

// Delve launch modes.
const (
	ModeDebug = "debug" // build and debug a main package
	ModeExec  = "exec"  // debug a prebuilt binary
	ModeTest  = "test"  // build and debug a test binary
)

// DelveOptions describes a headless Delve server to start.
type DelveOptions struct {
	// Binary is the dlv executable. Defaults to "dlv".
	Binary string

	// Mode is ModeDebug, ModeExec or ModeTest. Defaults to ModeDebug.
	Mode string

	// Target is the package or binary to debug.
	Target string

	// Args are passed to the debuggee.
	Args []string

	// Listen is the host:port the server listens on.
	Listen string

	// Dir is the working directory.
	Dir string

	// Env is added to the current environment.
	Env []string

	// StartTimeout bounds the wait for the listener. Building the target
	// happens inside it. Defaults to one minute.
	StartTimeout time.Duration

	// Stdout and Stderr receive the server and debuggee output.
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

// Command returns the dlv command line for o.
func (o DelveOptions) Command() (string, []string) {
	bin := o.Binary
	if bin == "" {
		bin = "dlv"
	}
	mode := o.Mode
	if mode == "" {
		mode = ModeDebug
	}

	args := []string{mode}
	if o.Target != "" {
		args = append(args, o.Target)
	}
	args = append(args, "--headless", "--api-version=2", "--listen="+o.Listen)
	if len(o.Args) > 0 {
		args = append(args, "--")
		args = append(args, o.Args...)
	}
	return bin, args
}

// StartDelve starts a headless Delve server and returns once its listener
// accepts connections. The server is stopped if it fails to come up.
func StartDelve(ctx context.Context, o DelveOptions) (*Process, error) {
	switch o.Mode {
	case "", ModeDebug, ModeExec, ModeTest:
	default:
		return nil, fmt.Errorf("unknown delve mode %q", o.Mode)
	}
	if o.Listen == "" {
		return nil, errors.New("delve listen address is required")
	}
	timeout := o.StartTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	logger := logging.WithComponent(o.Logger, "dlv")

	bin, args := o.Command()
	cmd := exec.Command(bin, args...)
	cmd.Dir = o.Dir
	cmd.Stdout = o.Stdout
	cmd.Stderr = o.Stderr
	if len(o.Env) > 0 {
		cmd.Env = append(os.Environ(), o.Env...)
	}

	proc := New("dlv", cmd)
	if err := proc.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("delve debugger not found: %w (install with: go install github.com/go-delve/delve/cmd/dlv@latest)", err)
		}
		return nil, err
	}
	logger.Info("delve started", "pid", proc.PID(), "listen", o.Listen)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	go func() {
		select {
		case <-proc.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	if err := adapters.WaitForAddress(waitCtx, o.Listen); err != nil {
		if proc.HasExited() {
			return nil, fmt.Errorf("delve exited with status %d before listening on %s", proc.ExitCode(), o.Listen)
		}
		if stopErr := proc.Stop(2 * time.Second); stopErr != nil {
			logger.Warn("stopping delve failed", "error", stopErr)
		}
		return nil, err
	}
	return proc, nil
}
