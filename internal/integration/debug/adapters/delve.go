package adapters

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-delve/delve/service/api"
	"github.com/go-delve/delve/service/rpc2"

	"github.com/dshills/triggerpoints/internal/integration/debug"
)

// DelveClient is the subset of the Delve JSON-RPC client used for
// breakpoint management. *rpc2.RPCClient satisfies it.
type DelveClient interface {
	CreateBreakpoint(bp *api.Breakpoint) (*api.Breakpoint, error)
	AmendBreakpoint(bp *api.Breakpoint) error
	ClearBreakpoint(id int) (*api.Breakpoint, error)
	GetBreakpoint(id int) (*api.Breakpoint, error)
	ListBreakpoints(all bool) ([]*api.Breakpoint, error)
}

// DelveAdapter implements debug.Adapter against a headless Delve server.
// Handles are Delve breakpoint IDs.
type DelveAdapter struct {
	mu     sync.Mutex
	client DelveClient
	rpc    *rpc2.RPCClient
}

// NewDelveAdapter wraps an existing client.
func NewDelveAdapter(client DelveClient) *DelveAdapter {
	a := &DelveAdapter{client: client}
	if rpc, ok := client.(*rpc2.RPCClient); ok {
		a.rpc = rpc
	}
	return a
}

// DialDelve connects to a headless Delve server started with
// `dlv --headless --api-version=2`. A zero timeout waits five seconds.
func DialDelve(ctx context.Context, address string, timeout time.Duration) (*DelveAdapter, error) {
	if address == "" {
		return nil, fmt.Errorf("delve address is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := WaitForAddress(waitCtx, address); err != nil {
		return nil, fmt.Errorf("connect to delve: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(waitCtx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connect to delve: %w", err)
	}
	return NewDelveAdapter(rpc2.NewClientFromConn(conn)), nil
}

// Client returns the underlying JSON-RPC client when the adapter was dialed,
// or nil when it wraps another DelveClient.
func (a *DelveAdapter) Client() *rpc2.RPCClient {
	return a.rpc
}

// Attach binds to an existing Delve breakpoint at loc or creates one.
func (a *DelveAdapter) Attach(loc debug.Location) (debug.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.client.ListBreakpoints(false)
	if err != nil {
		return 0, fmt.Errorf("delve list breakpoints: %w", err)
	}
	for _, bp := range existing {
		if samePath(bp.File, loc.Path) && bp.Line == loc.Line {
			return debug.Handle(bp.ID), nil
		}
	}

	created, err := a.client.CreateBreakpoint(&api.Breakpoint{
		File: loc.Path,
		Line: loc.Line,
	})
	if err != nil {
		return 0, fmt.Errorf("delve create breakpoint at %s: %w", loc, err)
	}
	return debug.Handle(created.ID), nil
}

// Enable clears the Disabled flag of the breakpoint.
func (a *DelveAdapter) Enable(h debug.Handle) error {
	return a.amend(h, false)
}

// Disable sets the Disabled flag of the breakpoint.
func (a *DelveAdapter) Disable(h debug.Handle) error {
	return a.amend(h, true)
}

func (a *DelveAdapter) amend(h debug.Handle, disabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	bp, err := a.get(h)
	if err != nil {
		return err
	}
	if bp.Disabled == disabled {
		return nil
	}
	bp.Disabled = disabled
	if err := a.client.AmendBreakpoint(bp); err != nil {
		return fmt.Errorf("delve amend breakpoint %d: %w", h, err)
	}
	return nil
}

// Delete clears the breakpoint.
func (a *DelveAdapter) Delete(h debug.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.client.ClearBreakpoint(int(h)); err != nil {
		return fmt.Errorf("delve clear breakpoint %d: %w", h, err)
	}
	return nil
}

// CurrentLine returns the line Delve reports for the breakpoint.
func (a *DelveAdapter) CurrentLine(h debug.Handle) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bp, err := a.get(h)
	if err != nil {
		return 0, err
	}
	return bp.Line, nil
}

func (a *DelveAdapter) get(h debug.Handle) (*api.Breakpoint, error) {
	bp, err := a.client.GetBreakpoint(int(h))
	if err != nil {
		return nil, fmt.Errorf("delve get breakpoint %d: %w", h, err)
	}
	if bp == nil {
		return nil, fmt.Errorf("delve breakpoint %d: %w", h, debug.ErrNativeNotFound)
	}
	return bp, nil
}

// samePath compares file paths after cleaning; Delve reports absolute paths.
func samePath(a, b string) bool {
	if a == b {
		return true
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
