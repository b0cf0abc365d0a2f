// Package adapters implements debug.Adapter for concrete native debuggers.
package adapters

import (
	"context"
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/dshills/triggerpoints/internal/integration/debug"
)

// Kind identifies a native debugger backend.
type Kind string

const (
	// KindMemory is the in-process breakpoint table.
	KindMemory Kind = "memory"
	// KindDelve is a headless Delve server reached over JSON-RPC.
	KindDelve Kind = "delve"
)

// Config selects and configures a backend.
type Config struct {
	// Kind is the backend type.
	Kind Kind

	// Address is the host:port of a headless Delve server.
	Address string

	// DialTimeout bounds how long to wait for Address to accept
	// connections.
	DialTimeout time.Duration
}

// Factory builds an adapter from configuration.
type Factory func(ctx context.Context, cfg Config) (debug.Adapter, error)

// Registry maps backend kinds to factories.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry creates a registry with the built-in backends.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[Kind]Factory),
	}

	r.Register(KindMemory, func(context.Context, Config) (debug.Adapter, error) {
		return NewMemoryAdapter(), nil
	})
	r.Register(KindDelve, func(ctx context.Context, cfg Config) (debug.Adapter, error) {
		return DialDelve(ctx, cfg.Address, cfg.DialTimeout)
	})

	return r
}

// Register registers a backend factory, replacing any existing one.
func (r *Registry) Register(kind Kind, factory Factory) {
	r.factories[kind] = factory
}

// Create builds the adapter named by cfg.Kind.
func (r *Registry) Create(ctx context.Context, cfg Config) (debug.Adapter, error) {
	factory, ok := r.factories[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown adapter kind: %s", cfg.Kind)
	}
	return factory(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func (r *Registry) Kinds() []Kind {
	result := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		result = append(result, k)
	}
	slices.Sort(result)
	return result
}

// WaitForAddress polls address until it accepts TCP connections or ctx is
// done.
func WaitForAddress(ctx context.Context, address string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", address, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w", address, ctx.Err())
		case <-ticker.C:
		}
	}
}
