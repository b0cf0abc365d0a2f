package adapters

import (
	"context"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/dshills/triggerpoints/internal/integration/debug"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()

	kinds := r.Kinds()
	if !slices.Equal(kinds, []Kind{KindDelve, KindMemory}) {
		t.Errorf("expected delve and memory, got %v", kinds)
	}
}

func TestRegistry_CreateMemory(t *testing.T) {
	r := NewRegistry()

	a, err := r.Create(context.Background(), Config{Kind: KindMemory})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, ok := a.(*MemoryAdapter); !ok {
		t.Errorf("expected *MemoryAdapter, got %T", a)
	}
}

func TestRegistry_CreateUnknown(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Create(context.Background(), Config{Kind: "lldb"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	custom := NewMemoryAdapter()

	r.Register("custom", func(context.Context, Config) (debug.Adapter, error) {
		return custom, nil
	})

	a, err := r.Create(context.Background(), Config{Kind: "custom"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a != custom {
		t.Error("expected the registered adapter")
	}
	if len(r.Kinds()) != 3 {
		t.Errorf("expected 3 kinds, got %v", r.Kinds())
	}
}

func TestRegistry_CreateDelveNoAddress(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Create(context.Background(), Config{Kind: KindDelve}); err == nil {
		t.Error("expected error without an address")
	}
}

func TestWaitForAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := WaitForAddress(ctx, ln.Addr().String()); err != nil {
		t.Errorf("WaitForAddress failed: %v", err)
	}
}

func TestWaitForAddress_Timeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := WaitForAddress(ctx, addr); err == nil {
		t.Error("expected timeout error")
	}
}
