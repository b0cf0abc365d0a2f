package process

import (
	"context"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"testing"
	"time"
)

// TestMain doubles as a fake dlv when FAKE_DLV is set: it listens on the
// --listen address until interrupted.
func TestMain(m *testing.M) {
	switch os.Getenv("FAKE_DLV") {
	case "":
		os.Exit(m.Run())
	case "fail":
		os.Exit(3)
	default:
		fakeDelve(os.Args[1:])
	}
}

func fakeDelve(args []string) {
	var listen string
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "--listen="); ok {
			listen = v
		}
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		os.Exit(2)
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

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	os.Exit(0)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestNew(t *testing.T) {
	proc := New("echo", exec.Command("echo", "hello"))

	if proc.State() != StateCreated {
		t.Errorf("expected StateCreated, got %v", proc.State())
	}
	if proc.ExitCode() != -1 {
		t.Errorf("expected exit code -1, got %d", proc.ExitCode())
	}
	if proc.PID() != -1 {
		t.Errorf("expected PID -1 before start, got %d", proc.PID())
	}
	if proc.Runtime() != 0 {
		t.Error("expected zero runtime before start")
	}
	if err := proc.Stop(time.Second); err != ErrProcessNotStarted {
		t.Errorf("expected ErrProcessNotStarted, got %v", err)
	}
}

func TestProcess_ExitCode(t *testing.T) {
	proc := New("sh", exec.Command("sh", "-c", "exit 4"))
	if err := proc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := proc.Start(); err != ErrProcessAlreadyStarted {
		t.Errorf("expected ErrProcessAlreadyStarted, got %v", err)
	}

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit")
	}

	if proc.State() != StateExited {
		t.Errorf("expected StateExited, got %v", proc.State())
	}
	if proc.ExitCode() != 4 {
		t.Errorf("expected exit code 4, got %d", proc.ExitCode())
	}
	if proc.ExitError() == nil {
		t.Error("expected exit error")
	}
	if err := proc.Stop(time.Second); err != nil {
		t.Errorf("expected Stop after exit to be a no-op, got %v", err)
	}
}

func TestProcess_StartFailure(t *testing.T) {
	proc := New("missing", exec.Command("/nonexistent/binary"))
	if err := proc.Start(); err == nil {
		t.Fatal("expected start error")
	}
	if proc.State() != StateCreated {
		t.Errorf("expected StateCreated after failed start, got %v", proc.State())
	}
}

func TestProcess_StopKillsAfterGrace(t *testing.T) {
	proc := New("sh", exec.Command("sh", "-c", "trap '' INT; sleep 30"))
	if err := proc.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := proc.Stop(200 * time.Millisecond); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if proc.State() != StateKilled {
		t.Errorf("expected StateKilled, got %v", proc.State())
	}
}

func TestState_String(t *testing.T) {
	if StateKilled.String() != "killed" || State(9).String() != "unknown(9)" {
		t.Error("unexpected state names")
	}
}

func TestDelveOptions_Command(t *testing.T) {
	bin, args := DelveOptions{
		Target: "./cmd/server",
		Listen: "127.0.0.1:2345",
		Args:   []string{"-port", "8080"},
	}.Command()

	if bin != "dlv" {
		t.Errorf("expected dlv, got %q", bin)
	}
	want := []string{"debug", "./cmd/server", "--headless", "--api-version=2", "--listen=127.0.0.1:2345", "--", "-port", "8080"}
	if !slices.Equal(args, want) {
		t.Errorf("expected %v, got %v", want, args)
	}

	_, args = DelveOptions{Mode: ModeExec, Target: "./server", Listen: ":1"}.Command()
	if args[0] != "exec" || slices.Contains(args, "--") {
		t.Errorf("unexpected exec args %v", args)
	}
}

func TestStartDelve(t *testing.T) {
	addr := freeAddr(t)
	proc, err := StartDelve(context.Background(), DelveOptions{
		Binary:       os.Args[0],
		Target:       "./cmd/server",
		Listen:       addr,
		Env:          []string{"FAKE_DLV=serve"},
		StartTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("StartDelve failed: %v", err)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("expected server to listen: %v", err)
	}
	conn.Close()

	if err := proc.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if proc.ExitCode() != 0 {
		t.Errorf("expected clean exit on interrupt, got %d", proc.ExitCode())
	}
}

func TestStartDelve_ExitsEarly(t *testing.T) {
	_, err := StartDelve(context.Background(), DelveOptions{
		Binary:       os.Args[0],
		Listen:       freeAddr(t),
		Env:          []string{"FAKE_DLV=fail"},
		StartTimeout: 10 * time.Second,
	})
	if err == nil || !strings.Contains(err.Error(), "exited with status 3") {
		t.Errorf("expected early exit error, got %v", err)
	}
}

func TestStartDelve_Validation(t *testing.T) {
	if _, err := StartDelve(context.Background(), DelveOptions{Mode: "trace", Listen: ":1"}); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := StartDelve(context.Background(), DelveOptions{}); err == nil {
		t.Error("expected error without listen address")
	}
	_, err := StartDelve(context.Background(), DelveOptions{Binary: "triggerpoints-no-such-dlv", Listen: ":1"})
	if err == nil || !strings.Contains(err.Error(), "go install") {
		t.Errorf("expected install hint, got %v", err)
	}
}
