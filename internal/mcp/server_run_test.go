package mcp

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

func TestServer_Run_StdioMode(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{` +
		`"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0.0"}}}` + "\n"
	var out bytes.Buffer
	s.stdin = strings.NewReader(initialize)
	s.stdout = &out

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil at end of input", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop at end of input")
	}

	if !strings.Contains(out.String(), "test-server") {
		t.Errorf("expected the initialize response to name the server, got: %s", out.String())
	}
}

func TestServer_Run_StdioContextCancellation(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	reader, writer := io.Pipe()
	defer writer.Close()
	s.stdin = reader
	s.stdout = io.Discard

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server did not shutdown gracefully within timeout")
	}
}

func TestServer_Run_ServerMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "server"
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)
	s := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	// Wait until the listener accepts connections
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", cfg.Address(), 100*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never accepted connections on %s: %v", cfg.Address(), err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancellation", err)
		}
	case <-time.After(2 * shutdownTimeout):
		t.Error("Server did not shutdown gracefully within timeout")
	}
}

func TestServer_Run_ServerModeAddressInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	defer listener.Close()

	cfg := testConfig(t)
	cfg.Mode = "server"
	cfg.Host = "127.0.0.1"
	cfg.Port = listener.Addr().(*net.TCPAddr).Port
	s := newTestServer(t, cfg)

	err = s.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to listen") {
		t.Errorf("Run() error = %v, want a listen error", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}
