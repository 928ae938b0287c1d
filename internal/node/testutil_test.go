package node

import (
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"distfs/internal/registry"
)

type serverTestOpt func(*Config)

// WithRegistry attaches a registry store to the node under test.
func WithRegistry(r *registry.Store) serverTestOpt {
	return func(cfg *Config) { cfg.Registry = r }
}

// WithChunkTimeout enables the per-chunk transfer timeout.
func WithChunkTimeout(d time.Duration) serverTestOpt {
	return func(cfg *Config) { cfg.ChunkTimeout = d }
}

// newTestServer starts a node on an ephemeral localhost port with a temp
// storage base dir and auto-stops it.
func newTestServer(t *testing.T, opts ...serverTestOpt) *Server {
	t.Helper()

	cfg := Config{
		Bind:    "127.0.0.1:0",
		BaseDir: t.TempDir(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// dialNode opens a raw TCP connection so tests control framing and half-close.
func dialNode(t *testing.T, s *Server) *net.TCPConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", string(s.ListenAddr()), 2*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", s.ListenAddr(), err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn.(*net.TCPConn)
}

// roundTrip writes payload, half-closes the write side, and returns
// everything the node sends back.
func roundTrip(t *testing.T, s *Server, payload []byte) string {
	t.Helper()
	conn := dialNode(t, s)
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write request: %v", err)
	}
	if err := conn.CloseWrite(); err != nil {
		t.Fatalf("close write side: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return string(reply)
}

func storedPath(s *Server, name string) string {
	return filepath.Join(s.StorageDir(), name)
}
