// Package paced provides an HTTP file server that deliberately drips a
// file's bytes out in fixed-size chunks with a fixed inter-chunk delay and
// no Content-Length, forcing the receiving renderer to paint what it has
// instead of waiting for a known-size buffer.
//
// The server is importable so benchmark runs and tests can start/stop it
// programmatically on a random port.
package paced

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Config holds server configuration options.
type Config struct {
	Addr        string        // Listen address (e.g., ":8080" or ":0" for random port)
	Root        string        // Directory served; requests never escape it
	ChunkBytes  int           // Bytes written per chunk
	ChunkDelay  time.Duration // Pause between chunks
	ReadTimeout time.Duration // HTTP read timeout
}

// DefaultConfig returns a configuration suitable for benchmark runs:
// random port, 16 KiB chunks, 60ms between chunks.
func DefaultConfig(root string) Config {
	return Config{
		Addr:        ":0",
		Root:        root,
		ChunkBytes:  16384,
		ChunkDelay:  60 * time.Millisecond,
		ReadTimeout: 30 * time.Second,
	}
}

// Server streams files under a root directory with chunk pacing.
// Each request paces independently, so overlapping requests from several
// engines never perturb one another's timing.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	mu         sync.Mutex
	running    bool
}

// NewServer creates a new server with the given configuration and trace
// collector. The collector must not be nil; it receives one Trace per
// request served, whatever the outcome. The server is not started until
// Start() is called.
func NewServer(cfg Config, collector *Collector) (*Server, error) {
	if collector == nil {
		return nil, fmt.Errorf("paced: nil trace collector")
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("paced: root directory not configured")
	}

	h, err := newHandler(cfg, collector)
	if err != nil {
		return nil, err
	}

	// No WriteTimeout: a paced body legitimately takes
	// chunks*ChunkDelay to drain, which for large files exceeds any
	// sensible fixed write deadline.
	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     h,
		ReadTimeout: cfg.ReadTimeout,
	}

	return &Server{
		httpServer: httpServer,
	}, nil
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port
// is 0). This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			// Server may have been shut down; nothing to do.
		}
	}()

	return s.addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
