package paced

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestServerStartStop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png", []byte("not-really-png"))

	srv, err := NewServer(DefaultConfig(root), NewCollector())
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if addr == "" || addr == ":0" {
		t.Errorf("Start() returned invalid address: %q", addr)
	}
	if got := srv.Addr(); got != addr {
		t.Errorf("Addr() = %q, want %q", got, addr)
	}

	resp, err := http.Get("http://" + addr + "/a.png")
	if err != nil {
		t.Fatalf("HTTP GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /a.png status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(body) != "not-really-png" {
		t.Errorf("unexpected body %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	if _, err := http.Get("http://" + addr + "/a.png"); err == nil {
		t.Error("expected connection error after shutdown, but request succeeded")
	}
}

func TestServerDoubleStart(t *testing.T) {
	srv, err := NewServer(DefaultConfig(t.TempDir()), NewCollector())
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	defer srv.Shutdown(context.Background())

	addr1, err := srv.Start()
	if err != nil {
		t.Fatalf("first Start() failed: %v", err)
	}
	addr2, err := srv.Start()
	if err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}
	if addr1 != addr2 {
		t.Errorf("second Start() returned different address: %q vs %q", addr1, addr2)
	}
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(DefaultConfig(t.TempDir()), nil); err == nil {
		t.Error("NewServer with nil collector should fail")
	}
	if _, err := NewServer(DefaultConfig(""), NewCollector()); err == nil {
		t.Error("NewServer with empty root should fail")
	}
	if _, err := NewServer(DefaultConfig("/definitely/not/a/real/dir"), NewCollector()); err == nil {
		t.Error("NewServer with missing root should fail")
	}

	file := writeFile(t, t.TempDir(), "plain.txt", []byte("x"))
	if _, err := NewServer(DefaultConfig(file), NewCollector()); err == nil {
		t.Error("NewServer with non-directory root should fail")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/srv/images")

	if cfg.Addr != ":0" {
		t.Errorf("DefaultConfig().Addr = %q, want %q", cfg.Addr, ":0")
	}
	if cfg.Root != "/srv/images" {
		t.Errorf("DefaultConfig().Root = %q, want %q", cfg.Root, "/srv/images")
	}
	if cfg.ChunkBytes != 16384 {
		t.Errorf("DefaultConfig().ChunkBytes = %d, want %d", cfg.ChunkBytes, 16384)
	}
	if cfg.ChunkDelay != 60*time.Millisecond {
		t.Errorf("DefaultConfig().ChunkDelay = %v, want %v", cfg.ChunkDelay, 60*time.Millisecond)
	}
}
