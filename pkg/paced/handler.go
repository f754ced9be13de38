package paced

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// contentTypes maps file extensions to MIME types. The image set covers
// every format the benchmark serves; anything unknown falls back to
// generic binary so the renderer still attempts a sniff-free decode.
var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".avif": "image/avif",
	".jxl":  "image/jxl",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".json": "application/json",
	".txt":  "text/plain; charset=utf-8",
}

const fallbackContentType = "application/octet-stream"

func contentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return fallbackContentType
}

// handler serves one paced response per request. All pacing state is
// request-scoped: the chunk timer of one connection never touches
// another's.
type handler struct {
	root       string
	chunkBytes int
	delay      time.Duration
	collector  *Collector
}

func newHandler(cfg Config, collector *Collector) (*handler, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", cfg.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", root)
	}

	chunkBytes := cfg.ChunkBytes
	if chunkBytes <= 0 {
		chunkBytes = DefaultConfig(root).ChunkBytes
	}

	return &handler{
		root:       root,
		chunkBytes: chunkBytes,
		delay:      cfg.ChunkDelay,
		collector:  collector,
	}, nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	trace := Trace{
		// Query strings are ignored: the harness appends cache
		// busters that must not affect path resolution.
		Path:      r.URL.Path,
		StartedAt: time.Now(),
	}
	defer func() { h.collector.Add(trace) }()

	// wroteHeader guards the single-response-header invariant: once the
	// status line is on the wire, failures can only abort the body.
	wroteHeader := false
	fail := func(status int, msg string) {
		trace.Status = status
		trace.Error = msg
		if !wroteHeader {
			http.Error(w, msg, status)
			wroteHeader = true
		}
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		fail(http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.URL.Path == "/" {
		trace.Status = http.StatusNoContent
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// Resolve under the root and reject anything that escapes it.
	resolved, err := filepath.Abs(filepath.Join(h.root, filepath.FromSlash(r.URL.Path)))
	if err != nil || !h.underRoot(resolved) {
		fail(http.StatusForbidden, "forbidden")
		return
	}

	f, err := os.Open(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			fail(http.StatusNotFound, "not found")
		} else {
			fail(http.StatusInternalServerError, "internal error")
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fail(http.StatusInternalServerError, "internal error")
		return
	}
	if info.IsDir() {
		fail(http.StatusNotFound, "not found")
		return
	}

	// No Content-Length on purpose: the renderer must not be able to
	// pre-size its buffer. Caching is disabled so repeated runs always
	// hit the pacing path.
	w.Header().Set("Content-Type", contentTypeFor(resolved))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	wroteHeader = true
	trace.Status = http.StatusOK

	if r.Method == http.MethodHead {
		return
	}

	h.pace(w, r, f, &trace)
}

func (h *handler) underRoot(path string) bool {
	return path == h.root || strings.HasPrefix(path, h.root+string(filepath.Separator))
}

// pace streams the file in fixed-size chunks with a fixed delay between
// them, recording one ChunkEvent per write. The response header has
// already been sent; errors here can only be logged and traced.
func (h *handler) pace(w http.ResponseWriter, r *http.Request, f *os.File, trace *Trace) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, h.chunkBytes)
	start := trace.StartedAt

	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				// Client went away mid-body; the trace keeps
				// what was delivered.
				trace.Error = err.Error()
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			trace.Chunks = append(trace.Chunks, ChunkEvent{
				RelativeTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
				ByteCount:      n,
			})
			trace.TotalBytes += int64(n)
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return
		}
		if readErr != nil {
			log.Printf("paced: read %s: %v", trace.Path, readErr)
			trace.Error = readErr.Error()
			return
		}

		select {
		case <-time.After(h.delay):
		case <-r.Context().Done():
			trace.Error = r.Context().Err().Error()
			return
		}
	}
}
