package paced

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandler(t *testing.T, cfg Config, collector *Collector) *handler {
	t.Helper()
	h, err := newHandler(cfg, collector)
	require.NoError(t, err)
	return h
}

// serveRaw drives the handler with an unescaped path, bypassing client-side
// URL cleanup so traversal attempts arrive verbatim.
func serveRaw(h *handler, method, rawPath string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "http://paced.test/", nil)
	u, _ := url.Parse(rawPath)
	req.URL = u
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Status codes
// =============================================================================

func TestHandler_RootReturnsNoContent(t *testing.T) {
	c := NewCollector()
	h := testHandler(t, Config{Root: t.TempDir()}, c)

	rec := serveRaw(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestHandler_MissingFileIsNotFound(t *testing.T) {
	c := NewCollector()
	h := testHandler(t, Config{Root: t.TempDir()}, c)

	rec := serveRaw(h, http.MethodGet, "/nope.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_TraversalIsForbidden(t *testing.T) {
	c := NewCollector()
	h := testHandler(t, Config{Root: t.TempDir()}, c)

	for _, path := range []string{
		"/../../etc/passwd",
		"/../sibling.png",
		"/a/../../escape",
	} {
		rec := serveRaw(h, http.MethodGet, path)
		assert.Equal(t, http.StatusForbidden, rec.Code, "path %q must not resolve", path)
		assert.NotContains(t, rec.Body.String(), "root:", "must never leak file contents")
	}
}

func TestHandler_DirectoryIsNotFound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.bin", []byte("x"))
	h := testHandler(t, Config{Root: root}, NewCollector())

	rec := serveRaw(h, http.MethodGet, "/.")
	// "/." resolves to the root directory itself.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := testHandler(t, Config{Root: t.TempDir()}, NewCollector())

	rec := serveRaw(h, http.MethodPost, "/a.png")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// =============================================================================
// Headers and body behavior
// =============================================================================

func TestHandler_ContentTypeByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png", []byte("png"))
	writeFile(t, root, "b.JXL", []byte("jxl"))
	writeFile(t, root, "c.mystery", []byte("???"))
	h := testHandler(t, Config{Root: root}, NewCollector())

	cases := []struct {
		path string
		want string
	}{
		{"/a.png", "image/png"},
		{"/b.JXL", "image/jxl"},
		{"/c.mystery", "application/octet-stream"},
	}
	for _, tc := range cases {
		rec := serveRaw(h, http.MethodGet, tc.path)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tc.want, rec.Header().Get("Content-Type"), tc.path)
	}
}

func TestHandler_NoContentLengthAndNoCaching(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png", []byte("progressive bytes"))
	h := testHandler(t, Config{Root: root}, NewCollector())

	rec := serveRaw(h, http.MethodGet, "/a.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Length"), "length must never be declared")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestHandler_HeadHasHeadersNoBody(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png", []byte("progressive bytes"))
	c := NewCollector()
	h := testHandler(t, Config{Root: root, ChunkDelay: time.Hour}, c)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- serveRaw(h, http.MethodHead, "/a.png") }()

	// A paced body would block for ChunkDelay; HEAD must return at once.
	select {
	case rec := <-done:
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Empty(t, rec.Body.Bytes())
	case <-time.After(5 * time.Second):
		t.Fatal("HEAD request paced its (absent) body")
	}
}

func TestHandler_QueryStringIgnored(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png", []byte("x"))
	h := testHandler(t, Config{Root: root}, NewCollector())

	rec := serveRaw(h, http.MethodGet, "/a.png?run=3&cachebust=77")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// Chunking and traces
// =============================================================================

func TestHandler_ChunksAndTrace(t *testing.T) {
	root := t.TempDir()
	payload := make([]byte, 40*1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	writeFile(t, root, "img.avif", payload)

	c := NewCollector()
	h := testHandler(t, Config{Root: root, ChunkBytes: 4096, ChunkDelay: 5 * time.Millisecond}, c)

	rec := serveRaw(h, http.MethodGet, "/img.avif")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())

	traces := c.Traces()
	require.Len(t, traces, 1)
	tr := traces[0]
	assert.Equal(t, "/img.avif", tr.Path)
	assert.Equal(t, http.StatusOK, tr.Status)
	assert.Equal(t, int64(len(payload)), tr.TotalBytes)
	require.GreaterOrEqual(t, len(tr.Chunks), 10, "40KB at 4KB chunks")
	for _, ev := range tr.Chunks {
		assert.Equal(t, 4096, ev.ByteCount)
	}
	for i := 1; i < len(tr.Chunks); i++ {
		assert.GreaterOrEqual(t, tr.Chunks[i].RelativeTimeMs, tr.Chunks[i-1].RelativeTimeMs,
			"chunk events are ordered in time")
	}
}

func TestHandler_ChunkPacingGaps(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "img.png", make([]byte, 5*1024))

	c := NewCollector()
	delay := 50 * time.Millisecond
	h := testHandler(t, Config{Root: root, ChunkBytes: 1024, ChunkDelay: delay}, c)

	start := time.Now()
	rec := serveRaw(h, http.MethodGet, "/img.png")
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)
	// 5 chunks means 4 (plus one trailing) delays; allow generous
	// scheduling slack but insist pacing actually happened.
	assert.GreaterOrEqual(t, elapsed, 4*delay)

	tr := c.Traces()[0]
	require.Len(t, tr.Chunks, 5)
	for i := 1; i < len(tr.Chunks); i++ {
		gap := tr.Chunks[i].RelativeTimeMs - tr.Chunks[i-1].RelativeTimeMs
		assert.GreaterOrEqual(t, gap, 45.0, "inter-chunk gap must be near the configured delay")
	}
}

func TestHandler_FailedRequestStillTraced(t *testing.T) {
	c := NewCollector()
	h := testHandler(t, Config{Root: t.TempDir()}, c)

	serveRaw(h, http.MethodGet, "/missing.png")
	serveRaw(h, http.MethodGet, "/../../etc/passwd")

	traces := c.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, http.StatusNotFound, traces[0].Status)
	assert.NotEmpty(t, traces[0].Error)
	assert.Equal(t, http.StatusForbidden, traces[1].Status)
}

func TestHandler_EmptyFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "zero.png", nil)
	c := NewCollector()
	h := testHandler(t, Config{Root: root}, c)

	rec := serveRaw(h, http.MethodGet, "/zero.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	tr := c.Traces()[0]
	assert.Empty(t, tr.Chunks)
	assert.Zero(t, tr.TotalBytes)
}
