package paced

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// ChunkEvent records one chunk write within a paced response, relative to
// the start of that response.
type ChunkEvent struct {
	RelativeTimeMs float64 `json:"relativeTimeMs"`
	ByteCount      int     `json:"byteCount"`
}

// Trace records the pacing of one served request, success or failure.
type Trace struct {
	Path       string       `json:"path"`
	StartedAt  time.Time    `json:"startedAt"`
	Status     int          `json:"status"`
	Chunks     []ChunkEvent `json:"chunks,omitempty"`
	TotalBytes int64        `json:"totalBytes"`
	Error      string       `json:"error,omitempty"`
}

// GapSummary describes the distribution of observed inter-chunk gaps
// across every request a collector has seen, in milliseconds.
type GapSummary struct {
	Count int64 `json:"count"`
	P50   int64 `json:"p50Ms"`
	P90   int64 `json:"p90Ms"`
	P99   int64 `json:"p99Ms"`
	Max   int64 `json:"maxMs"`
}

// Collector accumulates traces from every request served by a server
// instance. It is injected into the server at construction so parallel
// server instances never share trace state.
//
// Appends are atomic per entry; no ordering across concurrent requests'
// entries is guaranteed. Alongside the raw traces it maintains an HDR
// histogram of inter-chunk gaps so pacing fidelity can be reported
// without retaining per-gap samples.
type Collector struct {
	mu     sync.Mutex
	traces []Trace
	gaps   *hdrhistogram.Histogram
}

// NewCollector creates an empty trace collector. The gap histogram covers
// 1ms to 60s at three significant figures, which is ample for any sane
// chunk delay.
func NewCollector() *Collector {
	return &Collector{
		gaps: hdrhistogram.New(1, 60_000, 3),
	}
}

// Add appends one completed trace and folds its inter-chunk gaps into the
// pacing histogram.
func (c *Collector) Add(t Trace) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.traces = append(c.traces, t)
	for i := 1; i < len(t.Chunks); i++ {
		gap := int64(t.Chunks[i].RelativeTimeMs - t.Chunks[i-1].RelativeTimeMs)
		if gap < 1 {
			gap = 1
		}
		// RecordValue only fails outside the histogram range; clamp
		// instead of dropping so Max stays honest.
		if gap > 60_000 {
			gap = 60_000
		}
		_ = c.gaps.RecordValue(gap)
	}
}

// Traces returns a copy of all recorded traces.
func (c *Collector) Traces() []Trace {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Trace, len(c.traces))
	copy(out, c.traces)
	return out
}

// Len returns the number of recorded traces.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.traces)
}

// GapSummary returns percentile statistics over every inter-chunk gap
// observed so far.
func (c *Collector) GapSummary() GapSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return GapSummary{
		Count: c.gaps.TotalCount(),
		P50:   c.gaps.ValueAtQuantile(50),
		P90:   c.gaps.ValueAtQuantile(90),
		P99:   c.gaps.ValueAtQuantile(99),
		Max:   c.gaps.Max(),
	}
}
