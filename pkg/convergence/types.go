// Package convergence implements the visual-convergence measurement core:
// frame similarity scoring, timeline reduction to point metrics
// (t85/t95/Visual Index), and cross-run statistical aggregation.
package convergence

import "image"

// TestCase describes one image variant under test. Instances are supplied
// by the encoding pipeline's config file and are never mutated.
type TestCase struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Format string `json:"format" yaml:"format"`
	URL    string `json:"url" yaml:"url"`
	Notes  string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Frame is a single captured raster plus its capture offset.
// T is milliseconds since the trial started.
//
// Frames are created by the capture loop, read by the analyzer, and must
// be dropped as soon as metrics are derived: a multi-second timeline of
// rasters is the dominant transient memory cost of a run.
type Frame struct {
	T   float64
	Img *image.RGBA
}

// Timeline is the ordered capture sequence for one (engine, test, run)
// triple. Frames are strictly increasing in T; the last frame is the
// convergence target.
type Timeline []Frame

// Metrics holds the point metrics derived from one timeline.
// T85 and T95 are nil when the corresponding threshold was never reached;
// VisIndex is nil only for an empty timeline.
type Metrics struct {
	T85      *float64 `json:"t85"`
	T95      *float64 `json:"t95"`
	VisIndex *float64 `json:"visIndex"`
}

// RunResult is the outcome of one trial. Exactly one of Metrics or Error
// is populated: a successful trial carries metrics and an empty Error, a
// failed trial carries the error string and nil metrics.
type RunResult struct {
	Engine        string `json:"engine"`
	EngineVersion string `json:"engineVersion"`
	TestID        string `json:"testId"`
	Label         string `json:"label"`
	Format        string `json:"format"`
	Notes         string `json:"notes,omitempty"`
	Run           int    `json:"run"`
	Metrics
	Error string `json:"error,omitempty"`
}

// Dist holds the raw per-metric value arrays across the runs of one
// (engine, test) pair. Count is the total number of trials attempted,
// successful and failed; failed trials never contribute values.
type Dist struct {
	Count    int       `json:"count"`
	T85      []float64 `json:"t85"`
	T95      []float64 `json:"t95"`
	VisIndex []float64 `json:"visIndex"`
}

// MetricSummary holds the derived statistics for one metric.
// Fields are nil when no successful runs produced a value.
type MetricSummary struct {
	Median *float64 `json:"median"`
	P10    *float64 `json:"p10"`
	P90    *float64 `json:"p90"`
}

// AggregatedResult combines all trials of one (engine, test) pair.
type AggregatedResult struct {
	Engine   string        `json:"engine"`
	TestID   string        `json:"testId"`
	Label    string        `json:"label"`
	Format   string        `json:"format"`
	Dist     Dist          `json:"dist"`
	T85      MetricSummary `json:"t85"`
	T95      MetricSummary `json:"t95"`
	VisIndex MetricSummary `json:"visIndex"`
	Errors   []string      `json:"errors,omitempty"`
}
