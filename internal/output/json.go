// Package output persists the three run artifacts: per-run JSON records,
// the aggregated-results collection, and the server trace log.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paintbench/paintbench/pkg/convergence"
	"github.com/paintbench/paintbench/pkg/paced"
)

// Artifact file names inside the output directory.
const (
	RunsFile       = "runs.jsonl"
	AggregatedFile = "aggregated.json"
	TraceFile      = "server_trace.json"
)

// RunWriter appends one JSON line per trial as results arrive, so a
// crashed suite still leaves every attempted trial on disk.
type RunWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewRunWriter creates (or truncates) the per-run record file in dir,
// creating dir if needed.
func NewRunWriter(dir string) (*RunWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, RunsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create run record file: %w", err)
	}
	return &RunWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write appends a single trial record as one JSON line.
func (w *RunWriter) Write(r convergence.RunResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encoder.Encode(r)
}

// Close closes the underlying file.
func (w *RunWriter) Close() error {
	return w.file.Close()
}

// WriteAggregated writes the aggregated-results collection as one
// indented JSON document.
func WriteAggregated(dir string, results []convergence.AggregatedResult) error {
	return writeJSON(filepath.Join(dir, AggregatedFile), results)
}

// traceLog is the persisted shape of the server trace artifact: the raw
// per-request traces plus the pacing-gap distribution over all of them.
type traceLog struct {
	Pacing paced.GapSummary `json:"pacing"`
	Traces []paced.Trace    `json:"traces"`
}

// WriteTrace writes the server chunk-timing log collected during a run.
func WriteTrace(dir string, collector *paced.Collector) error {
	return writeJSON(filepath.Join(dir, TraceFile), traceLog{
		Pacing: collector.GapSummary(),
		Traces: collector.Traces(),
	})
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
