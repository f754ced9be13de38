// Package runner orchestrates a benchmark suite: it owns the paced
// content server, walks the engine/test/run matrix sequentially, turns
// captured timelines into RunResults, and persists all artifacts.
package runner

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paintbench/paintbench/internal/config"
	"github.com/paintbench/paintbench/internal/output"
	"github.com/paintbench/paintbench/pkg/capture"
	"github.com/paintbench/paintbench/pkg/convergence"
	"github.com/paintbench/paintbench/pkg/paced"
)

// engineSession is one live engine instance executing trials. It exists
// as a seam so the suite walk can be tested without launching browsers.
type engineSession interface {
	Version() (string, error)
	RunTrial(tc convergence.TestCase, run int) (convergence.Timeline, error)
	Close() error
}

// Runner executes the full suite described by a Config.
type Runner struct {
	cfg      *config.Config
	runs     int
	headless bool
	loopCfg  capture.LoopConfig

	// openEngine launches one engine against the paced server's base
	// URL; replaced in tests.
	openEngine func(eng config.EngineConfig, baseURL string) (engineSession, error)
}

// New creates a Runner. runs must already be resolved through the
// flag/env/config precedence.
func New(cfg *config.Config, runs int, headless bool) *Runner {
	r := &Runner{
		cfg:      cfg,
		runs:     runs,
		headless: headless,
		loopCfg:  capture.DefaultLoopConfig(),
	}
	r.openEngine = r.openBrowserSession
	return r
}

// Run executes every (engine, test, run) trial and writes the three run
// artifacts. Infrastructure failures (server start, output dir) are
// fatal and abort before any trial; trial failures are contained in
// their RunResult.
func (r *Runner) Run() error {
	collector := paced.NewCollector()
	srv, err := paced.NewServer(r.pacedConfig(), collector)
	if err != nil {
		return fmt.Errorf("content server: %w", err)
	}
	addr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("content server: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("content server shutdown: %v", err)
		}
	}()
	log.Printf("content server on %s (chunk=%dB delay=%dms)",
		addr, r.cfg.Network.Server.ChunkBytes, r.cfg.Network.Server.ChunkDelayMs)

	writer, err := output.NewRunWriter(r.cfg.OutputDir)
	if err != nil {
		return err
	}
	defer writer.Close()

	var aggregated []convergence.AggregatedResult
	for _, eng := range r.cfg.Engines {
		results, err := r.runEngine(eng, "http://"+addr, writer)
		if err != nil {
			log.Printf("engine %s: %v; skipping", eng.ID, err)
			continue
		}
		aggregated = append(aggregated, results...)
	}

	if err := output.WriteAggregated(r.cfg.OutputDir, aggregated); err != nil {
		return err
	}
	if err := output.WriteTrace(r.cfg.OutputDir, collector); err != nil {
		return err
	}

	gaps := collector.GapSummary()
	log.Printf("suite done: %d aggregated pairs, %d requests traced, pacing p50=%dms p99=%dms",
		len(aggregated), collector.Len(), gaps.P50, gaps.P99)
	return nil
}

// runEngine walks every test case sequentially in one engine: run k+1 of
// a test starts only after run k's full capture-and-record cycle, so
// trials never cross-contaminate change detection.
func (r *Runner) runEngine(eng config.EngineConfig, baseURL string, writer *output.RunWriter) ([]convergence.AggregatedResult, error) {
	sess, err := r.openEngine(eng, baseURL)
	if err != nil {
		return nil, fmt.Errorf("launch failed: %w", err)
	}
	defer sess.Close()

	version, err := sess.Version()
	if err != nil {
		log.Printf("engine %s: version query failed: %v", eng.ID, err)
	}
	log.Printf("engine %s (%s): %d tests x %d runs", eng.ID, version, len(r.cfg.Tests), r.runs)

	var aggregated []convergence.AggregatedResult
	for _, tc := range r.cfg.Tests {
		results := make([]convergence.RunResult, 0, r.runs)
		for run := 1; run <= r.runs; run++ {
			res := r.runTrial(sess, eng, version, tc, run)
			if err := writer.Write(res); err != nil {
				return nil, fmt.Errorf("record trial: %w", err)
			}
			results = append(results, res)
		}
		aggregated = append(aggregated, convergence.Aggregate(results))
	}
	return aggregated, nil
}

// runTrial executes one trial and always returns a RunResult: either
// metrics or the trial error, never both.
func (r *Runner) runTrial(sess engineSession, eng config.EngineConfig, version string, tc convergence.TestCase, run int) convergence.RunResult {
	res := convergence.RunResult{
		Engine:        eng.ID,
		EngineVersion: version,
		TestID:        tc.ID,
		Label:         tc.Label,
		Format:        tc.Format,
		Notes:         tc.Notes,
		Run:           run,
	}

	tl, err := sess.RunTrial(tc, run)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	// Frames are dropped with tl when this returns; nothing retains
	// rasters past metric computation.
	metrics, err := convergence.Analyze(tl)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Metrics = metrics
	return res
}

func (r *Runner) pacedConfig() paced.Config {
	cfg := paced.DefaultConfig(r.cfg.Root)
	if cb := r.cfg.Network.Server.ChunkBytes; cb > 0 {
		cfg.ChunkBytes = cb
	}
	if d := r.cfg.Network.Server.ChunkDelayMs; d > 0 {
		cfg.ChunkDelay = time.Duration(d) * time.Millisecond
	}
	return cfg
}

// browserSession is the real engineSession backed by a capture.Browser.
type browserSession struct {
	browser *capture.Browser
	runner  *Runner
	baseURL string
}

func (r *Runner) openBrowserSession(eng config.EngineConfig, baseURL string) (engineSession, error) {
	bcfg := capture.DefaultBrowserConfig()
	bcfg.Headless = r.headless
	bcfg.Bin = eng.Bin
	b, err := capture.NewBrowser(bcfg)
	if err != nil {
		return nil, err
	}
	return &browserSession{browser: b, runner: r, baseURL: baseURL}, nil
}

func (s *browserSession) Version() (string, error) {
	return s.browser.Version()
}

func (s *browserSession) RunTrial(tc convergence.TestCase, run int) (convergence.Timeline, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	nc := s.runner.cfg.Network
	if nc.Throttle {
		if err := capture.EmulateNetwork(page, capture.NetworkConditions{
			LatencyMs: nc.Latency,
			DownKbps:  nc.DownKbps,
			UpKbps:    nc.UpKbps,
		}); err != nil {
			return nil, err
		}
	}

	render := capture.RenderOptions{
		Background: s.runner.cfg.Render.BG,
		Fit:        s.runner.cfg.Render.Fit,
	}
	return capture.Run(page, trialSrc(s.baseURL, tc.URL, run), render, s.runner.loopCfg)
}

func (s *browserSession) Close() error {
	return s.browser.Close()
}

// trialSrc builds the image URL for one trial. Relative test URLs are
// resolved against the paced server; a run-scoped cache buster is
// appended (the server strips query strings) so no engine can serve a
// repeat run from memory or disk cache.
func trialSrc(baseURL, testURL string, run int) string {
	src := testURL
	if !strings.Contains(testURL, "://") {
		src = strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(testURL, "/")
	}
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	q := u.Query()
	q.Set("run", strconv.Itoa(run))
	u.RawQuery = q.Encode()
	return u.String()
}
