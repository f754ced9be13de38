// Package capture drives one benchmark trial in a live browser page: it
// renders the harness document, constrains screenshots to the image
// element's region, and samples the region into a timeline until the
// render converges or the trial times out.
package capture

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/paintbench/paintbench/pkg/capture/internal"
	"github.com/paintbench/paintbench/pkg/convergence"
)

// LoopConfig configures the sampling loop for one trial.
type LoopConfig struct {
	// SampleInterval is the pause between region captures.
	SampleInterval time.Duration

	// QuietPeriod is how long the render must stay visually unchanged,
	// after the image reports complete, before the trial converges.
	QuietPeriod time.Duration

	// MaxCaptureTime bounds the whole trial. It is the sole cancellation
	// mechanism: a renderer that never reports completion (e.g. a format
	// it cannot decode) still terminates here.
	MaxCaptureTime time.Duration

	// ChangedThreshold is the similarity score below which two
	// consecutive captures count as a visual change.
	ChangedThreshold float64
}

// DefaultLoopConfig returns the sampling parameters used by benchmark runs.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		SampleInterval:   110 * time.Millisecond,
		QuietPeriod:      650 * time.Millisecond,
		MaxCaptureTime:   10 * time.Second,
		ChangedThreshold: 0.999,
	}
}

// State is the termination state of the sampling loop.
type State int

const (
	// Sampling means neither termination condition has triggered.
	Sampling State = iota
	// Converged means the image reported complete and the render stayed
	// quiet for the configured period.
	Converged
	// TimedOut means the hard per-trial timeout elapsed.
	TimedOut
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case Sampling:
		return "Sampling"
	case Converged:
		return "Converged"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// terminator decides when sampling stops. It is a pure state machine over
// (elapsed time, image-complete signal, time since last visual change),
// kept separate from browser plumbing so the termination contract is
// testable against a mock clock.
type terminator struct {
	cfg        LoopConfig
	start      time.Time
	lastChange time.Time
}

func newTerminator(cfg LoopConfig, start time.Time) *terminator {
	return &terminator{
		cfg:        cfg,
		start:      start,
		lastChange: start,
	}
}

// ObserveChange records a visual change at the given time, restarting the
// quiet period.
func (t *terminator) ObserveChange(now time.Time) {
	t.lastChange = now
}

// State evaluates the termination conditions at the given time.
// The hard timeout wins over convergence when both hold at once, since a
// trial that needed the full budget cannot be called converged.
func (t *terminator) State(now time.Time, complete bool) State {
	if now.Sub(t.start) >= t.cfg.MaxCaptureTime {
		return TimedOut
	}
	if complete && now.Sub(t.lastChange) >= t.cfg.QuietPeriod {
		return Converged
	}
	return Sampling
}

// ProbeStatus is the load state of the harness image element.
type ProbeStatus int

const (
	// ProbeLoading means the element has not reported completion yet.
	ProbeLoading ProbeStatus = iota
	// ProbeComplete means the element finished loading with a nonzero
	// natural size.
	ProbeComplete
	// ProbeFailed means the element finished loading but decoded to
	// nothing: the engine cannot render this format.
	ProbeFailed
)

// ErrImageFailed reports that the image element completed without ever
// producing a decodable raster.
var ErrImageFailed = errors.New("image failed to decode")

// Sampler captures frames from a live harness page. It exists so the loop
// can be exercised without a browser.
type Sampler interface {
	// CaptureFrame captures the constrained region as a raster.
	CaptureFrame() (*image.RGBA, error)

	// ProbeStatus reports the image element's load state.
	ProbeStatus() (ProbeStatus, error)
}

// run is the browser-independent sampling loop. It returns the captured
// timeline and the terminal state. Any sampler or similarity error aborts
// the trial; the caller records it as a trial failure.
func run(s Sampler, clk internal.Clock, cfg LoopConfig) (convergence.Timeline, State, error) {
	start := clk.Now()
	term := newTerminator(cfg, start)

	var tl convergence.Timeline
	var prev *image.RGBA

	for {
		img, err := s.CaptureFrame()
		if err != nil {
			return nil, Sampling, fmt.Errorf("capture failed: %w", err)
		}
		now := clk.Now()
		tl = append(tl, convergence.Frame{
			T:   float64(now.Sub(start).Microseconds()) / 1000.0,
			Img: img,
		})

		if prev != nil {
			score, err := convergence.Similarity(prev, img)
			if err != nil {
				// Dimension mismatch means the capture region
				// drifted: a defect to surface, not recover.
				return nil, Sampling, err
			}
			if score < cfg.ChangedThreshold {
				term.ObserveChange(now)
			}
		}
		prev = img

		status, err := s.ProbeStatus()
		if err != nil {
			return nil, Sampling, fmt.Errorf("completion poll failed: %w", err)
		}
		if status == ProbeFailed {
			return nil, Sampling, ErrImageFailed
		}

		if st := term.State(clk.Now(), status == ProbeComplete); st != Sampling {
			return tl, st, nil
		}

		clk.Sleep(cfg.SampleInterval)
	}
}

// RenderOptions control the harness document around the image element.
type RenderOptions struct {
	Background string // CSS background for the page
	Fit        string // object-fit mode for the image
}

// pageSampler captures a fixed clip of a Rod page.
type pageSampler struct {
	page *rod.Page
	clip proto.PageViewport
}

func (p *pageSampler) CaptureFrame() (*image.RGBA, error) {
	data, err := p.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip:   &p.clip,
	})
	if err != nil {
		return nil, err
	}
	return decodeRGBA(data)
}

func (p *pageSampler) ProbeStatus() (ProbeStatus, error) {
	return probeStatus(p.page)
}

// probeStatus polls the renderer-native completion signal. A completed
// element with zero natural size is an undecodable image, not a slow one.
func probeStatus(page *rod.Page) (ProbeStatus, error) {
	res, err := page.Eval(`() => {
		const i = document.getElementById('probe');
		if (!i || !i.complete) return 'loading';
		return i.naturalWidth > 0 ? 'complete' : 'failed';
	}`)
	if err != nil {
		return ProbeLoading, err
	}
	switch res.Value.Str() {
	case "complete":
		return ProbeComplete, nil
	case "failed":
		return ProbeFailed, nil
	default:
		return ProbeLoading, nil
	}
}

// Run executes one trial on the given page: renders the harness for src,
// locates the image element's on-screen region, and samples it until
// convergence or timeout. The returned timeline has at least one frame; a
// harness that never paints yields a degenerate single-sample timeline.
//
// Errors (navigation, evaluation, capture) are trial-level: the caller
// records them in the RunResult and moves on.
func Run(page *rod.Page, src string, render RenderOptions, cfg LoopConfig) (convergence.Timeline, error) {
	return runPage(page, src, render, cfg, internal.MonotonicClock{})
}

func runPage(page *rod.Page, src string, render RenderOptions, cfg LoopConfig, clk internal.Clock) (convergence.Timeline, error) {
	// Bound every CDP call by the trial budget plus slack, so a hung
	// renderer cannot stall the loop past its timeout.
	page = page.Timeout(cfg.MaxCaptureTime + 10*time.Second)
	defer page.CancelTimeout()

	if err := page.SetDocumentContent(HarnessHTML(src, render.Background, render.Fit)); err != nil {
		return nil, fmt.Errorf("failed to render harness: %w", err)
	}

	clip, ok, err := resolveRegion(page, cfg, clk)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Nothing ever painted: degenerate single-sample timeline
		// instead of a crash downstream.
		return convergence.Timeline{{T: 0}}, nil
	}

	tl, _, err := run(&pageSampler{page: page, clip: clip}, clk, cfg)
	if err != nil {
		return nil, err
	}
	if len(tl) == 0 {
		return convergence.Timeline{{T: 0}}, nil
	}
	return tl, nil
}

// resolveRegion waits for the image element to acquire a nonzero layout
// box, then fixes the screenshot clip for the whole trial. The clip is
// normalized by the device pixel ratio so frame resolution (and capture
// cost) is DPR-independent.
//
// Returns ok=false if the element never gets a box within the trial
// budget.
func resolveRegion(page *rod.Page, cfg LoopConfig, clk internal.Clock) (proto.PageViewport, bool, error) {
	el, err := page.Element("#probe")
	if err != nil {
		return proto.PageViewport{}, false, fmt.Errorf("failed to locate image element: %w", err)
	}

	deadline := clk.Now().Add(cfg.MaxCaptureTime)
	var box *proto.DOMRect
	for {
		shape, err := el.Shape()
		if err == nil {
			b := shape.Box()
			if b != nil && b.Width > 0 && b.Height > 0 {
				box = b
				break
			}
		}
		if status, err := probeStatus(page); err == nil && status == ProbeFailed {
			return proto.PageViewport{}, false, ErrImageFailed
		}
		if clk.Now().After(deadline) {
			return proto.PageViewport{}, false, nil
		}
		clk.Sleep(cfg.SampleInterval)
	}

	res, err := page.Eval(`() => window.devicePixelRatio`)
	if err != nil {
		return proto.PageViewport{}, false, fmt.Errorf("failed to read device pixel ratio: %w", err)
	}
	scale := 1.0
	if dpr := res.Value.Num(); dpr > 1 {
		scale = 1 / dpr
	}

	return proto.PageViewport{
		X:      box.X,
		Y:      box.Y,
		Width:  box.Width,
		Height: box.Height,
		Scale:  scale,
	}, true, nil
}
