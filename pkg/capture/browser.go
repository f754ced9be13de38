package capture

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserConfig configures browser launch options for one engine.
type BrowserConfig struct {
	Headless bool          // Run in headless mode (default: true)
	Bin      string        // Browser executable; empty lets Rod manage its own Chromium
	Timeout  time.Duration // Default operation timeout (default: 30s)
}

// DefaultBrowserConfig returns sensible defaults for benchmark runs.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

// Browser wraps a Rod browser configured for deterministic rendering.
type Browser struct {
	browser *rod.Browser
	timeout time.Duration
}

// NewBrowser launches a browser for capture trials. The launch flags
// disable GPU rasterization quirks, scrollbars, and the sandbox (for
// container compatibility) so the harness paints the same way across
// hosts.
func NewBrowser(cfg BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("hide-scrollbars").
		Set("mute-audio").
		Set("disable-background-networking")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowserConfig().Timeout
	}

	return &Browser{
		browser: browser,
		timeout: timeout,
	}, nil
}

// Version returns the engine's product string (e.g. "Chrome/124.0.6367.60").
func (b *Browser) Version() (string, error) {
	v, err := b.browser.Version()
	if err != nil {
		return "", fmt.Errorf("failed to query browser version: %w", err)
	}
	return v.Product, nil
}

// NewPage opens a fresh blank page with the browser's default timeout.
// Callers own the page and must Close it after the trial.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return page, nil
}

// Timeout returns the default operation timeout for pages of this browser.
func (b *Browser) Timeout() time.Duration {
	return b.timeout
}

// Close cleans up browser resources.
// Always call this (via defer) to prevent orphaned browser processes.
func (b *Browser) Close() error {
	if b.browser != nil {
		return b.browser.Close()
	}
	return nil
}

// NetworkConditions describes the CDP network emulation applied to a page
// before a trial. Zero values leave the corresponding dimension
// unconstrained.
type NetworkConditions struct {
	LatencyMs int
	DownKbps  int
	UpKbps    int
}

// EmulateNetwork applies network condition emulation to a page and
// disables the browser cache so every trial pays the full transfer.
func EmulateNetwork(page *rod.Page, nc NetworkConditions) error {
	if err := (proto.NetworkSetCacheDisabled{CacheDisabled: true}).Call(page); err != nil {
		return fmt.Errorf("failed to disable cache: %w", err)
	}

	down := float64(-1)
	if nc.DownKbps > 0 {
		down = float64(nc.DownKbps) * 1000 / 8 // kbps to bytes/sec
	}
	up := float64(-1)
	if nc.UpKbps > 0 {
		up = float64(nc.UpKbps) * 1000 / 8
	}

	err := (proto.NetworkEmulateNetworkConditions{
		Offline:            false,
		Latency:            float64(nc.LatencyMs),
		DownloadThroughput: down,
		UploadThroughput:   up,
	}).Call(page)
	if err != nil {
		return fmt.Errorf("failed to emulate network conditions: %w", err)
	}
	return nil
}
