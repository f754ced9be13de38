package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paintbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5, cfg.Runs)
	assert.Equal(t, 16384, cfg.Network.Server.ChunkBytes)
	assert.Equal(t, 60, cfg.Network.Server.ChunkDelayMs)
	assert.Equal(t, "contain", cfg.Render.Fit)
	require.Len(t, cfg.Engines, 1)
	assert.Equal(t, "chromium", cfg.Engines[0].ID)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
render:
  bg: "#222"
  fit: cover
network:
  throttle: true
  latency: 40
  downKbps: 1600
  upKbps: 750
  server:
    chunkBytes: 4096
    chunkDelayMs: 50
runs: 3
engines:
  - id: chromium
    label: Chromium
  - id: chrome-stable
    label: Chrome
    bin: /usr/bin/google-chrome
tests:
  - id: jpeg-baseline
    label: JPEG baseline
    format: jpeg
    url: /img/baseline.jpg
  - id: jpeg-progressive
    label: JPEG progressive
    format: jpeg
    url: /img/progressive.jpg
    notes: mozjpeg defaults
root: /srv/paintbench
outputDir: out
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "#222", cfg.Render.BG)
	assert.Equal(t, "cover", cfg.Render.Fit)
	assert.True(t, cfg.Network.Throttle)
	assert.Equal(t, 40, cfg.Network.Latency)
	assert.Equal(t, 4096, cfg.Network.Server.ChunkBytes)
	assert.Equal(t, 50, cfg.Network.Server.ChunkDelayMs)
	assert.Equal(t, 3, cfg.Runs)
	require.Len(t, cfg.Engines, 2)
	assert.Equal(t, "/usr/bin/google-chrome", cfg.Engines[1].Bin)
	require.Len(t, cfg.Tests, 2)
	assert.Equal(t, "jpeg-progressive", cfg.Tests[1].ID)
	assert.Equal(t, "mozjpeg defaults", cfg.Tests[1].Notes)
	assert.Equal(t, "/srv/paintbench", cfg.Root)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, "runs: 7\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Runs)
	assert.Equal(t, 16384, cfg.Network.Server.ChunkBytes, "unset fields keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "runs: [unclosed"},
		{"test without id", "tests:\n  - url: /a.png\n"},
		{"test without url", "tests:\n  - id: a\n"},
		{"duplicate test id", "tests:\n  - id: a\n    url: /a.png\n  - id: a\n    url: /b.png\n"},
		{"engine without id", "engines:\n  - label: nameless\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolveRuns_Precedence(t *testing.T) {
	cfg := Default()
	cfg.Runs = 3

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(RunsEnvVar, "9")
		assert.Equal(t, 11, cfg.ResolveRuns(11))
	})

	t.Run("env beats config", func(t *testing.T) {
		t.Setenv(RunsEnvVar, "9")
		assert.Equal(t, 9, cfg.ResolveRuns(0))
	})

	t.Run("config beats default", func(t *testing.T) {
		t.Setenv(RunsEnvVar, "")
		assert.Equal(t, 3, cfg.ResolveRuns(0))
	})

	t.Run("default when nothing set", func(t *testing.T) {
		t.Setenv(RunsEnvVar, "")
		empty := &Config{}
		assert.Equal(t, 5, empty.ResolveRuns(0))
	})

	t.Run("garbage env ignored", func(t *testing.T) {
		t.Setenv(RunsEnvVar, "many")
		assert.Equal(t, 3, cfg.ResolveRuns(0))
	})
}
