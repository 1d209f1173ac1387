package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"cavacolor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The visualizer config path points at a cava config written with the default
// slots, so the result is usable by a Synchronizer as-is.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Visualizer.ConfigPath = filepath.Join(base, "cava", "config")
	cfgVal.Visualizer.ReloadSignal = ""
	cfgVal.Artwork.RetryWaitMinMillis = 1
	cfgVal.Artwork.RetryWaitMaxMillis = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	WriteCavaConfig(t, cfgVal.Visualizer.ConfigPath, CavaConfig)

	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithBackend selects the playback backend. The spotify backend receives
// placeholder credentials.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Playback.Backend = backend
		if backend == config.BackendSpotify {
			b.cfg.Spotify.ClientID = "test-client"
			b.cfg.Spotify.ClientSecret = "test-secret"
		}
	}
}

// WithSlots overrides the visualizer slot list and palette size.
func WithSlots(slots ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Visualizer.Slots = slots
		if len(slots) > b.cfg.Palette.Size {
			b.cfg.Palette.Size = len(slots)
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, playerctl is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"playerctl"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
