package preflight

import (
	"context"

	"cavacolor/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Fatal marks checks whose failure prevents the daemon from starting.
	Fatal bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding backend or feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckVisualizerConfig("Visualizer config", cfg.Visualizer.ConfigPath, cfg.Visualizer.Slots))

	switch cfg.Playback.Backend {
	case config.BackendMPRIS:
		results = append(results, CheckSessionBus(ctx, cfg.Playback.Player))
	case config.BackendPlayerctl:
		results = append(results, DepResults(CheckSystemDeps(ctx, cfg))...)
	case config.BackendSpotify:
		results = append(results, CheckSpotify(ctx, cfg.Spotify))
	}

	if cfg.Visualizer.ReloadSignal != "" {
		results = append(results, ProbeVisualizer(cfg))
	}
	return results
}

// Failed returns the failed checks that should stop the daemon.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && r.Fatal {
			out = append(out, r)
		}
	}
	return out
}
