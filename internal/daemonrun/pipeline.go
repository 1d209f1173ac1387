package daemonrun

import (
	"fmt"
	"log/slog"

	"cavacolor/internal/artwork"
	"cavacolor/internal/config"
	"cavacolor/internal/palette"
	"cavacolor/internal/visualizer"
)

// Pipeline holds the artwork-to-visualizer stages. The daemon drives them
// from the sync loop; one-shot CLI commands call them directly.
type Pipeline struct {
	Fetcher      *artwork.Fetcher
	Extractor    *palette.Extractor
	Synchronizer *visualizer.Synchronizer
	Reloader     *visualizer.Reloader
}

// NewPipeline builds the stages from cfg.
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	fallback, err := palette.ParseHex(cfg.Artwork.FallbackColor)
	if err != nil {
		return nil, fmt.Errorf("artwork.fallback_color: %w", err)
	}
	defaultColor, err := palette.ParseHex(cfg.Palette.DefaultColor)
	if err != nil {
		return nil, fmt.Errorf("palette.default_color: %w", err)
	}

	fetcher, err := artwork.NewFetcher(
		artwork.WithRetry(cfg.Artwork.RetryMax, cfg.RetryWaitMin(), cfg.RetryWaitMax()),
		artwork.WithRequestTimeout(cfg.RequestTimeout()),
		artwork.WithMaxBytes(cfg.Artwork.MaxBytes),
		artwork.WithFallbackColor(fallback.RGBA()),
		artwork.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("artwork fetcher: %w", err)
	}

	reloader, err := visualizer.NewReloader(cfg.Visualizer.ProcessName, cfg.Visualizer.ReloadSignal,
		visualizer.WithReloadLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("visualizer.reload_signal: %w", err)
	}

	return &Pipeline{
		Fetcher:   fetcher,
		Extractor: palette.NewExtractor(cfg.Palette.MaxSamples, defaultColor),
		Synchronizer: visualizer.NewSynchronizer(
			visualizer.WithSlots(cfg.Visualizer.Slots),
			visualizer.WithOrder(cfg.Visualizer.Order),
			visualizer.WithBackup(cfg.Visualizer.Backup),
			visualizer.WithLogger(logger),
		),
		Reloader: reloader,
	}, nil
}
