package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"cavacolor/internal/config"
	"cavacolor/internal/daemon"
	"cavacolor/internal/deps"
	"cavacolor/internal/history"
	"cavacolor/internal/logging"
	"cavacolor/internal/preflight"
	"cavacolor/internal/syncloop"
)

// ErrPreflight reports that a required check failed before startup.
var ErrPreflight = errors.New("preflight checks failed")

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured logging level when set.
	LogLevel string
}

// Run starts the cavacolor daemon and blocks until a signal arrives or the
// sync loop stops on its own. A loop that stops because authorization
// expired returns an error wrapping playback.ErrAuthExpired.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logging.WithSessionID(logger, uuid.NewString())

	logDependencySnapshot(signalCtx, logger, cfg)
	if err := runPreflight(signalCtx, logger, cfg); err != nil {
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	observer, closeObserver, err := NewObserver(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("playback observer unavailable",
			logging.String(logging.FieldEventType, "observer_init_failed"),
			logging.String("backend", cfg.Playback.Backend),
			logging.Error(err),
		)
		return err
	}
	defer closeObserver()

	pipeline, err := NewPipeline(cfg, logger)
	if err != nil {
		return err
	}

	var store *history.Store
	loopOpts := []syncloop.Option{syncloop.WithLogger(logger)}
	if pipeline.Reloader.Enabled() {
		loopOpts = append(loopOpts, syncloop.WithReloader(pipeline.Reloader))
	}
	if cfg.History.Enabled {
		store, err = history.Open(cfg)
		if err != nil {
			logger.Warn("history journal unavailable",
				logging.String(logging.FieldEventType, "history_open_failed"),
				logging.String(logging.FieldErrorHint, "check permissions on the state directory or delete the history database"),
				logging.String(logging.FieldImpact, "applied palettes will not be journaled"),
				logging.Error(err),
			)
			store = nil
		} else {
			loopOpts = append(loopOpts, syncloop.WithRecorder(store))
		}
	}

	loop, err := syncloop.New(observer, pipeline.Fetcher, pipeline.Extractor, pipeline.Synchronizer, syncloop.Options{
		ConfigPath:    cfg.Visualizer.ConfigPath,
		PaletteSize:   cfg.Palette.Size,
		PollInterval:  cfg.PollInterval(),
		BackoffMax:    cfg.BackoffMax(),
		StageTimeout:  cfg.RequestTimeout(),
		EscalateAfter: cfg.Sync.EscalateAfter,
	}, loopOpts...)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create sync loop: %w", err)
	}

	d, err := daemon.New(cfg, loop, store, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("cavacolor daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
		return nil
	case <-d.Done():
		return d.Err()
	}
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if strings.TrimSpace(opts.LogLevel) == "" {
		return logging.NewFromConfig(cfg)
	}
	override := *cfg
	override.Logging.Level = opts.LogLevel
	return logging.NewFromConfig(&override)
}

func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		attrs := []logging.Attr{
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("fatal", r.Fatal),
		}
		if r.Fatal {
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed", attrs...)
		} else {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_warning", attrs...)
		}
	}
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("%w: %s", ErrPreflight, strings.Join(names, "; "))
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.Playback.Backend),
		logging.Bool("spotify_client_present", cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != ""),
		logging.String("visualizer_config", cfg.Visualizer.ConfigPath),
		logging.String("reload_signal", cfg.Visualizer.ReloadSignal),
		logging.Bool("history_enabled", cfg.History.Enabled),
	}
	for _, s := range preflight.CheckSystemDeps(ctx, cfg) {
		attrs = append(attrs,
			logging.Bool(s.Name+"_available", s.Available),
			logging.String(s.Name+"_binary", binaryLabel(s)),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func binaryLabel(s deps.Status) string {
	if s.Path != "" {
		return s.Path
	}
	return s.Command
}
