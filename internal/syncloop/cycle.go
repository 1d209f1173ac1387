package syncloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cavacolor/internal/history"
	"cavacolor/internal/logging"
	"cavacolor/internal/palette"
	"cavacolor/internal/playback"
	"cavacolor/internal/visualizer"
)

// Step runs one cycle and returns how long to wait before the next. The only
// errors it returns are context cancellation and expired authorization.
func (c *Coordinator) Step(ctx context.Context) (time.Duration, error) {
	c.setState(StatePolling)

	obs, err := c.observe(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.setState(StateIdle)
			return 0, ctxErr
		}
		if errors.Is(err, playback.ErrAuthExpired) {
			c.setState(StateFatal)
			c.setLastError(err)
			logging.ErrorWithContext(c.logger, "playback authorization expired; stopping", "auth_expired",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart cavacolor to authorize again"),
				logging.String(logging.FieldImpact, "visualizer colors stop following playback"),
			)
			return 0, fmt.Errorf("observe playback: %w", err)
		}
		return c.observerFailed(err), nil
	}
	c.observerRecovered()

	if obs == nil {
		c.resetFailures()
		c.setState(StateUnchanged)
		c.setState(StateIdle)
		return c.opts.PollInterval, nil
	}

	if obs.Track == c.Snapshot().LastTrack {
		c.resetFailures()
		c.setState(StateUnchanged)
		c.setState(StateIdle)
		return c.opts.PollInterval, nil
	}

	c.setState(StateChanged)
	if err := c.apply(ctx, obs); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.setState(StateIdle)
			return 0, ctxErr
		}
		return c.cycleFailed(obs, err), nil
	}
	c.setState(StateIdle)
	return c.opts.PollInterval, nil
}

func (c *Coordinator) observe(ctx context.Context) (*playback.Observation, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.StageTimeout)
	defer cancel()
	return c.observer.Observe(callCtx)
}

// apply runs the changed branch: fetch, extract, write, then the best-effort
// reload and journal steps.
func (c *Coordinator) apply(ctx context.Context, obs *playback.Observation) error {
	logger := c.logger.With(logging.String(logging.FieldTrackID, string(obs.Track)))
	logger.Info("track changed",
		logging.String(logging.FieldEventType, "track_changed"),
		logging.String("track", obs.Label()),
		logging.String("source", string(obs.Source)),
		logging.String("artwork", string(obs.Artwork)),
	)

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.StageTimeout)
	img, err := c.fetcher.Fetch(fetchCtx, obs.Track, obs.Artwork)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch artwork: %w", err)
	}

	p, err := c.extractor.Extract(img, c.opts.PaletteSize)
	if err != nil {
		return fmt.Errorf("extract palette: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.setState(StateSyncing)
	if err := c.sync.Sync(p, c.opts.ConfigPath); err != nil {
		return fmt.Errorf("sync visualizer config: %w", err)
	}

	c.mu.Lock()
	c.state.LastTrack = obs.Track
	c.state.LastWriteSucceeded = true
	c.state.ConsecutiveFailures = 0
	c.lastErr = nil
	c.lastPalette = p
	obsCopy := *obs
	c.lastObs = &obsCopy
	c.lastApplied = time.Now()
	c.mu.Unlock()
	c.escalated = false

	logger.Info("palette applied",
		logging.String(logging.FieldEventType, "palette_applied"),
		logging.String("colors", p.String()),
		logging.String("artwork_format", img.Format),
		logging.String("config_path", c.opts.ConfigPath),
	)

	c.reload(ctx, logger)
	c.record(ctx, logger, obs, p)
	return nil
}

func (c *Coordinator) reload(ctx context.Context, logger *slog.Logger) {
	if c.reloader == nil {
		return
	}
	if _, err := c.reloader.Reload(ctx); err != nil {
		logging.WarnWithContext(logger, "visualizer reload failed", "reload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that cava runs as the same user"),
			logging.String(logging.FieldImpact, "new colors apply when cava restarts"),
		)
	}
}

func (c *Coordinator) record(ctx context.Context, logger *slog.Logger, obs *playback.Observation, p palette.Palette) {
	if c.recorder == nil {
		return
	}
	_, err := c.recorder.Record(ctx, history.Entry{
		TrackID:    obs.Track,
		Title:      obs.Title,
		Artist:     obs.Artist,
		Source:     obs.Source,
		Colors:     p.Hexes(),
		ConfigPath: c.opts.ConfigPath,
	})
	if err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory is writable"),
			logging.String(logging.FieldImpact, "this palette is missing from cavacolor history"),
		)
	}
}

// observerFailed handles a non-fatal observer error. It counts as "nothing
// changed"; a rate limit stretches the wait to the server's Retry-After.
func (c *Coordinator) observerFailed(err error) time.Duration {
	c.resetFailures()
	c.setState(StateUnchanged)
	c.setLastError(err)

	delay := c.opts.PollInterval
	if wait, ok := playback.RetryAfter(err); ok && wait > delay {
		delay = wait
	}
	if !c.observerDown {
		c.observerDown = true
		logging.WarnWithContext(c.logger, "playback observer unavailable", "observer_unavailable",
			logging.Error(err),
			logging.Duration("next_poll", delay),
			logging.String(logging.FieldErrorHint, "start a player or check the playback backend settings"),
			logging.String(logging.FieldImpact, "colors stay unchanged until playback is observed"),
		)
	} else {
		c.logger.Debug("playback observer still unavailable", logging.Error(err))
	}
	c.setState(StateIdle)
	return delay
}

func (c *Coordinator) observerRecovered() {
	if c.observerDown {
		c.observerDown = false
		c.logger.Info("playback observer available", logging.String(logging.FieldEventType, "observer_recovered"))
	}
}

// cycleFailed moves the loop into backoff and returns the delay.
func (c *Coordinator) cycleFailed(obs *playback.Observation, err error) time.Duration {
	c.mu.Lock()
	c.state.ConsecutiveFailures++
	c.state.LastWriteSucceeded = false
	c.state.State = StateBackoff
	c.lastErr = err
	failures := c.state.ConsecutiveFailures
	c.mu.Unlock()

	delay := backoffDelay(c.opts.PollInterval, c.opts.BackoffMax, failures)
	attrs := []logging.Attr{
		logging.String(logging.FieldTrackID, string(obs.Track)),
		logging.Error(err),
		logging.Int("consecutive_failures", failures),
		logging.Duration("backoff", delay),
		logging.String(logging.FieldErrorHint, failureHint(err)),
		logging.String(logging.FieldImpact, "visualizer keeps its previous colors"),
	}

	if isMisconfiguration(err) && failures >= c.opts.EscalateAfter && !c.escalated {
		c.escalated = true
		attrs = append(attrs, logging.Alert("visualizer_config"))
		logging.ErrorWithContext(c.logger, "visualizer config keeps failing", "sync_escalated", attrs...)
		return delay
	}
	logging.WarnWithContext(c.logger, "sync cycle failed; backing off", "sync_failed", attrs...)
	return delay
}

func (c *Coordinator) resetFailures() {
	c.mu.Lock()
	c.state.ConsecutiveFailures = 0
	c.mu.Unlock()
	c.escalated = false
}

func isMisconfiguration(err error) bool {
	return errors.Is(err, visualizer.ErrMissingFile) || errors.Is(err, visualizer.ErrMalformedKey)
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, visualizer.ErrMissingFile):
		return "create the cava config or set visualizer.config_path"
	case errors.Is(err, visualizer.ErrMalformedKey):
		return "add the color slot keys to the cava config"
	case errors.Is(err, visualizer.ErrUnwritable):
		return "check permissions on the cava config and its directory"
	case errors.Is(err, playback.ErrUnavailable):
		return "check network access"
	default:
		return "check logs for details"
	}
}
