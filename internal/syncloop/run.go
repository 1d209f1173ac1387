package syncloop

import (
	"context"
	"errors"
	"time"

	"cavacolor/internal/logging"
	"cavacolor/internal/playback"
)

// Run cycles until ctx is cancelled or authorization expires. Cancellation
// returns nil.
func (c *Coordinator) Run(ctx context.Context) error {
	var changes <-chan struct{}
	if notifier, ok := c.observer.(playback.ChangeNotifier); ok {
		changes = notifier.Changes()
	}

	c.logger.Info("sync loop started",
		logging.String(logging.FieldEventType, "syncloop_started"),
		logging.Duration("poll_interval", c.opts.PollInterval),
		logging.String("config_path", c.opts.ConfigPath),
		logging.Bool("change_notifications", changes != nil),
	)

	for {
		delay, err := c.Step(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					c.logger.Info("sync loop stopped", logging.String(logging.FieldEventType, "syncloop_stopped"))
					return nil
				}
			}
			return err
		}
		if !c.wait(ctx, delay, changes) {
			c.logger.Info("sync loop stopped", logging.String(logging.FieldEventType, "syncloop_stopped"))
			return nil
		}
	}
}

// wait sleeps for delay or until a change notification arrives. Backoff
// ignores notifications. It returns false when ctx is done.
func (c *Coordinator) wait(ctx context.Context, delay time.Duration, changes <-chan struct{}) bool {
	if c.Snapshot().State == StateBackoff {
		changes = nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-changes:
		c.logger.Debug("player reported a change; polling early")
		return true
	}
}
