package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"cavacolor/internal/config"
	"cavacolor/internal/history"
	"cavacolor/internal/logging"
	"cavacolor/internal/syncloop"
)

// ErrAlreadyRunning reports that another process holds the daemon lock.
var ErrAlreadyRunning = errors.New("another cavacolor instance is already running")

// Loop is the background work the daemon supervises.
type Loop interface {
	Run(ctx context.Context) error
	Status() syncloop.Status
}

// Daemon runs the sync loop and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	loop    Loop
	history *history.Store

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Loop         syncloop.Status
	ConfigPath   string
	HistoryPath  string
	LockFilePath string
}

// New constructs a daemon. store may be nil when history is disabled; the
// daemon closes it in Close.
func New(cfg *config.Config, loop Loop, store *history.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || loop == nil {
		return nil, errors.New("daemon requires config and sync loop")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		loop:     loop,
		history:  store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the sync loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	d.cancel = cancel
	d.done = done
	d.err = nil
	d.mu.Unlock()

	d.running.Store(true)
	go func() {
		defer close(done)
		err := d.loop.Run(runCtx)
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		if err != nil {
			d.logger.Error("sync loop exited",
				logging.String(logging.FieldEventType, "syncloop_exited"),
				logging.Error(err),
			)
		}
	}()

	d.logger.Info("cavacolor daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("config_path", d.cfg.Visualizer.ConfigPath),
	)
	return nil
}

// Done is closed when the sync loop returns. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the error the sync loop exited with, if any.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Stop cancels the sync loop, waits for it to return, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no cavacolor process is running"),
			logging.Error(err),
		)
	}
	d.running.Store(false)
	d.logger.Info("cavacolor daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the history store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Loop:         d.loop.Status(),
		ConfigPath:   d.cfg.Visualizer.ConfigPath,
		LockFilePath: d.lockPath,
	}
	if d.history != nil {
		status.HistoryPath = d.history.Path()
	}
	return status
}
