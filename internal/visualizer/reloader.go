package visualizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"cavacolor/internal/logging"
)

const (
	defaultProcessName = "cava"
	defaultProcRoot    = "/proc"
)

// ReloadOption customizes the reloader.
type ReloadOption func(*Reloader)

// WithProcRoot overrides the procfs mount used to find processes.
func WithProcRoot(root string) ReloadOption {
	return func(r *Reloader) {
		if root != "" {
			r.procRoot = root
		}
	}
}

// WithReloadLogger attaches a logger.
func WithReloadLogger(logger *slog.Logger) ReloadOption {
	return func(r *Reloader) {
		r.logger = logger
	}
}

// Reloader signals running visualizer processes to re-read their colors.
type Reloader struct {
	process  string
	signal   unix.Signal
	procRoot string
	kill     func(pid int, sig unix.Signal) error
	logger   *slog.Logger
}

// NewReloader returns a reloader that sends signalName to processes named
// process. An empty signal name disables reloading.
func NewReloader(process, signalName string, opts ...ReloadOption) (*Reloader, error) {
	r := &Reloader{
		process:  strings.TrimSpace(process),
		procRoot: defaultProcRoot,
		kill:     unix.Kill,
	}
	if r.process == "" {
		r.process = defaultProcessName
	}
	if name := strings.ToUpper(strings.TrimSpace(signalName)); name != "" {
		if !strings.HasPrefix(name, "SIG") {
			name = "SIG" + name
		}
		r.signal = unix.SignalNum(name)
		if r.signal == 0 {
			return nil, fmt.Errorf("unknown signal %q", signalName)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "reload")
	return r, nil
}

// Enabled reports whether a reload signal is configured.
func (r *Reloader) Enabled() bool {
	return r != nil && r.signal != 0
}

// Reload signals every matching process and returns how many were signaled.
// Finding no process is not an error.
func (r *Reloader) Reload(ctx context.Context) (int, error) {
	if !r.Enabled() {
		return 0, nil
	}
	pids, err := r.find()
	if err != nil {
		return 0, err
	}
	var (
		signaled int
		errs     []error
	)
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return signaled, err
		}
		if err := r.kill(pid, r.signal); err != nil {
			if errors.Is(err, unix.ESRCH) {
				continue
			}
			errs = append(errs, fmt.Errorf("signal pid %d: %w", pid, err))
			continue
		}
		signaled++
	}
	if signaled == 0 && len(errs) == 0 {
		r.logger.Debug("no visualizer process to reload", logging.String("process", r.process))
	} else if signaled > 0 {
		r.logger.Debug("visualizer reload signaled",
			logging.String("process", r.process),
			logging.String("signal", unix.SignalName(r.signal)),
			logging.Int("count", signaled),
		)
	}
	return signaled, errors.Join(errs...)
}

// Running returns the pids of processes matching the configured name.
func (r *Reloader) Running() ([]int, error) {
	return r.find()
}

// Process returns the process name the reloader targets.
func (r *Reloader) Process() string {
	return r.process
}

// find scans procfs for processes whose comm matches the configured name.
func (r *Reloader) find() ([]int, error) {
	entries, err := os.ReadDir(r.procRoot)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	self := os.Getpid()
	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(r.procRoot, entry.Name(), "comm"))
		if err != nil {
			continue
		}
		if string(bytes.TrimSpace(comm)) == r.process {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}
