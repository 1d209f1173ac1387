package visualizer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"cavacolor/internal/fileutil"
	"cavacolor/internal/logging"
	"cavacolor/internal/palette"
)

// Sync errors.
var (
	// ErrMissingFile reports that the visualizer config does not exist.
	ErrMissingFile = errors.New("visualizer config missing")
	// ErrUnwritable reports a failure to read or replace the config.
	ErrUnwritable = errors.New("visualizer config unwritable")
	// ErrMalformedKey reports a color slot that is not present in the config.
	ErrMalformedKey = errors.New("visualizer config missing color slot")
)

// Slot ordering.
const (
	OrderDominance  = "dominance"
	OrderBrightness = "brightness"
)

// DefaultSlots maps palette positions onto cava's color keys.
var DefaultSlots = []string{"background", "gradient_color_1", "gradient_color_2"}

const backupSuffix = ".bak"

// Option customizes the synchronizer.
type Option func(*Synchronizer)

// WithSlots overrides the slot keys.
func WithSlots(slots []string) Option {
	return func(s *Synchronizer) {
		if len(slots) > 0 {
			s.slots = append([]string(nil), slots...)
		}
	}
}

// WithOrder selects how palette colors are assigned to slots.
func WithOrder(order string) Option {
	return func(s *Synchronizer) {
		if order != "" {
			s.order = order
		}
	}
}

// WithBackup keeps a one-time copy of the original config beside it.
func WithBackup(enabled bool) Option {
	return func(s *Synchronizer) {
		s.backup = enabled
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// Result describes one Sync call.
type Result struct {
	Path    string
	Colors  []palette.Color
	Changed bool
}

// Synchronizer writes palettes into the visualizer config.
type Synchronizer struct {
	slots  []string
	order  string
	backup bool
	logger *slog.Logger
	write  func(path string, data []byte, mode os.FileMode) error

	mu       sync.Mutex
	backedUp map[string]bool
}

// NewSynchronizer constructs a synchronizer with the default slots.
func NewSynchronizer(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		slots:    append([]string(nil), DefaultSlots...),
		order:    OrderDominance,
		write:    fileutil.WriteFileAtomic,
		backedUp: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "visualizer")
	return s
}

// Slots returns the configured slot keys.
func (s *Synchronizer) Slots() []string {
	return append([]string(nil), s.slots...)
}

// Assign orders palette colors for the slots.
func (s *Synchronizer) Assign(p palette.Palette) []palette.Color {
	if s.order == OrderBrightness {
		p = p.SortedByBrightness()
	}
	return p.Colors
}

// Sync writes p into the config at path.
func (s *Synchronizer) Sync(p palette.Palette, path string) error {
	_, err := s.Apply(p, path)
	return err
}

// Apply writes p into the config at path and reports whether the file
// changed. Content that already matches is left untouched. A symlinked config
// is updated through its target so the link survives.
func (s *Synchronizer) Apply(p palette.Palette, configPath string) (Result, error) {
	result := Result{Path: configPath}
	path, err := filepath.EvalSymlinks(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, fmt.Errorf("%w: %s", ErrMissingFile, configPath)
		}
		return result, fmt.Errorf("%w: resolve %s: %v", ErrUnwritable, configPath, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return result, fmt.Errorf("%w: stat %s: %v", ErrUnwritable, path, err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("%w: %s is a directory", ErrUnwritable, path)
	}
	current, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return result, fmt.Errorf("%w: read %s: %v", ErrUnwritable, path, err)
	}

	colors := s.Assign(p)
	updated, err := Rewrite(current, s.slots, colors)
	if err != nil {
		return result, fmt.Errorf("rewrite %s: %w", path, err)
	}
	result.Colors = colors[:len(s.slots)]
	if bytes.Equal(updated, current) {
		s.logger.Debug("visualizer config already current", logging.String("path", path))
		return result, nil
	}

	s.ensureBackup(path)
	if err := s.write(path, updated, info.Mode().Perm()); err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrUnwritable, path, err)
	}
	result.Changed = true
	return result, nil
}

func (s *Synchronizer) ensureBackup(path string) {
	if !s.backup {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backedUp[path] {
		return
	}
	s.backedUp[path] = true

	dst := path + backupSuffix
	if _, err := os.Stat(dst); err == nil {
		return
	}
	if err := fileutil.CopyFileVerified(path, dst); err != nil {
		logging.WarnWithContext(s.logger, "visualizer config backup failed", "config_backup_failed",
			logging.String("path", dst),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the config directory is writable"),
			logging.String(logging.FieldImpact, "the original colors are not preserved"),
		)
		return
	}
	s.logger.Info("saved original visualizer config", logging.String("path", dst))
}
