package syncloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cavacolor/internal/artwork"
	"cavacolor/internal/history"
	"cavacolor/internal/logging"
	"cavacolor/internal/palette"
	"cavacolor/internal/playback"
)

// Fetcher retrieves artwork for a track.
type Fetcher interface {
	Fetch(ctx context.Context, track playback.TrackID, loc playback.ArtworkLocation) (*artwork.Image, error)
}

// Extractor computes a palette of n colors.
type Extractor interface {
	Extract(img *artwork.Image, n int) (palette.Palette, error)
}

// Synchronizer writes a palette into the visualizer config.
type Synchronizer interface {
	Sync(p palette.Palette, configPath string) error
}

// Reloader asks running visualizers to re-read their colors.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// Recorder journals applied palettes.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) (*history.Entry, error)
}

const (
	defaultPollInterval  = time.Second
	defaultBackoffMax    = time.Minute
	defaultStageTimeout  = 10 * time.Second
	defaultEscalateAfter = 5
	defaultPaletteSize   = 3
)

// Options holds the loop's timing and target settings.
type Options struct {
	ConfigPath    string
	PaletteSize   int
	PollInterval  time.Duration
	BackoffMax    time.Duration
	StageTimeout  time.Duration
	EscalateAfter int
}

func (o *Options) applyDefaults() {
	if o.PaletteSize <= 0 {
		o.PaletteSize = defaultPaletteSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = defaultBackoffMax
	}
	if o.BackoffMax < o.PollInterval {
		o.BackoffMax = o.PollInterval
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = defaultStageTimeout
	}
	if o.EscalateAfter <= 0 {
		o.EscalateAfter = defaultEscalateAfter
	}
}

// Option configures optional collaborators.
type Option func(*Coordinator)

// WithReloader signals visualizers after each successful write.
func WithReloader(r Reloader) Option {
	return func(c *Coordinator) {
		c.reloader = r
	}
}

// WithRecorder journals each successful write.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// Coordinator runs sync cycles.
type Coordinator struct {
	observer  playback.Observer
	fetcher   Fetcher
	extractor Extractor
	sync      Synchronizer
	reloader  Reloader
	recorder  Recorder
	opts      Options
	logger    *slog.Logger

	// observerDown suppresses repeated warnings while the observer stays unreachable.
	observerDown bool
	// escalated is set once the current misconfiguration streak has raised an alert.
	escalated bool

	mu          sync.RWMutex
	state       CycleState
	lastErr     error
	lastPalette palette.Palette
	lastObs     *playback.Observation
	lastApplied time.Time
}

// New constructs a coordinator. observer, fetcher, extractor, and sync are required.
func New(observer playback.Observer, fetcher Fetcher, extractor Extractor, sync Synchronizer, opts Options, extra ...Option) (*Coordinator, error) {
	switch {
	case observer == nil:
		return nil, errors.New("syncloop: observer required")
	case fetcher == nil:
		return nil, errors.New("syncloop: fetcher required")
	case extractor == nil:
		return nil, errors.New("syncloop: extractor required")
	case sync == nil:
		return nil, errors.New("syncloop: synchronizer required")
	case opts.ConfigPath == "":
		return nil, errors.New("syncloop: visualizer config path required")
	}
	opts.applyDefaults()
	c := &Coordinator{
		observer:  observer,
		fetcher:   fetcher,
		extractor: extractor,
		sync:      sync,
		opts:      opts,
		state:     CycleState{State: StateIdle},
	}
	for _, opt := range extra {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "syncloop")
	return c, nil
}

// backoffDelay returns min(poll * 2^(failures-1), max).
func backoffDelay(poll, max time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return poll
	}
	delay := poll
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
