package mpris

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/strcase"
	"github.com/godbus/dbus/v5"

	"cavacolor/internal/logging"
	"cavacolor/internal/playback"
)

const (
	statusPlaying = "Playing"
	statusPaused  = "Paused"

	defaultCallTimeout = 2 * time.Second
)

// Options configures an Observer.
type Options struct {
	// Player restricts observation to bus names ending in this value,
	// compared case-insensitively. Empty observes every player.
	Player string
	// IncludePaused treats a paused player's track as current.
	IncludePaused bool
	// CallTimeout bounds each bus round trip.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Observer reads the current track from MPRIS players on the session bus.
// The bus connection is opened lazily and re-opened after failures, so a
// session bus that appears after startup is picked up on the next poll.
type Observer struct {
	opts    Options
	logger  *slog.Logger
	connect func() (bus, error)
	changes chan struct{}

	mu   sync.Mutex
	conn bus
}

// New constructs an MPRIS observer. No connection is made until Observe.
func New(opts Options) *Observer {
	return newObserver(opts, connectSessionBus)
}

func newObserver(opts Options, connect func() (bus, error)) *Observer {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	opts.Player = strings.TrimSpace(opts.Player)
	return &Observer{
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "mpris"),
		connect: connect,
		changes: make(chan struct{}, 1),
	}
}

// Changes delivers a value after a player reports a property change.
func (o *Observer) Changes() <-chan struct{} {
	return o.changes
}

// Observe returns the track of the preferred player, or nil when no player is
// playing.
func (o *Observer) Observe(ctx context.Context) (*playback.Observation, error) {
	conn, err := o.ensureConn()
	if err != nil {
		return nil, fmt.Errorf("%w: connect session bus: %v", playback.ErrUnavailable, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	names, err := conn.ListNames(callCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.dropConn(conn)
		return nil, fmt.Errorf("%w: list bus names: %v", playback.ErrUnavailable, err)
	}

	dest, ok := o.selectPlayer(callCtx, conn, o.candidates(names))
	if !ok {
		return nil, nil
	}

	value, err := conn.GetProperty(callCtx, dest, playerInterface, propMetadata)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read metadata from %s: %v", playback.ErrUnavailable, dest, err)
	}
	md, ok := value.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned metadata of type %s", playback.ErrUnavailable, dest, value.Signature())
	}
	return observationFromMetadata(strings.TrimPrefix(dest, busNamePrefix), md), nil
}

// Close releases the bus connection.
func (o *Observer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn == nil {
		return nil
	}
	err := o.conn.Close()
	o.conn = nil
	return err
}

func (o *Observer) candidates(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		short, ok := strings.CutPrefix(name, busNamePrefix)
		if !ok || short == "" {
			continue
		}
		if o.opts.Player != "" && !matchesPlayer(short, o.opts.Player) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// matchesPlayer accepts "spotify" for org.mpris.MediaPlayer2.spotify as well
// as instance-suffixed names such as org.mpris.MediaPlayer2.firefox.instance_1_84.
func matchesPlayer(short, player string) bool {
	return strcase.HasSuffix(short, player) || strcase.HasPrefix(short, player+".")
}

// selectPlayer prefers the first playing player in name order and, when
// paused tracks count, falls back to the first paused one.
func (o *Observer) selectPlayer(ctx context.Context, conn bus, names []string) (string, bool) {
	var paused string
	for _, name := range names {
		value, err := conn.GetProperty(ctx, name, playerInterface, propPlaybackStatus)
		if err != nil {
			o.logger.Debug("player status unavailable", logging.String("player", name), logging.Error(err))
			continue
		}
		status, _ := value.Value().(string)
		switch status {
		case statusPlaying:
			return name, true
		case statusPaused:
			if paused == "" {
				paused = name
			}
		}
	}
	if o.opts.IncludePaused && paused != "" {
		return paused, true
	}
	return "", false
}

func (o *Observer) ensureConn() (bus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		return o.conn, nil
	}
	conn, err := o.connect()
	if err != nil {
		return nil, err
	}
	signals := make(chan *dbus.Signal, 8)
	if err := conn.Subscribe(signals); err != nil {
		o.logger.Warn("property change subscription failed; relying on polling",
			logging.String(logging.FieldEventType, "mpris_subscribe_failed"),
			logging.String(logging.FieldErrorHint, "check that the session bus allows match rules"),
			logging.String(logging.FieldImpact, "track changes are detected on the next poll only"),
			logging.Error(err),
		)
	} else {
		go o.forward(signals)
	}
	o.conn = conn
	return conn, nil
}

func (o *Observer) dropConn(conn bus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn == conn {
		_ = conn.Close()
		o.conn = nil
	}
}

// forward coalesces player property changes into the buffered changes
// channel. It exits when the connection closes the signal channel.
func (o *Observer) forward(signals <-chan *dbus.Signal) {
	for sig := range signals {
		if sig == nil || len(sig.Body) == 0 {
			continue
		}
		if iface, _ := sig.Body[0].(string); iface != playerInterface {
			continue
		}
		select {
		case o.changes <- struct{}{}:
		default:
		}
	}
}

// Players lists the MPRIS players on the session bus with their playback
// status, keyed by short name.
func Players(ctx context.Context) (map[string]string, error) {
	conn, err := connectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect session bus: %v", playback.ErrUnavailable, err)
	}
	defer conn.Close()
	return listPlayers(ctx, conn)
}

func listPlayers(ctx context.Context, conn bus) (map[string]string, error) {
	names, err := conn.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list bus names: %v", playback.ErrUnavailable, err)
	}
	players := make(map[string]string)
	for _, name := range names {
		short, ok := strings.CutPrefix(name, busNamePrefix)
		if !ok || short == "" {
			continue
		}
		status := "Unknown"
		if value, err := conn.GetProperty(ctx, name, playerInterface, propPlaybackStatus); err == nil {
			if s, ok := value.Value().(string); ok && s != "" {
				status = s
			}
		}
		players[short] = status
	}
	return players, nil
}
