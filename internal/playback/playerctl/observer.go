package playerctl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"cavacolor/internal/logging"
	"cavacolor/internal/playback"
)

var commandContext = exec.CommandContext

const (
	defaultBinary      = "playerctl"
	defaultCallTimeout = 2 * time.Second

	fieldSeparator = "\x1f"
	noPlayers      = "No players found"
)

// metadataFormat asks playerctl for one record of separator-delimited fields.
var metadataFormat = strings.Join([]string{
	"{{status}}",
	"{{mpris:trackid}}",
	"{{mpris:artUrl}}",
	"{{xesam:title}}",
	"{{xesam:artist}}",
	"{{xesam:album}}",
}, fieldSeparator)

// Option configures the observer.
type Option func(*Observer)

// WithBinary overrides the playerctl binary.
func WithBinary(binary string) Option {
	return func(o *Observer) {
		if binary != "" {
			o.binary = binary
		}
	}
}

// WithPlayer restricts observation to one player name.
func WithPlayer(player string) Option {
	return func(o *Observer) {
		o.player = strings.TrimSpace(player)
	}
}

// WithIncludePaused treats a paused track as current.
func WithIncludePaused(include bool) Option {
	return func(o *Observer) {
		o.includePaused = include
	}
}

// WithCallTimeout bounds each playerctl invocation.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *Observer) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// Observer reads the current track from playerctl.
type Observer struct {
	binary        string
	player        string
	includePaused bool
	timeout       time.Duration
	logger        *slog.Logger
}

// New constructs a playerctl observer.
func New(opts ...Option) *Observer {
	o := &Observer{binary: defaultBinary, timeout: defaultCallTimeout}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "playerctl")
	return o
}

// Observe runs playerctl once. A player that is stopped, or no player at all,
// yields a nil observation.
func (o *Observer) Observe(ctx context.Context) (*playback.Observation, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	args := make([]string, 0, 4)
	if o.player != "" {
		args = append(args, "--player="+o.player)
	}
	args = append(args, "metadata", "--format", metadataFormat)

	cmd := commandContext(callCtx, o.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A killed process also surfaces as an ExitError.
		if callCtx.Err() != nil {
			return nil, fmt.Errorf("%w: playerctl timed out after %s", playback.ErrUnavailable, o.timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			o.logger.Debug("playerctl reported no track",
				logging.Int("exit_code", exitErr.ExitCode()),
				logging.String("stderr", strings.TrimSpace(stderr.String())),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: run %s: %v", playback.ErrUnavailable, o.binary, err)
	}

	out := strings.TrimRight(stdout.String(), "\r\n")
	if strings.Contains(out, noPlayers) || strings.Contains(stderr.String(), noPlayers) {
		return nil, nil
	}
	return o.parse(out), nil
}

func (o *Observer) parse(line string) *playback.Observation {
	fields := strings.Split(line, fieldSeparator)
	for len(fields) < 6 {
		fields = append(fields, "")
	}
	status := strings.TrimSpace(fields[0])
	switch status {
	case "Playing":
	case "Paused":
		if !o.includePaused {
			return nil
		}
	default:
		return nil
	}

	title := strings.TrimSpace(fields[3])
	artist := strings.TrimSpace(fields[4])
	album := strings.TrimSpace(fields[5])
	track := playback.Identify(fields[1], artist, title, album)
	if track == "" {
		return nil
	}
	return &playback.Observation{
		Track:   track,
		Artwork: playback.NormalizeArtworkURL(fields[2]),
		Title:   title,
		Artist:  artist,
		Album:   album,
		Source:  playback.SourcePlayerctl,
		Player:  o.player,
	}
}
