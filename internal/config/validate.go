package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateSpotify(); err != nil {
		return err
	}
	if err := c.validateArtwork(); err != nil {
		return err
	}
	if err := c.validatePalette(); err != nil {
		return err
	}
	if err := c.validateVisualizer(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.History.Keep < 0 {
		return errors.New("history.keep must be >= 0")
	}
	return nil
}

func (c *Config) validatePlayback() error {
	switch c.Playback.Backend {
	case BackendMPRIS, BackendPlayerctl, BackendSpotify:
	default:
		return fmt.Errorf("playback.backend %q is not supported (use mpris, playerctl, or spotify)", c.Playback.Backend)
	}
	if c.Playback.LocalPollMillis < minLocalPollMillis {
		return fmt.Errorf("playback.local_poll_ms must be >= %d", minLocalPollMillis)
	}
	if c.Playback.RemotePollSeconds < minRemotePollSeconds {
		return fmt.Errorf("playback.remote_poll_seconds must be >= %d", minRemotePollSeconds)
	}
	return nil
}

func (c *Config) validateSpotify() error {
	if c.Playback.Backend != BackendSpotify {
		return nil
	}
	if c.Spotify.ClientID == "" {
		return fmt.Errorf("spotify.client_id is required for the spotify backend. Set SPOTIFY_CLIENT_ID or edit %s", DefaultConfigPath())
	}
	if c.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify.client_secret is required for the spotify backend. Set SPOTIFY_CLIENT_SECRET or edit %s", DefaultConfigPath())
	}
	for key, value := range map[string]string{
		"spotify.redirect_uri":      c.Spotify.RedirectURI,
		"spotify.api_base_url":      c.Spotify.APIBaseURL,
		"spotify.accounts_base_url": c.Spotify.AccountsBaseURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", key)
		}
	}
	return nil
}

func (c *Config) validateArtwork() error {
	if c.Artwork.RetryMax < 0 {
		return errors.New("artwork.retry_max must be >= 0")
	}
	if err := ensurePositiveMap(map[string]int{
		"artwork.retry_wait_min_ms": c.Artwork.RetryWaitMinMillis,
		"artwork.retry_wait_max_ms": c.Artwork.RetryWaitMaxMillis,
	}); err != nil {
		return err
	}
	if c.Artwork.RetryWaitMaxMillis < c.Artwork.RetryWaitMinMillis {
		return errors.New("artwork.retry_wait_max_ms must be >= artwork.retry_wait_min_ms")
	}
	if c.Artwork.MaxBytes <= 0 {
		return errors.New("artwork.max_bytes must be positive")
	}
	if err := validateHexColor(c.Artwork.FallbackColor); err != nil {
		return fmt.Errorf("artwork.fallback_color: %w", err)
	}
	return nil
}

func (c *Config) validatePalette() error {
	if c.Palette.Size < 1 || c.Palette.Size > maxPaletteSize {
		return fmt.Errorf("palette.size must be between 1 and %d", maxPaletteSize)
	}
	if c.Palette.MaxSamples <= 0 {
		return errors.New("palette.max_samples must be positive")
	}
	if err := validateHexColor(c.Palette.DefaultColor); err != nil {
		return fmt.Errorf("palette.default_color: %w", err)
	}
	return nil
}

func (c *Config) validateVisualizer() error {
	if len(c.Visualizer.Slots) == 0 {
		return errors.New("visualizer.slots must list at least one key")
	}
	if len(c.Visualizer.Slots) > c.Palette.Size {
		return fmt.Errorf("visualizer.slots lists %d keys but palette.size is %d", len(c.Visualizer.Slots), c.Palette.Size)
	}
	seen := make(map[string]struct{}, len(c.Visualizer.Slots))
	for _, slot := range c.Visualizer.Slots {
		if _, ok := seen[slot]; ok {
			return fmt.Errorf("visualizer.slots lists %q more than once", slot)
		}
		seen[slot] = struct{}{}
	}
	switch c.Visualizer.Order {
	case OrderDominance, OrderBrightness:
	default:
		return fmt.Errorf("visualizer.order %q is not supported (use dominance or brightness)", c.Visualizer.Order)
	}
	if c.Visualizer.ReloadSignal != "" && unix.SignalNum(c.Visualizer.ReloadSignal) == 0 {
		return fmt.Errorf("visualizer.reload_signal %q is not a known signal", c.Visualizer.ReloadSignal)
	}
	return nil
}

func (c *Config) validateSync() error {
	if err := ensurePositiveMap(map[string]int{
		"sync.request_seconds":     c.Sync.RequestSeconds,
		"sync.backoff_max_seconds": c.Sync.BackoffMaxSeconds,
		"sync.escalate_after":      c.Sync.EscalateAfter,
	}); err != nil {
		return err
	}
	if c.BackoffMax() < c.PollInterval() {
		return errors.New("sync.backoff_max_seconds must not be shorter than the poll interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// validateHexColor accepts #rgb and #rrggbb, with or without the leading '#'.
func validateHexColor(value string) error {
	s := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(s) != 3 && len(s) != 6 {
		return fmt.Errorf("invalid hex color %q", value)
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return fmt.Errorf("invalid hex color %q", value)
	}
	return nil
}
