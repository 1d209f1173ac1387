package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlayback()
	c.normalizeSpotify()
	c.normalizeArtwork()
	c.normalizePalette()
	if err := c.normalizeVisualizer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlayback() {
	c.Playback.Backend = strings.ToLower(strings.TrimSpace(c.Playback.Backend))
	if c.Playback.Backend == "" {
		c.Playback.Backend = defaultBackend
	}
	c.Playback.Player = strings.TrimSpace(c.Playback.Player)
	c.Playback.PlayerctlBinaryPath = strings.TrimSpace(c.Playback.PlayerctlBinaryPath)
}

func (c *Config) normalizeSpotify() {
	if c.Spotify.ClientID == "" {
		c.Spotify.ClientID = lookupFirstEnv("SPOTIFY_CLIENT_ID", "RSPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		c.Spotify.ClientSecret = lookupFirstEnv("SPOTIFY_CLIENT_SECRET", "RSPOTIFY_CLIENT_SECRET")
	}
	if value := lookupFirstEnv("SPOTIFY_REDIRECT_URI", "RSPOTIFY_REDIRECT_URI"); value != "" {
		c.Spotify.RedirectURI = value
	}
	c.Spotify.ClientID = strings.TrimSpace(c.Spotify.ClientID)
	c.Spotify.ClientSecret = strings.TrimSpace(c.Spotify.ClientSecret)
	c.Spotify.RedirectURI = strings.TrimSpace(c.Spotify.RedirectURI)
	if c.Spotify.RedirectURI == "" {
		c.Spotify.RedirectURI = defaultSpotifyRedirectURI
	}
	c.Spotify.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Spotify.APIBaseURL), "/")
	if c.Spotify.APIBaseURL == "" {
		c.Spotify.APIBaseURL = defaultSpotifyAPIBaseURL
	}
	c.Spotify.AccountsBaseURL = strings.TrimRight(strings.TrimSpace(c.Spotify.AccountsBaseURL), "/")
	if c.Spotify.AccountsBaseURL == "" {
		c.Spotify.AccountsBaseURL = defaultSpotifyAccountsURL
	}
}

func (c *Config) normalizeArtwork() {
	c.Artwork.FallbackColor = strings.TrimSpace(c.Artwork.FallbackColor)
	if c.Artwork.FallbackColor == "" {
		c.Artwork.FallbackColor = defaultFallbackColor
	}
	if c.Artwork.MaxBytes == 0 {
		c.Artwork.MaxBytes = defaultArtworkMaxBytes
	}
}

func (c *Config) normalizePalette() {
	c.Palette.DefaultColor = strings.TrimSpace(c.Palette.DefaultColor)
	if c.Palette.DefaultColor == "" {
		c.Palette.DefaultColor = defaultPaletteColor
	}
	if c.Palette.MaxSamples == 0 {
		c.Palette.MaxSamples = defaultPaletteMaxSamples
	}
}

func (c *Config) normalizeVisualizer() error {
	if value, ok := os.LookupEnv("CAVA_CONFIG_LOCATION"); ok && strings.TrimSpace(value) != "" {
		c.Visualizer.ConfigPath = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Visualizer.ConfigPath) == "" {
		c.Visualizer.ConfigPath = defaultVisualizerConfig
	}
	var err error
	if c.Visualizer.ConfigPath, err = expandPath(c.Visualizer.ConfigPath); err != nil {
		return fmt.Errorf("visualizer.config_path: %w", err)
	}

	slots := make([]string, 0, len(c.Visualizer.Slots))
	for _, slot := range c.Visualizer.Slots {
		if trimmed := strings.TrimSpace(slot); trimmed != "" {
			slots = append(slots, trimmed)
		}
	}
	c.Visualizer.Slots = slots

	c.Visualizer.Order = strings.ToLower(strings.TrimSpace(c.Visualizer.Order))
	if c.Visualizer.Order == "" {
		c.Visualizer.Order = defaultVisualizerOrder
	}
	c.Visualizer.ProcessName = strings.TrimSpace(c.Visualizer.ProcessName)
	if c.Visualizer.ProcessName == "" {
		c.Visualizer.ProcessName = defaultProcessName
	}
	c.Visualizer.ReloadSignal = strings.ToUpper(strings.TrimSpace(c.Visualizer.ReloadSignal))
	if c.Visualizer.ReloadSignal != "" && !strings.HasPrefix(c.Visualizer.ReloadSignal, "SIG") {
		c.Visualizer.ReloadSignal = "SIG" + c.Visualizer.ReloadSignal
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupFirstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
