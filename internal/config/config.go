package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/20after4/configdir"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const appName = "cavacolor"

// Playback backends.
const (
	BackendMPRIS     = "mpris"
	BackendPlayerctl = "playerctl"
	BackendSpotify   = "spotify"
)

// Palette slot ordering modes.
const (
	OrderDominance  = "dominance"
	OrderBrightness = "brightness"
)

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
}

// Playback selects and tunes the playback observer.
type Playback struct {
	Backend             string `toml:"backend"`
	Player              string `toml:"player"`
	IncludePaused       bool   `toml:"include_paused"`
	LocalPollMillis     int    `toml:"local_poll_ms"`
	RemotePollSeconds   int    `toml:"remote_poll_seconds"`
	PlayerctlBinaryPath string `toml:"playerctl_binary"`
}

// Spotify contains Web API credentials and endpoints.
type Spotify struct {
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	RedirectURI     string `toml:"redirect_uri"`
	APIBaseURL      string `toml:"api_base_url"`
	AccountsBaseURL string `toml:"accounts_base_url"`
}

// Artwork tunes album art retrieval.
type Artwork struct {
	RetryMax           int    `toml:"retry_max"`
	RetryWaitMinMillis int    `toml:"retry_wait_min_ms"`
	RetryWaitMaxMillis int    `toml:"retry_wait_max_ms"`
	MaxBytes           int64  `toml:"max_bytes"`
	FallbackColor      string `toml:"fallback_color"`
}

// Palette tunes color extraction.
type Palette struct {
	Size         int    `toml:"size"`
	MaxSamples   int    `toml:"max_samples"`
	DefaultColor string `toml:"default_color"`
}

// Visualizer describes the cava config file and how to poke the running process.
type Visualizer struct {
	ConfigPath   string   `toml:"config_path"`
	Slots        []string `toml:"slots"`
	Order        string   `toml:"order"`
	ProcessName  string   `toml:"process_name"`
	ReloadSignal string   `toml:"reload_signal"`
	Backup       bool     `toml:"backup"`
}

// Sync contains loop timing.
type Sync struct {
	RequestSeconds    int `toml:"request_seconds"`
	BackoffMaxSeconds int `toml:"backoff_max_seconds"`
	EscalateAfter     int `toml:"escalate_after"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// History controls the applied-palette journal.
type History struct {
	Enabled bool `toml:"enabled"`
	Keep    int  `toml:"keep"`
}

// Config encapsulates all configuration values for cavacolor.
//
// Configuration sections by subsystem:
//   - Paths: state directory for the log, lock, and history database
//   - Playback: observer backend selection and poll intervals
//   - Spotify: Web API credentials for the remote backend
//   - Artwork: download retries and size limits
//   - Palette: number of colors and sampling bounds
//   - Visualizer: cava config location, slot keys, and reload signal
//   - Sync: request deadline and backoff ceiling
//   - Logging: log format and level
//   - History: applied palette journal
type Config struct {
	Paths      Paths      `toml:"paths"`
	Playback   Playback   `toml:"playback"`
	Spotify    Spotify    `toml:"spotify"`
	Artwork    Artwork    `toml:"artwork"`
	Palette    Palette    `toml:"palette"`
	Visualizer Visualizer `toml:"visualizer"`
	Sync       Sync       `toml:"sync"`
	Logging    Logging    `toml:"logging"`
	History    History    `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() string {
	return filepath.Join(configdir.LocalConfig(appName), "config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		if value, ok := os.LookupEnv("CAVACOLOR_CONFIG"); ok && strings.TrimSpace(value) != "" {
			path = value
		}
	}
	if path == "" {
		path = DefaultConfigPath()
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, appName+".lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, appName+".log")
}

// HistoryPath returns the SQLite journal location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// PIDPath returns the PID file written by the daemon.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, appName+".pid")
}

// IsRemote reports whether the configured backend polls a network API.
func (c *Config) IsRemote() bool {
	return c.Playback.Backend == BackendSpotify
}

// PollInterval returns the tick interval for the configured backend.
func (c *Config) PollInterval() time.Duration {
	if c.IsRemote() {
		return time.Duration(c.Playback.RemotePollSeconds) * time.Second
	}
	return time.Duration(c.Playback.LocalPollMillis) * time.Millisecond
}

// RequestTimeout returns the per-call deadline for network and bus calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Sync.RequestSeconds) * time.Second
}

// BackoffMax returns the ceiling applied to failure backoff.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Sync.BackoffMaxSeconds) * time.Second
}

// RetryWaitMin returns the minimum wait between artwork download attempts.
func (c *Config) RetryWaitMin() time.Duration {
	return time.Duration(c.Artwork.RetryWaitMinMillis) * time.Millisecond
}

// RetryWaitMax returns the maximum wait between artwork download attempts.
func (c *Config) RetryWaitMax() time.Duration {
	return time.Duration(c.Artwork.RetryWaitMaxMillis) * time.Millisecond
}

// PlayerctlBinary returns the playerctl executable name.
func (c *Config) PlayerctlBinary() string {
	if c.Playback.PlayerctlBinaryPath != "" {
		return c.Playback.PlayerctlBinaryPath
	}
	return "playerctl"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
