package config

import "github.com/20after4/configdir"

const (
	defaultBackend             = BackendMPRIS
	defaultLocalPollMillis     = 1000
	defaultRemotePollSeconds   = 5
	defaultSpotifyAPIBaseURL   = "https://api.spotify.com/v1"
	defaultSpotifyAccountsURL  = "https://accounts.spotify.com"
	defaultSpotifyRedirectURI  = "http://127.0.0.1:8888/callback"
	defaultArtworkRetryMax     = 3
	defaultArtworkRetryWaitMin = 250
	defaultArtworkRetryWaitMax = 4000
	defaultArtworkMaxBytes     = 20 << 20
	defaultFallbackColor       = "#808080"
	defaultPaletteSize         = 3
	defaultPaletteMaxSamples   = 10000
	defaultPaletteColor        = "#808080"
	defaultVisualizerConfig    = "~/.config/cava/config"
	defaultVisualizerOrder     = OrderDominance
	defaultProcessName         = "cava"
	defaultReloadSignal        = "SIGUSR2"
	defaultRequestSeconds      = 10
	defaultBackoffMaxSeconds   = 60
	defaultEscalateAfter       = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultHistoryKeep         = 500

	minRemotePollSeconds = 2
	minLocalPollMillis   = 100
	maxPaletteSize       = 16
)

var defaultSlots = []string{"background", "gradient_color_1", "gradient_color_2"}

func defaultStateDir() string {
	return configdir.LocalCache(appName)
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir(),
		},
		Playback: Playback{
			Backend:           defaultBackend,
			LocalPollMillis:   defaultLocalPollMillis,
			RemotePollSeconds: defaultRemotePollSeconds,
		},
		Spotify: Spotify{
			RedirectURI:     defaultSpotifyRedirectURI,
			APIBaseURL:      defaultSpotifyAPIBaseURL,
			AccountsBaseURL: defaultSpotifyAccountsURL,
		},
		Artwork: Artwork{
			RetryMax:           defaultArtworkRetryMax,
			RetryWaitMinMillis: defaultArtworkRetryWaitMin,
			RetryWaitMaxMillis: defaultArtworkRetryWaitMax,
			MaxBytes:           defaultArtworkMaxBytes,
			FallbackColor:      defaultFallbackColor,
		},
		Palette: Palette{
			Size:         defaultPaletteSize,
			MaxSamples:   defaultPaletteMaxSamples,
			DefaultColor: defaultPaletteColor,
		},
		Visualizer: Visualizer{
			ConfigPath:   defaultVisualizerConfig,
			Slots:        append([]string(nil), defaultSlots...),
			Order:        defaultVisualizerOrder,
			ProcessName:  defaultProcessName,
			ReloadSignal: defaultReloadSignal,
			Backup:       true,
		},
		Sync: Sync{
			RequestSeconds:    defaultRequestSeconds,
			BackoffMaxSeconds: defaultBackoffMaxSeconds,
			EscalateAfter:     defaultEscalateAfter,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
			Keep:    defaultHistoryKeep,
		},
	}
}
