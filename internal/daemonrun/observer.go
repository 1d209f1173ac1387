package daemonrun

import (
	"context"
	"fmt"
	"log/slog"

	"cavacolor/internal/config"
	"cavacolor/internal/playback"
	"cavacolor/internal/playback/mpris"
	"cavacolor/internal/playback/playerctl"
	"cavacolor/internal/playback/spotify"
)

// authorize is replaced in tests to skip the interactive exchange.
var authorize = func(ctx context.Context, auth *spotify.Authorizer) (*spotify.Token, error) {
	return auth.Authorize(ctx)
}

// NewObserver constructs the playback observer for the configured backend.
// The returned cleanup releases backend resources and is never nil.
func NewObserver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (playback.Observer, func(), error) {
	noop := func() {}
	switch cfg.Playback.Backend {
	case config.BackendMPRIS:
		obs := mpris.New(mpris.Options{
			Player:        cfg.Playback.Player,
			IncludePaused: cfg.Playback.IncludePaused,
			CallTimeout:   cfg.RequestTimeout(),
			Logger:        logger,
		})
		return obs, func() { _ = obs.Close() }, nil

	case config.BackendPlayerctl:
		return playerctl.New(
			playerctl.WithBinary(cfg.PlayerctlBinary()),
			playerctl.WithPlayer(cfg.Playback.Player),
			playerctl.WithIncludePaused(cfg.Playback.IncludePaused),
			playerctl.WithCallTimeout(cfg.RequestTimeout()),
			playerctl.WithLogger(logger),
		), noop, nil

	case config.BackendSpotify:
		auth, err := spotify.NewAuthorizer(spotify.Credentials{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RedirectURI:  cfg.Spotify.RedirectURI,
		},
			spotify.WithAccountsBaseURL(cfg.Spotify.AccountsBaseURL),
			spotify.WithAuthLogger(logger),
		)
		if err != nil {
			return nil, noop, err
		}
		token, err := authorize(ctx, auth)
		if err != nil {
			return nil, noop, fmt.Errorf("spotify authorization: %w", err)
		}
		obs, err := spotify.NewObserver(token,
			spotify.WithBaseURL(cfg.Spotify.APIBaseURL),
			spotify.WithRequestTimeout(cfg.RequestTimeout()),
			spotify.WithIncludePaused(cfg.Playback.IncludePaused),
			spotify.WithLogger(logger),
		)
		if err != nil {
			return nil, noop, err
		}
		return obs, noop, nil

	default:
		return nil, noop, fmt.Errorf("playback.backend: unsupported value %q", cfg.Playback.Backend)
	}
}
