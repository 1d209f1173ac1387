package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"cavacolor/internal/logging"
	"cavacolor/internal/playback"
)

const (
	defaultAPIBaseURL   = "https://api.spotify.com/v1"
	currentlyPlaying    = "/me/player/currently-playing"
	maxErrorBodyBytes   = 4 << 10
	maxPlayerStateBytes = 1 << 20
)

// Option configures the observer.
type Option func(*Observer)

// WithBaseURL overrides the Web API base URL.
func WithBaseURL(base string) Option {
	return func(o *Observer) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			o.baseURL = base
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Observer) {
		if client != nil {
			o.client.httpClient = client
		}
	}
}

// WithRetry overrides the retry count and backoff bounds.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(o *Observer) {
		o.client.retryMax = retryMax
		o.client.retryWaitMin = waitMin
		o.client.retryWaitMax = waitMax
	}
}

// WithRequestTimeout sets the deadline for each HTTP attempt.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Observer) {
		if timeout > 0 {
			o.client.timeout = timeout
		}
	}
}

// WithIncludePaused treats a paused track as current.
func WithIncludePaused(include bool) Option {
	return func(o *Observer) {
		o.includePaused = include
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		o.client.logger = logger
	}
}

// Observer polls the currently-playing endpoint.
type Observer struct {
	baseURL       string
	token         *Token
	includePaused bool
	client        clientOptions
	http          *retryablehttp.Client
	logger        *slog.Logger
}

// NewObserver constructs an observer that authenticates with token.
func NewObserver(token *Token, opts ...Option) (*Observer, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("spotify access token required")
	}
	o := &Observer{baseURL: defaultAPIBaseURL, token: token, client: defaultClientOptions()}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.client.logger, "spotify")
	o.client.logger = o.logger
	o.http = newRetryClient(o.client)
	return o, nil
}

type image struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

type artist struct {
	Name string `json:"name"`
}

type item struct {
	ID      string   `json:"id"`
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Artists []artist `json:"artists"`
	Album   *struct {
		Name   string  `json:"name"`
		Images []image `json:"images"`
	} `json:"album"`
	Images []image `json:"images"`
	Show   *struct {
		Name      string  `json:"name"`
		Publisher string  `json:"publisher"`
		Images    []image `json:"images"`
	} `json:"show"`
}

type playerState struct {
	IsPlaying            bool   `json:"is_playing"`
	CurrentlyPlayingType string `json:"currently_playing_type"`
	Item                 *item  `json:"item"`
}

// Observe returns the user's current track, or nil when nothing is playing.
func (o *Observer) Observe(ctx context.Context) (*playback.Observation, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet,
		o.baseURL+currentlyPlaying+"?additional_types=track,episode", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", playback.ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.token.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := o.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", playback.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", playback.ErrAuthExpired, apiErrorMessage(resp))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &playback.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: currently playing returned http %d: %s",
			playback.ErrUnavailable, resp.StatusCode, apiErrorMessage(resp))
	}

	var state playerState
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPlayerStateBytes)).Decode(&state); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: decode player state: %v", playback.ErrUnavailable, err)
	}
	if state.Item == nil {
		return nil, nil
	}
	if !state.IsPlaying && !o.includePaused {
		return nil, nil
	}
	return observationFromItem(state.Item), nil
}

func observationFromItem(it *item) *playback.Observation {
	var (
		names  []string
		album  string
		images []image
	)
	for _, a := range it.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	switch {
	case it.Album != nil:
		album = it.Album.Name
		images = it.Album.Images
	case it.Show != nil:
		album = it.Show.Name
		if it.Show.Publisher != "" {
			names = append(names, it.Show.Publisher)
		}
		images = it.Images
		if len(images) == 0 {
			images = it.Show.Images
		}
	default:
		images = it.Images
	}
	artistName := strings.Join(names, ", ")

	track := playback.TrackID(strings.TrimSpace(it.URI))
	if track == "" && it.ID != "" {
		kind := it.Type
		if kind == "" {
			kind = "track"
		}
		track = playback.TrackID("spotify:" + kind + ":" + it.ID)
	}
	if track == "" {
		track = playback.IdentityFromMetadata(artistName, it.Name, album)
	}

	return &playback.Observation{
		Track:   track,
		Artwork: playback.ArtworkLocation(smallestImage(images)),
		Title:   it.Name,
		Artist:  artistName,
		Album:   album,
		Source:  playback.SourceSpotify,
		Player:  "spotify",
	}
}

// smallestImage picks the image with the lowest reported height. Images
// without a height are used only when none report one; the API lists
// images largest first, so the last one is the smallest.
func smallestImage(images []image) string {
	best := -1
	for i, img := range images {
		if img.URL == "" || img.Height == nil {
			continue
		}
		if best < 0 || *img.Height < *images[best].Height {
			best = i
		}
	}
	if best >= 0 {
		return images[best].URL
	}
	for i := len(images) - 1; i >= 0; i-- {
		if images[i].URL != "" {
			return images[i].URL
		}
	}
	return ""
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait
		}
	}
	return 0
}

// apiErrorMessage extracts the message from a Web API error body.
func apiErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var payload struct {
		Error       json.RawMessage `json:"error"`
		Description string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Description != "" {
			return payload.Description
		}
		var detail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &detail) == nil && detail.Message != "" {
			return detail.Message
		}
		var code string
		if json.Unmarshal(payload.Error, &code) == nil && code != "" {
			return code
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
