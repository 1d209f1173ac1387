package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cavacolor/internal/playback"
)

const trackResponse = `{
  "is_playing": true,
  "currently_playing_type": "track",
  "item": {
    "id": "4uLU6hMCjMI75M1A2tKUQC",
    "uri": "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
    "name": "Never Gonna Give You Up",
    "type": "track",
    "artists": [{"name": "Rick Astley"}],
    "album": {
      "name": "Whenever You Need Somebody",
      "images": [
        {"url": "https://i.scdn.co/image/640", "height": 640, "width": 640},
        {"url": "https://i.scdn.co/image/64", "height": 64, "width": 64},
        {"url": "https://i.scdn.co/image/300", "height": 300, "width": 300}
      ]
    }
  }
}`

const episodeResponse = `{
  "is_playing": true,
  "currently_playing_type": "episode",
  "item": {
    "id": "512ojhOuo1ktJprKbVcKyQ",
    "uri": "spotify:episode:512ojhOuo1ktJprKbVcKyQ",
    "name": "Episode 12",
    "type": "episode",
    "images": [
      {"url": "https://i.scdn.co/image/ep-large", "height": 640, "width": 640},
      {"url": "https://i.scdn.co/image/ep-small", "height": 64, "width": 64}
    ],
    "show": {"name": "The Show", "publisher": "Publisher"}
  }
}`

func newTestObserver(t *testing.T, handler http.HandlerFunc, opts ...Option) *Observer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithBaseURL(server.URL), WithRetry(2, time.Millisecond, 5*time.Millisecond)}, opts...)
	obs, err := NewObserver(&Token{AccessToken: "access-123"}, opts...)
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	return obs
}

func TestObserveTrackUsesSmallestAlbumImage(t *testing.T) {
	obs := newTestObserver(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != currentlyPlaying {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-123" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(trackResponse))
	})

	got, err := obs.Observe(context.Background())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if got == nil {
		t.Fatal("expected observation")
	}
	if got.Track != "spotify:track:4uLU6hMCjMI75M1A2tKUQC" {
		t.Fatalf("unexpected track %q", got.Track)
	}
	if got.Artwork != "https://i.scdn.co/image/64" {
		t.Fatalf("expected smallest image, got %q", got.Artwork)
	}
	if got.Artist != "Rick Astley" || got.Album != "Whenever You Need Somebody" {
		t.Fatalf("unexpected metadata %+v", got)
	}
	if got.Source != playback.SourceSpotify {
		t.Fatalf("unexpected source %q", got.Source)
	}
}

func TestObserveEpisodeUsesEpisodeImages(t *testing.T) {
	obs := newTestObserver(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(episodeResponse))
	})
	got, err := obs.Observe(context.Background())
	if err != nil || got == nil {
		t.Fatalf("expected observation, got %+v, %v", got, err)
	}
	if got.Track != "spotify:episode:512ojhOuo1ktJprKbVcKyQ" {
		t.Fatalf("unexpected track %q", got.Track)
	}
	if got.Artwork != "https://i.scdn.co/image/ep-small" {
		t.Fatalf("expected episode image, got %q", got.Artwork)
	}
	if got.Album != "The Show" {
		t.Fatalf("expected show name as album, got %q", got.Album)
	}
}

func TestObserveNothingPlaying(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"no content": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
		"null item": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"is_playing": true, "currently_playing_type": "ad", "item": null}`))
		},
		"paused": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"is_playing": false, "item": {"uri": "spotify:track:x", "name": "x"}}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := newTestObserver(t, handler).Observe(context.Background())
			if err != nil || got != nil {
				t.Fatalf("expected nil observation, got %+v, %v", got, err)
			}
		})
	}
}

func TestObservePausedWhenIncluded(t *testing.T) {
	obs := newTestObserver(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"is_playing": false, "item": {"uri": "spotify:track:x", "name": "x"}}`))
	}, WithIncludePaused(true))
	got, err := obs.Observe(context.Background())
	if err != nil || got == nil || got.Track != "spotify:track:x" {
		t.Fatalf("expected paused track, got %+v, %v", got, err)
	}
	if !got.Artwork.Absent() {
		t.Fatalf("expected absent artwork, got %q", got.Artwork)
	}
}

func TestObserveUnauthorizedIsAuthExpired(t *testing.T) {
	var hits atomic.Int32
	obs := newTestObserver(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"status": 401, "message": "The access token expired"}}`))
	})
	_, err := obs.Observe(context.Background())
	if !errors.Is(err, playback.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected no retry on 401, got %d requests", hits.Load())
	}
}

func TestObserveRateLimitedCarriesRetryAfter(t *testing.T) {
	var hits atomic.Int32
	obs := newTestObserver(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	start := time.Now()
	_, err := obs.Observe(context.Background())
	if !errors.Is(err, playback.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	wait, ok := playback.RetryAfter(err)
	if !ok || wait != 7*time.Second {
		t.Fatalf("expected 7s retry-after, got %s %v", wait, ok)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("retry waits should be capped, took %s", elapsed)
	}
}

func TestObserveServerErrorIsUnavailable(t *testing.T) {
	obs := newTestObserver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := obs.Observe(context.Background()); !errors.Is(err, playback.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestObserveRetriesTransientFailure(t *testing.T) {
	var hits atomic.Int32
	obs := newTestObserver(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(trackResponse))
	})
	got, err := obs.Observe(context.Background())
	if err != nil || got == nil {
		t.Fatalf("expected observation after retry, got %+v, %v", got, err)
	}
}

func TestNewObserverRequiresToken(t *testing.T) {
	if _, err := NewObserver(nil); err == nil {
		t.Fatal("expected error without token")
	}
	if _, err := NewObserver(&Token{}); err == nil {
		t.Fatal("expected error with empty token")
	}
}

func TestSmallestImage(t *testing.T) {
	h := func(v int) *int { return &v }
	cases := []struct {
		name   string
		images []image
		want   string
	}{
		{name: "empty", images: nil, want: ""},
		{name: "by height", images: []image{{URL: "a", Height: h(300)}, {URL: "b", Height: h(64)}}, want: "b"},
		{name: "no heights uses last", images: []image{{URL: "a"}, {URL: "b"}}, want: "b"},
		{name: "mixed prefers known height", images: []image{{URL: "a", Height: h(640)}, {URL: "b"}}, want: "a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := smallestImage(tc.images); got != tc.want {
				t.Fatalf("smallestImage = %q, want %q", got, tc.want)
			}
		})
	}
}
