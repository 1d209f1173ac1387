package playback_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"cavacolor/internal/playback"
)

func TestIdentityFromMetadataIgnoresCosmeticDifferences(t *testing.T) {
	a := playback.IdentityFromMetadata("Sigur Rós", "Hoppípolla", "Takk...")
	b := playback.IdentityFromMetadata("  sigur  ros ", "HOPPIPOLLA", "takk...")
	if a == "" {
		t.Fatal("expected non-empty identity")
	}
	if a != b {
		t.Fatalf("expected equal identities, got %q and %q", a, b)
	}
	if c := playback.IdentityFromMetadata("Sigur Rós", "Glósóli", "Takk..."); c == a {
		t.Fatal("different titles must not collide")
	}
}

func TestIdentityFromMetadataFieldBoundaries(t *testing.T) {
	a := playback.IdentityFromMetadata("ab", "c", "")
	b := playback.IdentityFromMetadata("a", "bc", "")
	if a == b {
		t.Fatal("field boundaries must be part of the identity")
	}
}

func TestIdentityFromMetadataEmpty(t *testing.T) {
	if id := playback.IdentityFromMetadata(" ", "", ""); id != "" {
		t.Fatalf("expected empty identity, got %q", id)
	}
}

func TestIdentify(t *testing.T) {
	cases := []struct {
		trackID string
		want    playback.TrackID
	}{
		{"/com/spotify/track/4uLU6hMCjMI75M1A2tKUQC", "spotify:track:4uLU6hMCjMI75M1A2tKUQC"},
		{"/org/mpd/Tracks/12", "/org/mpd/Tracks/12"},
		{"/org/mpris/MediaPlayer2/TrackList/NoTrack", playback.IdentityFromMetadata("Artist", "Title", "")},
		{"", playback.IdentityFromMetadata("Artist", "Title", "")},
	}
	for _, tc := range cases {
		if got := playback.Identify(tc.trackID, "Artist", "Title", ""); got != tc.want {
			t.Errorf("Identify(%q) = %q, want %q", tc.trackID, got, tc.want)
		}
	}
}

func TestNormalizeArtworkURL(t *testing.T) {
	cases := map[string]playback.ArtworkLocation{
		"https://open.spotify.com/image/ab67616d0000b273": "https://i.scdn.co/image/ab67616d0000b273",
		"https://i.scdn.co/image/abc":                     "https://i.scdn.co/image/abc",
		"file:///tmp/cover.png":                           "file:///tmp/cover.png",
		"  ":                                              "",
	}
	for input, want := range cases {
		if got := playback.NormalizeArtworkURL(input); got != want {
			t.Errorf("NormalizeArtworkURL(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRateLimitErrorClassification(t *testing.T) {
	err := fmt.Errorf("poll spotify: %w", &playback.RateLimitError{RetryAfter: 7 * time.Second})
	if !errors.Is(err, playback.ErrRateLimited) {
		t.Fatal("expected ErrRateLimited")
	}
	wait, ok := playback.RetryAfter(err)
	if !ok || wait != 7*time.Second {
		t.Fatalf("expected 7s retry-after, got %s (%v)", wait, ok)
	}
	if _, ok := playback.RetryAfter(playback.ErrUnavailable); ok {
		t.Fatal("unexpected retry-after on unavailable error")
	}
}

func TestObservationLabel(t *testing.T) {
	obs := &playback.Observation{Track: "id", Title: "Title", Artist: "Artist"}
	if obs.Label() != "Artist - Title" {
		t.Fatalf("unexpected label %q", obs.Label())
	}
	if (&playback.Observation{Track: "id"}).Label() != "id" {
		t.Fatal("expected track id fallback")
	}
}
