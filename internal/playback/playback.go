package playback

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Observer errors. Callers classify with errors.Is.
var (
	// ErrUnavailable reports that the player, bus, helper, or API could not be reached.
	ErrUnavailable = errors.New("playback observer unavailable")
	// ErrRateLimited reports a remote 429. The wrapped error is a *RateLimitError.
	ErrRateLimited = errors.New("playback observer rate limited")
	// ErrAuthExpired reports rejected remote credentials. It ends the session.
	ErrAuthExpired = errors.New("playback authorization expired")
)

// TrackID is a stable identifier for one track. Equal IDs mean the same track.
type TrackID string

// ArtworkLocation is a URL (http, https, file) or local path. Empty means absent.
type ArtworkLocation string

// Absent reports whether no artwork is associated with the track.
func (l ArtworkLocation) Absent() bool { return l == "" }

// Source names the observer variant that produced an observation.
type Source string

const (
	SourceMPRIS     Source = "mpris"
	SourcePlayerctl Source = "playerctl"
	SourceSpotify   Source = "spotify"

	// SourceManual marks palettes applied from the command line.
	SourceManual Source = "manual"
)

// Observation describes the track currently playing.
type Observation struct {
	Track   TrackID
	Artwork ArtworkLocation
	Title   string
	Artist  string
	Album   string
	Source  Source
	Player  string
}

// Label renders "artist - title" for logs, falling back to the track id.
func (o *Observation) Label() string {
	switch {
	case o == nil:
		return ""
	case o.Artist != "" && o.Title != "":
		return o.Artist + " - " + o.Title
	case o.Title != "":
		return o.Title
	default:
		return string(o.Track)
	}
}

// Observer reports the current track. A nil observation with a nil error means
// nothing is playing.
type Observer interface {
	Observe(ctx context.Context) (*Observation, error)
}

// ChangeNotifier is implemented by observers that can signal a probable track
// change before the next poll. The channel is buffered and never closed while
// the observer is in use.
type ChangeNotifier interface {
	Changes() <-chan struct{}
}

// RateLimitError carries the server-requested wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfter extracts the server-requested wait from a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}
