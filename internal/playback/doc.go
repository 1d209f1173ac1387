// Package playback defines the observer capability the sync loop polls to learn
// which track is playing, along with the track identity and artwork location
// types shared by every backend.
//
// Backends live in subpackages: mpris talks to players over the D-Bus session
// bus, playerctl shells out to the playerctl helper, and spotify polls the
// Spotify Web API. All of them classify failures with the sentinel errors
// declared here so the loop can tell transient trouble (ErrUnavailable,
// ErrRateLimited) from a session-ending ErrAuthExpired.
package playback
