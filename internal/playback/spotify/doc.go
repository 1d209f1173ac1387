// Package spotify observes the signed-in user's playback through the Spotify
// Web API and performs the interactive authorization-code exchange that
// produces the session's access token.
//
// Tokens live in memory only. When the API rejects a token the observer
// reports playback.ErrAuthExpired and the daemon exits so the user can
// authorize again.
package spotify
