package playback

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/deluan/sanitize"
	"golang.org/x/text/cases"
)

const identitySeparator = "\x1f"

// IdentityFromMetadata hashes artist, title, and album into a TrackID that is
// stable across cosmetic differences in case, accents, and whitespace.
// Returns "" when every field is empty.
func IdentityFromMetadata(artist, title, album string) TrackID {
	fold := cases.Fold()
	parts := make([]string, 0, 3)
	empty := true
	for _, field := range []string{artist, title, album} {
		normalized := strings.Join(strings.Fields(fold.String(sanitize.Accents(field))), " ")
		if normalized != "" {
			empty = false
		}
		parts = append(parts, normalized)
	}
	if empty {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, identitySeparator)))
	return TrackID("meta:" + hex.EncodeToString(sum[:16]))
}

// mprisNoTrack is the object path players report when no track is loaded.
const mprisNoTrack = "/org/mpris/MediaPlayer2/TrackList/NoTrack"

// IdentityFromTrackID returns a TrackID for a player-reported track id, or ""
// when the value is a placeholder that does not identify a track.
func IdentityFromTrackID(raw string) TrackID {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "/" || raw == mprisNoTrack {
		return ""
	}
	// Spotify's desktop client reports /com/spotify/track/<id>.
	if rest, ok := strings.CutPrefix(raw, "/com/spotify/track/"); ok && rest != "" {
		return TrackID("spotify:track:" + rest)
	}
	return TrackID(raw)
}

// Identify prefers the player's track id and falls back to a metadata hash.
func Identify(trackID, artist, title, album string) TrackID {
	if id := IdentityFromTrackID(trackID); id != "" {
		return id
	}
	return IdentityFromMetadata(artist, title, album)
}

// NormalizeArtworkURL rewrites artwork locations players report in forms that
// do not serve image bytes. Spotify's desktop client reports
// https://open.spotify.com/image/<id>, which redirects to an HTML page, while
// the same id under i.scdn.co serves the JPEG.
func NormalizeArtworkURL(raw string) ArtworkLocation {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ArtworkLocation(raw)
	}
	if parsed.Host == "open.spotify.com" && strings.HasPrefix(parsed.Path, "/image/") {
		parsed.Scheme = "https"
		parsed.Host = "i.scdn.co"
		return ArtworkLocation(parsed.String())
	}
	return ArtworkLocation(raw)
}
