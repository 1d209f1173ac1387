package mpris

import (
	"strings"

	"github.com/godbus/dbus/v5"

	"cavacolor/internal/playback"
)

// observationFromMetadata maps an MPRIS Metadata dictionary onto an
// observation. It returns nil when the metadata identifies no track.
func observationFromMetadata(player string, md map[string]dbus.Variant) *playback.Observation {
	title := stringValue(md["xesam:title"])
	artist := strings.Join(stringsValue(md["xesam:artist"]), ", ")
	album := stringValue(md["xesam:album"])

	track := playback.Identify(stringValue(md["mpris:trackid"]), artist, title, album)
	if track == "" {
		return nil
	}
	return &playback.Observation{
		Track:   track,
		Artwork: playback.NormalizeArtworkURL(stringValue(md["mpris:artUrl"])),
		Title:   title,
		Artist:  artist,
		Album:   album,
		Source:  playback.SourceMPRIS,
		Player:  player,
	}
}

func stringValue(v dbus.Variant) string {
	switch value := v.Value().(type) {
	case string:
		return value
	case dbus.ObjectPath:
		return string(value)
	default:
		return ""
	}
}

func stringsValue(v dbus.Variant) []string {
	switch value := v.Value().(type) {
	case []string:
		return value
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
