// Package config loads, normalizes, and validates cavacolor configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SPOTIFY_CLIENT_ID and CAVA_CONFIG_LOCATION. The Config type centralizes every
// knob the daemon and CLI need, so the observer backend, visualizer slots, and
// state directory are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
