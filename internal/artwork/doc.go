// Package artwork retrieves album art for the track the sync loop is acting on.
//
// The Fetcher downloads http(s) artwork with bounded retries, reads file://
// URLs and bare paths from disk, and substitutes a small neutral image when a
// track has no artwork at all. It remembers only the most recent result, keyed
// by track identity, so a repeated request for the same track costs no I/O.
package artwork
