// Package history journals applied palettes in SQLite.
//
// Every successful sync appends an entry recording the track, the colors
// written, and the config they went to. The journal backs the history
// command; the sync loop never reads it back, so a restarted daemon still
// treats the first observed track as a change.
//
// Schema changes bump schemaVersion in schema.go; users delete history.db to
// adopt the new schema.
package history
