// Package syncloop drives the poll, fetch, extract, and write cycle.
//
// The Coordinator owns the cycle state and runs one cycle at a time on a
// single goroutine. A cycle polls the playback observer; when the track
// identity differs from the last successfully applied one it fetches the
// artwork, extracts a palette, and writes it into the visualizer config.
// Repeated polls of the same track do nothing, which is what keeps the config
// from being rewritten every tick.
//
// Failures inside a changed cycle move the loop into backoff: the next poll
// waits min(poll * 2^(failures-1), backoff_max). Observer errors are treated
// as "nothing changed". Expired remote authorization is the only cycle error
// that ends Run.
package syncloop
