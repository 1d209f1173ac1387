// Command cavacolor keeps the cava visualizer's colors in step with the
// album art of the track that is currently playing.
//
// `cavacolor run` starts the daemon loop. The remaining commands are one-shot
// helpers: `extract` prints the palette of an image, `sync` applies one to the
// visualizer config, `check` runs the startup checks, `history` lists applied
// palettes, and `config` creates or validates the configuration file.
package main
