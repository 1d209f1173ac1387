// Package visualizer applies palettes to the cava configuration file and asks
// running cava processes to reload their colors.
//
// The Synchronizer edits only the configured color slot lines. Every other
// byte of the file, including comments and line endings, passes through
// unchanged, and the result replaces the file atomically so cava never reads
// a partial config.
package visualizer
