// Package palette turns artwork into a fixed number of representative colors.
//
// Extraction downsamples with nearest-neighbor sampling and runs median-cut
// quantization over opaque pixels, so identical input always yields an
// identical palette.
package palette
