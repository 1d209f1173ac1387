package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// CavaConfig is a trimmed cava config carrying the default color slots.
const CavaConfig = `## Configuration file for CAVA.
[general]
framerate = 60
bars = 0

[input]
; method = pulse

[color]
# background = 'black'
background = '#000000'
 foreground = 'cyan'
gradient = 1
gradient_count = 2
gradient_color_1 = '#59cc33'
gradient_color_2 = "#cc3333"

[smoothing]
noise_reduction = 77
`

// WriteCavaConfig writes body to path, creating parent directories.
func WriteCavaConfig(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content of path as a string.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
