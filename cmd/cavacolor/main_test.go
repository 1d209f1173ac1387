package main

import (
	"errors"
	"fmt"
	"testing"

	"cavacolor/internal/playback"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"clean", nil, exitOK},
		{"failure", errors.New("boom"), exitFailure},
		{"auth expired", fmt.Errorf("sync loop: %w", playback.ErrAuthExpired), exitAuthExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestRootHelp(t *testing.T) {
	out, _, err := runCLI(t, []string{"--help"}, "")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"run", "extract", "sync", "check", "history", "config"} {
		requireContains(t, out, name)
	}
}
