package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cavacolor/internal/playback"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitAuthExpired = 3
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, playback.ErrAuthExpired):
		return exitAuthExpired
	default:
		return exitFailure
	}
}
