package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"cavacolor/internal/config"
	"cavacolor/internal/deps"
	"cavacolor/internal/palette"
	"cavacolor/internal/playback/mpris"
	"cavacolor/internal/playback/spotify"
	"cavacolor/internal/visualizer"
)

var listPlayers = mpris.Players

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Fatal: true, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Fatal: true, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Fatal: true, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Fatal: true, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckVisualizerConfig verifies that the cava config exists, carries every
// color slot on an uncommented line, and can be replaced in place.
func CheckVisualizerConfig(name, path string, slots []string) Result {
	fail := func(format string, args ...any) Result {
		return Result{Name: name, Fatal: true, Detail: fmt.Sprintf("%s (error: %s)", path, fmt.Sprintf(format, args...))}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fail("does not exist")
		}
		return fail("read: %v", err)
	}
	if len(slots) == 0 {
		slots = visualizer.DefaultSlots
	}
	probe := make([]palette.Color, len(slots))
	if _, err := visualizer.Rewrite(data, slots, probe); err != nil {
		return fail("%v", err)
	}
	if err := unix.Access(path, unix.W_OK); err != nil {
		return fail("file not writable: %v", err)
	}
	if err := unix.Access(filepath.Dir(path), unix.W_OK|unix.X_OK); err != nil {
		return fail("directory not writable: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, strings.Join(slots, ", "))}
}

// CheckSessionBus verifies that the session bus answers and reports the
// players it carries. No player is not a failure.
func CheckSessionBus(ctx context.Context, player string) Result {
	const name = "MPRIS session bus"

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	players, err := listPlayers(checkCtx)
	if err != nil {
		return Result{Name: name, Fatal: true, Detail: err.Error()}
	}
	if len(players) == 0 {
		return Result{Name: name, Passed: true, Detail: "reachable, no players running"}
	}
	names := make([]string, 0, len(players))
	for short, status := range players {
		names = append(names, fmt.Sprintf("%s (%s)", short, strings.ToLower(status)))
	}
	sort.Strings(names)
	detail := strings.Join(names, ", ")
	if player = strings.TrimSpace(player); player != "" {
		detail = fmt.Sprintf("%s; watching %q", detail, player)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSpotify verifies that credentials are present and the accounts
// service answers.
func CheckSpotify(ctx context.Context, cfg config.Spotify) Result {
	const name = "Spotify"

	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return Result{Name: name, Fatal: true, Detail: "missing client id or secret"}
	}
	if _, err := url.ParseRequestURI(cfg.RedirectURI); err != nil {
		return Result{Name: name, Fatal: true, Detail: fmt.Sprintf("invalid redirect uri (%v)", err)}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.AccountsBaseURL), "/")
	if base == "" {
		return Result{Name: name, Fatal: true, Detail: "missing accounts url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status, err := spotify.ProbeAccounts(checkCtx, base, 5*time.Second, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("accounts unreachable (%v)", err)}
	}
	if status >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("accounts check failed (%d)", status)}
	}
	return Result{Name: name, Passed: true, Detail: "credentials set, accounts reachable"}
}

// CheckSystemDeps evaluates the external programs the config relies on.
// Both the daemon and the CLI check command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	var requirements []deps.Requirement
	if cfg.Playback.Backend == config.BackendPlayerctl {
		requirements = append(requirements, deps.Requirement{
			Name:        "playerctl",
			Command:     cfg.PlayerctlBinary(),
			Description: "Required for the playerctl playback backend",
			VersionArgs: []string{"--version"},
		})
	}
	requirements = append(requirements, deps.Requirement{
		Name:        "cava",
		Command:     cfg.Visualizer.ProcessName,
		Description: "Visualizer that reads the synced colors",
		Optional:    true,
		VersionArgs: []string{"-v"},
	})
	return deps.CheckBinaries(ctx, requirements)
}

// DepResults converts dependency statuses into check results. Missing
// optional programs pass with a note.
func DepResults(statuses []deps.Status) []Result {
	results := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		r := Result{Name: s.Name, Passed: s.Available, Fatal: !s.Optional}
		switch {
		case s.Available && s.Version != "":
			r.Detail = fmt.Sprintf("%s (%s)", s.Path, s.Version)
		case s.Available:
			r.Detail = s.Path
		default:
			r.Detail = s.Detail
			if s.Optional {
				r.Passed = true
				r.Detail += " (optional)"
			}
		}
		results = append(results, r)
	}
	return results
}
