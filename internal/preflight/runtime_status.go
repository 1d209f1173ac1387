package preflight

import (
	"fmt"
	"strconv"
	"strings"

	"cavacolor/internal/config"
	"cavacolor/internal/visualizer"
)

var procRoot = "/proc"

// ProbeVisualizer reports whether a visualizer process is running to
// receive reload signals. It never fails the daemon.
func ProbeVisualizer(cfg *config.Config) Result {
	const name = "Visualizer process"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if cfg.Visualizer.ReloadSignal == "" {
		return Result{Name: name, Passed: true, Detail: "Reload disabled"}
	}
	reloader, err := visualizer.NewReloader(cfg.Visualizer.ProcessName, cfg.Visualizer.ReloadSignal,
		visualizer.WithProcRoot(procRoot))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	pids, err := reloader.Running()
	if err != nil {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("cannot list processes (%v)", err)}
	}
	if len(pids) == 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s not running; colors apply on next start", reloader.Process())}
	}
	ids := make([]string, len(pids))
	for i, pid := range pids {
		ids[i] = strconv.Itoa(pid)
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s running (pid %s)", reloader.Process(), strings.Join(ids, ", "))}
}
