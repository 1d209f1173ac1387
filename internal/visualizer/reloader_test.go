package visualizer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"golang.org/x/sys/unix"
)

func fakeProc(t *testing.T, procs map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for pid, comm := range procs {
		dir := filepath.Join(root, pid)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644); err != nil {
			t.Fatalf("write comm: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "sys"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return root
}

func TestReloadSignalsMatchingProcesses(t *testing.T) {
	root := fakeProc(t, map[string]string{"101": "cava", "202": "bash", "303": "cava", "404": "cavacolor"})
	r, err := NewReloader("cava", "usr2", WithProcRoot(root))
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	var got []int
	r.kill = func(pid int, sig unix.Signal) error {
		if sig != unix.SIGUSR2 {
			t.Errorf("unexpected signal %v", sig)
		}
		got = append(got, pid)
		if pid == 303 {
			return unix.ESRCH
		}
		return nil
	}

	n, err := r.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one live process signaled, got %d", n)
	}
	sort.Ints(got)
	if len(got) != 2 || got[0] != 101 || got[1] != 303 {
		t.Fatalf("unexpected pids %v", got)
	}
}

func TestReloadWithoutProcessIsNotAnError(t *testing.T) {
	root := fakeProc(t, map[string]string{"1": "init"})
	r, err := NewReloader("cava", "SIGUSR1", WithProcRoot(root))
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	r.kill = func(int, unix.Signal) error {
		t.Fatal("unexpected kill")
		return nil
	}
	if n, err := r.Reload(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected no-op, got %d, %v", n, err)
	}
}

func TestReloadDisabled(t *testing.T) {
	r, err := NewReloader("cava", "")
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	if r.Enabled() {
		t.Fatal("expected reloader disabled without a signal")
	}
	if n, err := r.Reload(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected no-op, got %d, %v", n, err)
	}
}

func TestNewReloaderRejectsUnknownSignal(t *testing.T) {
	if _, err := NewReloader("cava", "SIGNOPE"); err == nil {
		t.Fatal("expected unknown signal error")
	}
}
