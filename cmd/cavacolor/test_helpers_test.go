package main

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cavacolor/internal/config"
	"cavacolor/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	imagePath  string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("CAVA_CONFIG_LOCATION", "")
	t.Setenv("CAVACOLOR_CONFIG", "")
	cfg := testsupport.NewConfig(t,
		testsupport.WithBackend(config.BackendPlayerctl),
		testsupport.WithStubbedBinaries("playerctl"),
	)

	configPath := filepath.Join(homeDir, ".config", "cavacolor", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	imagePath := testsupport.WritePNG(t, filepath.Join(base, "cover.png"), testsupport.StripedImage(10,
		testsupport.Stripe{Color: color.NRGBA{R: 0xff, A: 0xff}, Width: 60},
		testsupport.Stripe{Color: color.NRGBA{G: 0xff, A: 0xff}, Width: 30},
		testsupport.Stripe{Color: color.NRGBA{B: 0xff, A: 0xff}, Width: 10},
	))

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		imagePath:  imagePath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q

[playback]
backend = %q

[visualizer]
config_path = %q
reload_signal = ""
backup = false

[history]
enabled = true
`,
		cfg.Paths.StateDir,
		cfg.Playback.Backend,
		cfg.Visualizer.ConfigPath,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
