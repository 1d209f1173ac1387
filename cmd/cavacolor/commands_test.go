package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cavacolor/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Visualizer.ConfigPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, target); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestExtractPrintsPalette(t *testing.T) {
	env := setupCLITestEnv(t)
	before := testsupport.ReadFile(t, env.cfg.Visualizer.ConfigPath)

	out, _, err := runCLI(t, []string{"extract", env.imagePath}, env.configPath)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for _, hex := range []string{"#ff0000", "#00ff00", "#0000ff", "gradient_color_1"} {
		requireContains(t, out, hex)
	}
	if strings.Index(out, "#ff0000") > strings.Index(out, "#0000ff") {
		t.Fatalf("expected dominant color first:\n%s", out)
	}

	if after := testsupport.ReadFile(t, env.cfg.Visualizer.ConfigPath); after != before {
		t.Fatal("extract must not modify the visualizer config")
	}
}

func TestExtractMissingImage(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"extract", filepath.Join(env.baseDir, "missing.png")}, env.configPath); err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestSyncAppliesPaletteAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sync", env.imagePath}, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, out, "Updated "+env.cfg.Visualizer.ConfigPath)

	content := testsupport.ReadFile(t, env.cfg.Visualizer.ConfigPath)
	requireContains(t, content, "background = '#ff0000'")
	requireContains(t, content, "gradient_color_1 = '#00ff00'")
	requireContains(t, content, `gradient_color_2 = "#0000ff"`)
	requireContains(t, content, "# background = 'black'")

	out, _, err = runCLI(t, []string{"sync", env.imagePath}, env.configPath)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	requireContains(t, out, "already uses these colors")

	out, _, err = runCLI(t, []string{"history", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "manual")
	requireContains(t, out, "cover.png")
	requireContains(t, out, "#ff0000 #00ff00 #0000ff")
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No palettes applied yet")
}

func TestCheckReportsStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Visualizer config:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "playerctl")

	if err := os.Remove(env.cfg.Visualizer.ConfigPath); err != nil {
		t.Fatalf("remove cava config: %v", err)
	}
	out, _, err = runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail without the visualizer config")
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, err.Error(), "Visualizer config")
}
