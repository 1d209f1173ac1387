package main

import (
	"strings"
	"testing"

	"cavacolor/internal/palette"
)

func TestColorTableSwatchColumn(t *testing.T) {
	red := palette.Color{R: 0xff}
	tbl := newColorTable(true, left("Slot"), left("Color"))
	tbl.addRow(&red, "background", red.Hex())
	tbl.addRow(nil, "gradient_color_1")

	out := tbl.render()
	for _, want := range []string{"Swatch", "background", "#ff0000", "\x1b[48;2;255;0;0m", "gradient_color_1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
	if strings.Count(out, "\x1b[48;2;") != 1 {
		t.Fatalf("expected a single swatch, got:\n%s", out)
	}
}

func TestColorTableWithoutSwatches(t *testing.T) {
	tbl := newColorTable(false, right("ID"), left("Colors"))
	tbl.addRow(nil, "7", "#010203", "extra cell")

	out := tbl.render()
	if strings.Contains(out, "Swatch") || strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected swatch output:\n%s", out)
	}
	if strings.Contains(out, "extra cell") {
		t.Fatalf("expected cells beyond the columns to be dropped:\n%s", out)
	}
	if !strings.Contains(out, "#010203") {
		t.Fatalf("expected row content:\n%s", out)
	}
}

func TestColorTableWithoutColumns(t *testing.T) {
	if out := newColorTable(true).render(); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
