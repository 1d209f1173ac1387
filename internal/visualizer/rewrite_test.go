package visualizer

import (
	"testing"

	"cavacolor/internal/palette"
)

func TestParseSlotLine(t *testing.T) {
	cases := []struct {
		line  string
		ok    bool
		key   string
		quote byte
	}{
		{line: "background = '#000000'", ok: true, key: "background", quote: '\''},
		{line: `  gradient_color_1="#ffffff"`, ok: true, key: "gradient_color_1", quote: '"'},
		{line: "foreground = cyan", ok: true, key: "foreground"},
		{line: "# background = '#000000'", ok: false},
		{line: "; background = '#000000'", ok: false},
		{line: "[color]", ok: false},
		{line: "no equals here", ok: false},
		{line: " = value", ok: false},
	}
	for _, tc := range cases {
		got, ok := parseSlotLine([]byte(tc.line))
		if ok != tc.ok {
			t.Fatalf("parseSlotLine(%q) ok=%v, want %v", tc.line, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if got.key != tc.key || got.quote != tc.quote {
			t.Fatalf("parseSlotLine(%q) = %+v", tc.line, got)
		}
	}
}

func TestRewriteWithoutTrailingNewline(t *testing.T) {
	out, err := Rewrite([]byte("background = '#000000'"), []string{"background"}, []palette.Color{{R: 0xfe}})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if string(out) != "background = '#fe0000'" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRewriteReplacesDuplicateKeys(t *testing.T) {
	in := "background = '#000000'\nbackground = '#111111'\n"
	out, err := Rewrite([]byte(in), []string{"background"}, []palette.Color{{R: 1, G: 2, B: 3}})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if string(out) != "background = '#010203'\nbackground = '#010203'\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRewriteKeepsTextAfterValue(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"background = '#000000' ; keep me\n", "background = '#010203' ; keep me\n"},
		{`background = "#000000"   # note` + "\n", `background = "#010203"   # note` + "\n"},
		{"background = black ; named\n", "background = '#010203' ; named\n"},
		{"background = black;tight\n", "background = '#010203';tight\n"},
		{"background = '#000000'  \r\n", "background = '#010203'  \r\n"},
		{"background =\n", "background ='#010203'\n"},
	}
	for _, tc := range cases {
		out, err := Rewrite([]byte(tc.in), []string{"background"}, []palette.Color{{R: 1, G: 2, B: 3}})
		if err != nil {
			t.Fatalf("Rewrite(%q): %v", tc.in, err)
		}
		if string(out) != tc.want {
			t.Fatalf("Rewrite(%q) = %q, want %q", tc.in, out, tc.want)
		}
	}
}

func TestRewriteMatchesKeysCaseInsensitively(t *testing.T) {
	in := "Background = '#000000'\nGRADIENT_COLOR_1 = '#000000'\n"
	out, err := Rewrite([]byte(in), []string{"background", "gradient_color_1"}, []palette.Color{{R: 1}, {G: 2}})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	want := "Background = '#010000'\nGRADIENT_COLOR_1 = '#000200'\n"
	if string(out) != want {
		t.Fatalf("unexpected output %q", out)
	}
}
