package visualizer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"cavacolor/internal/palette"
)

// slotLine locates the value of one key = value line.
type slotLine struct {
	key        string
	valueStart int
	valueEnd   int
	quote      byte
}

// parseSlotLine recognizes an uncommented key = value line. body excludes
// the line ending.
func parseSlotLine(body []byte) (slotLine, bool) {
	trimmed := bytes.TrimLeft(body, " \t")
	if len(trimmed) == 0 || trimmed[0] == '#' || trimmed[0] == ';' || trimmed[0] == '[' {
		return slotLine{}, false
	}
	eq := bytes.IndexByte(body, '=')
	if eq < 0 {
		return slotLine{}, false
	}
	key := strings.TrimSpace(string(body[:eq]))
	if key == "" {
		return slotLine{}, false
	}

	start := eq + 1
	for start < len(body) && (body[start] == ' ' || body[start] == '\t') {
		start++
	}
	line := slotLine{key: key, valueStart: start, valueEnd: valueEnd(body, start)}
	if start < len(body) && (body[start] == '\'' || body[start] == '"') {
		line.quote = body[start]
	}
	return line, true
}

// valueEnd returns the end of the value token starting at start: through the
// closing quote for quoted values, otherwise up to the first blank or ';'.
// Anything after the token stays on the line.
func valueEnd(body []byte, start int) int {
	if start >= len(body) {
		return start
	}
	if q := body[start]; q == '\'' || q == '"' {
		if i := bytes.IndexByte(body[start+1:], q); i >= 0 {
			return start + 1 + i + 1
		}
		return len(bytes.TrimRight(body, " \t"))
	}
	end := start
	for end < len(body) && body[end] != ' ' && body[end] != '\t' && body[end] != ';' {
		end++
	}
	return end
}

// splitLineEnding separates a line from its terminator.
func splitLineEnding(line []byte) ([]byte, []byte) {
	switch {
	case bytes.HasSuffix(line, []byte("\r\n")):
		return line[:len(line)-2], line[len(line)-2:]
	case bytes.HasSuffix(line, []byte("\n")):
		return line[:len(line)-1], line[len(line)-1:]
	default:
		return line, nil
	}
}

// formatValue renders a color for a slot. Unquoted values gain single quotes
// because cava treats a bare '#' as the start of a comment.
func formatValue(c palette.Color, quote byte) string {
	if quote == 0 {
		quote = '\''
	}
	return string(quote) + c.Hex() + string(quote)
}

// Rewrite returns content with each slot's value replaced by the matching
// palette color. slots[i] receives colors[i]. Every slot key must already be
// present on an uncommented line.
func Rewrite(content []byte, slots []string, colors []palette.Color) ([]byte, error) {
	if len(colors) < len(slots) {
		return nil, fmt.Errorf("palette has %d colors for %d slots", len(colors), len(slots))
	}
	// cava lowercases keys when it reads the file.
	index := make(map[string]int, len(slots))
	for i, slot := range slots {
		index[strings.ToLower(slot)] = i
	}
	found := make([]bool, len(slots))

	var out bytes.Buffer
	out.Grow(len(content) + 16*len(slots))
	for _, line := range bytes.SplitAfter(content, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		body, ending := splitLineEnding(line)
		parsed, ok := parseSlotLine(body)
		i, isSlot := index[strings.ToLower(parsed.key)]
		if !ok || !isSlot {
			out.Write(line)
			continue
		}
		found[i] = true
		out.Write(body[:parsed.valueStart])
		out.WriteString(formatValue(colors[i], parsed.quote))
		out.Write(body[parsed.valueEnd:])
		out.Write(ending)
	}

	var missing []string
	for i, slot := range slots {
		if !found[i] {
			missing = append(missing, slot)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, strings.Join(missing, ", "))
	}
	return out.Bytes(), nil
}
