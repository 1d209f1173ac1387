package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"cavacolor/internal/palette"
)

type column struct {
	header string
	align  text.Align
}

func left(header string) column  { return column{header: header, align: text.AlignLeft} }
func right(header string) column { return column{header: header, align: text.AlignRight} }

// colorTable renders rounded tables whose rows may carry a color. When
// swatches are enabled a trailing column paints each row's color.
type colorTable struct {
	columns  []column
	swatches bool
	rows     []table.Row
}

func newColorTable(swatches bool, columns ...column) *colorTable {
	return &colorTable{columns: columns, swatches: swatches}
}

// addRow appends cells, padding or truncating to the column count. A nil
// color leaves the swatch cell empty.
func (t *colorTable) addRow(c *palette.Color, cells ...string) {
	width := len(t.columns)
	if t.swatches {
		width++
	}
	row := make(table.Row, width)
	for i := range t.columns {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	if t.swatches {
		row[len(t.columns)] = ""
		if c != nil {
			row[len(t.columns)] = swatch(*c)
		}
	}
	t.rows = append(t.rows, row)
}

func (t *colorTable) render() string {
	if len(t.columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, 0, len(t.columns)+1)
	configs := make([]table.ColumnConfig, 0, len(t.columns)+1)
	for i, col := range t.columns {
		header = append(header, col.header)
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       col.align,
			AlignHeader: text.AlignLeft,
		})
	}
	if t.swatches {
		header = append(header, "Swatch")
	}
	tw.AppendHeader(header)
	for _, row := range t.rows {
		tw.AppendRow(row)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
