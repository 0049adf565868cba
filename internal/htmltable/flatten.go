// Package htmltable decodes report tables whose headers nest up to a fixed
// depth through rowspan and colspan.
package htmltable

import (
	"fmt"
	"strings"
)

// HeaderDepth is the number of header rows the merchant reports render.
const HeaderDepth = 4

// Separator joins the levels of a flattened column name.
const Separator = "-"

// HeaderCell is a single <th> as it appears in the source markup.
type HeaderCell struct {
	Text    string
	Row     int
	ColSpan int
	RowSpan int
}

func (c HeaderCell) spans() (rowspan, colspan int) {
	rowspan, colspan = c.RowSpan, c.ColSpan
	if rowspan < 1 {
		rowspan = 1
	}
	if colspan < 1 {
		colspan = 1
	}
	return rowspan, colspan
}

// Grid is the header with every spanned cell expanded into the positions it covers.
type Grid struct {
	Depth    int
	Width    int
	text     [][]string
	occupied [][]bool
}

// Width returns the number of leaf columns, the sum of the colspans of the first header row.
func Width(cells []HeaderCell) int {
	n := 0
	for _, c := range cells {
		if c.Row != 0 {
			continue
		}
		_, colspan := c.spans()
		n += colspan
	}
	return n
}

// NewGrid lays the header cells out on a depth x Width(cells) grid. Each row
// is filled left to right, skipping positions already taken by a rowspan from
// an earlier row. Spans reaching past the grid are clipped, and a cell whose
// colspan runs into such a position overwrites it.
func NewGrid(cells []HeaderCell, depth int) Grid {
	width := Width(cells)
	g := Grid{
		Depth:    depth,
		Width:    width,
		text:     make([][]string, depth),
		occupied: make([][]bool, depth),
	}
	for r := 0; r < depth; r++ {
		g.text[r] = make([]string, width)
		g.occupied[r] = make([]bool, width)
	}

	rows := make([][]HeaderCell, depth)
	for _, c := range cells {
		if c.Row < 0 || c.Row >= depth {
			continue
		}
		rows[c.Row] = append(rows[c.Row], c)
	}

	for r, row := range rows {
		col := 0
		for _, cell := range row {
			for col < width && g.occupied[r][col] {
				col++
			}
			if col >= width {
				break
			}
			rowspan, colspan := cell.spans()
			for dr := 0; dr < rowspan && r+dr < depth; dr++ {
				for dc := 0; dc < colspan && col+dc < width; dc++ {
					g.text[r+dr][col+dc] = cell.Text
					g.occupied[r+dr][col+dc] = true
				}
			}
			col += colspan
		}
	}
	return g
}

// At returns the text placed at a grid position.
func (g Grid) At(row, col int) string {
	return g.text[row][col]
}

// OccupiedCount returns the number of grid positions covered by some cell.
func (g Grid) OccupiedCount() int {
	n := 0
	for _, row := range g.occupied {
		for _, o := range row {
			if o {
				n++
			}
		}
	}
	return n
}

// ColumnName reads a column top to bottom, dropping empty levels and levels
// equal to the one right above them.
func (g Grid) ColumnName(col int) string {
	var parts []string
	for r := 0; r < g.Depth; r++ {
		text := g.text[r][col]
		if text == "" {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == text {
			continue
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Col%d", col)
	}
	return strings.Join(parts, Separator)
}

// Columns returns the flattened name of every leaf column in order.
func (g Grid) Columns() []string {
	names := make([]string, g.Width)
	for c := range names {
		names[c] = g.ColumnName(c)
	}
	return names
}

// Flatten turns nested header cells into one name per leaf column.
func Flatten(cells []HeaderCell, depth int) []string {
	return NewGrid(cells, depth).Columns()
}
