package output

import (
	"io"
	"strings"
	"unicode/utf8"
)

// columnGap separates adjacent columns.
const columnGap = "  "

// Table renders aligned columns for text output.
type Table struct {
	headers []string
	rows    [][]string
	right   map[int]bool
	merge   map[int]bool
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		right:   map[int]bool{},
		merge:   map[int]bool{},
	}
}

// AddRow appends a row. Missing trailing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// AlignRight right-aligns the given columns, for numbers.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// MergeRepeats blanks a cell in the given columns when it and every cell to
// its left match the row above, so grouped rows read as a tree:
//
//	BTC  0  1
//	        4
//	     2  0
func (t *Table) MergeRepeats(cols ...int) *Table {
	for _, c := range cols {
		t.merge[c] = true
	}
	return t
}

// Render writes the table to w. An empty table writes nothing.
func (t *Table) Render(w io.Writer) error {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return nil
	}

	widths := t.widths()
	var sb strings.Builder
	if len(t.headers) > 0 {
		t.writeRow(&sb, t.headers, widths)
		rule := make([]string, len(widths))
		for i, n := range widths {
			rule[i] = strings.Repeat("-", n)
		}
		t.writeRow(&sb, rule, widths)
	}
	for i, row := range t.rows {
		t.writeRow(&sb, t.display(i, row), widths)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// String returns the rendered table.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Render(&sb)
	return sb.String()
}

// display returns row i with merged cells blanked.
func (t *Table) display(i int, row []string) []string {
	if i == 0 || len(t.merge) == 0 {
		return row
	}
	prev := t.rows[i-1]
	out := append([]string(nil), row...)
	for c := range row {
		if c >= len(prev) || row[c] != prev[c] {
			break
		}
		if t.merge[c] {
			out[c] = ""
		}
	}
	return out
}

func (t *Table) widths() []int {
	n := len(t.headers)
	for _, row := range t.rows {
		n = max(n, len(row))
	}
	widths := make([]int, n)
	measure := func(cells []string) {
		for i, cell := range cells {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

func (t *Table) writeRow(sb *strings.Builder, cells []string, widths []int) {
	var line strings.Builder
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(cell))
		if i > 0 {
			line.WriteString(columnGap)
		}
		if t.right[i] {
			line.WriteString(pad + cell)
		} else {
			line.WriteString(cell + pad)
		}
	}
	sb.WriteString(strings.TrimRight(line.String(), " "))
	sb.WriteByte('\n')
}
