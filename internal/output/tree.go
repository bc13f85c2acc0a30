package output

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/blackwell-systems/fsprof/internal/treemodel"
)

// TreeOptions control RenderTree.
type TreeOptions struct {
	// MaxDepth stops descending below this depth; the top-level rows are at
	// depth 0. Zero means unlimited.
	MaxDepth int
}

type treeRow struct {
	label string
	cells []string
}

// pathModel is implemented by models that can name the full path of a row.
type pathModel interface {
	FullPath(index treemodel.Index) string
}

// RenderTree draws every row of m as an indented tree with one right-hand
// column per additional model column. Cells are aligned the way the model's
// RoleTextAlignment asks.
func RenderTree(m treemodel.Model, opts TreeOptions) string {
	top := m.RowCount(treemodel.Index{})
	if top == 0 {
		return "Empty tree.\n"
	}

	var rows []treeRow
	for row := 0; row < top; row++ {
		idx := m.Index(row, 0, treemodel.Index{})
		walkTree(m, idx, "", true, true, 0, opts, &rows)
	}

	return renderColumns(m, headerRow(m), rows)
}

func walkTree(m treemodel.Model, idx treemodel.Index, prefix string, last, top bool, depth int, opts TreeOptions, rows *[]treeRow) {
	text := formatCell(m.Data(idx, treemodel.RoleDisplay))

	label := text
	childPrefix := ""
	if !top {
		connector, indent := "├── ", "│   "
		if last {
			connector, indent = "└── ", "    "
		}
		label = prefix + connector + text
		childPrefix = prefix + indent
	}

	children := m.RowCount(idx)
	if opts.MaxDepth > 0 && depth >= opts.MaxDepth && children > 0 {
		label += fmt.Sprintf(" (+%d)", children)
		children = 0
	}

	*rows = append(*rows, treeRow{label: label, cells: cellsOf(m, idx)})

	for row := 0; row < children; row++ {
		child := m.Index(row, 0, idx)
		walkTree(m, child, childPrefix, row == children-1, false, depth+1, opts, rows)
	}
}

// RenderMatches lists matched rows by full path. The indices are typically
// the result of m.Matches.
func RenderMatches(m treemodel.Model, matches []treemodel.Index) string {
	if len(matches) == 0 {
		return "No matches.\n"
	}

	header := headerRow(m)
	rows := make([]treeRow, 0, len(matches))
	for _, idx := range matches {
		rows = append(rows, treeRow{label: fullPath(m, idx), cells: cellsOf(m, idx)})
	}
	return renderColumns(m, header, rows)
}

// fullPath names idx, using the model's own paths when it has them and
// joining the first-column text of the ancestors otherwise.
func fullPath(m treemodel.Model, idx treemodel.Index) string {
	if pm, ok := m.(pathModel); ok {
		return pm.FullPath(idx)
	}

	var parts []string
	for i := idx.Sibling(0); i.IsValid(); i = m.ParentIndex(i) {
		parts = append(parts, formatCell(m.Data(i, treemodel.RoleDisplay)))
	}
	for a, b := 0, len(parts)-1; a < b; a, b = a+1, b-1 {
		parts[a], parts[b] = parts[b], parts[a]
	}
	return path.Join(parts...)
}

func headerRow(m treemodel.Model) treeRow {
	h := treeRow{label: m.ColumnName(0)}
	for c := 1; c < m.ColumnCount(); c++ {
		h.cells = append(h.cells, m.ColumnName(c))
	}
	return h
}

func cellsOf(m treemodel.Model, idx treemodel.Index) []string {
	var cells []string
	for c := 1; c < m.ColumnCount(); c++ {
		cells = append(cells, formatCell(m.Data(idx.Sibling(c), treemodel.RoleDisplay)))
	}
	return cells
}

func renderColumns(m treemodel.Model, header treeRow, rows []treeRow) string {
	widths := make([]int, m.ColumnCount())
	measure := func(r treeRow) {
		widths[0] = max(widths[0], utf8.RuneCountInString(r.label))
		for i, cell := range r.cells {
			widths[i+1] = max(widths[i+1], utf8.RuneCountInString(cell))
		}
	}
	measure(header)
	for _, r := range rows {
		measure(r)
	}

	align := make([]treemodel.Alignment, m.ColumnCount())
	if len(rows) > 0 {
		probe := m.Index(0, 0, treemodel.Index{})
		for c := range align {
			if a, ok := m.Data(probe.Sibling(c), treemodel.RoleTextAlignment).(treemodel.Alignment); ok {
				align[c] = a
			}
		}
	}

	var sb strings.Builder
	writeRow := func(r treeRow) {
		sb.WriteString(pad(r.label, widths[0], align[0]))
		for i, cell := range r.cells {
			sb.WriteString("  ")
			sb.WriteString(pad(cell, widths[i+1], align[i+1]))
		}
		sb.WriteString("\n")
	}

	writeRow(header)
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(strings.Repeat("─", total-2))
	sb.WriteString("\n")
	for _, r := range rows {
		writeRow(r)
	}
	return sb.String()
}

func pad(s string, width int, a treemodel.Alignment) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	if a == treemodel.AlignCenterRight {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case uint64:
		return humanize.Comma(int64(v))
	case int:
		return humanize.Comma(int64(v))
	default:
		return fmt.Sprint(v)
	}
}
