package cli

import (
	"fmt"
	"io"
	"strings"
)

// table renders rows as left-aligned, space-separated columns. Columns with
// a width limit wrap at word boundaries.
type table struct {
	headers   []string
	rows      [][]string
	padding   int
	maxWidths map[int]int
}

func newTable(headers ...string) *table {
	return &table{headers: headers, padding: 2, maxWidths: map[int]int{}}
}

// limit wraps column col at width characters.
func (t *table) limit(col, width int) *table {
	t.maxWidths[col] = width
	return t
}

// add appends a row, padding or truncating it to the header count.
func (t *table) add(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *table) render(w io.Writer) error {
	if len(t.headers) == 0 {
		return nil
	}

	wrapped := make([][][]string, len(t.rows))
	for r, row := range t.rows {
		wrapped[r] = make([][]string, len(row))
		for c, cell := range row {
			wrapped[r][c] = wrapText(cell, t.maxWidths[c])
		}
	}

	widths := make([]int, len(t.headers))
	for c, h := range t.headers {
		widths[c] = len(h)
	}
	for _, row := range wrapped {
		for c, lines := range row {
			for _, line := range lines {
				widths[c] = max(widths[c], len(line))
			}
		}
	}

	sep := strings.Repeat(" ", t.padding)
	var b strings.Builder
	writeLine := func(cells []string) {
		parts := make([]string, len(cells))
		for c, cell := range cells {
			parts[c] = padRight(cell, widths[c])
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, sep), " "))
		b.WriteByte('\n')
	}

	writeLine(t.headers)
	rules := make([]string, len(widths))
	for c, w := range widths {
		rules[c] = strings.Repeat("-", w)
	}
	writeLine(rules)

	for _, row := range wrapped {
		height := 1
		for _, lines := range row {
			height = max(height, len(lines))
		}
		for i := range height {
			cells := make([]string, len(row))
			for c, lines := range row {
				if i < len(lines) {
					cells[c] = lines[i]
				}
			}
			writeLine(cells)
		}
	}

	_, err := fmt.Fprint(w, b.String())
	return err
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// wrapText splits text into lines of at most width characters, breaking at
// spaces and splitting words that are longer than width. A width of zero
// or less disables wrapping.
func wrapText(text string, width int) []string {
	if width <= 0 || len(text) <= width {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	var lines []string
	line := ""
	for _, word := range words {
		for len(word) > width {
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			lines = append(lines, word[:width])
			word = word[width:]
		}
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= width:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
