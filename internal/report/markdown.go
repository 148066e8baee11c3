package report

import (
	"fmt"
	"io"
	"strings"
)

// printer accumulates the first write error so section code can stay
// linear. Markdown assembly targets an in-memory buffer, so errors are
// rare and never partial-write the artifact.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// writeTable renders a markdown pipe table with a header row.
func (p *printer) writeTable(headers []string, rows [][]string) {
	p.printf("| %s |\n", strings.Join(headers, " | "))

	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	p.printf("|%s|\n", strings.Join(sep, "|"))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escapeCell(c)
		}
		p.printf("| %s |\n", strings.Join(cells, " | "))
	}
}

// escapeCell keeps cell content on one table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
