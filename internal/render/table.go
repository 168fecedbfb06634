package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/heatmap-scatter/server/pkg/matrix"
)

// StringTable is a labelled grid of preformatted cells.
type StringTable struct {
	Columns []string
	RowIDs  []string
	Cells   [][]string
}

// Empty reports whether the table has no rows or no columns.
func (t StringTable) Empty() bool {
	return len(t.RowIDs) == 0 || len(t.Columns) == 0
}

// FromMatrix formats every cell of m with the shortest exact representation.
func FromMatrix(m *matrix.Matrix, labels map[string]string) StringTable {
	t := StringTable{Columns: m.ColIDs(), RowIDs: m.RowIDs()}
	t.Cells = make([][]string, m.Rows())
	for i := range t.RowIDs {
		if l, ok := labels[t.RowIDs[i]]; ok && l != "" {
			t.RowIDs[i] = l
		}
		row := m.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		t.Cells[i] = cells
	}
	return t
}

// TableFormatter renders table and list views as HTML fragments.
type TableFormatter struct {
	// HTMLTable selects <table> output instead of aligned <pre> text.
	HTMLTable bool
	// Truncate limits the number of rows; 0 means no limit.
	Truncate int
	// CSSURLs are linked ahead of every fragment.
	CSSURLs []string
}

// Tables renders each non-empty table, in order, as one fragment.
func (f TableFormatter) Tables(tables ...StringTable) string {
	var b strings.Builder
	for _, t := range tables {
		b.WriteString(f.table(t))
	}
	return b.String()
}

func (f TableFormatter) table(t StringTable) string {
	if t.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(f.cssLinks())
	if f.Truncate > 0 && len(t.RowIDs) > f.Truncate {
		t.RowIDs = t.RowIDs[:f.Truncate]
		t.Cells = t.Cells[:f.Truncate]
		fmt.Fprintf(&b, "<p>Limited to the first %d rows.</p>", f.Truncate)
	}
	if f.HTMLTable {
		writeHTMLTable(&b, t)
	} else {
		b.WriteString("<pre>")
		b.WriteString(html.EscapeString(textTable(t)))
		b.WriteString("</pre>")
	}
	return b.String()
}

// List wraps items, one per line, in <pre>.
func (f TableFormatter) List(items []string) string {
	escaped := make([]string, len(items))
	for i, it := range items {
		escaped[i] = html.EscapeString(it)
	}
	return f.cssLinks() + "<pre>" + strings.Join(escaped, "\n") + "</pre>"
}

func (f TableFormatter) cssLinks() string {
	var b strings.Builder
	for _, u := range f.CSSURLs {
		fmt.Fprintf(&b, `<link rel="stylesheet" property="stylesheet" href="%s">`, html.EscapeString(u))
	}
	return b.String()
}

func writeHTMLTable(b *strings.Builder, t StringTable) {
	b.WriteString(`<table border="1" class="dataframe"><thead><tr style="text-align: right;"><th></th>`)
	for _, c := range t.Columns {
		b.WriteString("<th>" + html.EscapeString(c) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for i, id := range t.RowIDs {
		b.WriteString("<tr><th>" + html.EscapeString(id) + "</th>")
		for _, cell := range t.Cells[i] {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
}

// textTable lays the table out with right-aligned columns.
func textTable(t StringTable) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "\t")
	for _, c := range t.Columns {
		fmt.Fprint(w, c+"\t")
	}
	fmt.Fprintln(w)
	for i, id := range t.RowIDs {
		fmt.Fprint(w, id+"\t")
		for _, cell := range t.Cells[i] {
			fmt.Fprint(w, cell+"\t")
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}
