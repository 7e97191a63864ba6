package document

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Table is a parsed logical table. Header is empty when the source had
// no header row.
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseHTMLTables extracts every <table> from an HTML document. A row
// made entirely of <th> cells is treated as the header; all other rows
// become data rows with whitespace-normalized cell text.
func ParseHTMLTables(r io.Reader) ([]Table, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var tables []Table
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, parseTable(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables, nil
}

func parseTable(tbl *html.Node) Table {
	var t Table
	var rows []*html.Node
	var findRows func(n *html.Node)
	findRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows = append(rows, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findRows(c)
		}
	}
	findRows(tbl)

	for _, tr := range rows {
		cells, headerRow := parseRow(tr)
		if len(cells) == 0 {
			continue
		}
		if headerRow && t.Header == nil && len(t.Rows) == 0 {
			t.Header = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// parseRow returns the row's cell texts and whether every cell was a
// <th> element.
func parseRow(tr *html.Node) ([]string, bool) {
	var cells []string
	allHeader := true
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "th":
			cells = append(cells, cellText(c))
		case "td":
			allHeader = false
			cells = append(cells, cellText(c))
		}
	}
	return cells, allHeader && len(cells) > 0
}

func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return normalizeWhitespace(b.String())
}

// ParseCSV reads one table from CSV data. Rows may have varying cell
// counts; short rows are kept as-is and filtered by the ingest step.
func ParseCSV(r io.Reader, hasHeader bool) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var t Table
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("parse csv: %w", err)
		}
		cells := make([]string, len(rec))
		for i, c := range rec {
			cells[i] = normalizeWhitespace(c)
		}
		if hasHeader && t.Header == nil && len(t.Rows) == 0 {
			t.Header = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// LoadTables parses path by extension. HTML files may carry several
// tables, CSV always yields one.
func LoadTables(path string) ([]Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".html", ".htm":
		return ParseHTMLTables(f)
	case ".csv":
		t, err := ParseCSV(f, true)
		if err != nil {
			return nil, err
		}
		return []Table{t}, nil
	default:
		return nil, fmt.Errorf("unsupported catalog type %q", ext)
	}
}
