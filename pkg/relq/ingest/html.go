package ingest

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cognicore/relq/pkg/relq/term"
)

// RelationAttr names the table attribute that sets the predicate
const RelationAttr = "data-relation"

// HTMLTables extracts facts from the tables of an HTML document. A table's
// predicate comes from its data-relation attribute, or else from its
// caption, lowercased with spaces turned into underscores. Every row of
// <td> cells becomes one fact; header rows and unnamed tables are skipped.
func HTMLTables(r io.Reader) ([]term.Fact, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var facts []term.Fact
	var walkErr error
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if walkErr != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			got, err := tableFacts(n)
			if err != nil {
				walkErr = err
				return
			}
			facts = append(facts, got...)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if walkErr != nil {
		return nil, walkErr
	}
	return facts, nil
}

func tableFacts(table *html.Node) ([]term.Fact, error) {
	pred := tableName(table)
	if pred == "" {
		return nil, nil
	}

	var facts []term.Fact
	for _, tr := range rows(table) {
		var cells []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Td {
				cells = append(cells, text(c))
			}
		}
		if len(cells) == 0 {
			continue
		}
		f, err := factOf(append([]string{pred}, cells...))
		if err != nil {
			return nil, fmt.Errorf("table %s row %d: %w", pred, len(facts)+1, err)
		}
		facts = append(facts, f)
	}
	return facts, nil
}

func tableName(table *html.Node) string {
	for _, a := range table.Attr {
		if a.Key == RelationAttr {
			return strings.TrimSpace(a.Val)
		}
	}
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Caption {
			return strings.Join(strings.Fields(strings.ToLower(text(c))), "_")
		}
	}
	return ""
}

// rows returns the <tr> elements of table, not descending into nested
// tables.
func rows(table *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				out = append(out, c)
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(c)
			}
		}
	}
	walk(table)
	return out
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
