// Package xmldoc is the XML backend for the extraction engine. Queries are
// XPath expressions evaluated with antchfx/xmlquery.
package xmldoc

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/jmylchreest/xcrap/pkg/query"
)

// Node wraps a parsed XML node.
type Node struct {
	n *xmlquery.Node
}

// Parse parses an XML document and returns its root node.
func Parse(document string) (*Node, error) {
	return ParseReader(strings.NewReader(document))
}

// ParseReader parses an XML document from r.
func ParseReader(r io.Reader) (*Node, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse xml: %w", err)
	}
	return &Node{n: root}, nil
}

// XML returns the underlying node.
func (n *Node) XML() *xmlquery.Node {
	return n.n
}

type xpathQuery struct {
	src      string
	compiled *xpath.Expr
	err      error
}

func (q *xpathQuery) Dialect() string { return query.DialectXPath }
func (q *xpathQuery) String() string  { return q.src }

// XPath compiles expr. Compile errors surface on first use as a
// *query.QueryError; CompileXPath reports them immediately.
func XPath(expr string) query.Query {
	compiled, err := xpath.Compile(expr)
	return &xpathQuery{src: expr, compiled: compiled, err: err}
}

// CompileXPath compiles expr and reports compile errors eagerly.
func CompileXPath(expr string) (query.Query, error) {
	q := XPath(expr).(*xpathQuery)
	if q.err != nil {
		return nil, &query.QueryError{Dialect: query.DialectXPath, Expr: expr, Cause: q.err}
	}
	return q, nil
}

// Compile compiles expr in the named dialect. Only XPath is supported.
func Compile(dialect, expr string) (query.Query, error) {
	switch dialect {
	case query.DialectXPath, "":
		return CompileXPath(expr)
	default:
		return nil, &query.QueryError{
			Dialect: dialect,
			Expr:    expr,
			Cause:   fmt.Errorf("%w for xml documents", query.ErrUnsupportedDialect),
		}
	}
}

// Select evaluates an XPath query against the node.
func (n *Node) Select(q query.Query) ([]query.Node, error) {
	xq, ok := q.(*xpathQuery)
	if !ok {
		return nil, query.Unsupported(q, "xml")
	}
	if xq.err != nil {
		return nil, &query.QueryError{Dialect: query.DialectXPath, Expr: xq.src, Cause: xq.err}
	}

	matches := xmlquery.QuerySelectorAll(n.n, xq.compiled)
	out := make([]query.Node, 0, len(matches))
	for _, m := range matches {
		if m == n.n {
			continue
		}
		out = append(out, &Node{n: m})
	}
	return out, nil
}

// Property reads innerText, innerHtml, outerHtml, tagName or an attribute.
func (n *Node) Property(name string) (string, bool) {
	if n == nil || n.n == nil {
		return "", false
	}
	switch name {
	case query.PropInnerText, query.PropTextContent:
		return n.n.InnerText(), true
	case query.PropInnerHTML:
		return n.n.OutputXML(false), true
	case query.PropOuterHTML:
		return n.n.OutputXML(true), true
	case query.PropTagName:
		if n.n.Type != xmlquery.ElementNode {
			return "", false
		}
		return n.n.Data, true
	}

	for _, attr := range n.n.Attr {
		qualified := attr.Name.Local
		if attr.Name.Space != "" {
			qualified = attr.Name.Space + ":" + attr.Name.Local
		}
		if qualified == name || (attr.Name.Space == "" && attr.Name.Local == name) {
			return attr.Value, true
		}
	}
	return "", false
}
