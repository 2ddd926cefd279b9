// Package htmldoc is the HTML backend for the extraction engine.
//
// Documents are parsed with golang.org/x/net/html. CSS selectors are
// compiled with cascadia and evaluated through goquery; XPath expressions
// are compiled with antchfx/xpath and evaluated through htmlquery.
package htmldoc

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/jmylchreest/xcrap/pkg/query"
)

// Node wraps a parsed HTML node.
type Node struct {
	n *html.Node
}

// Parse parses an HTML document and returns its root node.
func Parse(document string) (*Node, error) {
	return ParseReader(strings.NewReader(document))
}

// ParseReader parses an HTML document from r.
func ParseReader(r io.Reader) (*Node, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Node{n: root}, nil
}

// Wrap exposes an already parsed node.
func Wrap(n *html.Node) *Node {
	return &Node{n: n}
}

// HTML returns the underlying node.
func (n *Node) HTML() *html.Node {
	return n.n
}

// Select evaluates q against the node's descendants.
func (n *Node) Select(q query.Query) ([]query.Node, error) {
	switch cq := q.(type) {
	case *cssQuery:
		if cq.err != nil {
			return nil, &query.QueryError{Dialect: query.DialectCSS, Expr: cq.expr, Cause: cq.err}
		}
		sel := goquery.NewDocumentFromNode(n.n).FindMatcher(cq.sel)
		return wrapAll(sel.Nodes), nil
	case *xpathQuery:
		if cq.err != nil {
			return nil, &query.QueryError{Dialect: query.DialectXPath, Expr: cq.src, Cause: cq.err}
		}
		var matches []*html.Node
		for _, m := range htmlquery.QuerySelectorAll(n.n, cq.compiled) {
			if m != n.n {
				matches = append(matches, m)
			}
		}
		return wrapAll(matches), nil
	default:
		return nil, query.Unsupported(q, "html")
	}
}

// Property reads a named property. See the query package for the
// recognised names; anything else is looked up as an attribute.
func (n *Node) Property(name string) (string, bool) {
	if n == nil || n.n == nil {
		return "", false
	}
	switch name {
	case query.PropInnerText, query.PropTextContent:
		return htmlquery.InnerText(n.n), true
	case query.PropInnerHTML:
		out, err := goquery.NewDocumentFromNode(n.n).Selection.Html()
		if err != nil {
			return "", false
		}
		return out, true
	case query.PropOuterHTML:
		out, err := goquery.OuterHtml(goquery.NewDocumentFromNode(n.n).Selection)
		if err != nil {
			return "", false
		}
		return out, true
	case query.PropTagName:
		if n.n.Type != html.ElementNode {
			return "", false
		}
		return n.n.Data, true
	}

	for _, attr := range n.n.Attr {
		if attr.Key == name {
			return attr.Val, true
		}
	}
	return "", false
}

func wrapAll(nodes []*html.Node) []query.Node {
	out := make([]query.Node, len(nodes))
	for i, m := range nodes {
		out[i] = &Node{n: m}
	}
	return out
}

type cssQuery struct {
	expr string
	sel  cascadia.Selector
	err  error
}

func (q *cssQuery) Dialect() string { return query.DialectCSS }
func (q *cssQuery) String() string  { return q.expr }

type xpathQuery struct {
	src      string
	compiled *xpath.Expr
	err      error
}

func (q *xpathQuery) Dialect() string { return query.DialectXPath }
func (q *xpathQuery) String() string  { return q.src }

// CSS compiles a CSS selector. A selector that fails to compile is still
// returned; the compile error surfaces as a *query.QueryError the first
// time the query is evaluated. Use CompileCSS to get the error up front.
func CSS(selector string) query.Query {
	sel, err := cascadia.Compile(selector)
	return &cssQuery{expr: selector, sel: sel, err: err}
}

// CompileCSS compiles a CSS selector and reports compile errors eagerly.
func CompileCSS(selector string) (query.Query, error) {
	q := CSS(selector).(*cssQuery)
	if q.err != nil {
		return nil, &query.QueryError{Dialect: query.DialectCSS, Expr: selector, Cause: q.err}
	}
	return q, nil
}

// XPath compiles an XPath expression, deferring compile errors like CSS.
func XPath(expr string) query.Query {
	compiled, err := xpath.Compile(expr)
	return &xpathQuery{src: expr, compiled: compiled, err: err}
}

// CompileXPath compiles an XPath expression and reports errors eagerly.
func CompileXPath(expr string) (query.Query, error) {
	q := XPath(expr).(*xpathQuery)
	if q.err != nil {
		return nil, &query.QueryError{Dialect: query.DialectXPath, Expr: expr, Cause: q.err}
	}
	return q, nil
}

// Compile compiles expr in the named dialect.
func Compile(dialect, expr string) (query.Query, error) {
	switch dialect {
	case query.DialectCSS, "":
		return CompileCSS(expr)
	case query.DialectXPath:
		return CompileXPath(expr)
	default:
		return nil, &query.QueryError{Dialect: dialect, Expr: expr, Cause: query.ErrUnsupportedDialect}
	}
}
