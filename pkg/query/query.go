// Package query defines the capability interface the extraction engine uses
// to talk to a document backend.
//
// A backend supplies compiled queries and nodes. The engine never inspects
// either; it only asks a node to select descendants and to read named
// properties.
package query

import (
	"errors"
	"fmt"
)

// Dialects understood by the bundled backends.
const (
	DialectCSS   = "css"
	DialectXPath = "xpath"
)

// Property names every backend understands. Any other name is read as an
// attribute of the node.
const (
	PropInnerText   = "innerText"
	PropTextContent = "textContent"
	PropInnerHTML   = "innerHtml"
	PropOuterHTML   = "outerHtml"
	PropTagName     = "tagName"
)

// ErrUnsupportedDialect is wrapped by QueryError when a node cannot evaluate
// a query of the given dialect.
var ErrUnsupportedDialect = errors.New("unsupported query dialect")

// Query is a compiled selector. Compilation happens once; a Query is
// immutable and reusable across documents.
type Query interface {
	// Dialect names the selector language, e.g. "css" or "xpath".
	Dialect() string

	// String returns the source expression.
	String() string
}

// Node is a position in a parsed document.
type Node interface {
	// Select returns the descendants of the node matched by q, in document
	// order. The node itself is never part of the result.
	Select(q Query) ([]Node, error)

	// Property reads a named observable off the node. Unknown or absent
	// properties return ("", false); Property never fails.
	Property(name string) (string, bool)
}

// QueryError reports a selector that could not be compiled or evaluated.
type QueryError struct {
	Dialect string
	Expr    string
	Cause   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid %s query %q: %v", e.Dialect, e.Expr, e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Unsupported builds the QueryError returned when q's dialect is not
// handled by a backend.
func Unsupported(q Query, backend string) *QueryError {
	return &QueryError{
		Dialect: q.Dialect(),
		Expr:    q.String(),
		Cause:   fmt.Errorf("%w for %s documents", ErrUnsupportedDialect, backend),
	}
}
