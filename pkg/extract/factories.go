package extract

import (
	"github.com/jmylchreest/xcrap/pkg/query"
	"github.com/jmylchreest/xcrap/pkg/record"
)

// Property returns an extractor reading the named property off a node. A
// property the node does not have yields Absent.
func Property(name string) Extractor {
	return func(n query.Node) (record.Value, error) {
		s, ok := n.Property(name)
		if !ok {
			return record.Absent(), nil
		}
		return record.String(s), nil
	}
}

// Text reads the node's text content.
func Text() Extractor { return Property(query.PropInnerText) }

// InnerHTML reads the node's inner markup.
func InnerHTML() Extractor { return Property(query.PropInnerHTML) }

// OuterHTML reads the node's markup including the node itself.
func OuterHTML() Extractor { return Property(query.PropOuterHTML) }

// Attr reads an attribute.
func Attr(name string) Extractor { return Property(name) }
