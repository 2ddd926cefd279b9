package htmldoc

import (
	"errors"
	"strings"
	"testing"

	"github.com/jmylchreest/xcrap/pkg/query"
)

const productHTML = `
<html>
  <body>
    <div class="product">
      <h1 id="title">  Cool Gadget  </h1>
      <span class="price">$99.99</span>
      <div class="details">
        <span data-spec="weight">250g</span>
        <a href="/specs.pdf">Download Specs</a>
      </div>
    </div>
    <ul id="list"><li>one</li><li>two</li><li>three</li></ul>
  </body>
</html>
`

func mustParse(t *testing.T) *Node {
	t.Helper()
	doc, err := Parse(productHTML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestSelect_CSS(t *testing.T) {
	doc := mustParse(t)

	tests := []struct {
		selector string
		prop     string
		want     string
	}{
		{"#title", query.PropInnerText, "  Cool Gadget  "},
		{".price", query.PropInnerText, "$99.99"},
		{"[data-spec='weight']", query.PropTextContent, "250g"},
		{"a", "href", "/specs.pdf"},
		{"a", query.PropTagName, "a"},
		{".details span", query.PropOuterHTML, `<span data-spec="weight">250g</span>`},
	}

	for _, tt := range tests {
		t.Run(tt.selector+"/"+tt.prop, func(t *testing.T) {
			nodes, err := doc.Select(CSS(tt.selector))
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if len(nodes) == 0 {
				t.Fatal("expected at least one match")
			}
			got, ok := nodes[0].Property(tt.prop)
			if !ok {
				t.Fatalf("Property(%q) not found", tt.prop)
			}
			if got != tt.want {
				t.Errorf("Property(%q) = %q, want %q", tt.prop, got, tt.want)
			}
		})
	}
}

func TestSelect_DocumentOrder(t *testing.T) {
	doc := mustParse(t)

	for _, q := range []query.Query{CSS("#list li"), XPath("//ul[@id='list']/li")} {
		nodes, err := doc.Select(q)
		if err != nil {
			t.Fatalf("Select(%s) error = %v", q, err)
		}
		var got []string
		for _, n := range nodes {
			text, _ := n.Property(query.PropInnerText)
			got = append(got, text)
		}
		if strings.Join(got, ",") != "one,two,three" {
			t.Errorf("Select(%s) order = %v", q, got)
		}
	}
}

func TestSelect_RelativeToNode(t *testing.T) {
	doc := mustParse(t)

	details, err := doc.Select(CSS(".details"))
	if err != nil || len(details) != 1 {
		t.Fatalf("expected one .details node, got %d (err %v)", len(details), err)
	}

	spans, err := details[0].Select(CSS("span"))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(spans) != 1 {
		t.Errorf("expected 1 span under .details, got %d", len(spans))
	}

	self, err := details[0].Select(CSS(".details"))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(self) != 0 {
		t.Errorf("Select should not return the receiver, got %d nodes", len(self))
	}
}

func TestSelect_NoMatch(t *testing.T) {
	doc := mustParse(t)
	nodes, err := doc.Select(CSS(".missing"))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected no matches, got %d", len(nodes))
	}
}

func TestSelect_InvalidQuery(t *testing.T) {
	doc := mustParse(t)

	for _, q := range []query.Query{CSS("div[["), XPath("//div[")} {
		_, err := doc.Select(q)
		var qe *query.QueryError
		if !errors.As(err, &qe) {
			t.Fatalf("Select(%s) error = %v, want *query.QueryError", q, err)
		}
		if qe.Expr != q.String() {
			t.Errorf("QueryError.Expr = %q, want %q", qe.Expr, q.String())
		}
	}
}

func TestCompile_Eager(t *testing.T) {
	if _, err := CompileCSS("h1 > "); err == nil {
		t.Error("expected compile error for dangling combinator")
	}
	if _, err := CompileXPath("//h1[@id="); err == nil {
		t.Error("expected compile error for unterminated predicate")
	}
	if _, err := Compile("jsonpath", "$.x"); !errors.Is(err, query.ErrUnsupportedDialect) {
		t.Errorf("Compile(jsonpath) error = %v, want ErrUnsupportedDialect", err)
	}
	if q, err := Compile("", "#title"); err != nil || q.Dialect() != query.DialectCSS {
		t.Errorf("empty dialect should default to css, got %v, %v", q, err)
	}
}

func TestProperty_Absent(t *testing.T) {
	doc := mustParse(t)
	nodes, _ := doc.Select(CSS("#title"))

	got, ok := nodes[0].Property("data-missing")
	if ok || got != "" {
		t.Errorf("Property(missing) = (%q, %v), want (\"\", false)", got, ok)
	}
}

func TestProperty_InnerHTML(t *testing.T) {
	doc, err := Parse(`<div id="x"><b>bold</b> text</div>`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	nodes, _ := doc.Select(CSS("#x"))
	got, ok := nodes[0].Property(query.PropInnerHTML)
	if !ok || got != "<b>bold</b> text" {
		t.Errorf("innerHtml = %q, %v", got, ok)
	}
}

type foreignQuery struct{}

func (foreignQuery) Dialect() string { return "jsonpath" }
func (foreignQuery) String() string  { return "$.x" }

func TestSelect_UnsupportedDialect(t *testing.T) {
	doc := mustParse(t)
	_, err := doc.Select(foreignQuery{})
	if !errors.Is(err, query.ErrUnsupportedDialect) {
		t.Errorf("expected ErrUnsupportedDialect, got %v", err)
	}
}
