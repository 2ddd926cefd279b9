package xmldoc

import (
	"errors"
	"testing"

	"github.com/jmylchreest/xcrap/pkg/query"
)

const feedXML = `<?xml version="1.0"?>
<catalog>
  <product sku="A1">
    <name>  Cool Gadget  </name>
    <price currency="USD">99.99</price>
  </product>
  <product sku="B2">
    <name>Other Gadget</name>
    <price currency="EUR">12.50</price>
  </product>
</catalog>`

func TestSelect(t *testing.T) {
	doc, err := Parse(feedXML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	products, err := doc.Select(XPath("//product"))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}

	sku, ok := products[1].Property("sku")
	if !ok || sku != "B2" {
		t.Errorf("sku = (%q, %v), want B2", sku, ok)
	}

	names, err := products[0].Select(XPath("name"))
	if err != nil || len(names) != 1 {
		t.Fatalf("expected one name, got %d (err %v)", len(names), err)
	}
	if got, _ := names[0].Property(query.PropInnerText); got != "  Cool Gadget  " {
		t.Errorf("innerText = %q", got)
	}
	if got, _ := names[0].Property(query.PropTagName); got != "name" {
		t.Errorf("tagName = %q", got)
	}
}

func TestProperty(t *testing.T) {
	doc, err := Parse(`<root><price currency="USD">99.99</price></root>`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	nodes, err := doc.Select(XPath("//price"))
	if err != nil || len(nodes) != 1 {
		t.Fatalf("expected one price node, got %d (err %v)", len(nodes), err)
	}
	price := nodes[0]

	tests := []struct {
		prop   string
		want   string
		wantOK bool
	}{
		{"currency", "USD", true},
		{"missing", "", false},
		{query.PropInnerHTML, "99.99", true},
		{query.PropOuterHTML, `<price currency="USD">99.99</price>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.prop, func(t *testing.T) {
			got, ok := price.Property(tt.prop)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Property(%q) = (%q, %v), want (%q, %v)", tt.prop, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	if _, err := Compile(query.DialectCSS, "product"); !errors.Is(err, query.ErrUnsupportedDialect) {
		t.Errorf("Compile(css) error = %v, want ErrUnsupportedDialect", err)
	}

	_, err := CompileXPath("//product[")
	var qe *query.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("CompileXPath() error = %v, want *query.QueryError", err)
	}
	if qe.Dialect != query.DialectXPath {
		t.Errorf("Dialect = %q", qe.Dialect)
	}

	doc, _ := Parse(feedXML)
	if _, err := doc.Select(XPath("//product[")); !errors.As(err, &qe) {
		t.Errorf("deferred compile error should surface on Select, got %v", err)
	} else if qe.Expr != "//product[" {
		t.Errorf("QueryError.Expr = %q, want the source expression", qe.Expr)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse("<catalog><product></catalog>"); err == nil {
		t.Error("expected error for malformed xml")
	}
}
