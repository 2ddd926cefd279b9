package definition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmylchreest/xcrap/pkg/extract"
	"github.com/jmylchreest/xcrap/pkg/query"
	"github.com/jmylchreest/xcrap/pkg/record"
	"github.com/jmylchreest/xcrap/pkg/transform"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	return string(data)
}

func TestLoad_YAML(t *testing.T) {
	d, err := Load("testdata/product.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if d.Name != "product" || d.Format != FormatHTML {
		t.Errorf("Name/Format = %q/%q", d.Name, d.Format)
	}
	if got := d.Extract["name"].Property; got != query.PropInnerText {
		t.Errorf("default property = %q, want innerText", got)
	}
	if got := d.Extract["name"].Dialect; got != query.DialectCSS {
		t.Errorf("default dialect = %q, want css", got)
	}
	if got := d.Extract["details"].Property; got != "" {
		t.Errorf("nested field should have no property, got %q", got)
	}
	if got := d.Transform["price"][0].Args["old"]; got != "$" {
		t.Errorf("replace args = %v", d.Transform["price"][0].Args)
	}
}

func TestCompile_RunsReadmePipeline(t *testing.T) {
	d, err := Load("testdata/product.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p, err := Compile(d, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	root, err := p.Parse(readFixture(t, "product.html"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	ctx := context.Background()
	raw, err := extract.ExtractModel(ctx, root, p.Extract)
	if err != nil {
		t.Fatalf("ExtractModel() error = %v", err)
	}

	wantRaw, _ := record.FromMap(map[string]any{
		"name":     "  Cool Gadget  ",
		"price":    "$99.99",
		"weight":   "250g",
		"specsUrl": "/specs.pdf",
		"tags":     []any{"gadgets", "tools"},
		"details":  map[string]any{"weight": "250g", "link": "/specs.pdf"},
	})
	if !raw.Equal(wantRaw) {
		t.Errorf("raw = %s\nwant  %s", raw, wantRaw)
	}

	clean, err := transform.New(raw).Transform(ctx, p.Transform)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	checks := map[string]record.Value{
		"name":     record.String("Cool Gadget"),
		"price":    record.Number(99.99),
		"specsUrl": record.String("https://myshop.com/specs.pdf"),
		"weight":   record.String("250g"),
		"tagList":  record.String("gadgets, tools"),
	}
	for key, want := range checks {
		if got, _ := clean.Get(key); !got.Equal(want) {
			t.Errorf("clean[%s] = %#v, want %#v", key, got, want)
		}
	}
}

func TestLoad_JSON(t *testing.T) {
	d, err := Load("testdata/product.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p, err := Compile(d, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got := p.Transform.Steps("price"); len(got) != 2 || got[0].Name != "regex" {
		t.Errorf("price chain = %+v", got)
	}
}

func TestCompile_XML(t *testing.T) {
	d, err := Load("testdata/feed.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := d.Extract["skus"].Dialect; got != query.DialectXPath {
		t.Errorf("xml default dialect = %q, want xpath", got)
	}

	p, err := Compile(d, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	root, err := p.Parse(`<catalog>
		<product sku="A1"><name>Gadget</name><price currency="USD">1</price></product>
		<product sku="B2"><name>Widget</name><price currency="EUR">2</price></product>
	</catalog>`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	raw, err := extract.ExtractModel(context.Background(), root, p.Extract)
	if err != nil {
		t.Fatalf("ExtractModel() error = %v", err)
	}
	clean, err := transform.New(raw).Transform(context.Background(), p.Transform)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	if v, _ := clean.Get("skus"); !v.Equal(record.Strings("a1", "b2")) {
		t.Errorf("skus = %#v", v)
	}
	products, _ := clean.Get("products")
	items, ok := products.Items()
	if !ok || len(items) != 2 {
		t.Fatalf("products = %#v", products)
	}
	second, _ := items[1].Record()
	if v, _ := second.Get("currency"); !v.Equal(record.String("EUR")) {
		t.Errorf("products[1].currency = %#v", v)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "missing name",
			doc:     "extract: { a: { query: h1 } }",
			wantErr: "Name is required",
		},
		{
			name:    "no fields",
			doc:     "name: x\nextract: {}",
			wantErr: "Extract must have at least 1",
		},
		{
			name:    "bad format",
			doc:     "name: x\nformat: pdf\nextract: { a: { query: h1 } }",
			wantErr: "Format must be one of",
		},
		{
			name:    "missing query",
			doc:     "name: x\nextract: { a: { property: href } }",
			wantErr: "Query is required",
		},
		{
			name:    "bad dialect",
			doc:     "name: x\nextract: { a: { query: h1, dialect: jsonpath } }",
			wantErr: "Dialect must be one of",
		},
		{
			name:    "negative limit",
			doc:     "name: x\nextract: { a: { query: li, multiple: true, limit: -1 } }",
			wantErr: "Limit must be >= 0",
		},
		{
			name:    "missing transformer",
			doc:     "name: x\nextract: { a: { query: h1 } }\ntransform: { a: [ { key: a } ] }",
			wantErr: "Transformer is required",
		},
		{
			name:    "css on xml",
			doc:     "name: x\nformat: xml\nextract: { a: { query: item, dialect: css } }",
			wantErr: `extract field "a": css queries`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error should wrap ErrInvalid: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse([]byte("name: [unclosed"), "yaml"); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte(`{"name":`), "json"); err == nil {
		t.Error("expected JSON error")
	}
	if _, err := Parse([]byte("name: x"), "toml"); err == nil {
		t.Error("expected unsupported format error")
	}
	if _, err := Load("testdata/missing.yaml"); err == nil {
		t.Error("expected read error")
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "bad css",
			doc:     "name: x\nextract: { a: { query: 'div[[' } }",
			wantErr: `extract field "a"`,
		},
		{
			name:    "bad nested xpath",
			doc:     "name: x\nextract: { a: { query: div, fields: { b: { query: '//p[', dialect: xpath } } } }",
			wantErr: `extract field "a.b"`,
		},
		{
			name:    "unknown transformer",
			doc:     "name: x\nextract: { a: { query: h1 } }\ntransform: { a: [ { transformer: trim }, { transformer: shout } ] }",
			wantErr: `transform field "a" step 1`,
		},
		{
			name:    "prompt without provider",
			doc:     "name: x\nextract: { a: { query: h1 } }\ntransform: { a: [ { transformer: prompt, args: { instruction: hi } } ] }",
			wantErr: "no llm provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse([]byte(tt.doc), "yaml")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			_, err = Compile(d, CompileOptions{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCompile_QueryErrorIsTyped(t *testing.T) {
	d, err := Parse([]byte("name: x\nextract: { a: { query: 'div[[' } }"), "yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	_, err = Compile(d, CompileOptions{})
	var qe *query.QueryError
	if !errors.As(err, &qe) {
		t.Errorf("error = %v, want *query.QueryError", err)
	}
}

func TestDefinition_Uses(t *testing.T) {
	d, err := Load("testdata/product.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !d.Uses("resolve_url") {
		t.Error("Uses(resolve_url) = false")
	}
	if d.Uses("prompt") {
		t.Error("Uses(prompt) = true")
	}
}

func TestPipeline_Query(t *testing.T) {
	d, err := Load("testdata/product.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p, err := Compile(d, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	tests := []struct {
		expr    string
		dialect string
		wantErr bool
	}{
		{"a.next", query.DialectCSS, false},
		{"//a[@rel='next']", query.DialectXPath, false},
		{"(//a)[1]", query.DialectXPath, false},
		{"a >", "", true},
	}
	for _, tt := range tests {
		q, err := p.Query(tt.expr)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Query(%q) expected error", tt.expr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Query(%q) error = %v", tt.expr, err)
		}
		if q.Dialect() != tt.dialect {
			t.Errorf("Query(%q).Dialect() = %q, want %q", tt.expr, q.Dialect(), tt.dialect)
		}
	}
}
