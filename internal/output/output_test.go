package output

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/xcrap/pkg/record"
)

func product(t *testing.T, name string, price float64) *record.Record {
	t.Helper()
	r := record.New()
	r.Set("name", record.String(name))
	r.Set("price", record.Number(price))
	r.Set("url", record.String("https://myshop.com/p?id=1&ref=a"))
	return r
}

func writeAll(t *testing.T, format Format, indent string, items ...any) string {
	t.Helper()
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, format, indent)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	for _, item := range items {
		if err := w.Write(item); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSONL", FormatJSONL, false},
		{"ndjson", FormatJSONL, false},
		{"yml", FormatYAML, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	if got := FormatFromPath("out/products.yaml", FormatJSON); got != FormatYAML {
		t.Errorf("got %q", got)
	}
	if got := FormatFromPath("products.txt", FormatJSONL); got != FormatJSONL {
		t.Errorf("got %q", got)
	}
}

func TestJSON_SingleItemIsObject(t *testing.T) {
	out := writeAll(t, FormatJSON, "  ", product(t, "Cool Gadget", 99.99))

	if !strings.HasPrefix(out, "{\n  \"name\": \"Cool Gadget\",\n  \"price\": 99.99") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "id=1&ref=a") {
		t.Error("HTML characters should not be escaped")
	}
}

func TestJSON_MultipleItemsIsArray(t *testing.T) {
	out := writeAll(t, FormatJSON, "", product(t, "a", 1), product(t, "b", 2))

	var got []map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("not a JSON array: %v", err)
	}
	if len(got) != 2 || got[1]["name"] != "b" {
		t.Errorf("got %v", got)
	}
}

func TestJSONL(t *testing.T) {
	out := writeAll(t, FormatJSONL, "", product(t, "a", 1), product(t, "b", 2))

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], `{"name":"a","price":1,`) {
		t.Errorf("line[0] = %q", lines[0])
	}
}

func TestYAML_DocumentStream(t *testing.T) {
	out := writeAll(t, FormatYAML, "", product(t, "a", 1), product(t, "b", 2))

	dec := yaml.NewDecoder(strings.NewReader(out))
	var names []string
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			break
		}
		names = append(names, doc["name"].(string))
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v from %q", names, out)
	}
	if !strings.HasPrefix(out, "name: a\nprice: 1\n") {
		t.Errorf("key order lost: %q", out)
	}
}

func TestNewWriter_Unsupported(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, Format("csv"), ""); err == nil {
		t.Error("expected error")
	}
}

func TestOpen(t *testing.T) {
	w, err := Open("-")
	if err != nil {
		t.Fatalf("Open(-) error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("closing stdout wrapper: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.json")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	if _, err := f.Write([]byte("{}")); err != nil {
		t.Errorf("Write() error = %v", err)
	}
}
