// Package output serialises pipeline results as JSON, JSON lines or YAML.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name. "yml" and "ndjson" are accepted
// as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", name)
}

// FormatFromPath guesses the format from a file extension, falling back
// to def.
func FormatFromPath(path string, def Format) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return def
}

// Writer serialises a sequence of items. Close must be called to emit
// buffered output.
type Writer interface {
	Write(v any) error
	Close() error
}

// NewWriter creates a writer for format. indent applies to JSON only; an
// empty indent produces compact output.
func NewWriter(w io.Writer, format Format, indent string) (Writer, error) {
	switch format {
	case FormatJSON:
		return &jsonWriter{w: w, indent: indent}, nil
	case FormatJSONL:
		return newJSONLWriter(w), nil
	case FormatYAML:
		return newYAMLWriter(w), nil
	}
	return nil, fmt.Errorf("unsupported output format: %s", format)
}

// Open returns a writer for path, or stdout for "" and "-". Closing the
// returned file never closes stdout.
func Open(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// jsonWriter buffers items and writes a single value for one item and an
// array otherwise.
type jsonWriter struct {
	w      io.Writer
	indent string
	items  []any
}

func (j *jsonWriter) Write(v any) error {
	j.items = append(j.items, v)
	return nil
}

func (j *jsonWriter) Close() error {
	enc := json.NewEncoder(j.w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", j.indent)

	var v any = j.items
	if len(j.items) == 1 {
		v = j.items[0]
	}
	return enc.Encode(v)
}

// jsonlWriter streams one compact JSON value per line.
type jsonlWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

func newJSONLWriter(w io.Writer) *jsonlWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &jsonlWriter{buf: buf, enc: enc}
}

func (j *jsonlWriter) Write(v any) error {
	if err := j.enc.Encode(v); err != nil {
		return err
	}
	return j.buf.Flush()
}

func (j *jsonlWriter) Close() error {
	return j.buf.Flush()
}

// yamlWriter streams one YAML document per item.
type yamlWriter struct {
	enc *yaml.Encoder
}

func newYAMLWriter(w io.Writer) *yamlWriter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &yamlWriter{enc: enc}
}

func (y *yamlWriter) Write(v any) error {
	return y.enc.Encode(v)
}

func (y *yamlWriter) Close() error {
	return y.enc.Close()
}
