// Package definition loads declarative pipeline files and compiles them into
// extraction and transformation models.
//
// A definition names the document format, the fields to extract with their
// queries, and the transformer chain for each cleaned field:
//
//	name: product
//	format: html
//	extract:
//	  name:  { query: "#title" }
//	  price: { query: ".price" }
//	transform:
//	  name:  [ { transformer: trim } ]
//	  price: [ { transformer: number } ]
package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/xcrap/pkg/query"
)

// Document formats.
const (
	FormatHTML = "html"
	FormatXML  = "xml"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid definition")

// Definition is a declarative pipeline.
type Definition struct {
	Name        string                `json:"name" yaml:"name" validate:"required"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Format      string                `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=html xml"`
	Extract     map[string]*Field     `json:"extract" yaml:"extract" validate:"required,min=1,dive,keys,required,endkeys,required"`
	Transform   map[string][]StepSpec `json:"transform,omitempty" yaml:"transform,omitempty" validate:"dive,keys,required,endkeys,dive"`
}

// Field describes one extracted field.
type Field struct {
	Query    string            `json:"query" yaml:"query" validate:"required"`
	Dialect  string            `json:"dialect,omitempty" yaml:"dialect,omitempty" validate:"omitempty,oneof=css xpath"`
	Property string            `json:"property,omitempty" yaml:"property,omitempty"`
	Multiple bool              `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Limit    int               `json:"limit,omitempty" yaml:"limit,omitempty" validate:"gte=0"`
	Fields   map[string]*Field `json:"fields,omitempty" yaml:"fields,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
}

// StepSpec is one named transformer in a chain.
type StepSpec struct {
	Key         string         `json:"key,omitempty" yaml:"key,omitempty"`
	Transformer string         `json:"transformer" yaml:"transformer" validate:"required"`
	Args        map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

var validate = validator.New()

// Load reads a definition from a .yaml, .yml or .json file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	d, err := Parse(data, ext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes a definition. format is "yaml", "yml" or "json". Defaults
// are applied and the result is validated.
func Parse(data []byte, format string) (*Definition, error) {
	var d Definition

	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to parse JSON definition: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to parse YAML definition: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported definition format: %q", format)
	}

	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Definition) applyDefaults() {
	if d.Format == "" {
		d.Format = FormatHTML
	}
	for _, f := range d.Extract {
		f.applyDefaults(d.Format)
	}
}

func (f *Field) applyDefaults(format string) {
	if f == nil {
		return
	}
	if f.Dialect == "" {
		if format == FormatXML {
			f.Dialect = query.DialectXPath
		} else {
			f.Dialect = query.DialectCSS
		}
	}
	if f.Property == "" && len(f.Fields) == 0 {
		f.Property = query.PropInnerText
	}
	for _, sub := range f.Fields {
		sub.applyDefaults(format)
	}
}

// Validate checks the definition's structure.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			sort.Strings(msgs)
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if d.Format == FormatXML {
		if path, ok := findDialect(d.Extract, query.DialectCSS, ""); ok {
			return fmt.Errorf("%w: extract field %q: css queries are not supported for xml documents", ErrInvalid, path)
		}
	}
	return nil
}

func findDialect(fields map[string]*Field, dialect, prefix string) (string, bool) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := fields[name]
		if f.Dialect == dialect {
			return prefix + name, true
		}
		if path, ok := findDialect(f.Fields, dialect, prefix+name+"."); ok {
			return path, true
		}
	}
	return "", false
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Definition.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must have at least " + fe.Param() + " entry"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}

// Uses reports whether any transform chain references the named
// transformer.
func (d *Definition) Uses(transformer string) bool {
	for _, steps := range d.Transform {
		for _, s := range steps {
			if s.Transformer == transformer {
				return true
			}
		}
	}
	return false
}
