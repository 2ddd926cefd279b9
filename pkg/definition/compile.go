package definition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/xcrap/pkg/extract"
	"github.com/jmylchreest/xcrap/pkg/llm"
	"github.com/jmylchreest/xcrap/pkg/query"
	"github.com/jmylchreest/xcrap/pkg/query/htmldoc"
	"github.com/jmylchreest/xcrap/pkg/query/xmldoc"
	"github.com/jmylchreest/xcrap/pkg/transform"
	"github.com/jmylchreest/xcrap/pkg/transform/builtin"
)

// CompileOptions supplies collaborators needed by some transformers.
type CompileOptions struct {
	// Provider backs the prompt transformer.
	Provider llm.Provider
}

// Pipeline is a compiled definition.
type Pipeline struct {
	Name      string
	Format    string
	Extract   extract.Model
	Transform transform.Model

	// Parse parses a document in the definition's format.
	Parse func(document string) (query.Node, error)

	compileQuery func(dialect, expr string) (query.Query, error)
}

// Query compiles an ad-hoc expression for the pipeline's documents, such
// as a link selector. Expressions starting with "/" or "(" are XPath;
// anything else uses the format's default dialect.
func (p *Pipeline) Query(expr string) (query.Query, error) {
	dialect := query.DialectCSS
	if p.Format == FormatXML || strings.HasPrefix(expr, "/") || strings.HasPrefix(expr, "(") {
		dialect = query.DialectXPath
	}
	return p.compileQuery(dialect, expr)
}

// Compile compiles every query and resolves every transformer of d.
func Compile(d *Definition, opts CompileOptions) (*Pipeline, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{Name: d.Name, Format: d.Format}

	var compileQuery func(dialect, expr string) (query.Query, error)
	switch d.Format {
	case FormatXML:
		compileQuery = xmldoc.Compile
		p.Parse = func(document string) (query.Node, error) {
			root, err := xmldoc.Parse(document)
			if err != nil {
				return nil, err
			}
			return root, nil
		}
	default:
		compileQuery = htmldoc.Compile
		p.Parse = func(document string) (query.Node, error) {
			root, err := htmldoc.Parse(document)
			if err != nil {
				return nil, err
			}
			return root, nil
		}
	}

	p.compileQuery = compileQuery

	model, err := compileFields(d.Extract, compileQuery, "")
	if err != nil {
		return nil, err
	}
	p.Extract = model

	chains := make(map[string][]transform.Step, len(d.Transform))
	env := builtin.Env{Provider: opts.Provider}
	for _, field := range sortedKeys(d.Transform) {
		specs := d.Transform[field]
		steps := make([]transform.Step, 0, len(specs))
		for i, spec := range specs {
			fn, err := builtin.Lookup(spec.Transformer, spec.Args, env)
			if err != nil {
				return nil, fmt.Errorf("transform field %q step %d: %w", field, i, err)
			}
			steps = append(steps, transform.Step{SourceKey: spec.Key, Fn: fn, Name: spec.Transformer})
		}
		chains[field] = steps
	}

	p.Transform, err = transform.NewModel(chains)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func compileFields(fields map[string]*Field, compileQuery func(string, string) (query.Query, error), prefix string) (extract.Model, error) {
	model := make(extract.Model, len(fields))

	for _, name := range sortedKeys(fields) {
		f := fields[name]
		path := prefix + name

		q, err := compileQuery(f.Dialect, f.Query)
		if err != nil {
			return nil, fmt.Errorf("extract field %q: %w", path, err)
		}

		ef := extract.Field{Query: q, Multiple: f.Multiple, Limit: f.Limit}
		if len(f.Fields) > 0 {
			ef.Nested, err = compileFields(f.Fields, compileQuery, path+".")
			if err != nil {
				return nil, err
			}
		} else {
			ef.Extractor = extract.Property(f.Property)
		}
		model[name] = ef
	}
	return model, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
