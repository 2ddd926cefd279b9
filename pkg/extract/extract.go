// Package extract walks an extraction model over a parsed document and
// produces a raw record.
//
// A model maps output field names to a query plus either an extractor or a
// nested model. The engine only talks to the document through query.Node, so
// the same model shape works for any backend.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jmylchreest/xcrap/internal/logger"
	"github.com/jmylchreest/xcrap/pkg/query"
	"github.com/jmylchreest/xcrap/pkg/record"
)

// ErrInvalidField is wrapped by ExtractionError when a field descriptor is
// malformed.
var ErrInvalidField = errors.New("invalid field")

// Extractor reads a value off a matched node.
type Extractor func(node query.Node) (record.Value, error)

// Field describes how to produce one output field.
type Field struct {
	// Query selects the node(s) the value is read from.
	Query query.Query

	// Extractor reads the value from a matched node. Ignored when Nested is set.
	Extractor Extractor

	// Multiple collects every match into a list instead of using the first.
	Multiple bool

	// Limit caps the number of matches used when Multiple is set. Zero
	// means no limit.
	Limit int

	// Nested extracts a sub-record relative to each matched node.
	Nested Model
}

// Model maps output field names to their descriptors.
type Model map[string]Field

// ExtractionError reports a field whose extractor failed or whose
// descriptor is invalid.
type ExtractionError struct {
	Field string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract field %q: %v", e.Field, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// ExtractModel evaluates every field of model against root. The result has
// exactly the model's keys, in sorted order. A field without matches is
// Absent. Query errors are returned as *query.QueryError and extractor
// failures as *ExtractionError.
func ExtractModel(ctx context.Context, root query.Node, model Model) (*record.Record, error) {
	out := record.New()

	names := make([]string, 0, len(model))
	for name := range model {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, err := extractField(ctx, root, name, model[name])
		if err != nil {
			return nil, err
		}
		out.Set(name, v)
	}

	logger.DebugContext(ctx, "extracted model", "fields", len(names))
	return out, nil
}

// ExtractFirst evaluates a single descriptor and returns the value of its
// first match. Multiple is ignored.
func ExtractFirst(ctx context.Context, root query.Node, f Field) (record.Value, error) {
	f.Multiple = false
	return extractField(ctx, root, "", f)
}

// ExtractAll evaluates a single descriptor over every match and returns a
// list. Multiple is implied.
func ExtractAll(ctx context.Context, root query.Node, f Field) (record.Value, error) {
	f.Multiple = true
	return extractField(ctx, root, "", f)
}

func extractField(ctx context.Context, root query.Node, name string, f Field) (record.Value, error) {
	if err := validate(f); err != nil {
		return record.Absent(), &ExtractionError{Field: name, Cause: err}
	}

	nodes, err := root.Select(f.Query)
	if err != nil {
		return record.Absent(), err
	}

	if !f.Multiple {
		if len(nodes) == 0 {
			return record.Absent(), nil
		}
		return extractNode(ctx, nodes[0], name, f)
	}

	if f.Limit > 0 && len(nodes) > f.Limit {
		nodes = nodes[:f.Limit]
	}

	items := make([]record.Value, 0, len(nodes))
	for _, n := range nodes {
		v, err := extractNode(ctx, n, name, f)
		if err != nil {
			return record.Absent(), err
		}
		items = append(items, v)
	}
	return record.List(items...), nil
}

func extractNode(ctx context.Context, n query.Node, name string, f Field) (record.Value, error) {
	if f.Nested != nil {
		sub, err := ExtractModel(ctx, n, f.Nested)
		if err != nil {
			var ee *ExtractionError
			if errors.As(err, &ee) && name != "" {
				return record.Absent(), &ExtractionError{Field: name + "." + ee.Field, Cause: ee.Cause}
			}
			return record.Absent(), err
		}
		return record.Nested(sub), nil
	}

	v, err := f.Extractor(n)
	if err != nil {
		return record.Absent(), &ExtractionError{Field: name, Cause: err}
	}
	return v, nil
}

func validate(f Field) error {
	if f.Query == nil {
		return fmt.Errorf("%w: missing query", ErrInvalidField)
	}
	if f.Extractor == nil && f.Nested == nil {
		return fmt.Errorf("%w: needs an extractor or nested fields", ErrInvalidField)
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidField, f.Limit)
	}
	return nil
}
