package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jmylchreest/xcrap/pkg/record"
)

// ErrInvalidStep is returned by NewModel for a step without a function.
var ErrInvalidStep = errors.New("invalid transform step")

// Func converts one value. It may block, e.g. on a network call; the engine
// waits for it before running the next step of the chain.
type Func func(ctx context.Context, v record.Value) (record.Value, error)

// Step is one stage of a field's chain.
type Step struct {
	// SourceKey is the raw record key the chain reads. Only the first step's
	// SourceKey selects input; NewModel fills an empty one with the
	// destination field name.
	SourceKey string

	// Fn converts the value.
	Fn Func

	// Name labels the step in errors and logs.
	Name string
}

// StepOptions configures a Step built with Transform.
type StepOptions struct {
	Key         string
	Transformer Func
	Name        string
}

// Transform builds a Step. Key may be left empty to read the destination
// field itself.
func Transform(opts StepOptions) Step {
	return Step{SourceKey: opts.Key, Fn: opts.Transformer, Name: opts.Name}
}

// Model maps destination field names to ordered step chains. Build one with
// NewModel; a Model is read-only and safe to share between runs.
type Model struct {
	chains map[string][]Step
	fields []string
}

// NewModel validates chains and resolves every empty SourceKey to its
// destination field name.
func NewModel(chains map[string][]Step) (Model, error) {
	m := Model{
		chains: make(map[string][]Step, len(chains)),
		fields: make([]string, 0, len(chains)),
	}

	for field, steps := range chains {
		if field == "" {
			return Model{}, fmt.Errorf("%w: empty field name", ErrInvalidStep)
		}

		resolved := make([]Step, len(steps))
		for i, s := range steps {
			if s.Fn == nil {
				return Model{}, fmt.Errorf("field %q step %d: %w: no transformer", field, i, ErrInvalidStep)
			}
			if s.SourceKey == "" {
				s.SourceKey = field
			}
			resolved[i] = s
		}

		m.chains[field] = resolved
		m.fields = append(m.fields, field)
	}

	sort.Strings(m.fields)
	return m, nil
}

// MustModel is like NewModel but panics on error. It is meant for models
// written as literals.
func MustModel(chains map[string][]Step) Model {
	m, err := NewModel(chains)
	if err != nil {
		panic(err)
	}
	return m
}

// Fields returns the destination field names in sorted order.
func (m Model) Fields() []string {
	out := make([]string, len(m.fields))
	copy(out, m.fields)
	return out
}

// Steps returns the chain for field.
func (m Model) Steps(field string) []Step {
	return m.chains[field]
}

// Len returns the number of destination fields.
func (m Model) Len() int {
	return len(m.fields)
}

// sourceKey is the raw key a chain reads from. An empty chain copies the
// destination field.
func (m Model) sourceKey(field string) string {
	steps := m.chains[field]
	if len(steps) == 0 {
		return field
	}
	return steps[0].SourceKey
}
