// Package transform turns a raw record into a cleaned record by running an
// ordered chain of steps per destination field.
//
// Chains for different fields are independent and run concurrently. Steps
// inside a chain run strictly in order, each receiving the previous step's
// output. Fields the model does not mention pass through unchanged.
package transform

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/xcrap/internal/logger"
	"github.com/jmylchreest/xcrap/pkg/record"
)

// ErrStepPanic is wrapped by TransformError when a step panics.
var ErrStepPanic = errors.New("transform step panicked")

// TransformError reports the field and step whose function failed.
type TransformError struct {
	Field     string
	StepIndex int
	Step      string
	Cause     error
}

func (e *TransformError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("transform field %q step %d (%s): %v", e.Field, e.StepIndex, e.Step, e.Cause)
	}
	return fmt.Sprintf("transform field %q step %d: %v", e.Field, e.StepIndex, e.Cause)
}

func (e *TransformError) Unwrap() error {
	return e.Cause
}

// Config holds transformer settings.
type Config struct {
	// Concurrency bounds how many field chains run at once.
	Concurrency int

	// ContinueOnError keeps running the remaining chains after a failure.
	// Failed fields are dropped from the result.
	ContinueOnError bool
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{Concurrency: runtime.NumCPU()}
}

// Option configures a Transformer.
type Option func(*Config)

// WithConcurrency sets the maximum number of chains run at once. Values
// below one run chains sequentially.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithContinueOnError makes Transform return a partial record plus the
// joined errors of every failed field instead of aborting on the first.
func WithContinueOnError() Option {
	return func(c *Config) {
		c.ContinueOnError = true
	}
}

// Transformer applies models to one raw record.
type Transformer struct {
	raw    *record.Record
	config Config
}

// New creates a Transformer over raw. The raw record is never modified.
func New(raw *record.Record, opts ...Option) *Transformer {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if raw == nil {
		raw = record.New()
	}
	return &Transformer{raw: raw, config: cfg}
}

// Transform runs every chain of model and returns the cleaned record. The
// result keeps the raw record's key order; destination fields that are not
// raw keys are appended in sorted order. Every destination field is stored,
// so a chain whose source is missing leaves its field holding an absent
// value; such fields are omitted when the record is marshalled and
// Record.Equal treats them as missing.
//
// By default the first failing step cancels the remaining chains and no
// record is returned. With WithContinueOnError the partial record is
// returned together with every failure.
func (t *Transformer) Transform(ctx context.Context, model Model) (*record.Record, error) {
	fields := model.fields
	values := make([]record.Value, len(fields))
	failures := make([]error, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.Concurrency)

	for i, field := range fields {
		g.Go(func() error {
			v, err := t.runChain(gctx, field, model)
			if err != nil {
				if t.config.ContinueOnError {
					failures[i] = err
					return nil
				}
				return err
			}
			values[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := t.raw.Clone()
	var errs []error
	for i, field := range fields {
		if failures[i] != nil {
			clean.Delete(field)
			errs = append(errs, failures[i])
			continue
		}
		clean.Set(field, values[i])
	}

	logger.DebugContext(ctx, "transformed record",
		"fields", len(fields),
		"failed", len(errs),
		"concurrency", t.config.Concurrency,
	)

	if len(errs) > 0 {
		return clean, errors.Join(errs...)
	}
	return clean, nil
}

func (t *Transformer) runChain(ctx context.Context, field string, model Model) (record.Value, error) {
	value, _ := t.raw.Get(model.sourceKey(field))

	for i, step := range model.chains[field] {
		if err := ctx.Err(); err != nil {
			return record.Absent(), err
		}

		next, err := runStep(ctx, step, value)
		if err != nil {
			return record.Absent(), &TransformError{Field: field, StepIndex: i, Step: step.Name, Cause: err}
		}
		value = next
	}
	return value, nil
}

func runStep(ctx context.Context, step Step, v record.Value) (out record.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = record.Absent()
			err = fmt.Errorf("%w: %v", ErrStepPanic, r)
		}
	}()
	return step.Fn(ctx, v)
}
