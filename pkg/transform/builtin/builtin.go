// Package builtin is the library of named transformers usable as step
// functions.
//
// String transformers apply element-wise to lists and leave absent values
// untouched. Any other value kind is rejected with ErrNotString.
package builtin

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/xcrap/pkg/record"
)

var (
	// ErrNotString is returned when a string transformer receives a number,
	// boolean, time or record.
	ErrNotString = errors.New("value is not a string")

	// ErrNoMatch is returned by parsers that find nothing to parse.
	ErrNoMatch = errors.New("no parsable value")

	// ErrOutOfRange is returned when a number cannot be represented in the
	// target type.
	ErrOutOfRange = errors.New("value out of range")
)

func mapString(name string, v record.Value, fn func(string) (string, error)) (record.Value, error) {
	return mapValue(name, v, func(s string) (record.Value, error) {
		out, err := fn(s)
		if err != nil {
			return record.Absent(), err
		}
		return record.String(out), nil
	})
}

func mapValue(name string, v record.Value, fn func(string) (record.Value, error)) (record.Value, error) {
	out, err := each(v, fn)
	if err != nil {
		return record.Absent(), fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func each(v record.Value, fn func(string) (record.Value, error)) (record.Value, error) {
	switch v.Kind() {
	case record.KindAbsent:
		return v, nil
	case record.KindString:
		s, _ := v.Str()
		return fn(s)
	case record.KindList:
		items, _ := v.Items()
		out := make([]record.Value, len(items))
		for i, item := range items {
			mapped, err := each(item, fn)
			if err != nil {
				return record.Absent(), fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = mapped
		}
		return record.List(out...), nil
	default:
		return record.Absent(), fmt.Errorf("%w (got %s)", ErrNotString, v.Kind())
	}
}
