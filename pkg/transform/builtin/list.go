package builtin

import (
	"context"
	"strings"

	"github.com/jmylchreest/xcrap/pkg/record"
	"github.com/jmylchreest/xcrap/pkg/transform"
)

// Split splits a string on sep into a list. Parts are trimmed and empty
// parts dropped.
func Split(sep string) transform.Func {
	return func(_ context.Context, v record.Value) (record.Value, error) {
		return mapValue("split", v, func(s string) (record.Value, error) {
			var parts []string
			for _, p := range strings.Split(s, sep) {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
			return record.Strings(parts...), nil
		})
	}
}

// Join joins a list into a single string. Non-list values pass through.
func Join(sep string) transform.Func {
	return func(_ context.Context, v record.Value) (record.Value, error) {
		items, ok := v.Items()
		if !ok {
			return v, nil
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item.IsAbsent() {
				continue
			}
			parts = append(parts, item.String())
		}
		return record.String(strings.Join(parts, sep)), nil
	}
}

// First keeps the first element of a list, or absent for an empty list.
// Non-list values pass through.
func First(_ context.Context, v record.Value) (record.Value, error) {
	items, ok := v.Items()
	if !ok {
		return v, nil
	}
	if len(items) == 0 {
		return record.Absent(), nil
	}
	return items[0], nil
}

// Default replaces an absent value or empty string with fallback.
func Default(fallback record.Value) transform.Func {
	return func(_ context.Context, v record.Value) (record.Value, error) {
		if v.IsAbsent() {
			return fallback, nil
		}
		if s, ok := v.Str(); ok && s == "" {
			return fallback, nil
		}
		return v, nil
	}
}
