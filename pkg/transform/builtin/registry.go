package builtin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jmylchreest/xcrap/pkg/llm"
	"github.com/jmylchreest/xcrap/pkg/record"
	"github.com/jmylchreest/xcrap/pkg/transform"
)

// Args are the arguments of a named transformer, as decoded from a
// definition file.
type Args map[string]any

// Env carries collaborators some transformers need.
type Env struct {
	Provider llm.Provider
}

// Factory builds a transformer from its arguments.
type Factory func(args Args, env Env) (transform.Func, error)

func plain(fn transform.Func) Factory {
	return func(Args, Env) (transform.Func, error) { return fn, nil }
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"trim":                plain(Trim),
		"collapse_whitespace": plain(CollapseWhitespace),
		"lower":               plain(ToLower),
		"upper":               plain(ToUpper),
		"title":               plain(ToTitle),
		"strip_tags":          plain(StripTags),
		"markdown":            plain(Markdown),
		"number":              plain(ParseNumber),
		"int":                 plain(ParseInt),
		"bool":                plain(ParseBool),
		"date":                plain(ParseDate),
		"bytes":               plain(ParseBytes),
		"first":               plain(First),
		"replace": func(a Args, _ Env) (transform.Func, error) {
			from, err := a.String("old", true)
			if err != nil {
				return nil, err
			}
			to, err := a.String("new", false)
			if err != nil {
				return nil, err
			}
			return Replace(from, to), nil
		},
		"regex": func(a Args, _ Env) (transform.Func, error) {
			pattern, err := a.String("pattern", true)
			if err != nil {
				return nil, err
			}
			group, err := a.Int("group", 0)
			if err != nil {
				return nil, err
			}
			return Regex(pattern, group)
		},
		"resolve_url": func(a Args, _ Env) (transform.Func, error) {
			base, err := a.String("base", true)
			if err != nil {
				return nil, err
			}
			return ResolveURL(base), nil
		},
		"split": func(a Args, _ Env) (transform.Func, error) {
			sep, err := a.String("sep", false)
			if err != nil {
				return nil, err
			}
			if sep == "" {
				sep = ","
			}
			return Split(sep), nil
		},
		"join": func(a Args, _ Env) (transform.Func, error) {
			sep, err := a.String("sep", false)
			if err != nil {
				return nil, err
			}
			return Join(sep), nil
		},
		"default": func(a Args, _ Env) (transform.Func, error) {
			v, err := record.Of(a["value"])
			if err != nil {
				return nil, fmt.Errorf("argument \"value\": %w", err)
			}
			return Default(v), nil
		},
		"readable": func(a Args, _ Env) (transform.Func, error) {
			base, err := a.String("base", false)
			if err != nil {
				return nil, err
			}
			format, err := a.String("format", false)
			if err != nil {
				return nil, err
			}
			switch format {
			case "", "text":
				return Readable(base, false), nil
			case "html":
				return Readable(base, true), nil
			}
			return nil, fmt.Errorf("argument \"format\": want text or html, got %q", format)
		},
		"prompt": func(a Args, env Env) (transform.Func, error) {
			instruction, err := a.String("instruction", true)
			if err != nil {
				return nil, err
			}
			if env.Provider == nil {
				return nil, ErrNoProvider
			}
			return Prompt(env.Provider, instruction), nil
		},
	}
)

// Lookup builds the named transformer. Unknown names and bad arguments are
// errors.
func Lookup(name string, args map[string]any, env ...Env) (transform.Func, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transformer %q (available: %s)", name, strings.Join(Names(), ", "))
	}

	var e Env
	if len(env) > 0 {
		e = env[0]
	}

	fn, err := factory(Args(args), e)
	if err != nil {
		return nil, fmt.Errorf("transformer %q: %w", name, err)
	}
	return fn, nil
}

// Register adds or replaces a named transformer.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Names returns the registered transformer names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns a string argument.
func (a Args) String(key string, required bool) (string, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("missing argument %q", key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, raw)
	}
	return s, nil
}

// Int returns an integer argument, or def when absent. YAML decodes
// integers as int and JSON as float64; both are accepted.
func (a Args) Int(key string, def int) (int, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("argument %q must be an integer, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer, got %T", key, raw)
	}
}
