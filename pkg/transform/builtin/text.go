package builtin

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jmylchreest/xcrap/pkg/record"
	"github.com/jmylchreest/xcrap/pkg/transform"
)

// strictPolicy strips every tag. Policies are safe for concurrent use.
var strictPolicy = bluemonday.StrictPolicy()

// Trim removes leading and trailing whitespace.
func Trim(_ context.Context, v record.Value) (record.Value, error) {
	return mapString("trim", v, func(s string) (string, error) {
		return strings.TrimSpace(s), nil
	})
}

// CollapseWhitespace trims and replaces every run of whitespace with a
// single space.
func CollapseWhitespace(_ context.Context, v record.Value) (record.Value, error) {
	return mapString("collapse_whitespace", v, func(s string) (string, error) {
		return strings.Join(strings.Fields(s), " "), nil
	})
}

// ToLower lower-cases the value.
func ToLower(_ context.Context, v record.Value) (record.Value, error) {
	return mapString("lower", v, func(s string) (string, error) {
		return cases.Lower(language.Und).String(s), nil
	})
}

// ToUpper upper-cases the value.
func ToUpper(_ context.Context, v record.Value) (record.Value, error) {
	return mapString("upper", v, func(s string) (string, error) {
		return cases.Upper(language.Und).String(s), nil
	})
}

// ToTitle title-cases each word.
func ToTitle(_ context.Context, v record.Value) (record.Value, error) {
	return mapString("title", v, func(s string) (string, error) {
		return cases.Title(language.Und).String(s), nil
	})
}

// Replace replaces every occurrence of from with to.
func Replace(from, to string) transform.Func {
	return func(_ context.Context, v record.Value) (record.Value, error) {
		return mapString("replace", v, func(s string) (string, error) {
			return strings.ReplaceAll(s, from, to), nil
		})
	}
}

// Regex returns the given capture group of the first match of pattern.
// Group 0 is the whole match. A value without a match becomes absent.
func Regex(pattern string, group int) (transform.Func, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex: %w", err)
	}
	if group < 0 || group > re.NumSubexp() {
		return nil, fmt.Errorf("regex: group %d out of range (pattern has %d)", group, re.NumSubexp())
	}

	return func(_ context.Context, v record.Value) (record.Value, error) {
		return mapValue("regex", v, func(s string) (record.Value, error) {
			m := re.FindStringSubmatch(s)
			if m == nil {
				return record.Absent(), nil
			}
			return record.String(m[group]), nil
		})
	}, nil
}

// StripTags removes all markup, leaving the decoded text.
func StripTags(_ context.Context, v record.Value) (record.Value, error) {
	return mapString("strip_tags", v, func(s string) (string, error) {
		return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s))), nil
	})
}

// Markdown converts an HTML fragment to markdown.
func Markdown(_ context.Context, v record.Value) (record.Value, error) {
	return mapString("markdown", v, func(s string) (string, error) {
		md, err := htmltomarkdown.ConvertString(s)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(md), nil
	})
}

// ResolveURL resolves relative references against base.
func ResolveURL(base string) transform.Func {
	baseURL, baseErr := url.Parse(base)

	return func(_ context.Context, v record.Value) (record.Value, error) {
		if baseErr != nil {
			return record.Absent(), fmt.Errorf("resolve_url: invalid base %q: %w", base, baseErr)
		}
		return mapString("resolve_url", v, func(s string) (string, error) {
			ref, err := url.Parse(strings.TrimSpace(s))
			if err != nil {
				return "", err
			}
			return baseURL.ResolveReference(ref).String(), nil
		})
	}
}
