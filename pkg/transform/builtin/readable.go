package builtin

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"

	"github.com/jmylchreest/xcrap/pkg/record"
	"github.com/jmylchreest/xcrap/pkg/transform"
)

// Readable reduces an HTML fragment, typically an outerHtml extraction, to
// its main content using the Readability algorithm. The result is plain
// text, or cleaned HTML when asHTML is set. base resolves relative links
// in HTML output and may be empty. Fragments with no detectable content
// yield Absent.
func Readable(base string, asHTML bool) transform.Func {
	var (
		baseURL *url.URL
		baseErr error
	)
	if base != "" {
		baseURL, baseErr = url.Parse(base)
	}

	return func(_ context.Context, v record.Value) (record.Value, error) {
		if baseErr != nil {
			return record.Absent(), fmt.Errorf("readable: invalid base %q: %w", base, baseErr)
		}
		return mapValue("readable", v, func(s string) (record.Value, error) {
			// Parsers keep per-document state.
			parser := readability.NewParser()
			article, err := parser.Parse(strings.NewReader(s), baseURL)
			if err != nil {
				return record.Absent(), err
			}
			if article.Node == nil {
				return record.Absent(), nil
			}

			var buf bytes.Buffer
			if asHTML {
				err = article.RenderHTML(&buf)
			} else {
				err = article.RenderText(&buf)
			}
			if err != nil {
				return record.Absent(), err
			}

			out := strings.TrimSpace(buf.String())
			if out == "" {
				return record.Absent(), nil
			}
			return record.String(out), nil
		})
	}
}
