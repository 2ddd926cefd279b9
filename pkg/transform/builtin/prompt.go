package builtin

import (
	"context"
	"errors"
	"strings"

	"github.com/jmylchreest/xcrap/internal/logger"
	"github.com/jmylchreest/xcrap/pkg/llm"
	"github.com/jmylchreest/xcrap/pkg/record"
	"github.com/jmylchreest/xcrap/pkg/transform"
)

// ErrNoProvider is returned by Prompt when no model provider is configured.
var ErrNoProvider = errors.New("no llm provider configured")

// Prompt sends instruction and the value to a language model and returns
// the trimmed completion. Lists are sent one element at a time.
func Prompt(provider llm.Provider, instruction string) transform.Func {
	return func(ctx context.Context, v record.Value) (record.Value, error) {
		if provider == nil {
			return record.Absent(), ErrNoProvider
		}
		return mapString("prompt", v, func(s string) (string, error) {
			resp, err := provider.Execute(ctx, llm.Request{
				Messages: []llm.Message{
					{Role: llm.RoleSystem, Content: instruction},
					{Role: llm.RoleUser, Content: s},
				},
			})
			if err != nil {
				return "", err
			}
			logger.DebugContext(ctx, "prompt transformer completed",
				"provider", provider.Name(),
				"model", resp.Model,
				"input_tokens", resp.Usage.InputTokens,
				"output_tokens", resp.Usage.OutputTokens,
				"duration", resp.Duration,
			)
			return strings.TrimSpace(resp.Content), nil
		})
	}
}
