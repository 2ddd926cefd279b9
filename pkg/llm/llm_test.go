package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProvider_Execute(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Cool Gadget"}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
		}`)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL + "/v1", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}

	resp, err := p.Execute(context.Background(), Request{Messages: []Message{
		{Role: RoleSystem, Content: "clean this"},
		{Role: RoleUser, Content: "  cool gadget "},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if resp.Content != "Cool Gadget" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 2 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if got["model"] != "test-model" {
		t.Errorf("request model = %v", got["model"])
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %v", got["messages"])
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestAnthropicProvider_Execute(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Cool Gadget"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 3}
		}`)
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL, Model: "claude-test"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	resp, err := p.Execute(context.Background(), Request{Messages: []Message{
		{Role: RoleSystem, Content: "clean this"},
		{Role: RoleUser, Content: "cool gadget"},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Content != "Cool Gadget" || resp.FinishReason != "end_turn" {
		t.Errorf("Response = %+v", resp)
	}
	if _, ok := got["system"]; !ok {
		t.Error("system prompt should be sent separately")
	}
}

func TestNewProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	if _, err := NewProvider("nope", ProviderConfig{}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewProvider("anthropic", ProviderConfig{}); err == nil {
		t.Error("expected error without API key")
	}
	if p, err := NewProvider("ollama", ProviderConfig{}); err != nil || p.Model() != "llama3.2" {
		t.Errorf("ollama provider = %v, %v", p, err)
	}

	if got := DetectProvider(); got != "ollama" {
		t.Errorf("DetectProvider() = %q, want ollama", got)
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
	if got := DetectProvider(); got != "openai" {
		t.Errorf("DetectProvider() = %q, want openai", got)
	}
	p, err := NewProvider("openai", ProviderConfig{})
	if err != nil {
		t.Fatalf("NewProvider(openai) error = %v", err)
	}
	if p.Model() != DefaultModels["openai"] {
		t.Errorf("Model() = %q", p.Model())
	}
}
