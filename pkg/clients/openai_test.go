package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/condotto-ai/condotto/pkg/cache"
	"github.com/condotto-ai/condotto/pkg/memory"
	"github.com/condotto-ai/condotto/pkg/tools"
	"github.com/condotto-ai/condotto/pkg/types"
)

func completionBody(content, finishReason string, toolCalls string) string {
	msg := `{"role":"assistant","content":` + jsonString(content)
	if toolCalls != "" {
		msg += `,"tool_calls":` + toolCalls
	}
	msg += `}`
	return `{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o-mini",` +
		`"choices":[{"index":0,"finish_reason":"` + finishReason + `","message":` + msg + `}],` +
		`"usage":{"prompt_tokens":10,"completion_tokens":5,"prompt_tokens_details":{"cached_tokens":2}}}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.APIKey = "test-key"
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	cfg.BaseURL = srv.URL
	c, err := NewOpenAI(cfg)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	return c
}

func TestOpenAIInvoke(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody("hello there", "stop", ""))
	}, Config{})

	resp, err := c.Invoke(context.Background(), types.Text("hi"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Text() != "hello there" {
		t.Fatalf("unexpected text: %q", resp.Text())
	}
	if resp.StopReason != "stop" {
		t.Fatalf("unexpected stop reason: %q", resp.StopReason)
	}
	if resp.PromptTokens != 10 || resp.CompletionTokens != 5 || resp.CachedTokens != 2 {
		t.Fatalf("unexpected usage: %+v", resp)
	}
}

func TestOpenAIInvokeRecordsMemory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody("fine, thanks", "stop", ""))
	}, Config{SystemPrompt: "be brief"})

	mem := memory.New()
	if _, err := c.Invoke(context.Background(), types.Text("how are you"), WithMemory(mem)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if mem.Len() != 2 {
		t.Fatalf("expected 2 turns in memory, got %d", mem.Len())
	}
	turns := mem.Turns()
	if turns[0].Role != types.RoleUser || turns[1].Role != types.RoleAssistant {
		t.Fatalf("unexpected roles: %v %v", turns[0].Role, turns[1].Role)
	}
}

func TestOpenAIToolLoop(t *testing.T) {
	var requests atomic.Int32
	var sawToolResult atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"role":"tool"`) {
			sawToolResult.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		if requests.Add(1) == 1 {
			calls := `[{"id":"call_1","type":"function","function":{"name":"calculator","arguments":"{\"expression\":\"2+2\"}"}}]`
			io.WriteString(w, completionBody("", "tool_calls", calls))
			return
		}
		io.WriteString(w, completionBody("the answer is 4", "stop", ""))
	}, Config{})

	resp, err := c.Invoke(context.Background(), types.Text("what is 2+2?"), WithTools(tools.Calculator()))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if requests.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", requests.Load())
	}
	if !sawToolResult.Load() {
		t.Fatalf("tool result never sent back to the server")
	}
	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "calculator" {
		t.Fatalf("unexpected tool calls: %+v", calls)
	}
	if resp.Text() != "the answer is 4" {
		t.Fatalf("unexpected final text: %q", resp.Text())
	}
	var foundResult bool
	for _, block := range resp.Content {
		if res, ok := block.(types.ToolResultBlock); ok {
			foundResult = true
			if !strings.Contains(res.Content, `"ok":true`) {
				t.Fatalf("tool result not a success envelope: %s", res.Content)
			}
		}
	}
	if !foundResult {
		t.Fatalf("response content missing tool result block")
	}
}

func TestOpenAIInvokeCache(t *testing.T) {
	var requests atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody("cached answer", "stop", ""))
	}, Config{Cache: cache.NewMemoryCache(time.Minute)})

	ctx := context.Background()
	first, err := c.Invoke(ctx, types.Text("same question"))
	if err != nil {
		t.Fatalf("first Invoke: %v", err)
	}
	second, err := c.Invoke(ctx, types.Text("same question"))
	if err != nil {
		t.Fatalf("second Invoke: %v", err)
	}
	if requests.Load() != 1 {
		t.Fatalf("expected 1 upstream request, got %d", requests.Load())
	}
	if second.Text() != first.Text() {
		t.Fatalf("cached text mismatch: %q vs %q", second.Text(), first.Text())
	}
	if second.PromptTokens != 0 || second.CachedTokens != first.PromptTokens {
		t.Fatalf("cache hit accounting wrong: %+v", second)
	}

	// A different question must miss.
	if _, err := c.Invoke(ctx, types.Text("other question")); err != nil {
		t.Fatalf("third Invoke: %v", err)
	}
	if requests.Load() != 2 {
		t.Fatalf("expected 2 upstream requests, got %d", requests.Load())
	}
}

func TestOpenAIToolRequestsBypassCache(t *testing.T) {
	var requests atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody("done", "stop", ""))
	}, Config{Cache: cache.NewMemoryCache(time.Minute)})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.Invoke(ctx, types.Text("same"), WithTools(tools.Calculator())); err != nil {
			t.Fatalf("Invoke %d: %v", i, err)
		}
	}
	if requests.Load() != 2 {
		t.Fatalf("tool-bearing requests must not be cached, got %d requests", requests.Load())
	}
}

func TestOpenAIStructuredResponse(t *testing.T) {
	var sawSchema atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"json_schema"`) {
			sawSchema.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody(`{"sentiment":"positive","confidence":0.9}`, "stop", ""))
	}, Config{})

	var out struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
	}
	resp, err := c.StructuredResponse(context.Background(), types.Text("rate this"), &out)
	if err != nil {
		t.Fatalf("StructuredResponse: %v", err)
	}
	if !sawSchema.Load() {
		t.Fatalf("request did not carry a json_schema response format")
	}
	if out.Sentiment != "positive" || out.Confidence != 0.9 {
		t.Fatalf("unexpected decoded target: %+v", out)
	}
	if resp.Text() == "" {
		t.Fatalf("structured response text missing")
	}
}

func TestOpenAIStructuredResponseRejectsNonPointer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected")
	}, Config{})
	var out struct{}
	if _, err := c.StructuredResponse(context.Background(), types.Text("x"), out); err == nil {
		t.Fatalf("expected error for non-pointer target")
	}
}

func TestOpenAIConstructionErrors(t *testing.T) {
	if _, err := NewOpenAI(Config{Model: "gpt-4o-mini"}); err == nil {
		t.Fatalf("expected error for missing API key")
	}
	if _, err := NewOpenAI(Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected error for missing model")
	}
	if _, err := NewAzure(Config{APIKey: "k", Model: "dep"}); err == nil {
		t.Fatalf("expected error for missing azure endpoint")
	}
}
