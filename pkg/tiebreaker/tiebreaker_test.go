package tiebreaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/mailrules/pkg/rules"
)

func strPtr(s string) *string { return &s }

func testCandidates() []*rules.Rule {
	include := rules.CategoryInclude
	return []*rules.Rule{
		{ID: "r1", Name: "Travel", Instructions: strPtr("Flight and hotel bookings")},
		{
			ID:                 "r2",
			Name:               "Newsletters",
			Operator:           rules.OperatorAnd,
			Instructions:       strPtr("Newsletters I never read"),
			CategoryFilterType: &include,
			CategoryFilters:    []string{"catA"},
		},
	}
}

func testMessage() *rules.Message {
	return &rules.Message{
		ID:      "m1",
		From:    "digest@news.example.com",
		To:      "me@example.com",
		Subject: "Your weekly digest",
		Body:    "This week in news...",
	}
}

// fakeCompleter returns a canned answer and captures the prompt.
type fakeCompleter struct {
	answer   string
	err      error
	messages []ChatMessage
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	f.messages = messages
	return f.answer, f.err
}

func TestLLM_ChooseRule(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		wantRule   string
		wantReason string
	}{
		{"by id", `{"rule": "r2", "reason": "It is a newsletter"}`, "r2", "It is a newsletter"},
		{"by name", `{"rule": "newsletters", "reason": "digest"}`, "r2", "digest"},
		{"code fenced", "```json\n{\"rule\": \"r1\", \"reason\": \"booking\"}\n```", "r1", "booking"},
		{"empty rule", `{"rule": "", "reason": "nothing applies"}`, "", ""},
		{"none", `{"rule": "none", "reason": "nothing applies"}`, "", ""},
		{"unknown rule", `{"rule": "r9", "reason": "made up"}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := NewLLM(&fakeCompleter{answer: tt.answer}, LLMConfig{}, nil)
			choice, err := llm.ChooseRule(context.Background(), testCandidates(), testMessage())
			if err != nil {
				t.Fatalf("ChooseRule() error = %v", err)
			}
			if tt.wantRule == "" {
				if choice != nil {
					t.Errorf("choice = %+v, want nil", choice)
				}
				return
			}
			if choice == nil || choice.Rule.ID != tt.wantRule {
				t.Fatalf("choice = %+v, want %s", choice, tt.wantRule)
			}
			if choice.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", choice.Reason, tt.wantReason)
			}
		})
	}
}

func TestLLM_ChooseRule_Errors(t *testing.T) {
	boom := errors.New("boom")

	llm := NewLLM(&fakeCompleter{err: boom}, LLMConfig{}, nil)
	if _, err := llm.ChooseRule(context.Background(), testCandidates(), testMessage()); !errors.Is(err, boom) {
		t.Errorf("error = %v, want completer error", err)
	}

	llm = NewLLM(&fakeCompleter{answer: "I think the second one"}, LLMConfig{}, nil)
	var parseErr *ParseError
	if _, err := llm.ChooseRule(context.Background(), testCandidates(), testMessage()); !errors.As(err, &parseErr) {
		t.Errorf("error = %v, want ParseError", err)
	}
}

func TestLLM_NoCandidates(t *testing.T) {
	fc := &fakeCompleter{answer: `{"rule":"r1"}`}
	choice, err := NewLLM(fc, LLMConfig{}, nil).ChooseRule(context.Background(), nil, testMessage())
	if err != nil || choice != nil {
		t.Errorf("ChooseRule(nil) = %v, %v", choice, err)
	}
	if fc.messages != nil {
		t.Error("completer must not be called without candidates")
	}
}

func TestLLM_Prompt(t *testing.T) {
	fc := &fakeCompleter{answer: `{"rule":""}`}
	msg := testMessage()
	msg.Body = strings.Repeat("x", 50)

	llm := NewLLM(fc, LLMConfig{MaxBodyChars: 10}, nil)
	if _, err := llm.ChooseRule(context.Background(), testCandidates(), msg); err != nil {
		t.Fatal(err)
	}
	if len(fc.messages) != 2 || fc.messages[0].Role != "system" {
		t.Fatalf("messages = %+v", fc.messages)
	}

	prompt := fc.messages[1].Content
	for _, want := range []string{
		"Subject: Your weekly digest",
		`1. id="r1" name="Travel"`,
		"instructions: Newsletters I never read",
		"sender category include: catA",
		"conditions joined with AND",
		strings.Repeat("x", 10) + "...",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, strings.Repeat("x", 11)) {
		t.Error("body was not truncated")
	}
}

func TestStatic(t *testing.T) {
	ctx := context.Background()

	choice, _ := Static{}.ChooseRule(ctx, testCandidates(), testMessage())
	if choice == nil || choice.Rule.ID != "r1" || choice.Reason == "" {
		t.Errorf("Static{} = %+v, want first candidate", choice)
	}

	choice, _ = Static{RuleID: "r2", Reason: "fixed"}.ChooseRule(ctx, testCandidates(), testMessage())
	if choice == nil || choice.Rule.ID != "r2" || choice.Reason != "fixed" {
		t.Errorf("Static{r2} = %+v", choice)
	}

	choice, _ = Static{RuleID: "r9"}.ChooseRule(ctx, testCandidates(), testMessage())
	if choice != nil {
		t.Errorf("Static{r9} = %+v, want nil", choice)
	}

	choice, _ = None{}.ChooseRule(ctx, testCandidates(), testMessage())
	if choice != nil {
		t.Errorf("None = %+v, want nil", choice)
	}
}

func chatResponseJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":    "chatcmpl-1",
		"model": "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func newTestCompleter(t *testing.T, url string, retries int) *OpenAICompleter {
	t.Helper()
	c, err := NewOpenAICompleter(OpenAIConfig{
		BaseURL:    url + "/v1/",
		Model:      "test-model",
		APIKey:     "sk-test",
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestOpenAICompleter_Complete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponseJSON(`{"rule":"r1","reason":"ok"}`))
	}))
	defer server.Close()

	c := newTestCompleter(t, server.URL, 0)
	content, err := c.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if content != `{"rule":"r1","reason":"ok"}` {
		t.Errorf("content = %q", content)
	}
	if got.Model != "test-model" || len(got.Messages) != 1 || got.N != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestOpenAICompleter_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chatResponseJSON("{}"))
	}))
	defer server.Close()

	c := newTestCompleter(t, server.URL, 2)
	if _, err := c.Complete(context.Background(), nil); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestOpenAICompleter_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retries   int
		wantCalls int32
		check     func(t *testing.T, err error)
	}{
		{
			name:      "client error not retried",
			status:    http.StatusUnauthorized,
			body:      "bad key",
			retries:   2,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var ce *CompletionError
				if !errors.As(err, &ce) || ce.StatusCode != http.StatusUnauthorized {
					t.Errorf("error = %v, want 401 CompletionError", err)
				}
			},
		},
		{
			name:      "server error exhausts retries",
			status:    http.StatusInternalServerError,
			body:      "oops",
			retries:   1,
			wantCalls: 2,
			check: func(t *testing.T, err error) {
				var ce *CompletionError
				if !errors.As(err, &ce) || ce.StatusCode != http.StatusInternalServerError {
					t.Errorf("error = %v, want 500 CompletionError", err)
				}
			},
		},
		{
			name:      "no choices",
			status:    http.StatusOK,
			body:      `{"choices": []}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNoChoices) {
					t.Errorf("error = %v, want ErrNoChoices", err)
				}
			},
		},
		{
			name:      "malformed body",
			status:    http.StatusOK,
			body:      `not json`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("error = %v, want ParseError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestCompleter(t, server.URL, tt.retries).Complete(context.Background(), nil)
			tt.check(t, err)
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestNewOpenAICompleter_Validation(t *testing.T) {
	if _, err := NewOpenAICompleter(OpenAIConfig{Model: "m"}, nil); err == nil {
		t.Error("expected error for missing base url")
	}
	if _, err := NewOpenAICompleter(OpenAIConfig{BaseURL: "http://x"}, nil); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestLLM_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponseJSON(`{"rule":"r2","reason":"Weekly digest newsletter"}`))
	}))
	defer server.Close()

	llm := NewLLM(newTestCompleter(t, server.URL, 0), LLMConfig{}, nil)
	choice, err := llm.ChooseRule(context.Background(), testCandidates(), testMessage())
	if err != nil {
		t.Fatalf("ChooseRule() error = %v", err)
	}
	if choice == nil || choice.Rule.ID != "r2" || choice.Reason != "Weekly digest newsletter" {
		t.Errorf("choice = %+v", choice)
	}
}
