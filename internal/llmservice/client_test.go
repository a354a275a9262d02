package llmservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"filing-analyzer/internal/config"

	"github.com/go-playground/assert/v2"
)

type chatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func newTestServer(t *testing.T, status int, reply string, got *chatRequest, auth *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   got.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
}

func TestComplete(t *testing.T) {
	var got chatRequest
	var auth string
	srv := newTestServer(t, http.StatusOK, `{"key_financial_metrics": []}`, &got, &auth)
	defer srv.Close()

	client, err := NewClient(&config.LLMConfig{
		BaseURL: srv.URL,
		Key:     "Bearer secret",
		Model:   "deepseek-chat",
		Timeout: 5 * time.Second,
	})
	assert.Equal(t, nil, err)

	reply, err := client.Complete(context.Background(), "system prompt", "chunk text")
	assert.Equal(t, nil, err)
	assert.Equal(t, `{"key_financial_metrics": []}`, reply)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "deepseek-chat", got.Model)
	assert.Equal(t, false, got.Stream)
	assert.Equal(t, 2, len(got.Messages))
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, true, strings.Contains(string(got.Messages[0].Content), "system prompt"))
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, true, strings.Contains(string(got.Messages[1].Content), "chunk text"))
}

func TestComplete_ServerError(t *testing.T) {
	var got chatRequest
	var auth string
	srv := newTestServer(t, http.StatusTooManyRequests, "", &got, &auth)
	defer srv.Close()

	client, err := NewClient(&config.LLMConfig{BaseURL: srv.URL, Key: "k", Model: "m", Timeout: 5 * time.Second})
	assert.Equal(t, nil, err)

	_, err = client.Complete(context.Background(), "s", "u")
	assert.NotEqual(t, nil, err)
}
