package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-server/pkg/ai"
)

// chatCompletionBody - форма ответа chat completions для тестового сервера.
func chatCompletionBody(content string) map[string]any {
	return map[string]any{
		"id":      "cmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
}

func newOpenRouterTestClient(t *testing.T, serverURL string, maxPromptTokens int) *ai.OpenRouterClient {
	t.Helper()
	client, err := ai.NewOpenRouterClient(ai.OpenRouterConfig{
		APIKey:          "test-key",
		BaseURL:         serverURL + "/v1",
		Model:           "test-model",
		Timeout:         5 * time.Second,
		MaxPromptTokens: maxPromptTokens,
	})
	require.NoError(t, err)
	return client
}

func TestOpenRouterClient_Complete(t *testing.T) {
	t.Run("Successful completion returns first choice content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "test-model", payload["model"])

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"title": "ok"}`))
		}))
		defer server.Close()

		client := newOpenRouterTestClient(t, server.URL, 0)
		got, err := client.Complete(context.Background(), ai.TextRequest{
			System: "You are a storyteller.",
			User:   "Tell a story.",
		})
		require.NoError(t, err)
		assert.Equal(t, `{"title": "ok"}`, got)
	})

	t.Run("Prompt over token budget fails before any network call", func(t *testing.T) {
		// Кодировка tiktoken загружается из сети; без нее проверка бюджета
		// штатно пропускается и тесту нечего проверять
		if _, err := tiktoken.GetEncoding("cl100k_base"); err != nil {
			t.Skipf("tiktoken encoding unavailable: %v", err)
		}

		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		client := newOpenRouterTestClient(t, server.URL, 5)
		_, err := client.Complete(context.Background(), ai.TextRequest{
			System: "You are a very detailed and thorough storyteller for children.",
			User:   strings.Repeat("tell me a very long story ", 20),
		})
		assert.ErrorIs(t, err, ai.ErrBudgetExceeded)
		assert.False(t, called, "budget violation must not reach the provider")
	})

	t.Run("401 maps to auth error kind", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
		}))
		defer server.Close()

		client := newOpenRouterTestClient(t, server.URL, 0)
		_, err := client.Complete(context.Background(), ai.TextRequest{System: "s", User: "u"})

		var provErr *ai.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, ai.KindAuth, provErr.Kind)
		assert.Equal(t, "openrouter", provErr.Provider)
	})

	t.Run("429 maps to rate limited error kind", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_error"}}`))
		}))
		defer server.Close()

		client := newOpenRouterTestClient(t, server.URL, 0)
		_, err := client.Complete(context.Background(), ai.TextRequest{System: "s", User: "u"})

		var provErr *ai.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, ai.KindRateLimited, provErr.Kind)
	})

	t.Run("Empty choices map to malformed kind", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "cmpl-test", "object": "chat.completion", "choices": []}`))
		}))
		defer server.Close()

		client := newOpenRouterTestClient(t, server.URL, 0)
		_, err := client.Complete(context.Background(), ai.TextRequest{System: "s", User: "u"})

		var provErr *ai.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, ai.KindMalformed, provErr.Kind)
	})

	t.Run("Unreachable server maps to unreachable kind", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := newOpenRouterTestClient(t, server.URL, 0)
		_, err := client.Complete(context.Background(), ai.TextRequest{System: "s", User: "u"})

		var provErr *ai.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, ai.KindUnreachable, provErr.Kind)
	})

	t.Run("Missing API key fails construction", func(t *testing.T) {
		_, err := ai.NewOpenRouterClient(ai.OpenRouterConfig{})
		assert.Error(t, err)
	})
}
