package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gpsrag/internal/core/rag"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": " A GPS fix needs four satellites. "}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 7, "total_tokens": 17}
}`

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float64 `json:"temperature"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "be precise", body.Messages[0].Content)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, 500, body.MaxTokens)
		assert.InDelta(t, 0.3, body.Temperature, 1e-9)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	client, err := NewClient("test-key", WithBaseURL(srv.URL+"/"), WithModel("gpt-test"))
	require.NoError(t, err)

	answer, err := client.Complete(context.Background(), rag.CompletionRequest{
		SystemPrompt: "be precise",
		UserPrompt:   "How many satellites?",
		MaxTokens:    500,
		Temperature:  0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "A GPS fix needs four satellites.", answer)
}

func TestClient_Complete_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	client, err := NewClient("test-key", WithBaseURL(srv.URL+"/"), WithBackoff(time.Millisecond))
	require.NoError(t, err)

	answer, err := client.Complete(context.Background(), rag.CompletionRequest{UserPrompt: "q"})
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Complete_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := NewClient("test-key", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), rag.CompletionRequest{UserPrompt: "q"})

	var genErr *rag.GenerationError
	assert.ErrorAs(t, err, &genErr)
}
