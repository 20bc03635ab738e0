package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}

func TestClientComplete(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotModel = payload.Model
		require.Len(t, payload.Messages, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionResponse("  {\"overall_score\": 50}  "))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "llama-3.1-8b-instant",
	}, nil)
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "score this resume")
	require.NoError(t, err)
	assert.Equal(t, `{"overall_score": 50}`, out)
	assert.Equal(t, "llama-3.1-8b-instant", gotModel)
}

func TestClientCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "object": "chat.completion", "choices": []any{}})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
