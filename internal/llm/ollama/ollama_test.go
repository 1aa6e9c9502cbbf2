package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/llm"
)

func TestChatCompletion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "mistral", req.Model)
		assert.Equal(t, 0.0, req.Options["temperature"])
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaChatResponse{ //nolint:errcheck
			Message:         ollamaChatMessage{Role: "assistant", Content: "hi"},
			DoneReason:      "stop",
			Done:            true,
			PromptEvalCount: 3,
			EvalCount:       2,
		})
	}))
	defer srv.Close()

	zero := 0.0
	p := New(Options{BaseURL: srv.URL, Model: "mistral", Temperature: &zero})
	resp, err := p.ChatCompletion(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}}})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 5, resp.Tokens)
	assert.Equal(t, "ollama/mistral", p.Name())
}

func TestChatCompletionServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).ChatCompletion(context.Background(), llm.ChatRequest{})
	assert.ErrorContains(t, err, "status 500")
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	assert.NoError(t, New(Options{BaseURL: srv.URL}).HealthCheck(context.Background()))
}
