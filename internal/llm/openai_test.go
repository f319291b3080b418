package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk-backend/internal/prompts"
	"shopdesk-backend/internal/types"
)

type fakeOpenAI struct {
	srv      *httptest.Server
	requests []openai.ChatCompletionRequest
	reply    string
	status   int
	noChoice bool
}

func newFakeOpenAI(t *testing.T) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{status: http.StatusOK}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.requests = append(f.requests, req)

		w.Header().Set("Content-Type", "application/json")
		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream broke","type":"server_error"}}`))
			return
		}
		resp := openai.ChatCompletionResponse{ID: "chatcmpl-1", Object: "chat.completion", Model: req.Model}
		if !f.noChoice {
			resp.Choices = []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply},
				FinishReason: openai.FinishReasonStop,
			}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOpenAI) client() *Client {
	return New(Config{
		APIKey:  "test-key",
		BaseURL: f.srv.URL + "/v1",
		Style:   prompts.Style{Temperature: 1, TopP: 0.95, MaxTokens: 8192},
	})
}

func TestNew(t *testing.T) {
	t.Run("Should return nil without an API key", func(t *testing.T) {
		assert.Nil(t, New(Config{APIKey: "  "}))
	})

	t.Run("Should default the model", func(t *testing.T) {
		c := New(Config{APIKey: "k"})
		require.NotNil(t, c)
		assert.Equal(t, "gpt-4o-mini", c.model)
	})
}

func TestClient_Generate(t *testing.T) {
	t.Run("Should send history, the message and sampling settings", func(t *testing.T) {
		f := newFakeOpenAI(t)
		f.reply = "Happy to help!"

		history := []types.ChatTurn{
			{Role: types.RoleSystem, Content: "preamble"},
			{Role: types.RoleAssistant, Content: "Hi!"},
			{Role: types.RoleUser, Content: "hello"},
		}
		got, err := f.client().Generate(context.Background(), history, "User: what now?")
		require.NoError(t, err)
		assert.Equal(t, "Happy to help!", got)

		require.Len(t, f.requests, 1)
		req := f.requests[0]
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 8192, req.MaxTokens)
		assert.InDelta(t, 0.95, req.TopP, 0.0001)
		require.Len(t, req.Messages, 4)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[1].Role)
		assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[3].Role)
		assert.Equal(t, "User: what now?", req.Messages[3].Content)
	})

	t.Run("Should fail on an upstream error", func(t *testing.T) {
		f := newFakeOpenAI(t)
		f.status = http.StatusInternalServerError
		_, err := f.client().Generate(context.Background(), nil, "hi")
		assert.ErrorContains(t, err, "chat completion")
	})

	t.Run("Should fail when no choices come back", func(t *testing.T) {
		f := newFakeOpenAI(t)
		f.noChoice = true
		_, err := f.client().Generate(context.Background(), nil, "hi")
		assert.ErrorIs(t, err, errNoChoices)
	})
}

func TestClient_Complete(t *testing.T) {
	t.Run("Should send a single system prompt with a small token budget", func(t *testing.T) {
		f := newFakeOpenAI(t)
		f.reply = "  SWITCH\n"

		got, err := f.client().Complete(context.Background(), "Label this")
		require.NoError(t, err)
		assert.Equal(t, "SWITCH", got)

		require.Len(t, f.requests, 1)
		req := f.requests[0]
		assert.Equal(t, 5, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Equal(t, "Label this", req.Messages[0].Content)
	})
}

func TestConvertMessages(t *testing.T) {
	got := convertMessages([]types.ChatTurn{
		{Role: "", Content: "a"},
		{Role: "bot", Content: "b"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, openai.ChatMessageRoleUser, got[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, got[1].Role)
}
