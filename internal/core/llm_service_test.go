package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFlatText(t *testing.T) {
	text, err := CompletionResult{Text: "  A quiet day, mostly.\n"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "A quiet day, mostly.", text)
}

func TestNormalizeBlocksConcatenatesTextKindsInOrder(t *testing.T) {
	result := CompletionResult{
		Blocks: []ContentBlock{
			{Kind: "text", Text: "Today I "},
			{Kind: "thinking", Text: "ignored"},
			{Kind: "text", Text: "wrote in my journal."},
		},
	}

	text, err := result.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Today I wrote in my journal.", text)
}

func TestNormalizeBlocksWinOverFlatText(t *testing.T) {
	result := CompletionResult{
		Text:   "ignored",
		Blocks: []ContentBlock{{Kind: "text", Text: "kept"}},
	}

	text, err := result.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "kept", text)
}

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *openAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return &openAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		chatModel:    defaultOpenAIChatModel,
		summaryModel: defaultOpenAISummaryModel,
		maxTokens:    1500,
		temperature:  0.7,
	}
}

// The default summary model is chat-only: gpt-4 class models are rejected
// by the library on the legacy completions endpoint before any request is
// made, so the summary prompt must travel as a chat message.
func TestOpenAICompleteUsesChatEndpoint(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Dear diary, today was long."}}]}`)
	})

	result, err := p.complete(context.Background(), "summarize this conversation")
	require.NoError(t, err)

	text, err := result.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Dear diary, today was long.", text)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, defaultOpenAISummaryModel, gotBody.Model)
	assert.Equal(t, 1500, gotBody.MaxTokens)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "summarize this conversation", gotBody.Messages[0].Content)
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := p.complete(context.Background(), "summarize this conversation")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNormalizeBlankResults(t *testing.T) {
	cases := map[string]CompletionResult{
		"empty flat":            {},
		"whitespace flat":       {Text: "  \n\t "},
		"no text blocks":        {Blocks: []ContentBlock{{Kind: "image", Text: "x"}}},
		"whitespace only block": {Blocks: []ContentBlock{{Kind: "text", Text: "   "}}},
	}

	for name, result := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := result.Normalize()
			assert.ErrorIs(t, err, ErrBlankSummary)
		})
	}
}
