package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_HappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_test",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"score": 2, "confidence": 0.8}`},
			},
			"model":       "claude-sonnet-4-5",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
		})
	}))
	t.Cleanup(server.Close)

	client := anthropic.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(server.URL))
	p := &AnthropicProvider{client: &client, model: "claude-sonnet-4-5"}

	req := Text("You grade answers.", "Grade this.", 256, 0)
	req.Schema = gradeSchema
	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, `{"score": 2, "confidence": 0.8}`, resp.Content)
	assert.Equal(t, 80, resp.Usage.TotalTokens)
	assert.Equal(t, "end", resp.StopReason)
}
