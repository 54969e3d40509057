package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newTestGeminiProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	require.NoError(t, err)
	return &GeminiProvider{client: client, model: "gemini-2.5-flash"}
}

func geminiReply(w http.ResponseWriter, text, finish string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}},
			"finishReason": finish,
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 30, "candidatesTokenCount": 12, "totalTokenCount": 42},
	})
}

func TestGeminiProvider_HappyPath(t *testing.T) {
	var (
		path string
		key  string
		body map[string]any
	)
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		geminiReply(w, "Plants make sugar [1].", "STOP")
	})

	resp, err := p.Generate(context.Background(), Request{
		System: "Answer from the excerpts.",
		Messages: []Message{
			{Role: RoleUser, Content: "What is photosynthesis?"},
			{Role: RoleAssistant, Content: "Which chapter?"},
			{Role: RoleUser, Content: "Chapter one."},
		},
		MaxTokens: 128,
	})
	require.NoError(t, err)

	assert.Equal(t, "Plants make sugar [1].", resp.Content)
	assert.Equal(t, "gemini-2.5-flash", resp.Model)
	assert.Equal(t, "end", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 30, OutputTokens: 12, TotalTokens: 42}, resp.Usage)

	assert.True(t, strings.HasSuffix(path, "models/gemini-2.5-flash:generateContent"), path)
	assert.Equal(t, "test-key", key)
	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.Contains(t, body, "systemInstruction")
}

func TestGeminiProvider_MaxTokens(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		geminiReply(w, "Plants", "MAX_TOKENS")
	})

	resp, err := p.Generate(context.Background(), Text("", "hi", 4, 0))
	require.NoError(t, err)
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestGeminiProvider_RateLimit(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		})
	})

	_, err := p.Generate(context.Background(), Text("", "hi", 16, 0))
	var rl *ErrRateLimit
	assert.True(t, errors.As(err, &rl), "got %v", err)
}

func TestGeminiProvider_ServerError(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.Generate(context.Background(), Text("", "hi", 16, 0))
	var unavailable *ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestGeminiProvider_SchemaViolation(t *testing.T) {
	var body map[string]any
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		geminiReply(w, `{"score": 1}`, "STOP")
	})

	req := Text("", "grade", 64, 0)
	req.Schema = gradeSchema
	_, err := p.Generate(context.Background(), req)

	var invalid *ErrInvalidResponse
	assert.True(t, errors.As(err, &invalid))
	cfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
}

func TestBuildGeminiSchema(t *testing.T) {
	schema := buildGeminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":  map[string]any{"type": "number"},
			"tier":   map[string]any{"type": "string", "enum": []any{"A", "B", "C"}},
			"levels": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
		},
		"required": []string{"score"},
	})

	assert.Equal(t, genai.TypeObject, schema.Type)
	require.Len(t, schema.Properties, 3)
	assert.Equal(t, genai.TypeNumber, schema.Properties["score"].Type)
	assert.Equal(t, []string{"A", "B", "C"}, schema.Properties["tier"].Enum)
	assert.Equal(t, genai.TypeInteger, schema.Properties["levels"].Items.Type)
	assert.Equal(t, []string{"score"}, schema.Required)
}
