// Package llm wraps the chat-completion and embedding providers used for
// homework generation, AI grading and the textbook assistant.
package llm

import (
	"context"
	"encoding/json"
)

// Provider is the core abstraction for LLM interaction.
type Provider interface {
	// Generate sends a prompt and returns the model output. When the request
	// carries a Schema, providers use their native structured output and the
	// content is validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies the schema, e.g. "answer-grade".
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Content is the raw text returned by the model. With a Schema it is
	// validated JSON.
	Content    string
	Usage      Usage
	Model      string
	StopReason string
}

// JSON returns the content as a raw JSON message.
func (r *Response) JSON() json.RawMessage {
	return json.RawMessage(r.Content)
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Text is a convenience for single-turn prompts.
func Text(system, prompt string, maxTokens int, temperature float64) Request {
	return Request{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}
