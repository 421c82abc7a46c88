package assistant

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotConfigured is returned by an LLM that has no credentials.
var ErrNotConfigured = errors.New("assistant is not configured")

// Turn is one prior message sent back to the model as context.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// ToolSpec declares a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// Request is one model invocation.
type Request struct {
	System    string
	Messages  []Turn
	Tools     []ToolSpec
	MaxTokens int64
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Name  string
	Input json.RawMessage
}

// Response is the model output: free text, tool calls, or both.
type Response struct {
	Text  string
	Calls []ToolCall
}

// LLM generates a response for a request.
type LLM interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
