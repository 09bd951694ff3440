// Package llmchat is the uniform chat-with-tools abstraction the Stack
// Registry's LLM fallback and the pipeline's per-service sub-phases sit
// on top of. Every concrete provider (OpenAI-compatible, Groq, Ollama, the
// embedded stand-in) implements the same narrow Client interface so the
// rest of the pipeline never branches on which backend answered.
package llmchat

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Role is the speaker of a ChatMessage, matching the de-facto OpenAI-style
// tool-calling wire format named in spec.md §6.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one invocation the model asked for: a call_id it expects
// back on the matching Tool-role response, the tool name, and its
// arguments as raw JSON (validated against the tool's schema by the Tool
// System, not here).
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ChatMessage is one turn of the conversation. ToolCallID is set only on
// Role Tool messages, echoing the ToolCall.ID it answers.
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolSchema describes one callable tool: a JSON Schema for its
// parameters, advertised to the model alongside the message history.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatRequest is the provider-agnostic request shape.
type ChatRequest struct {
	Messages      []ChatMessage
	Tools         []ToolSchema
	Temperature   *float64
	MaxTokens     *int
	StopSequences []string
}

// ChatResponse is the provider-agnostic response shape. ToolCall is nil
// when the model answered in plain text instead of invoking a tool.
type ChatResponse struct {
	Content  string
	ToolCall *ToolCall
	Elapsed  time.Duration
}

// Client is the contract every concrete backend and the record/replay
// wrapper satisfy.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// SubmitDetectionTool is the name of the Tool System's terminal tool
// (spec.md §4.4). It is named here, not in pkg/tools, because
// pkg/llmreplay needs it to detect the end of a recordable session
// without importing the tools package.
const SubmitDetectionTool = "submit_detection"

// Sentinel errors, named per spec.md §7's LLM error vocabulary so callers
// can errors.Is/errors.As against a specific kind.
var (
	ErrTimeout         = errors.New("llm: request timed out")
	ErrNetwork         = errors.New("llm: network error")
	ErrAuth            = errors.New("llm: authentication failed")
	ErrInvalidResponse = errors.New("llm: invalid response")
	ErrParse           = errors.New("llm: could not parse response")

	// EmbeddedUnavailable is returned by the embedded stand-in client:
	// no on-device inference backend is implemented in this pipeline,
	// only the documented seam spec.md §1 calls for.
	EmbeddedUnavailable = errors.New("llm: embedded inference backend is not available in this build")
)

// ClientFunc adapts a plain function to Client, used by tests that stub a
// canned response sequence without standing up a fake HTTP server.
type ClientFunc func(ctx context.Context, req ChatRequest) (ChatResponse, error)

func (f ClientFunc) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return f(ctx, req)
}
