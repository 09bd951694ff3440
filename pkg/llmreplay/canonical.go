// Package llmreplay wraps any pkg/llmchat.Client with the record/replay
// layer spec.md §4.5 requires: canonical-hash-keyed recordings that make
// the LLM deterministic for tests.
package llmreplay

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/containifyci/repostack/pkg/llmchat"
)

// canonicalMessage and canonicalTool are JSON-tagged mirrors of
// llmchat.ChatMessage/ToolSchema with a fixed field order, so two
// structurally-identical requests always canonicalize to byte-identical
// JSON regardless of map iteration order elsewhere in the pipeline.
type canonicalMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []canonicalToolCl `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

type canonicalToolCl struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type canonicalTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type canonicalRequest struct {
	Messages []canonicalMessage `json:"messages"`
	Tools    []canonicalTool    `json:"tools"`
}

// Canonicalize produces the strict-JSON form of req used for hashing:
// messages and tool schemas in declaration order, nothing else (no
// temperature/max_tokens/stop_sequences, which don't affect what the
// model is being asked to do).
func Canonicalize(req llmchat.ChatRequest) []byte {
	c := canonicalRequest{
		Messages: make([]canonicalMessage, 0, len(req.Messages)),
		Tools:    make([]canonicalTool, 0, len(req.Tools)),
	}
	for _, m := range req.Messages {
		cm := canonicalMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, canonicalToolCl{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		c.Messages = append(c.Messages, cm)
	}
	for _, t := range req.Tools {
		c.Tools = append(c.Tools, canonicalTool{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	// Marshal error is impossible here: every field is a plain string,
	// slice, or json.RawMessage already produced by encoding/json.
	data, _ := json.Marshal(c)
	return data
}

// Hash returns the hex-encoded MD5 digest of req's canonical form, the
// key used to name recording files and to look them up.
func Hash(req llmchat.ChatRequest) string {
	sum := md5.Sum(Canonicalize(req))
	return hex.EncodeToString(sum[:])
}
