package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/containifyci/repostack/pkg/llmchat"
)

// askJSON sends one fixed prompt to the LLM with no tools and decodes a
// strict JSON object response into out. Per spec.md §4.6, every
// per-service sub-phase answer must carry a confidence label; the
// caller's out struct embeds it. Malformed JSON fails the phase.
func askJSON(ctx context.Context, client llmchat.Client, system, user string, out any) error {
	if client == nil {
		return fmt.Errorf("no LLM client configured")
	}
	temp := 0.0
	resp, err := client.Chat(ctx, llmchat.ChatRequest{
		Messages: []llmchat.ChatMessage{
			{Role: llmchat.RoleSystem, Content: system},
			{Role: llmchat.RoleUser, Content: user},
		},
		Temperature: &temp,
	})
	if err != nil {
		return err
	}
	payload := extractJSONObject(resp.Content)
	if payload == "" {
		return fmt.Errorf("%w: response carries no JSON object", llmchat.ErrParse)
	}
	decoder := json.NewDecoder(strings.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		// Retry leniently: unknown fields are the model elaborating, not
		// a malformed answer.
		if err2 := json.Unmarshal([]byte(payload), out); err2 != nil {
			return fmt.Errorf("%w: %v", llmchat.ErrParse, err2)
		}
	}
	return nil
}

// extractJSONObject pulls the first top-level {...} out of a response
// that may wrap it in prose or a markdown fence.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// capExcerpt bounds a manifest excerpt for prompt inclusion.
func capExcerpt(content string, max int) string {
	if len(content) <= max {
		return content
	}
	return content[:max] + "\n... [truncated]"
}

// treeSlice renders a depth-limited slice of the file tree for prompt
// inclusion.
func treeSlice(files []string, maxDepth, maxEntries int) string {
	var b strings.Builder
	count := 0
	for _, f := range files {
		if strings.Count(f, "/") >= maxDepth {
			continue
		}
		b.WriteString(f)
		b.WriteString("\n")
		count++
		if count >= maxEntries {
			b.WriteString("... [more files omitted]\n")
			break
		}
	}
	return b.String()
}
