package llmchat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// StackClassifier adapts a chat Client to the Stack Registry's narrow
// classification question ("what build system is this manifest for?").
// It lives here rather than in pkg/stack so the registry package stays
// free of any LLM dependency; the registry only sees the Classifier
// interface it defines.
type StackClassifier struct {
	Client Client
}

const classifySystemPrompt = "You identify software build technologies from file previews. " +
	"Answer only in strict JSON: {\"name\": \"<technology name>\", \"confidence\": <0.0-1.0>}."

type classifyAnswer struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ClassifyStack asks the model what technology of the given kind the
// preview belongs to, returning the reported name and confidence.
func (c *StackClassifier) ClassifyStack(ctx context.Context, kind, preview string) (string, float64, error) {
	temp := 0.0
	resp, err := c.Client.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: classifySystemPrompt},
			{Role: RoleUser, Content: fmt.Sprintf("Identify the %s this file belongs to:\n\n%s", kind, preview)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", 0, err
	}

	content := resp.Content
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}
	var answer classifyAnswer
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if answer.Name == "" {
		return "", 0, fmt.Errorf("%w: classification carries no name", ErrInvalidResponse)
	}
	return answer.Name, answer.Confidence, nil
}
