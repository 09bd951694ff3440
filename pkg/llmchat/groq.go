package llmchat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	groq "github.com/conneroisu/groq-go"
	"github.com/conneroisu/groq-go/pkg/tools"
)

// GroqClient is the second cloud provider in client selection order,
// behind an OpenAI-compatible client: Groq's hosted inference is
// frequently the faster/cheaper option when both are configured, but
// OpenAI is named first in spec.md §4.5 ("explicitly-configured cloud
// provider"), so selection tries OpenAI first and Groq second.
type GroqClient struct {
	client *groq.Client
	model  string
}

func NewGroqClient(apiKey, model string) (*GroqClient, error) {
	c, err := groq.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("constructing groq client: %w", err)
	}
	return &GroqClient{client: c, model: model}, nil
}

func (c *GroqClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	start := time.Now()
	messages := make([]groq.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, groq.ChatCompletionMessage{
			Role:       groq.Role(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		})
	}
	groqTools := make([]tools.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		var params tools.FunctionParameters
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &params); err != nil {
				return ChatResponse{}, fmt.Errorf("%w: decoding tool parameters: %v", ErrInvalidResponse, err)
			}
		}
		groqTools = append(groqTools, tools.Tool{
			Type: tools.ToolTypeFunction,
			Function: tools.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	gReq := groq.ChatCompletionRequest{
		Model:    groq.ChatModel(c.model),
		Messages: messages,
		Tools:    groqTools,
	}
	if req.Temperature != nil {
		gReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		gReq.MaxTokens = *req.MaxTokens
	}

	resp, err := c.client.ChatCompletion(ctx, gReq)
	elapsed := time.Since(start)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}
	msg := resp.Choices[0].Message
	out := ChatResponse{Content: msg.Content, Elapsed: elapsed}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		out.ToolCall = &ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		}
	}
	return out, nil
}
