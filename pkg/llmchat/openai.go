package llmchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat-completions endpoint
// (OpenAI itself, or a compatible gateway reached via BaseURL).
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client for apiKey/model. baseURL overrides the
// default OpenAI endpoint when set, letting the same client talk to any
// OpenAI-compatible gateway.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	start := time.Now()
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, toOpenAIMessage(m))
	}
	tools := make([]openai.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Parameters),
			},
		})
	}

	ccReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}
	if req.Temperature != nil {
		ccReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		ccReq.MaxTokens = *req.MaxTokens
	}
	if len(req.StopSequences) > 0 {
		ccReq.Stop = req.StopSequences
	}

	resp, err := c.client.CreateChatCompletion(ctx, ccReq)
	elapsed := time.Since(start)
	if err != nil {
		return ChatResponse{}, classifyOpenAIError(err)
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

func toOpenAIMessage(m ChatMessage) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return msg
}

// classifyOpenAIError maps the SDK's error into the pipeline's error
// vocabulary (spec.md §7) so callers can errors.Is a specific kind
// regardless of which cloud provider answered.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case 408, 504:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
