package llmchat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelector_EmbeddedFallback(t *testing.T) {
	s := NewSelector(SelectionConfig{})
	c := s.Select(context.Background())
	_, ok := c.(*EmbeddedClient)
	assert.True(t, ok, "expected embedded client when nothing is configured")
}

func TestSelector_OpenAIWhenCredentialsPresent(t *testing.T) {
	s := NewSelector(SelectionConfig{OpenAIAPIKey: "sk-test"})
	c := s.Select(context.Background())
	_, ok := c.(*OpenAIClient)
	assert.True(t, ok, "expected OpenAI client when OpenAIAPIKey is set")
}

func TestSelector_Memoizes(t *testing.T) {
	s := NewSelector(SelectionConfig{OpenAIAPIKey: "sk-test"})
	first := s.Select(context.Background())
	s.cfg.OpenAIAPIKey = "" // mutate after first pick; should have no effect
	second := s.Select(context.Background())
	assert.Same(t, first, second)
}

func TestEmbeddedClient_AlwaysFails(t *testing.T) {
	c := NewEmbeddedClient()
	_, err := c.Chat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, EmbeddedUnavailable)
}

func TestClientFunc(t *testing.T) {
	var f Client = ClientFunc(func(ctx context.Context, req ChatRequest) (ChatResponse, error) {
		return ChatResponse{Content: "ok"}, nil
	})
	resp, err := f.Chat(context.Background(), ChatRequest{})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}
