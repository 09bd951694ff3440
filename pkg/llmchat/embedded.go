package llmchat

import "context"

// EmbeddedClient is the documented seam for the out-of-scope embedded
// inference backend (spec.md §1): hardware detection, model download and
// loading are an external collaborator this pipeline never implements.
// Selecting it is always valid (it's the last resort in client
// selection) but every Chat call fails with EmbeddedUnavailable.
type EmbeddedClient struct{}

func NewEmbeddedClient() *EmbeddedClient { return &EmbeddedClient{} }

func (*EmbeddedClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return ChatResponse{}, EmbeddedUnavailable
}
