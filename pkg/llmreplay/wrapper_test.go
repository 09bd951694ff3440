package llmreplay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/containifyci/repostack/pkg/llmchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listFilesReq() llmchat.ChatRequest {
	return llmchat.ChatRequest{Messages: []llmchat.ChatMessage{{Role: llmchat.RoleUser, Content: "analyze this repo"}}}
}

func stubUnderlying(t *testing.T) (llmchat.Client, *int) {
	calls := 0
	return llmchat.ClientFunc(func(ctx context.Context, req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
		calls++
		switch calls {
		case 1:
			return llmchat.ChatResponse{ToolCall: &llmchat.ToolCall{Name: "list_files", Arguments: json.RawMessage(`{}`)}}, nil
		case 2:
			return llmchat.ChatResponse{ToolCall: &llmchat.ToolCall{Name: "read_file", Arguments: json.RawMessage(`{}`)}}, nil
		default:
			return llmchat.ChatResponse{ToolCall: &llmchat.ToolCall{Name: llmchat.SubmitDetectionTool, Arguments: json.RawMessage(`{}`)}}, nil
		}
	}), &calls
}

func TestRecordThenReplay_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	underlying, calls := stubUnderlying(t)

	rec, err := New(ModeRecord, underlying, dir)
	require.NoError(t, err)

	req := listFilesReq()
	var lastResp llmchat.ChatResponse
	for i := 0; i < 3; i++ {
		resp, err := rec.Chat(context.Background(), req)
		require.NoError(t, err)
		lastResp = resp
		// Simulate the orchestrator appending a tool-response message for
		// the next iteration's request (contents don't matter for this
		// test beyond making each step's request distinct).
		req.Messages = append(req.Messages, llmchat.ChatMessage{Role: llmchat.RoleTool, Content: "result", ToolCallID: "x"})
	}
	assert.Equal(t, llmchat.SubmitDetectionTool, lastResp.ToolCall.Name)
	assert.Equal(t, 3, *calls)

	// Replay the exact same opening request and expect the identical
	// sequence of responses without touching the underlying client.
	replayUnderlying := llmchat.ClientFunc(func(ctx context.Context, req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
		t.Fatal("replay must never call the underlying client")
		return llmchat.ChatResponse{}, nil
	})
	replay, err := New(ModeReplay, replayUnderlying, dir)
	require.NoError(t, err)

	r1, err := replay.Chat(context.Background(), listFilesReq())
	require.NoError(t, err)
	assert.Equal(t, "list_files", r1.ToolCall.Name)

	r2, err := replay.Chat(context.Background(), llmchat.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "read_file", r2.ToolCall.Name)

	r3, err := replay.Chat(context.Background(), llmchat.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, llmchat.SubmitDetectionTool, r3.ToolCall.Name)
}

func TestReplay_UnknownRequestErrors(t *testing.T) {
	dir := t.TempDir()
	replay, err := New(ModeReplay, llmchat.ClientFunc(func(ctx context.Context, req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
		t.Fatal("must not call underlying")
		return llmchat.ChatResponse{}, nil
	}), dir)
	require.NoError(t, err)

	_, err = replay.Chat(context.Background(), llmchat.ChatRequest{Messages: []llmchat.ChatMessage{{Role: llmchat.RoleUser, Content: "never recorded"}}})
	require.Error(t, err)
	var notFound *ErrNoRecording
	assert.ErrorAs(t, err, &notFound)
}

func TestCanonicalize_OrderSensitive(t *testing.T) {
	r1 := llmchat.ChatRequest{Messages: []llmchat.ChatMessage{{Role: llmchat.RoleUser, Content: "a"}, {Role: llmchat.RoleAssistant, Content: "b"}}}
	r2 := llmchat.ChatRequest{Messages: []llmchat.ChatMessage{{Role: llmchat.RoleAssistant, Content: "b"}, {Role: llmchat.RoleUser, Content: "a"}}}
	assert.NotEqual(t, Hash(r1), Hash(r2))

	r3 := llmchat.ChatRequest{Messages: []llmchat.ChatMessage{{Role: llmchat.RoleUser, Content: "a"}, {Role: llmchat.RoleAssistant, Content: "b"}}, Temperature: float64Ptr(0.9)}
	assert.Equal(t, Hash(r1), Hash(r3), "temperature must not affect the canonical hash")
}

func float64Ptr(v float64) *float64 { return &v }
