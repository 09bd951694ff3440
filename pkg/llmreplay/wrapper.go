package llmreplay

import (
	"context"
	"fmt"
	"sync"

	"github.com/containifyci/repostack/pkg/llmchat"
)

// Mode selects how the wrapper behaves, per spec.md §4.5.
type Mode string

const (
	ModeRecord Mode = "record"
	ModeReplay Mode = "replay"
	ModeAuto   Mode = "auto"
)

// Client wraps an underlying llmchat.Client with record/replay. One
// Client is scoped to a single analysis's tool-calling session: it
// remembers the session's opening request and accumulates intermediate
// responses until a terminal submit_detection call closes it, exactly
// the unit spec.md calls "one recording per final analysis".
//
// A fresh Client must be constructed per analysis; it is not safe to
// reuse across independent analyses, since session state (firstRequest,
// accumulated responses, replay cursor) would otherwise leak between them.
type Client struct {
	mode       Mode
	underlying llmchat.Client
	store      *Store

	mu           sync.Mutex
	cache        map[string]Recording // preloaded for Auto/Replay
	firstReq     *llmchat.ChatRequest
	firstHash    string
	accumulated  []llmchat.ChatResponse
	replaySess   *Recording
	replayCursor int
}

// New constructs a record/replay wrapper. For Replay and Auto modes the
// recordings directory is preloaded eagerly into an in-memory cache.
func New(mode Mode, underlying llmchat.Client, recordingsDir string) (*Client, error) {
	c := &Client{mode: mode, underlying: underlying, store: NewStore(recordingsDir)}
	if mode == ModeReplay || mode == ModeAuto {
		cache, err := c.store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("preloading recordings: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// ErrNoRecording is returned in Replay mode when no stored session
// matches the request's canonical hash.
type ErrNoRecording struct{ Hash string }

func (e *ErrNoRecording) Error() string {
	return fmt.Sprintf("llmreplay: no recording for request hash %s (replay mode never calls the underlying client)", e.Hash)
}

func (c *Client) Chat(ctx context.Context, req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case ModeReplay:
		return c.replayStep(req)
	case ModeRecord:
		return c.recordStep(ctx, req)
	default: // ModeAuto
		return c.autoStep(ctx, req)
	}
}

// replayStep serves the next response for an in-progress session, or
// opens a new session by hash lookup if none is active.
func (c *Client) replayStep(req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
	if c.replaySess == nil {
		hash := Hash(req)
		rec, ok := c.cache[hash]
		if !ok {
			return llmchat.ChatResponse{}, &ErrNoRecording{Hash: hash}
		}
		c.replaySess = &rec
		c.replayCursor = 0
	}
	return c.nextReplayResponse(), nil
}

func (c *Client) nextReplayResponse() llmchat.ChatResponse {
	sess := c.replaySess
	if c.replayCursor < len(sess.IntermediateResponses) {
		resp := sess.IntermediateResponses[c.replayCursor]
		c.replayCursor++
		return resp
	}
	// Terminal response reached; reset session state so a subsequent,
	// unrelated analysis using the same Client starts a fresh lookup.
	resp := sess.Response
	c.replaySess = nil
	c.replayCursor = 0
	return resp
}

// recordStep always calls the underlying client, accumulating responses
// until a terminal submit_detection call, at which point the whole
// session is persisted.
func (c *Client) recordStep(ctx context.Context, req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
	if c.firstReq == nil {
		r := req
		c.firstReq = &r
		c.firstHash = Hash(req)
		c.accumulated = nil
	}

	resp, err := c.underlying.Chat(ctx, req)
	if err != nil {
		return resp, err
	}

	if resp.ToolCall != nil && resp.ToolCall.Name == llmchat.SubmitDetectionTool {
		rec := Recording{
			RequestHash:            c.firstHash,
			Request:                *c.firstReq,
			Response:               resp,
			IntermediateResponses:  append([]llmchat.ChatResponse{}, c.accumulated...),
		}
		if saveErr := c.store.Save(rec); saveErr != nil {
			return resp, fmt.Errorf("persisting recording: %w", saveErr)
		}
		c.firstReq = nil
		c.accumulated = nil
		return resp, nil
	}

	c.accumulated = append(c.accumulated, resp)
	return resp, nil
}

// autoStep replays from cache on a hash hit (for the session's opening
// request) and otherwise falls back to recording a fresh one.
func (c *Client) autoStep(ctx context.Context, req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
	if c.replaySess != nil {
		return c.nextReplayResponse(), nil
	}
	if c.firstReq == nil {
		if rec, ok := c.cache[Hash(req)]; ok {
			c.replaySess = &rec
			c.replayCursor = 0
			return c.nextReplayResponse(), nil
		}
	}
	return c.recordStep(ctx, req)
}
