package llmreplay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/containifyci/repostack/pkg/llmchat"
)

// Recording is the on-disk format for one final analysis's tool-calling
// session, per spec.md §4.5: the session-opening request, its terminal
// response, and every response that preceded it in the tool loop.
type Recording struct {
	RequestHash           string              `json:"request_hash"`
	Request               llmchat.ChatRequest `json:"request"`
	Response              llmchat.ChatResponse `json:"response"`
	IntermediateResponses []llmchat.ChatResponse `json:"intermediate_responses"`
	RecordedAt            string              `json:"recorded_at"`
}

// Store persists and loads Recordings as pretty JSON files named
// <hash>.json under dir, matching spec.md's documented recording file
// format.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) path(hash string) string {
	return filepath.Join(s.dir, hash+".json")
}

// Save writes rec to disk, setting RecordedAt to now in RFC-3339.
func (s *Store) Save(rec Recording) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating recordings dir %s: %w", s.dir, err)
	}
	rec.RecordedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling recording: %w", err)
	}
	if err := os.WriteFile(s.path(rec.RequestHash), data, 0o644); err != nil {
		return fmt.Errorf("writing recording %s: %w", rec.RequestHash, err)
	}
	return nil
}

// Load reads the recording for hash, or (_, false, nil) if none exists.
func (s *Store) Load(hash string) (Recording, bool, error) {
	data, err := os.ReadFile(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return Recording{}, false, nil
		}
		return Recording{}, false, fmt.Errorf("reading recording %s: %w", hash, err)
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return Recording{}, false, fmt.Errorf("parsing recording %s: %w", hash, err)
	}
	return rec, true, nil
}

// LoadAll reads every recording under dir, used by the Auto-mode eager
// preload described in spec.md §5 ("Recording cache: mutex-protected
// map, preloaded eagerly").
func (s *Store) LoadAll() (map[string]Recording, error) {
	out := map[string]Recording{}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("listing recordings dir %s: %w", s.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		hash := e.Name()[:len(e.Name())-len(".json")]
		rec, ok, err := s.Load(hash)
		if err != nil {
			return nil, err
		}
		if ok {
			out[hash] = rec
		}
	}
	return out, nil
}
