// Package contentsvc implements the content-addressed cache-blob store
// (spec.md §4.9): finalized blobs under blobs/sha256/<hex>, in-flight
// writes under ingest/<sanitized-ref>_<uuid>, with a per-ref
// WriteSession state machine driven by STAT/WRITE/COMMIT actions.
//
// The service logic is plain Go behind a containerd-verb-shaped
// interface, served over gRPC by this package's own hand-rolled
// ServiceDesc and JSON codec (rpc.go, server.go); no protobuf encoding
// is involved.
package contentsvc

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
)

// Store owns the on-disk layout of one cache directory.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	s := &Store{root: root}
	for _, dir := range []string{s.blobDir(), s.ingestDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) Root() string      { return s.root }
func (s *Store) blobDir() string   { return filepath.Join(s.root, "blobs", "sha256") }
func (s *Store) ingestDir() string { return filepath.Join(s.root, "ingest") }

// BlobPath is the final content-addressed location for a digest.
func (s *Store) BlobPath(dgst digest.Digest) (string, error) {
	if err := dgst.Validate(); err != nil {
		return "", fmt.Errorf("invalid digest %q: %w", dgst, err)
	}
	if dgst.Algorithm() != digest.SHA256 {
		return "", fmt.Errorf("unsupported digest algorithm %q", dgst.Algorithm())
	}
	return filepath.Join(s.blobDir(), dgst.Hex()), nil
}

// refSanitizeRe collapses everything outside [A-Za-z0-9._-] so a ref
// can never carry path separators into the ingest directory.
var refSanitizeRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// IngestPath returns a fresh temp path for ref: the sanitized ref plus
// a per-session UUID suffix, so two concurrent uploads of the same ref
// never collide.
func (s *Store) IngestPath(ref string) string {
	sanitized := refSanitizeRe.ReplaceAllString(ref, "_")
	if sanitized == "" {
		sanitized = "ref"
	}
	return filepath.Join(s.ingestDir(), sanitized+"_"+uuid.NewString())
}

// HasBlob reports whether a finalized blob exists for dgst.
func (s *Store) HasBlob(dgst digest.Digest) bool {
	path, err := s.BlobPath(dgst)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// BlobInfo describes one finalized blob.
type BlobInfo struct {
	Digest digest.Digest
	Size   int64
}

// Info stats a finalized blob.
func (s *Store) Info(dgst digest.Digest) (BlobInfo, error) {
	path, err := s.BlobPath(dgst)
	if err != nil {
		return BlobInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return BlobInfo{}, fmt.Errorf("blob %s: %w", dgst, err)
	}
	return BlobInfo{Digest: dgst, Size: info.Size()}, nil
}

// Walk visits every finalized blob.
func (s *Store) Walk(visit func(BlobInfo) error) error {
	entries, err := os.ReadDir(s.blobDir())
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isHex(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dgst := digest.NewDigestFromHex(string(digest.SHA256), entry.Name())
		if err := visit(BlobInfo{Digest: dgst, Size: info.Size()}); err != nil {
			return err
		}
	}
	return nil
}

func isHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
