package contentsvc

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/memory"
	"github.com/opencontainers/go-digest"

	"go.uber.org/zap"
)

// WriteAction is the integer-encoded verb of one Write stream frame,
// matching the containerd content protocol's constants.
type WriteAction int32

const (
	ActionStat   WriteAction = 0
	ActionWrite  WriteAction = 1
	ActionCommit WriteAction = 2
)

// WriteRequest is one frame of a Write stream. An empty Ref is a
// continuation frame of the stream's current session.
type WriteRequest struct {
	Ref      string
	Action   WriteAction
	Data     []byte
	Expected digest.Digest // COMMIT only
}

// WriteResponse reports the session state after one frame.
type WriteResponse struct {
	Offset int64
	Digest digest.Digest // set on COMMIT
}

// WriteSession is the in-flight ingest state for one ref: its temp
// path and the byte offset written so far. Created on the first
// non-empty ref, destroyed by COMMIT (rename into the blob store) or
// ABORT (temp file removed).
type WriteSession struct {
	Ref      string
	TempPath string
	Offset   int64

	file *os.File
}

// Service is the cache-blob store front end: a mutex-protected map of
// ref → WriteSession plus a mutex cell for the last committed digest
// (spec.md §5). Reads stream fixed-size chunks over a bounded channel.
type Service struct {
	store *Store
	log   heuristiclog.Interface

	mu       sync.Mutex
	sessions map[string]*WriteSession

	committedMu   sync.Mutex
	lastCommitted digest.Digest
}

func NewService(store *Store, log heuristiclog.Interface) *Service {
	if log == nil {
		log = heuristiclog.Noop()
	}
	return &Service{
		store:    store,
		log:      log.WithComponent("contentsvc"),
		sessions: map[string]*WriteSession{},
	}
}

// LastCommittedDigest returns the digest of the most recent successful
// COMMIT, or "" if none happened yet.
func (s *Service) LastCommittedDigest() digest.Digest {
	s.committedMu.Lock()
	defer s.committedMu.Unlock()
	return s.lastCommitted
}

func (s *Service) setLastCommitted(dgst digest.Digest) {
	s.committedMu.Lock()
	s.lastCommitted = dgst
	s.committedMu.Unlock()
}

// WriteStream processes one Write stream: frames arrive in message
// order, which is the authoritative order of WRITE/COMMIT for the
// stream's ref; offsets grow monotonically. The first frame with a
// non-empty ref opens the session; later empty-ref frames continue it.
type WriteStream struct {
	svc     *Service
	session *WriteSession
}

func (s *Service) NewWriteStream() *WriteStream {
	return &WriteStream{svc: s}
}

// Handle processes one frame and returns the post-frame state.
func (w *WriteStream) Handle(req WriteRequest) (WriteResponse, error) {
	if w.session == nil && req.Ref != "" {
		sess, err := w.svc.openSession(req.Ref)
		if err != nil {
			return WriteResponse{}, err
		}
		w.session = sess
	}
	if w.session == nil {
		// Continuation frame with no open session: a STAT answers
		// offset zero; a WRITE is ignored and logged (spec.md §4.9).
		if req.Action == ActionWrite {
			w.svc.log.Warn("write frame without an open session ignored",
				zap.Int("bytes", len(req.Data)))
		}
		return WriteResponse{}, nil
	}

	switch req.Action {
	case ActionStat:
		return WriteResponse{Offset: w.session.Offset}, nil
	case ActionWrite:
		return w.svc.write(w.session, req.Data)
	case ActionCommit:
		resp, err := w.svc.commit(w.session, req.Expected)
		w.session = nil
		return resp, err
	default:
		return WriteResponse{}, fmt.Errorf("unknown write action %d", req.Action)
	}
}

// openSession returns the ref's session, creating it on first use. One
// active writer per session: concurrent opens of the same ref share the
// session map entry but the stream serializes its frames.
func (s *Service) openSession(ref string) (*WriteSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[ref]; ok {
		return sess, nil
	}
	path := s.store.IngestPath(ref)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ingest file for %q: %w", ref, err)
	}
	sess := &WriteSession{Ref: ref, TempPath: path, file: f}
	s.sessions[ref] = sess
	s.log.Debug("write session opened", zap.String("ref", ref), zap.String("temp", path))
	return sess, nil
}

func (s *Service) write(sess *WriteSession, data []byte) (WriteResponse, error) {
	n, err := sess.file.Write(data)
	sess.Offset += int64(n)
	if err != nil {
		return WriteResponse{Offset: sess.Offset}, fmt.Errorf("writing %q: %w", sess.Ref, err)
	}
	return WriteResponse{Offset: sess.Offset}, nil
}

// commit finalizes the session: the temp file is fsynced, verified
// against the expected digest, and renamed into the blob store. The
// rename is the atomicity point; on any failure the ingest file is
// removed and the session discarded.
func (s *Service) commit(sess *WriteSession, expected digest.Digest) (WriteResponse, error) {
	s.mu.Lock()
	delete(s.sessions, sess.Ref)
	s.mu.Unlock()

	if err := sess.file.Sync(); err != nil {
		sess.cleanup()
		return WriteResponse{}, fmt.Errorf("syncing %q: %w", sess.Ref, err)
	}
	if err := sess.file.Close(); err != nil {
		sess.cleanup()
		return WriteResponse{}, fmt.Errorf("closing %q: %w", sess.Ref, err)
	}

	actual, err := digestFile(sess.TempPath)
	if err != nil {
		sess.cleanup()
		return WriteResponse{}, err
	}
	if expected != "" && expected != actual {
		sess.cleanup()
		return WriteResponse{}, fmt.Errorf("commit of %q: expected digest %s, got %s", sess.Ref, expected, actual)
	}

	blobPath, err := s.store.BlobPath(actual)
	if err != nil {
		sess.cleanup()
		return WriteResponse{}, err
	}
	if err := os.Rename(sess.TempPath, blobPath); err != nil {
		sess.cleanup()
		return WriteResponse{}, fmt.Errorf("finalizing %q: %w", sess.Ref, err)
	}

	s.setLastCommitted(actual)
	s.log.Info("blob committed",
		zap.String("ref", sess.Ref),
		zap.String("digest", actual.String()),
		zap.Int64("size", sess.Offset))
	return WriteResponse{Offset: sess.Offset, Digest: actual}, nil
}

// Abort terminates the ref's session and removes its ingest file.
func (s *Service) Abort(ref string) error {
	s.mu.Lock()
	sess, ok := s.sessions[ref]
	delete(s.sessions, ref)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active write session for ref %q", ref)
	}
	sess.cleanup()
	s.log.Debug("write session aborted", zap.String("ref", ref))
	return nil
}

// Status reports the ref's current offset.
func (s *Service) Status(ref string) (WriteResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[ref]
	if !ok {
		return WriteResponse{}, fmt.Errorf("no active write session for ref %q", ref)
	}
	return WriteResponse{Offset: sess.Offset}, nil
}

// Info stats a finalized blob.
func (s *Service) Info(dgst digest.Digest) (BlobInfo, error) {
	return s.store.Info(dgst)
}

func (sess *WriteSession) cleanup() {
	if sess.file != nil {
		sess.file.Close()
	}
	os.Remove(sess.TempPath)
}

// ReadChunkSize is the fixed streaming chunk size, shared with the
// buffer pool so every read reuses a pooled chunk.
const ReadChunkSize = memory.ChunkSize

// Read streams a blob's bytes from offset in fixed-size chunks over a
// bounded channel. The reader seeks once and then streams; closing the
// returned channel signals the end. Cancelling ctx stops the stream at
// the next chunk boundary.
func (s *Service) Read(ctx context.Context, dgst digest.Digest, offset int64) (<-chan []byte, error) {
	path, err := s.store.BlobPath(dgst)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", dgst, err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seeking blob %s to %d: %w", dgst, offset, err)
		}
	}

	out := make(chan []byte, 4)
	go func() {
		defer close(out)
		defer f.Close()
		buf := memory.GetChunk()
		defer memory.PutChunk(buf)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					s.log.Warn("blob read failed", zap.String("digest", dgst.String()), zap.Error(err))
				}
				return
			}
		}
	}()
	return out, nil
}

// digestFile hashes a file's content through a chunk borrowed from the
// shared buffer pool.
func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()
	digester := digest.SHA256.Digester()
	buf := memory.GetChunk()
	defer memory.PutChunk(buf)
	if _, err := io.CopyBuffer(digester.Hash(), f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return digester.Digest(), nil
}
