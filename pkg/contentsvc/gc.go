package contentsvc

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"
)

// Reachability answers whether a blob is referenced by any live image
// index. The reachability definition itself is delegated to the OCI
// index collaborator; the GC only consumes the verdict.
type Reachability interface {
	IsReferenced(dgst digest.Digest) (bool, error)
}

// GC removes unreferenced blobs from the store, serialized against
// other GC runs by an exclusive lock file next to the index. A held
// lock younger than staleLockAge makes the pass a no-op; an older one
// is assumed abandoned and broken.
type GC struct {
	svc   *Service
	reach Reachability
}

const staleLockAge = 10 * time.Minute

func NewGC(svc *Service, reach Reachability) *GC {
	return &GC{svc: svc, reach: reach}
}

func (g *GC) lockPath() string {
	return filepath.Join(g.svc.store.Root(), "index.lock")
}

func (g *GC) acquireLock() (func(), error) {
	path := g.lockPath()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquiring gc lock: %w", err)
		}
		info, statErr := os.Stat(path)
		if statErr == nil && time.Since(info.ModTime()) < staleLockAge {
			return nil, fmt.Errorf("gc lock %s held by another process", path)
		}
		// Abandoned lock: break it and retry once.
		os.Remove(path)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("acquiring gc lock: %w", err)
		}
	}
	f.Close()
	return func() { os.Remove(path) }, nil
}

// Run walks the blob index under the lock and removes every blob the
// reachability oracle reports unreferenced. Individual removal failures
// are logged; the pass continues.
func (g *GC) Run() (removed int, err error) {
	release, err := g.acquireLock()
	if err != nil {
		return 0, err
	}
	defer release()

	walkErr := g.svc.store.Walk(func(info BlobInfo) error {
		referenced, err := g.reach.IsReferenced(info.Digest)
		if err != nil {
			return fmt.Errorf("reachability of %s: %w", info.Digest, err)
		}
		if referenced {
			return nil
		}
		path, err := g.svc.store.BlobPath(info.Digest)
		if err != nil {
			return nil
		}
		if err := os.Remove(path); err != nil {
			g.svc.log.Warn("gc could not remove blob",
				zap.String("digest", info.Digest.String()), zap.Error(err))
			return nil
		}
		removed++
		return nil
	})
	if walkErr != nil {
		return removed, walkErr
	}
	g.svc.log.Info("gc pass complete", zap.Int("removed", removed))
	return removed, nil
}
