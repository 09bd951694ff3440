package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTraversal is wrapped into every rejection of a path that escapes
// the repo root; tests and the LLM-facing error message both key on the
// "traversal" word.
var ErrTraversal = fmt.Errorf("path traversal detected")

// resolvePath sandboxes p under root: leading slashes are stripped, the
// result is joined under root, canonicalized, and rejected if the
// canonical path escapes the canonical root. Symlinks are resolved for
// the existing portion of the path so a link pointing outside the repo
// cannot smuggle a read.
func resolvePath(root, p string) (string, error) {
	cleaned := strings.TrimLeft(strings.TrimSpace(p), "/")
	joined := filepath.Join(root, filepath.FromSlash(cleaned))

	canon, err := canonicalize(joined)
	if err != nil {
		return "", err
	}
	canonRoot, err := canonicalize(root)
	if err != nil {
		return "", err
	}
	if canon != canonRoot && !strings.HasPrefix(canon, canonRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the repository root", ErrTraversal, p)
	}
	return canon, nil
}

// canonicalize resolves symlinks on the deepest existing ancestor of
// path and re-joins the non-existing remainder, so a not-yet-existing
// path still canonicalizes deterministically.
func canonicalize(path string) (string, error) {
	path = filepath.Clean(path)
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	dir, base := filepath.Split(path)
	dir = filepath.Clean(dir)
	if dir == path {
		return path, nil
	}
	resolvedDir, err := canonicalize(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}
