package stack

import "path/filepath"

// matchGlob matches a manifest-pattern glob against a bare filename. Glob
// errors (malformed pattern) are treated as no-match rather than
// propagated, since patterns are fixed at registration time, never
// user input.
func matchGlob(glob, filename string) bool {
	ok, err := filepath.Match(glob, filename)
	return err == nil && ok
}
