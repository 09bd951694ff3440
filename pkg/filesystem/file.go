// Package filesystem provides small, dependency-free helpers for path
// existence checks and directory management shared by the scanner, the
// Wolfi index cache, and the content service's blob store.
package filesystem

import (
	"fmt"
	"log/slog"
	"os"
)

var osStat = os.Stat

// FileExists reports whether filename exists and is readable as a regular
// stat target. Errors other than "not exist" are logged and treated as
// absent, matching the teacher's conservative existence-check behavior.
func FileExists(filename string) bool {
	_, err := osStat(filename)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	slog.Warn("error checking file existence", "file", filename, "error", err)
	return false
}

// DirectoryExists ensures dirName exists, creating it (and its parents) if
// necessary. It returns an error instead of exiting the process so library
// callers can decide how to react.
func DirectoryExists(dirName string) error {
	info, err := os.Stat(dirName)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dirName, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dirName, err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dirName, err)
	} else if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory: %s", dirName)
	}
	return nil
}

// HomeDir returns the current user's home directory, falling back to the
// OS temp dir when it cannot be determined (e.g. a minimal container
// without HOME set) rather than aborting the process.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("could not determine home directory, falling back to temp dir", "error", err)
		return os.TempDir()
	}
	return home
}
