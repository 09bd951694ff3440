// Package buildsystem implements the concrete BuildSystem catalog: one
// small struct per build tool, each satisfying stack.BuildSystem.
package buildsystem

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/containifyci/repostack/pkg/stack"
	"gopkg.in/yaml.v3"
)

// matchGlob matches a bare filename against a manifest-pattern glob.
func matchGlob(glob, filename string) bool {
	ok, err := filepath.Match(glob, filename)
	return err == nil && ok
}

// parseYAMLStringListField reads a top-level YAML string-list field, used
// for pnpm-workspace.yaml's `packages:` and similar single-field configs.
func parseYAMLStringListField(content []byte, field string) []string {
	var doc map[string][]string
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil
	}
	return doc[field]
}

// contentHasAny reports whether content contains any of the needles, used
// for cheap manifest-content sniffing (e.g. a lockfile's header line)
// without a full parse.
func contentHasAny(content []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(content, []byte(n)) {
			return true
		}
	}
	return false
}

// firstNonEmptyLines splits content into trimmed, non-empty lines.
func firstNonEmptyLines(content []byte) []string {
	var out []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// All returns every build system in the catalog, in a fixed registration
// order: lockfile-bearing ecosystems first so their higher manifest-
// pattern priority is meaningful relative to a bare package.json.
func All() []stack.BuildSystem {
	return []stack.BuildSystem{
		NewGoMod(),
		NewCargo(),
		NewBun(),
		NewPnpm(),
		NewYarn(),
		NewNpm(),
		NewPoetry(),
		NewPipenv(),
		NewPip(),
		NewMaven(),
		NewGradle(),
		NewComposer(),
		NewBundler(),
		NewMix(),
		NewCMake(),
		NewMeson(),
		NewMake(),
		NewDotnet(),
	}
}
