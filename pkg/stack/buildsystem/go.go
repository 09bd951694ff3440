package buildsystem

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/containifyci/repostack/pkg/stack"
)

type goMod struct{}

func NewGoMod() stack.BuildSystem { return goMod{} }

func (goMod) ID() stack.BuildSystemId { return stack.GoMod }

func (goMod) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "go.mod", Priority: 100}}
}

func (goMod) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename != "go.mod" {
		return false, 0
	}
	if contentHasAny(content, "\nmodule ") || bytes.HasPrefix(content, []byte("module ")) {
		return true, stack.NewConfidence(1.0)
	}
	return true, stack.NewConfidence(0.6)
}

func (goMod) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	var refs []stack.PackageRef
	scanner := bufio.NewScanner(bytes.NewReader(content))
	inBlock := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock || strings.HasPrefix(line, "require "):
			line = strings.TrimPrefix(line, "require ")
			line = strings.TrimSuffix(line, " // indirect")
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				refs = append(refs, stack.PackageRef{Name: fields[0], Version: fields[1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing go.mod: %w", err)
	}
	return refs, nil
}

func (goMod) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	// go.work, not go.mod, declares a multi-module workspace; a plain
	// go.mod with multiple packages is still one build unit.
	return false, nil
}

func (goMod) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	tmpl := stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/go:latest",
		RuntimeBaseImage: "cgr.dev/chainguard/static:latest",
		BuildCommands:    []string{"go build -o /out/app ."},
		CachePaths:       []string{"/root/go/pkg/mod"},
		Artifacts:        []string{"/out/app"},
		Copy:             []stack.CopySpec{{From: "/out/app", To: "/usr/local/bin/app"}},
	}
	return tmpl
}

func (goMod) ExcludedDirs() []string { return []string{"vendor"} }
