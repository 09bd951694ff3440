// Package orchestrator implements the concrete monorepo task-orchestrator
// catalog, detected from a single well-known config file each.
package orchestrator

import "github.com/containifyci/repostack/pkg/stack"

type def struct {
	id       stack.OrchestratorId
	filename string
}

func (d def) ID() stack.OrchestratorId    { return d.id }
func (d def) ConfigFilenames() []string   { return []string{d.filename} }
func (d def) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename == d.filename {
		return true, stack.NewConfidence(0.95)
	}
	return false, 0
}

func Turborepo() stack.Orchestrator { return def{id: stack.Turborepo, filename: "turbo.json"} }
func Nx() stack.Orchestrator        { return def{id: stack.Nx, filename: "nx.json"} }
func Lerna() stack.Orchestrator     { return def{id: stack.Lerna, filename: "lerna.json"} }

// All returns every orchestrator in the catalog.
func All() []stack.Orchestrator {
	return []stack.Orchestrator{Turborepo(), Nx(), Lerna()}
}
