// Package catalog wires the concrete language/build-system/framework/
// orchestrator implementations into a ready-to-use stack.Registry. It
// exists as its own package (rather than a method on pkg/stack) so the
// concrete catalog packages can import pkg/stack's interfaces without a
// cycle.
package catalog

import (
	"github.com/containifyci/repostack/pkg/stack"
	"github.com/containifyci/repostack/pkg/stack/buildsystem"
	"github.com/containifyci/repostack/pkg/stack/framework"
	"github.com/containifyci/repostack/pkg/stack/language"
	"github.com/containifyci/repostack/pkg/stack/orchestrator"
)

// NewDefaultRegistry builds a Registry carrying every build system,
// language, framework and orchestrator named in the catalog, plus any
// extra options (typically an LLM fallback wrapper) the caller supplies.
func NewDefaultRegistry(extra ...stack.Option) *stack.Registry {
	opts := make([]stack.Option, 0, 32+len(extra))
	for _, bs := range buildsystem.All() {
		opts = append(opts, stack.WithBuildSystem(bs))
	}
	for _, l := range language.All() {
		opts = append(opts, stack.WithLanguage(l))
	}
	for _, f := range framework.All() {
		opts = append(opts, stack.WithFramework(f))
	}
	for _, o := range orchestrator.All() {
		opts = append(opts, stack.WithOrchestrator(o))
	}
	opts = append(opts, extra...)
	return stack.NewRegistry(opts...)
}
