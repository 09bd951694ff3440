// Package validator implements the Validator (spec.md §4.7): the rule set
// run after submit_detection and before returning from the pipeline.
//
// Grounded on the original's validation/rules.rs functions, generalized
// from one-bail-per-rule into the teacher's pkg/config/validation.go
// aggregate-and-report style (DESIGN.md): every violation is collected,
// none short-circuits the rest, matching spec.md §8's "for every
// permutation of missing required fields... names the offending rule".
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/containifyci/repostack/pkg/ubuild"
	"github.com/containifyci/repostack/pkg/wolfi"
)

// Violation is one failed rule, named so callers (and tests) can assert
// on which rule fired without parsing an error string.
type Violation struct {
	Rule    string
	Message string
}

func (v Violation) String() string { return fmt.Sprintf("%s: %s", v.Rule, v.Message) }

// Result aggregates every violation found. A nil/empty Violations slice
// means the build passed.
type Result struct {
	Violations []Violation
}

func (r Result) OK() bool { return len(r.Violations) == 0 }

// Error renders all violations as a single multi-line error, or nil if
// the build passed — lets callers do `if err := result.Error(); err !=
// nil`.
func (r Result) Error() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		lines[i] = "  " + v.String()
	}
	return fmt.Errorf("validation failed:\n%s", strings.Join(lines, "\n"))
}

// versionLessPackages are base names the Wolfi index only ships with a
// numeric version suffix (e.g. "nodejs" -> "nodejs-22"); a build that
// names the bare base gets a versioned-variant suggestion instead of a
// Levenshtein one.
var versionLessPackages = map[string]bool{
	"nodejs": true, "python": true, "openjdk": true, "ruby": true,
	"php": true, "go": true, "rust": true, "dotnet": true, "elixir": true,
}

// Validate runs every rule against build, consulting index for package
// existence. index may be nil, in which case the package-existence rule
// is skipped entirely (offline / no network access yet).
func Validate(build ubuild.UniversalBuild, index *wolfi.Index) Result {
	var violations []Violation
	violations = append(violations, validateRequiredFields(build)...)
	violations = append(violations, validateNonEmptyCommands(build)...)
	violations = append(violations, validateConfidenceRange(build)...)
	violations = append(violations, validateNonEmptyArtifacts(build)...)
	violations = append(violations, validateCopySpecs(build)...)
	if index != nil {
		violations = append(violations, validateWolfiPackages(build, index)...)
	}
	return Result{Violations: violations}
}

func validateRequiredFields(b ubuild.UniversalBuild) []Violation {
	var v []Violation
	if b.Version == "" {
		v = append(v, Violation{"required-fields", "version cannot be empty"})
	}
	if b.Metadata.Language == "" {
		v = append(v, Violation{"required-fields", "metadata.language cannot be empty"})
	}
	if b.Metadata.BuildSystem == "" {
		v = append(v, Violation{"required-fields", "metadata.build_system cannot be empty"})
	}
	return v
}

func validateNonEmptyCommands(b ubuild.UniversalBuild) []Violation {
	var v []Violation
	if len(b.Build.Commands) == 0 {
		v = append(v, Violation{"non-empty-commands", "build.commands cannot be empty"})
	}
	if len(b.Runtime.Command) == 0 {
		v = append(v, Violation{"non-empty-commands", "runtime.command cannot be empty"})
	}
	return v
}

func validateConfidenceRange(b ubuild.UniversalBuild) []Violation {
	if b.Metadata.Confidence < 0.0 || b.Metadata.Confidence > 1.0 {
		return []Violation{{"confidence-range", fmt.Sprintf("metadata.confidence must be between 0.0 and 1.0, got %v", b.Metadata.Confidence)}}
	}
	return nil
}

func validateNonEmptyArtifacts(b ubuild.UniversalBuild) []Violation {
	if len(b.Build.Artifacts) == 0 {
		return []Violation{{"non-empty-artifacts", "build.artifacts cannot be empty"}}
	}
	return nil
}

func validateCopySpecs(b ubuild.UniversalBuild) []Violation {
	var v []Violation
	if len(b.Runtime.Copy) == 0 {
		v = append(v, Violation{"copy-specs", "runtime.copy cannot be empty"})
		return v
	}
	for i, c := range b.Runtime.Copy {
		if c.From == "" {
			v = append(v, Violation{"copy-specs", fmt.Sprintf("runtime.copy[%d].from cannot be empty", i)})
		}
		if c.To == "" {
			v = append(v, Violation{"copy-specs", fmt.Sprintf("runtime.copy[%d].to cannot be empty", i)})
		}
	}
	return v
}

func validateWolfiPackages(b ubuild.UniversalBuild, index *wolfi.Index) []Violation {
	var v []Violation
	for _, pkg := range b.Build.Packages {
		if msg, bad := checkPackage(pkg, index); bad {
			v = append(v, Violation{"wolfi-packages", "build package: " + msg})
		}
	}
	for _, pkg := range b.Runtime.Packages {
		if msg, bad := checkPackage(pkg, index); bad {
			v = append(v, Violation{"wolfi-packages", "runtime package: " + msg})
		}
	}
	return v
}

// checkPackage returns (message, true) if pkg is not in the index,
// trying a versioned-variant suggestion first for known version-less
// base names, then a Levenshtein-distance-<=3 suggestion, then a bare
// not-found message.
func checkPackage(pkg string, index *wolfi.Index) (string, bool) {
	if index.HasPackage(pkg) {
		return "", false
	}

	if versionLessPackages[pkg] {
		versions := index.GetVersions(pkg)
		if len(versions) > 0 {
			max := 5
			if len(versions) < max {
				max = len(versions)
			}
			suggestions := make([]string, max)
			for i := 0; i < max; i++ {
				suggestions[i] = pkg + "-" + versions[i]
			}
			return fmt.Sprintf("package %q not found. Did you mean: %s?", pkg, strings.Join(suggestions, ", ")), true
		}
	}

	if suggestions := findSimilarPackages(pkg, index, 3); len(suggestions) > 0 {
		return fmt.Sprintf("package %q not found. Did you mean: %s?", pkg, strings.Join(suggestions, ", ")), true
	}

	return fmt.Sprintf("package %q not found in Wolfi repository", pkg), true
}

// findSimilarPackages returns up to maxSuggestions package names within
// Levenshtein distance 3 of pkg, closest first.
func findSimilarPackages(pkg string, index *wolfi.Index, maxSuggestions int) []string {
	all := index.AllPackages()
	type scored struct {
		name string
		dist int
	}
	candidates := make([]scored, 0, len(all))
	for _, name := range all {
		d := levenshtein(pkg, name)
		if d <= 3 {
			candidates = append(candidates, scored{name, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

// levenshtein is the classic single-row dynamic-programming edit
// distance, grounded on the original's use of the strsim crate (no
// third-party Levenshtein library appears anywhere in the example pack,
// so this ~20-line stdlib implementation is the justified exception —
// see DESIGN.md).
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
