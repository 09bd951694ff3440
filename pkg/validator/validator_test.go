package validator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/containifyci/repostack/pkg/ubuild"
	"github.com/containifyci/repostack/pkg/wolfi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBuild() ubuild.UniversalBuild {
	return ubuild.UniversalBuild{
		Version: "1.0",
		Metadata: ubuild.Metadata{
			Language:    "rust",
			BuildSystem: "cargo",
			Confidence:  0.95,
			Reasoning:   "Cargo.toml with [package]",
		},
		Build: ubuild.Build{
			Base:      "cgr.dev/chainguard/rust:latest",
			Commands:  []string{"cargo build --release"},
			Artifacts: []string{"target/release/foo"},
		},
		Runtime: ubuild.Runtime{
			Base:    "cgr.dev/chainguard/glibc-dynamic:latest",
			Copy:    []ubuild.CopySpec{{From: "target/release/foo", To: "/usr/local/bin/foo"}},
			Command: []string{"/usr/local/bin/foo"},
		},
	}
}

func ruleNames(r Result) []string {
	names := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		names = append(names, v.Rule)
	}
	return names
}

func TestValidBuildPasses(t *testing.T) {
	result := Validate(validBuild(), nil)
	assert.True(t, result.OK())
	assert.NoError(t, result.Error())
}

// Every permutation of the three required fields being empty must name
// the required-fields rule, once per missing field.
func TestRequiredFieldPermutations(t *testing.T) {
	fields := []struct {
		name  string
		clear func(*ubuild.UniversalBuild)
	}{
		{"version", func(b *ubuild.UniversalBuild) { b.Version = "" }},
		{"language", func(b *ubuild.UniversalBuild) { b.Metadata.Language = "" }},
		{"build_system", func(b *ubuild.UniversalBuild) { b.Metadata.BuildSystem = "" }},
	}

	for mask := 1; mask < 1<<len(fields); mask++ {
		var cleared []string
		build := validBuild()
		for i, f := range fields {
			if mask&(1<<i) != 0 {
				f.clear(&build)
				cleared = append(cleared, f.name)
			}
		}
		t.Run(fmt.Sprintf("missing_%s", strings.Join(cleared, "_")), func(t *testing.T) {
			result := Validate(build, nil)
			require.False(t, result.OK())
			names := ruleNames(result)
			count := 0
			for _, n := range names {
				if n == "required-fields" {
					count++
				}
			}
			assert.Equal(t, len(cleared), count,
				"one required-fields violation per cleared field, got %v", result.Violations)
		})
	}
}

func TestEmptyCommandsReported(t *testing.T) {
	build := validBuild()
	build.Build.Commands = nil
	build.Runtime.Command = nil

	result := Validate(build, nil)
	names := ruleNames(result)
	count := 0
	for _, n := range names {
		if n == "non-empty-commands" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestCopySpecRules(t *testing.T) {
	build := validBuild()
	build.Runtime.Copy = nil
	result := Validate(build, nil)
	assert.Contains(t, ruleNames(result), "copy-specs")

	build = validBuild()
	build.Runtime.Copy = []ubuild.CopySpec{{From: "", To: "/usr/local/bin/foo"}, {From: "x", To: ""}}
	result = Validate(build, nil)
	count := 0
	for _, v := range result.Violations {
		if v.Rule == "copy-specs" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestConfidenceOutOfRange(t *testing.T) {
	build := validBuild()
	build.Metadata.Confidence = 1.5
	result := Validate(build, nil)
	assert.Contains(t, ruleNames(result), "confidence-range")
}

func TestAllViolationsAggregatedNotFailFast(t *testing.T) {
	result := Validate(ubuild.UniversalBuild{}, nil)
	names := ruleNames(result)
	assert.Contains(t, names, "required-fields")
	assert.Contains(t, names, "non-empty-commands")
	assert.Contains(t, names, "non-empty-artifacts")
	assert.Contains(t, names, "copy-specs")
}

func testIndex(t *testing.T, names ...string) *wolfi.Index {
	t.Helper()
	return wolfi.FromNames(names)
}

func TestWolfiUnknownPackageSuggestsByDistance(t *testing.T) {
	idx := testIndex(t, "openssl-dev", "zlib-dev", "curl")

	build := validBuild()
	build.Build.Packages = []string{"opnssl-dev"}
	result := Validate(build, idx)
	require.False(t, result.OK())
	found := false
	for _, v := range result.Violations {
		if v.Rule == "wolfi-packages" && strings.Contains(v.Message, "openssl-dev") {
			found = true
		}
	}
	assert.True(t, found, "expected a Levenshtein suggestion, got %v", result.Violations)
}

func TestWolfiVersionLessPackageSuggestsVersionedVariants(t *testing.T) {
	idx := testIndex(t, "nodejs-20", "nodejs-22", "npm")

	build := validBuild()
	build.Runtime.Packages = []string{"nodejs"}
	result := Validate(build, idx)
	require.False(t, result.OK())
	found := false
	for _, v := range result.Violations {
		if v.Rule == "wolfi-packages" && strings.Contains(v.Message, "nodejs-22") {
			found = true
		}
	}
	assert.True(t, found, "expected versioned-variant suggestions, got %v", result.Violations)
}

func TestWolfiKnownPackagePasses(t *testing.T) {
	idx := testIndex(t, "curl")

	build := validBuild()
	build.Runtime.Packages = []string{"curl"}
	assert.True(t, Validate(build, idx).OK())
}
