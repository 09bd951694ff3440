package buildsystem

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/containifyci/repostack/pkg/stack"
)

// parseGemLine extracts name/version from a Gemfile `gem "name", "~> 1.0"`
// line; returns ok=false for lines that aren't a gem declaration.
func parseGemLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "gem ") && !strings.HasPrefix(line, "gem\"") && !strings.HasPrefix(line, "gem'") {
		return "", "", false
	}
	fields := strings.SplitN(strings.TrimPrefix(line, "gem"), ",", 2)
	name := strings.Trim(strings.TrimSpace(fields[0]), `'"`)
	if name == "" {
		return "", "", false
	}
	version := ""
	if len(fields) == 2 {
		version = strings.Trim(strings.TrimSpace(fields[1]), `'" `)
	}
	return name, version, true
}

// --- PHP / Composer ---

type composer struct{}

func NewComposer() stack.BuildSystem { return composer{} }
func (composer) ID() stack.BuildSystemId { return stack.Composer }
func (composer) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "composer.lock", Priority: 95}, {Glob: "composer.json", Priority: 80}}
}
func (composer) Detect(filename string, content []byte) (bool, stack.Confidence) {
	switch filename {
	case "composer.lock":
		return true, stack.NewConfidence(1.0)
	case "composer.json":
		return true, stack.NewConfidence(0.9)
	}
	return false, 0
}

type composerJSON struct {
	Require map[string]string `json:"require"`
}

func (composer) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	var c composerJSON
	if err := json.Unmarshal(content, &c); err != nil {
		return nil, nil
	}
	refs := make([]stack.PackageRef, 0, len(c.Require))
	for name, version := range c.Require {
		if name == "php" {
			continue
		}
		refs = append(refs, stack.PackageRef{Name: name, Version: version})
	}
	return refs, nil
}
func (composer) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (composer) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/php:latest-dev",
		RuntimeBaseImage: "cgr.dev/chainguard/php:latest",
		BuildCommands:    []string{"composer install --no-dev --optimize-autoloader"},
		CachePaths:       []string{"/root/.composer/cache"},
		Artifacts:        []string{"."},
		Copy:             []stack.CopySpec{{From: ".", To: "/app"}},
	}
}
func (composer) ExcludedDirs() []string { return []string{"vendor"} }

// --- Ruby / Bundler ---

type bundler struct{}

func NewBundler() stack.BuildSystem { return bundler{} }
func (bundler) ID() stack.BuildSystemId { return stack.Bundler }
func (bundler) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "Gemfile.lock", Priority: 95}, {Glob: "Gemfile", Priority: 80}}
}
func (bundler) Detect(filename string, content []byte) (bool, stack.Confidence) {
	switch filename {
	case "Gemfile.lock":
		return true, stack.NewConfidence(1.0)
	case "Gemfile":
		return true, stack.NewConfidence(0.9)
	}
	return false, 0
}
func (bundler) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	var refs []stack.PackageRef
	for _, line := range firstNonEmptyLines(content) {
		name, version, ok := parseGemLine(line)
		if ok {
			refs = append(refs, stack.PackageRef{Name: name, Version: version})
		}
	}
	return refs, nil
}
func (bundler) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (bundler) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/ruby:latest-dev",
		RuntimeBaseImage: "cgr.dev/chainguard/ruby:latest",
		BuildCommands:    []string{"bundle install --deployment --without development test"},
		CachePaths:       []string{"vendor/bundle"},
		Artifacts:        []string{"."},
		Copy:             []stack.CopySpec{{From: ".", To: "/app"}},
	}
}
func (bundler) ExcludedDirs() []string { return []string{"vendor/bundle", ".bundle"} }

// --- Elixir / Mix ---

type mix struct{}

func NewMix() stack.BuildSystem { return mix{} }
func (mix) ID() stack.BuildSystemId { return stack.Mix }
func (mix) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "mix.lock", Priority: 95}, {Glob: "mix.exs", Priority: 80}}
}
func (mix) Detect(filename string, content []byte) (bool, stack.Confidence) {
	switch filename {
	case "mix.lock":
		return true, stack.NewConfidence(1.0)
	case "mix.exs":
		return true, stack.NewConfidence(0.9)
	}
	return false, 0
}
func (mix) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return nil, nil }
func (mix) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (mix) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/elixir:latest-dev",
		RuntimeBaseImage: "cgr.dev/chainguard/erlang:latest",
		BuildCommands:    []string{"mix deps.get --only prod", "mix release"},
		CachePaths:       []string{"deps", "_build"},
		Artifacts:        []string{"_build/prod/rel"},
		Copy:             []stack.CopySpec{{From: "_build/prod/rel/{{name}}", To: "/app"}},
	}
}
func (mix) ExcludedDirs() []string { return []string{"_build", "deps"} }

// --- Native build tools ---

type cmake struct{}

func NewCMake() stack.BuildSystem { return cmake{} }
func (cmake) ID() stack.BuildSystemId { return stack.CMake }
func (cmake) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "CMakeLists.txt", Priority: 80}}
}
func (cmake) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename == "CMakeLists.txt" {
		return true, stack.NewConfidence(0.95)
	}
	return false, 0
}
func (cmake) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return nil, nil }
func (cmake) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (cmake) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/cmake:latest",
		RuntimeBaseImage: "cgr.dev/chainguard/glibc-dynamic:latest",
		BuildCommands:    []string{"cmake -B build -DCMAKE_BUILD_TYPE=Release", "cmake --build build"},
		CachePaths:       []string{"build"},
		Artifacts:        []string{"build/{{name}}"},
		Copy:             []stack.CopySpec{{From: "build/{{name}}", To: "/usr/local/bin/{{name}}"}},
	}
}
func (cmake) ExcludedDirs() []string { return []string{"build"} }

type meson struct{}

func NewMeson() stack.BuildSystem { return meson{} }
func (meson) ID() stack.BuildSystemId { return stack.Meson }
func (meson) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "meson.build", Priority: 80}}
}
func (meson) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename == "meson.build" {
		return true, stack.NewConfidence(0.95)
	}
	return false, 0
}
func (meson) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return nil, nil }
func (meson) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (meson) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/meson:latest",
		RuntimeBaseImage: "cgr.dev/chainguard/glibc-dynamic:latest",
		BuildCommands:    []string{"meson setup build --buildtype=release", "meson compile -C build"},
		CachePaths:       []string{"build"},
		Artifacts:        []string{"build/{{name}}"},
		Copy:             []stack.CopySpec{{From: "build/{{name}}", To: "/usr/local/bin/{{name}}"}},
	}
}
func (meson) ExcludedDirs() []string { return []string{"build"} }

type gnuMake struct{}

func NewMake() stack.BuildSystem { return gnuMake{} }
func (gnuMake) ID() stack.BuildSystemId { return stack.Make }
func (gnuMake) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "Makefile", Priority: 40}}
}
func (gnuMake) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename == "Makefile" {
		return true, stack.NewConfidence(0.6)
	}
	return false, 0
}
func (gnuMake) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return nil, nil }
func (gnuMake) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (gnuMake) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/wolfi-base:latest",
		RuntimeBaseImage: "cgr.dev/chainguard/wolfi-base:latest",
		BuildCommands:    []string{"make"},
		Artifacts:        []string{"{{name}}"},
		Copy:             []stack.CopySpec{{From: "{{name}}", To: "/usr/local/bin/{{name}}"}},
	}
}
func (gnuMake) ExcludedDirs() []string { return nil }

// --- .NET ---

type dotnet struct{}

func NewDotnet() stack.BuildSystem { return dotnet{} }
func (dotnet) ID() stack.BuildSystemId { return stack.DotnetCLI }
func (dotnet) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{
		{Glob: "*.csproj", Priority: 80},
		{Glob: "*.sln", Priority: 85},
	}
}
func (dotnet) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if matchGlob("*.csproj", filename) {
		return true, stack.NewConfidence(0.9)
	}
	if matchGlob("*.sln", filename) {
		return true, stack.NewConfidence(0.85)
	}
	return false, 0
}
func (dotnet) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return nil, nil }

// solutionProjectRe matches `Project("...") = "Name", "Path\Name.csproj", "{guid}"`
// lines in a .sln file.
var solutionProjectRe = regexp.MustCompile(`Project\("[^"]+"\)\s*=\s*"[^"]+",\s*"([^"]+\.csproj)"`)

func (dotnet) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	if filename == "" || !matchGlob("*.sln", filename) {
		return false, nil
	}
	matches := solutionProjectRe.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return false, nil
	}
	members := make([]string, 0, len(matches))
	for _, m := range matches {
		members = append(members, string(m[1]))
	}
	return true, members
}
func (dotnet) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/dotnet-sdk:latest",
		RuntimeBaseImage: "cgr.dev/chainguard/dotnet-runtime:latest",
		BuildCommands:    []string{"dotnet publish -c Release -o /out"},
		CachePaths:       []string{"/root/.nuget/packages"},
		Artifacts:        []string{"/out"},
		Copy:             []stack.CopySpec{{From: "/out", To: "/app"}},
	}
}
func (dotnet) ExcludedDirs() []string { return []string{"bin", "obj"} }
