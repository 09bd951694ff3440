// Package stack implements the Stack Registry: the single authority that
// maps manifest files and their contents to a DetectionStack, and holds
// the catalog of known languages, build systems, frameworks and
// orchestrators.
//
// Each identifier family (LanguageId, BuildSystemId, FrameworkId,
// OrchestratorId, RuntimeId) is a small value type carrying either one of
// a fixed set of known names or a Custom name discovered by the LLM
// fallback. IDs are compared by equality only, never by exhaustive switch,
// so a Custom variant never requires a code change elsewhere.
package stack

import "strings"

// idKind distinguishes a known catalog entry from an LLM-discovered one.
// Not exported: callers never need to branch on it, only compare IDs.
type idKind uint8

const (
	idKnown idKind = iota
	idCustom
)

// knownID is the shared representation behind every ID family. The
// canonical name is always lowercase-kebab; String returns it verbatim.
type knownID struct {
	kind idKind
	name string
}

func known(name string) knownID  { return knownID{kind: idKnown, name: name} }
func custom(name string) knownID { return knownID{kind: idCustom, name: normalizeCustomName(name)} }

func normalizeCustomName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
}

func (k knownID) String() string { return k.name }
func (k knownID) IsCustom() bool { return k.kind == idCustom }
func (k knownID) Equal(other knownID) bool { return k.kind == other.kind && k.name == other.name }

// aliasLookup resolves alternate on-disk spellings ("go mod") to the
// canonical kebab form ("go-mod") before comparison, per spec: aliases are
// accepted on deserialization.
func aliasLookup(table map[string]string, raw string) string {
	norm := normalizeCustomName(raw)
	if canon, ok := table[norm]; ok {
		return canon
	}
	return norm
}

// LanguageId identifies a programming language (go, rust, python, ...).
type LanguageId struct{ knownID }

func Language(name string) LanguageId { return LanguageId{known(name)} }
func CustomLanguage(name string) LanguageId { return LanguageId{custom(name)} }

func (a LanguageId) Equal(b LanguageId) bool { return a.knownID.Equal(b.knownID) }

var languageAliases = map[string]string{
	"golang":     "go",
	"node":       "javascript",
	"nodejs":     "javascript",
	"ts":         "typescript",
	"c++":        "cpp",
	"c-sharp":    "csharp",
	"c#":         "csharp",
}

func ParseLanguageId(raw string) LanguageId {
	return LanguageId{known(aliasLookup(languageAliases, raw))}
}

var (
	Go         = Language("go")
	Rust       = Language("rust")
	JavaScript = Language("javascript")
	TypeScript = Language("typescript")
	Python     = Language("python")
	Java       = Language("java")
	PHP        = Language("php")
	Ruby       = Language("ruby")
	Elixir     = Language("elixir")
	CSharp     = Language("csharp")
	Cpp        = Language("cpp")
)

// BuildSystemId identifies a dependency/build tool (cargo, npm, pip, ...).
type BuildSystemId struct{ knownID }

func BuildSystem(name string) BuildSystemId { return BuildSystemId{known(name)} }
func CustomBuildSystem(name string) BuildSystemId { return BuildSystemId{custom(name)} }

func (a BuildSystemId) Equal(b BuildSystemId) bool { return a.knownID.Equal(b.knownID) }

var buildSystemAliases = map[string]string{
	"go mod":    "go-mod",
	"gomod":     "go-mod",
	"pip3":      "pip",
	"dotnet":    "dotnet",
}

func ParseBuildSystemId(raw string) BuildSystemId {
	return BuildSystemId{known(aliasLookup(buildSystemAliases, raw))}
}

var (
	GoMod     = BuildSystem("go-mod")
	Cargo     = BuildSystem("cargo")
	Maven     = BuildSystem("maven")
	Gradle    = BuildSystem("gradle")
	Npm       = BuildSystem("npm")
	Yarn      = BuildSystem("yarn")
	Pnpm      = BuildSystem("pnpm")
	Bun       = BuildSystem("bun")
	Pip       = BuildSystem("pip")
	Pipenv    = BuildSystem("pipenv")
	Poetry    = BuildSystem("poetry")
	Composer  = BuildSystem("composer")
	Bundler   = BuildSystem("bundler")
	Mix       = BuildSystem("mix")
	CMake     = BuildSystem("cmake")
	Meson     = BuildSystem("meson")
	Make      = BuildSystem("make")
	DotnetCLI = BuildSystem("dotnet")
)

// FrameworkId identifies a web/application framework layered atop a
// language and build system (nextjs, flask, rails, ...).
type FrameworkId struct{ knownID }

func Framework(name string) FrameworkId { return FrameworkId{known(name)} }
func CustomFramework(name string) FrameworkId { return FrameworkId{custom(name)} }

func (a FrameworkId) Equal(b FrameworkId) bool { return a.knownID.Equal(b.knownID) }

func ParseFrameworkId(raw string) FrameworkId {
	return FrameworkId{known(normalizeCustomName(raw))}
}

var (
	NextJs     = Framework("nextjs")
	Flask      = Framework("flask")
	Django     = Framework("django")
	Express    = Framework("express")
	SpringBoot = Framework("springboot")
	Rails      = Framework("rails")
)

// OrchestratorId identifies a monorepo task orchestrator (turborepo, nx,
// lerna, ...).
type OrchestratorId struct{ knownID }

func Orchestrator(name string) OrchestratorId { return OrchestratorId{known(name)} }
func CustomOrchestrator(name string) OrchestratorId { return OrchestratorId{custom(name)} }

func (a OrchestratorId) Equal(b OrchestratorId) bool { return a.knownID.Equal(b.knownID) }

func ParseOrchestratorId(raw string) OrchestratorId {
	return OrchestratorId{known(normalizeCustomName(raw))}
}

var (
	Turborepo = Orchestrator("turborepo")
	Nx        = Orchestrator("nx")
	Lerna     = Orchestrator("lerna")
)

// RuntimeId identifies the runtime image family a BuildTemplate targets
// (e.g. "alpine", "distroless", "scratch"). Unlike the other families this
// one has no enumerated catalog: BuildTemplates name it freely.
type RuntimeId struct{ knownID }

func Runtime(name string) RuntimeId { return RuntimeId{known(name)} }

func (a RuntimeId) Equal(b RuntimeId) bool { return a.knownID.Equal(b.knownID) }
