package stack

// ManifestPattern is a filename glob a BuildSystem or Language claims,
// with a priority used to break ties when several build systems match
// the same manifest (e.g. package.json alone vs. package.json+yarn.lock).
type ManifestPattern struct {
	Glob     string
	Priority int
}

// PackageRef is one entry from a parsed dependency manifest: a name and,
// when the manifest pins one, a version constraint string.
type PackageRef struct {
	Name    string
	Version string
}

// BuildSystem is the capability-set a concrete build tool (cargo, npm,
// pip, ...) implements. The registry holds one instance per known ID and
// dispatches to it by equality on BuildSystemId, never by type-switching
// on the concrete implementation.
type BuildSystem interface {
	ID() BuildSystemId
	ManifestPatterns() []ManifestPattern

	// Detect reports whether filename/content is a manifest for this
	// build system, and the confidence of that claim.
	Detect(filename string, content []byte) (bool, Confidence)

	// ParseDependencies extracts package references from a manifest's
	// content. Implementations that cannot parse lockfiles simply return
	// the declared (unpinned) dependencies.
	ParseDependencies(content []byte) ([]PackageRef, error)

	// IsWorkspaceRoot reports whether this manifest declares a
	// multi-package workspace, and if so the workspace member globs.
	IsWorkspaceRoot(filename string, content []byte) (bool, []string)

	// DefaultBuildTemplate returns this build system's canonical recipe.
	// wolfiHasPackage is consulted so package lists only name packages
	// the Wolfi index actually carries.
	DefaultBuildTemplate(wolfiHasPackage func(name string) bool) BuildTemplate

	// ExcludedDirs lists directories this build system's tooling creates
	// that the Scanner should never walk into (vendor dirs, build output).
	ExcludedDirs() []string
}

// Language is the capability-set for a programming language: which build
// systems it's compatible with, code-pattern regexes for runtime-surface
// extraction, and any framework-independent defaults.
type Language interface {
	ID() LanguageId

	// CompatibleBuildSystems names the BuildSystemIds this language can
	// pair with, used to cross-reference a manifest detection.
	CompatibleBuildSystems() []BuildSystemId

	// PortPatterns and EnvPatterns are regexes (as strings, compiled
	// by the extractors on each extraction; invalid ones are skipped)
	// used by the deterministic extractors' code-pattern sub-parser.
	PortPatterns() []string
	EnvPatterns() []string

	// DefaultPort and DefaultHealthEndpoint are the FrameworkDefault
	// fallback values used when nothing else was found, or "" / 0 if
	// this language declares none itself.
	DefaultPort() int
	DefaultHealthEndpoint() string
}

// Framework is layered on top of a (Language, BuildSystem) pair and
// refines the detected defaults (a Spring Boot app health-checks
// "/actuator/health" by default, for instance).
type Framework interface {
	ID() FrameworkId
	Language() LanguageId

	// Detect reports whether a manifest's parsed dependencies indicate
	// this framework is in use.
	Detect(deps []PackageRef, fileTree []string) (bool, Confidence)

	DefaultPort() int
	DefaultHealthEndpoint() string
}

// Orchestrator is a monorepo task runner (turborepo, nx, lerna) detected
// from its own config file, distinct from the workspace-defining build
// system underneath it.
type Orchestrator interface {
	ID() OrchestratorId
	ConfigFilenames() []string
	Detect(filename string, content []byte) (bool, Confidence)
}
