// Package language implements the concrete Language catalog: one struct
// per programming language, each declaring its compatible build systems
// and the code-pattern regexes the deterministic extractors use.
package language

import "github.com/containifyci/repostack/pkg/stack"

type def struct {
	id          stack.LanguageId
	buildSystems []stack.BuildSystemId
	portPatterns []string
	envPatterns  []string
	defaultPort  int
	defaultHealth string
}

func (d def) ID() stack.LanguageId                    { return d.id }
func (d def) CompatibleBuildSystems() []stack.BuildSystemId { return d.buildSystems }
func (d def) PortPatterns() []string                  { return d.portPatterns }
func (d def) EnvPatterns() []string                   { return d.envPatterns }
func (d def) DefaultPort() int                        { return d.defaultPort }
func (d def) DefaultHealthEndpoint() string            { return d.defaultHealth }

func Go() stack.Language {
	return def{
		id:           stack.Go,
		buildSystems: []stack.BuildSystemId{stack.GoMod},
		portPatterns: []string{`:(\d{2,5})["'\x60]?\s*[,)]`, `Addr:\s*"[^"]*:(\d+)"`},
		envPatterns:  []string{`os\.Getenv\("([A-Z_][A-Z0-9_]*)"\)`, `os\.LookupEnv\("([A-Z_][A-Z0-9_]*)"\)`},
	}
}

func Rust() stack.Language {
	return def{
		id:           stack.Rust,
		buildSystems: []stack.BuildSystemId{stack.Cargo},
		portPatterns: []string{`bind\(\s*"[^"]*:(\d+)"`, `\.port\((\d+)\)`},
		envPatterns:  []string{`env::var\("([A-Z_][A-Z0-9_]*)"\)`},
	}
}

func JavaScript() stack.Language {
	return def{
		id:           stack.JavaScript,
		buildSystems: []stack.BuildSystemId{stack.Npm, stack.Yarn, stack.Pnpm, stack.Bun},
		portPatterns: []string{`\.listen\(\s*(\d{2,5})`, `PORT\s*\|\|\s*(\d+)`},
		envPatterns:  []string{`process\.env\.([A-Z_][A-Z0-9_]*)`, `process\.env\[['"]([A-Z_][A-Z0-9_]*)['"]\]`},
		defaultPort:  3000,
	}
}

func TypeScript() stack.Language {
	ts := JavaScript().(def)
	ts.id = stack.TypeScript
	return ts
}

func Python() stack.Language {
	return def{
		id:           stack.Python,
		buildSystems: []stack.BuildSystemId{stack.Pip, stack.Pipenv, stack.Poetry},
		portPatterns: []string{`port\s*=\s*(\d{2,5})`, `\.run\([^)]*port\s*=\s*(\d+)`},
		envPatterns:  []string{`os\.environ\.get\(['"]([A-Z_][A-Z0-9_]*)['"]`, `os\.environ\[['"]([A-Z_][A-Z0-9_]*)['"]\]`, `os\.getenv\(['"]([A-Z_][A-Z0-9_]*)['"]`},
	}
}

func Java() stack.Language {
	return def{
		id:           stack.Java,
		buildSystems: []stack.BuildSystemId{stack.Maven, stack.Gradle},
		portPatterns: []string{`server\.port\s*=\s*(\d+)`, `@Value\("\$\{server\.port:(\d+)\}"\)`},
		envPatterns:  []string{`System\.getenv\("([A-Z_][A-Z0-9_]*)"\)`},
		defaultPort:  8080,
	}
}

func PHP() stack.Language {
	return def{
		id:           stack.PHP,
		buildSystems: []stack.BuildSystemId{stack.Composer},
		envPatterns:  []string{`getenv\('([A-Z_][A-Z0-9_]*)'\)`, `\$_ENV\['([A-Z_][A-Z0-9_]*)'\]`},
		defaultPort:  80,
	}
}

func Ruby() stack.Language {
	return def{
		id:           stack.Ruby,
		buildSystems: []stack.BuildSystemId{stack.Bundler},
		portPatterns: []string{`set\s+:port,\s*(\d+)`},
		envPatterns:  []string{`ENV\[['"]([A-Z_][A-Z0-9_]*)['"]\]`, `ENV\.fetch\(['"]([A-Z_][A-Z0-9_]*)['"]`},
		defaultPort:  4567,
	}
}

func Elixir() stack.Language {
	return def{
		id:           stack.Elixir,
		buildSystems: []stack.BuildSystemId{stack.Mix},
		envPatterns:  []string{`System\.get_env\("([A-Z_][A-Z0-9_]*)"\)`},
		defaultPort:  4000,
	}
}

func CSharp() stack.Language {
	return def{
		id:           stack.CSharp,
		buildSystems: []stack.BuildSystemId{stack.DotnetCLI},
		envPatterns:  []string{`Environment\.GetEnvironmentVariable\("([A-Z_][A-Z0-9_]*)"\)`},
		defaultPort:  5000,
	}
}

func Cpp() stack.Language {
	return def{
		id:           stack.Cpp,
		buildSystems: []stack.BuildSystemId{stack.CMake, stack.Meson, stack.Make},
		envPatterns:  []string{`getenv\("([A-Z_][A-Z0-9_]*)"\)`},
	}
}

// All returns every language in the catalog.
func All() []stack.Language {
	return []stack.Language{
		Go(), Rust(), JavaScript(), TypeScript(), Python(), Java(),
		PHP(), Ruby(), Elixir(), CSharp(), Cpp(),
	}
}
