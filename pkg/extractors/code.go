package extractors

import (
	"regexp"
	"strconv"
	"strings"
)

// codeExtensions maps a language id string to the source extensions the
// code-pattern sub-parser reads. Keyed by string rather than LanguageId
// to stay open to Custom languages the LLM discovers.
var codeExtensions = map[string][]string{
	"go":         {".go"},
	"rust":       {".rs"},
	"javascript": {".js", ".mjs", ".cjs"},
	"typescript": {".ts", ".tsx", ".js"},
	"python":     {".py"},
	"java":       {".java", ".properties"},
	"php":        {".php"},
	"ruby":       {".rb"},
	"elixir":     {".ex", ".exs"},
	"csharp":     {".cs"},
	"cpp":        {".cpp", ".cc", ".h", ".hpp"},
}

// healthRouteRe matches common HTTP route registrations for
// health-style paths across languages; the path itself is the capture.
var healthRouteRe = regexp.MustCompile(`["'](/(?:health|healthz|ready|readyz|live|livez|ping|status)[a-z/_-]*)["']`)

// maxCodeFiles bounds how many source files the code-pattern sub-parser
// reads per service; it is a last-ditch deterministic signal, not a
// full static analysis.
const maxCodeFiles = 50

func codeFiles(t Target) []string {
	if t.Language == nil {
		return nil
	}
	exts := codeExtensions[t.Language.ID().String()]
	if len(exts) == 0 {
		return nil
	}
	var out []string
	for _, rel := range listServiceFiles(t, 3) {
		for _, ext := range exts {
			if strings.HasSuffix(rel, ext) {
				out = append(out, rel)
				break
			}
		}
		if len(out) >= maxCodeFiles {
			break
		}
	}
	return out
}

func codePatternPorts(t Target) []int {
	if t.Language == nil {
		return nil
	}
	patterns := compileAll(t.Language.PortPatterns())
	if len(patterns) == 0 {
		return nil
	}
	var ports []int
	for _, rel := range codeFiles(t) {
		data := readServiceFile(t, rel)
		if data == nil {
			continue
		}
		content := string(data)
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(content, -1) {
				if len(m) < 2 {
					continue
				}
				if p, err := strconv.Atoi(m[1]); err == nil {
					ports = append(ports, p)
				}
			}
		}
	}
	return ports
}

func codePatternEnvVars(t Target) []string {
	if t.Language == nil {
		return nil
	}
	patterns := compileAll(t.Language.EnvPatterns())
	if len(patterns) == 0 {
		return nil
	}
	var names []string
	for _, rel := range codeFiles(t) {
		data := readServiceFile(t, rel)
		if data == nil {
			continue
		}
		content := string(data)
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(content, -1) {
				if len(m) >= 2 {
					names = append(names, m[1])
				}
			}
		}
	}
	return names
}

func codePatternHealthEndpoints(t Target) []string {
	var out []string
	for _, rel := range codeFiles(t) {
		data := readServiceFile(t, rel)
		if data == nil {
			continue
		}
		for _, m := range healthRouteRe.FindAllStringSubmatch(string(data), -1) {
			out = append(out, m[1])
		}
	}
	return out
}

// compileAll compiles pattern strings, silently dropping invalid ones:
// a bad catalog regex must not take down the whole extraction.
func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, re)
		}
	}
	return out
}
