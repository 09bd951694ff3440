package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuildSystem struct {
	id       BuildSystemId
	patterns []ManifestPattern
	matches  map[string]Confidence
}

func (f fakeBuildSystem) ID() BuildSystemId                 { return f.id }
func (f fakeBuildSystem) ManifestPatterns() []ManifestPattern { return f.patterns }
func (f fakeBuildSystem) Detect(filename string, content []byte) (bool, Confidence) {
	conf, ok := f.matches[filename]
	return ok, conf
}
func (f fakeBuildSystem) ParseDependencies(content []byte) ([]PackageRef, error) { return nil, nil }
func (f fakeBuildSystem) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	return false, nil
}
func (f fakeBuildSystem) DefaultBuildTemplate(func(string) bool) BuildTemplate { return BuildTemplate{} }
func (f fakeBuildSystem) ExcludedDirs() []string                              { return nil }

type fakeLanguage struct {
	id    LanguageId
	compat []BuildSystemId
}

func (f fakeLanguage) ID() LanguageId                        { return f.id }
func (f fakeLanguage) CompatibleBuildSystems() []BuildSystemId { return f.compat }
func (f fakeLanguage) PortPatterns() []string                { return nil }
func (f fakeLanguage) EnvPatterns() []string                 { return nil }
func (f fakeLanguage) DefaultPort() int                      { return 0 }
func (f fakeLanguage) DefaultHealthEndpoint() string         { return "" }

func TestDetectStackTiesByPriority(t *testing.T) {
	low := fakeBuildSystem{
		id:       BuildSystem("low"),
		patterns: []ManifestPattern{{Glob: "package.json", Priority: 10}},
		matches:  map[string]Confidence{"package.json": 0.6},
	}
	high := fakeBuildSystem{
		id:       BuildSystem("high"),
		patterns: []ManifestPattern{{Glob: "package.json", Priority: 90}},
		matches:  map[string]Confidence{"package.json": 0.9},
	}
	lang := fakeLanguage{id: Language("fakelang"), compat: []BuildSystemId{BuildSystem("high")}}

	r := NewRegistry(WithBuildSystem(low), WithBuildSystem(high), WithLanguage(lang))

	got, ok := r.DetectStack("package.json", "package.json", nil)
	require.True(t, ok)
	assert.True(t, got.BuildSystem.Equal(BuildSystem("high")))
	assert.True(t, got.Language.Equal(Language("fakelang")))
}

func TestDetectStackNoMatch(t *testing.T) {
	r := NewRegistry()
	_, ok := r.DetectStack("x", "x", nil)
	assert.False(t, ok)
}

func TestAllExcludedDirsAlwaysIncludesGit(t *testing.T) {
	r := NewRegistry()
	assert.Contains(t, r.AllExcludedDirs(), ".git")
}

func TestParseDependenciesByManifestNoMatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.ParseDependenciesByManifest("nope.txt", nil)
	assert.Error(t, err)
}
