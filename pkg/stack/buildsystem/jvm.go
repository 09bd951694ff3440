package buildsystem

import (
	"encoding/xml"
	"regexp"

	"github.com/containifyci/repostack/pkg/stack"
)

type maven struct{}

func NewMaven() stack.BuildSystem { return maven{} }
func (maven) ID() stack.BuildSystemId { return stack.Maven }
func (maven) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "pom.xml", Priority: 80}}
}
func (maven) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename != "pom.xml" {
		return false, 0
	}
	if contentHasAny(content, "<project") {
		return true, stack.NewConfidence(0.95)
	}
	return true, stack.NewConfidence(0.6)
}

type mavenPOM struct {
	XMLName    xml.Name `xml:"project"`
	ArtifactID string   `xml:"artifactId"`
	Modules    struct {
		Module []string `xml:"module"`
	} `xml:"modules"`
	Dependencies struct {
		Dependency []struct {
			GroupID    string `xml:"groupId"`
			ArtifactID string `xml:"artifactId"`
			Version    string `xml:"version"`
		} `xml:"dependency"`
	} `xml:"dependencies"`
}

func (maven) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	var pom mavenPOM
	if err := xml.Unmarshal(content, &pom); err != nil {
		return nil, nil
	}
	refs := make([]stack.PackageRef, 0, len(pom.Dependencies.Dependency))
	for _, d := range pom.Dependencies.Dependency {
		refs = append(refs, stack.PackageRef{Name: d.GroupID + ":" + d.ArtifactID, Version: d.Version})
	}
	return refs, nil
}

func (maven) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	if filename != "pom.xml" {
		return false, nil
	}
	var pom mavenPOM
	if err := xml.Unmarshal(content, &pom); err != nil || len(pom.Modules.Module) == 0 {
		return false, nil
	}
	return true, pom.Modules.Module
}

func (maven) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/maven:latest",
		RuntimeBaseImage: "cgr.dev/chainguard/jre:latest",
		BuildCommands:    []string{"mvn -B package -DskipTests"},
		CachePaths:       []string{"/root/.m2"},
		Artifacts:        []string{"target/*.jar"},
		Copy:             []stack.CopySpec{{From: "target/app.jar", To: "/app/app.jar"}},
	}
}

func (maven) ExcludedDirs() []string { return []string{"target", ".mvn"} }

type gradle struct{}

func NewGradle() stack.BuildSystem { return gradle{} }
func (gradle) ID() stack.BuildSystemId { return stack.Gradle }
func (gradle) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{
		{Glob: "build.gradle", Priority: 80},
		{Glob: "build.gradle.kts", Priority: 80},
		{Glob: "settings.gradle", Priority: 85},
		{Glob: "settings.gradle.kts", Priority: 85},
	}
}
func (gradle) Detect(filename string, content []byte) (bool, stack.Confidence) {
	switch filename {
	case "build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts":
		return true, stack.NewConfidence(0.9)
	}
	return false, 0
}

var gradleIncludeRe = regexp.MustCompile(`include\s*\(?\s*['"]([^'"]+)['"]`)
var gradleDepRe = regexp.MustCompile(`(?:implementation|api|compile|testImplementation)\s*[\(']?\s*['"]([^'":]+):([^'":]+):([^'"]+)['"]`)

func (gradle) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	matches := gradleDepRe.FindAllSubmatch(content, -1)
	refs := make([]stack.PackageRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, stack.PackageRef{Name: string(m[1]) + ":" + string(m[2]), Version: string(m[3])})
	}
	return refs, nil
}

func (gradle) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	if filename != "settings.gradle" && filename != "settings.gradle.kts" {
		return false, nil
	}
	matches := gradleIncludeRe.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return false, nil
	}
	members := make([]string, 0, len(matches))
	for _, m := range matches {
		members = append(members, string(m[1]))
	}
	return true, members
}

func (gradle) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/gradle:latest",
		RuntimeBaseImage: "cgr.dev/chainguard/jre:latest",
		BuildCommands:    []string{"gradle build -x test"},
		CachePaths:       []string{"/root/.gradle"},
		Artifacts:        []string{"build/libs/*.jar"},
		Copy:             []stack.CopySpec{{From: "build/libs/app.jar", To: "/app/app.jar"}},
	}
}

func (gradle) ExcludedDirs() []string { return []string{".gradle", "build"} }
