// Package framework implements the concrete Framework catalog, detected
// from a manifest's parsed dependencies (or, for config-file-only
// frameworks, the file tree).
package framework

import (
	"strings"

	"github.com/containifyci/repostack/pkg/stack"
)

type def struct {
	id            stack.FrameworkId
	lang          stack.LanguageId
	depNames      []string
	fileMarkers   []string
	defaultPort   int
	defaultHealth string
}

func (d def) ID() stack.FrameworkId   { return d.id }
func (d def) Language() stack.LanguageId { return d.lang }
func (d def) DefaultPort() int        { return d.defaultPort }
func (d def) DefaultHealthEndpoint() string { return d.defaultHealth }

func (d def) Detect(deps []stack.PackageRef, fileTree []string) (bool, stack.Confidence) {
	for _, dep := range deps {
		for _, name := range d.depNames {
			if strings.EqualFold(dep.Name, name) {
				return true, stack.NewConfidence(0.9)
			}
		}
	}
	for _, marker := range d.fileMarkers {
		for _, f := range fileTree {
			if strings.HasSuffix(f, marker) {
				return true, stack.NewConfidence(0.85)
			}
		}
	}
	return false, 0
}

func NextJs() stack.Framework {
	return def{id: stack.NextJs, lang: stack.JavaScript, depNames: []string{"next"}, defaultPort: 3000}
}

func Express() stack.Framework {
	return def{id: stack.Express, lang: stack.JavaScript, depNames: []string{"express"}, defaultPort: 3000}
}

func Flask() stack.Framework {
	return def{id: stack.Flask, lang: stack.Python, depNames: []string{"flask", "Flask"}, defaultPort: 5000}
}

func Django() stack.Framework {
	return def{id: stack.Django, lang: stack.Python, depNames: []string{"django", "Django"}, defaultPort: 8000, defaultHealth: "/health/"}
}

func SpringBoot() stack.Framework {
	return def{id: stack.SpringBoot, lang: stack.Java, depNames: []string{"spring-boot-starter", "spring-boot-starter-web"}, defaultPort: 8080, defaultHealth: "/actuator/health"}
}

func Rails() stack.Framework {
	return def{id: stack.Rails, lang: stack.Ruby, depNames: []string{"rails"}, defaultPort: 3000}
}

// All returns every framework in the catalog.
func All() []stack.Framework {
	return []stack.Framework{NextJs(), Express(), Flask(), Django(), SpringBoot(), Rails()}
}
