package extractors

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Well-known Kubernetes manifest locations (spec.md §4.3); anything
// else requires the LLM fallback, not a filesystem hunt.
var kubernetesManifestNames = []string{"deployment.yaml", "k8s/deployment.yaml"}

var composeNames = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"}

// kubernetesDocs parses every YAML document in the well-known manifest
// files into generic maps; malformed documents are skipped.
func kubernetesDocs(t Target) []map[string]any {
	var docs []map[string]any
	for _, name := range kubernetesManifestNames {
		data := readServiceFile(t, name)
		if data == nil {
			continue
		}
		for _, raw := range strings.Split(string(data), "\n---") {
			var doc map[string]any
			if err := yaml.Unmarshal([]byte(raw), &doc); err == nil && doc != nil {
				docs = append(docs, doc)
			}
		}
	}
	return docs
}

func kubernetesPorts(t Target) []int {
	var ports []int
	for _, doc := range kubernetesDocs(t) {
		walkYAML(doc, func(key string, value any) {
			if key != "containerPort" && key != "port" {
				return
			}
			if p, ok := asInt(value); ok {
				ports = append(ports, p)
			}
		})
	}
	return ports
}

func kubernetesEnvVars(t Target) []EnvVarInfo {
	var vars []EnvVarInfo
	for _, doc := range kubernetesDocs(t) {
		walkYAML(doc, func(key string, value any) {
			if key != "env" {
				return
			}
			entries, ok := value.([]any)
			if !ok {
				return
			}
			for _, e := range entries {
				entry, ok := e.(map[string]any)
				if !ok {
					continue
				}
				name, _ := entry["name"].(string)
				if name == "" {
					continue
				}
				def, _ := entry["value"].(string)
				vars = append(vars, EnvVarInfo{Name: name, Default: def})
			}
		})
	}
	return vars
}

func kubernetesHealthEndpoints(t Target) []string {
	var out []string
	for _, doc := range kubernetesDocs(t) {
		walkYAML(doc, func(key string, value any) {
			if key != "httpGet" {
				return
			}
			probe, ok := value.(map[string]any)
			if !ok {
				return
			}
			if path, ok := probe["path"].(string); ok && path != "" {
				out = append(out, path)
			}
		})
	}
	return out
}

// composeEnvVars extracts `environment:` entries, both the list form
// (- KEY=value) and the map form (KEY: value).
func composeEnvVars(t Target) []EnvVarInfo {
	var vars []EnvVarInfo
	for _, name := range composeNames {
		data := readServiceFile(t, name)
		if data == nil {
			continue
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			continue
		}
		walkYAML(doc, func(key string, value any) {
			if key != "environment" {
				return
			}
			switch env := value.(type) {
			case []any:
				for _, item := range env {
					s, ok := item.(string)
					if !ok {
						continue
					}
					k, v, _ := strings.Cut(s, "=")
					if k != "" {
						vars = append(vars, EnvVarInfo{Name: k, Default: v})
					}
				}
			case map[string]any:
				for k, v := range env {
					s, _ := v.(string)
					vars = append(vars, EnvVarInfo{Name: k, Default: s})
				}
			}
		})
	}
	return vars
}

// configFilePorts scans YAML/JSON config files in the service dir and up
// to two directory levels below it for `port: N` style keys.
func configFilePorts(t Target) []int {
	var ports []int
	for _, rel := range listServiceFiles(t, 2) {
		if !isConfigFile(rel) {
			continue
		}
		data := readServiceFile(t, rel)
		if data == nil {
			continue
		}
		var doc map[string]any
		// yaml.Unmarshal handles JSON too; config files are one or the
		// other.
		if err := yaml.Unmarshal(data, &doc); err != nil {
			continue
		}
		walkYAML(doc, func(key string, value any) {
			if !strings.EqualFold(key, "port") {
				return
			}
			if p, ok := asInt(value); ok {
				ports = append(ports, p)
			}
		})
	}
	return ports
}

func isConfigFile(rel string) bool {
	base := strings.ToLower(rel)
	for _, skip := range composeNames {
		if base == skip {
			return false
		}
	}
	for _, skip := range kubernetesManifestNames {
		if base == skip {
			return false
		}
	}
	switch {
	case strings.HasSuffix(base, "config.yaml"), strings.HasSuffix(base, "config.yml"),
		strings.HasSuffix(base, "config.json"),
		base == "app.yaml", base == "app.yml", base == "settings.json",
		strings.HasSuffix(base, "application.yaml"), strings.HasSuffix(base, "application.yml"):
		return true
	}
	return false
}

// walkYAML visits every key/value pair in a decoded YAML/JSON document,
// depth-first.
func walkYAML(node any, visit func(key string, value any)) {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			visit(k, v)
			walkYAML(v, visit)
		}
	case []any:
		for _, v := range n {
			walkYAML(v, visit)
		}
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		var p int
		for _, r := range n {
			if r < '0' || r > '9' {
				return 0, false
			}
			p = p*10 + int(r-'0')
		}
		if n == "" {
			return 0, false
		}
		return p, true
	}
	return 0, false
}
