package extractors

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var envFileNames = []string{
	".env", ".env.example", ".env.sample", ".env.local",
	".env.development", ".env.production",
}

// portVarRe matches PORT-family variable names per spec.md §4.3:
// ^[A-Z_]*PORT[A-Z_]*=N.
var portVarRe = regexp.MustCompile(`^[A-Z_]*PORT[A-Z_]*$`)

type envAssignment struct {
	Name    string
	Default string
}

func envFileAssignments(t Target) []envAssignment {
	var out []envAssignment
	for _, name := range envFileNames {
		data := readServiceFile(t, name)
		if data == nil {
			continue
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			line = strings.TrimPrefix(line, "export ")
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if key == "" || strings.ContainsAny(key, " \t") {
				continue
			}
			value = strings.Trim(strings.TrimSpace(value), `"'`)
			out = append(out, envAssignment{Name: key, Default: value})
		}
	}
	return out
}

func envFileVars(t Target) []EnvVarInfo {
	assignments := envFileAssignments(t)
	out := make([]EnvVarInfo, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, EnvVarInfo{Name: a.Name, Default: a.Default})
	}
	return out
}

func envFilePorts(t Target) []int {
	var ports []int
	for _, a := range envFileAssignments(t) {
		if !portVarRe.MatchString(a.Name) {
			continue
		}
		if p, err := strconv.Atoi(a.Default); err == nil {
			ports = append(ports, p)
		}
	}
	return ports
}
