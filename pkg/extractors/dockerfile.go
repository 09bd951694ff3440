package extractors

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	exposeRe = regexp.MustCompile(`(?im)^\s*EXPOSE\s+(.+)$`)
	// HEALTHCHECK ... curl ... http://host:port/path — the path is the
	// signal; host and port are whatever the container maps.
	healthcheckCurlRe = regexp.MustCompile(`(?im)^\s*HEALTHCHECK\b[^\n]*?curl[^\n]*?https?://[^/\s]+(/[^\s"']*)`)
)

var dockerfileNames = []string{"Dockerfile", "dockerfile", "Containerfile"}

func dockerfileContent(t Target) []byte {
	for _, name := range dockerfileNames {
		if data := readServiceFile(t, name); data != nil {
			return data
		}
	}
	return nil
}

func dockerfilePorts(t Target) []int {
	data := dockerfileContent(t)
	if data == nil {
		return nil
	}
	var ports []int
	for _, m := range exposeRe.FindAllStringSubmatch(string(data), -1) {
		for _, field := range strings.Fields(m[1]) {
			// EXPOSE 8080/tcp and EXPOSE 8080 are both valid.
			field = strings.SplitN(field, "/", 2)[0]
			if p, err := strconv.Atoi(field); err == nil {
				ports = append(ports, p)
			}
		}
	}
	return ports
}

func dockerfileHealthEndpoints(t Target) []string {
	data := dockerfileContent(t)
	if data == nil {
		return nil
	}
	var out []string
	for _, m := range healthcheckCurlRe.FindAllStringSubmatch(string(data), -1) {
		out = append(out, m[1])
	}
	return out
}
