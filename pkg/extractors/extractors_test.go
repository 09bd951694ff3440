package extractors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/containifyci/repostack/pkg/stack/framework"
	"github.com/containifyci/repostack/pkg/stack/language"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestDockerfileBeatsKubernetesOnDuplicatePort(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Dockerfile": "FROM cgr.dev/chainguard/node\nEXPOSE 3000\n",
		"k8s/deployment.yaml": `
apiVersion: apps/v1
kind: Deployment
spec:
  template:
    spec:
      containers:
        - name: web
          ports:
            - containerPort: 3000
`,
	})

	ports := ExtractPorts(Target{RepoRoot: root})
	require.Len(t, ports, 1)
	assert.Equal(t, 3000, ports[0].Port)
	assert.Equal(t, SourceDockerfile, ports[0].Source)
	assert.InDelta(t, 1.0, ports[0].Confidence.Float64(), 0.001)
}

func TestExposeWithProtocolSuffix(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Dockerfile": "FROM cgr.dev/chainguard/go\nEXPOSE 8080/tcp 9090\n",
	})

	ports := ExtractPorts(Target{RepoRoot: root})
	require.Len(t, ports, 2)
	assert.Equal(t, 8080, ports[0].Port)
	assert.Equal(t, 9090, ports[1].Port)
}

func TestNodeAppPortFromEnvFileAndCode(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"server.js":    "const app = require('express')();\napp.listen(3000);\n",
		".env.example": "PORT=3000\nDATABASE_URL=postgres://localhost/dev\n",
	})

	target := Target{RepoRoot: root, Language: language.JavaScript()}
	ports := ExtractPorts(target)
	require.Len(t, ports, 1)
	assert.Equal(t, 3000, ports[0].Port)
	// env-file outranks the code regex, so the retained source is the
	// .env assignment.
	assert.Equal(t, SourceEnvFile, ports[0].Source)

	vars := ExtractEnvVars(target)
	byName := map[string]EnvVarInfo{}
	for _, v := range vars {
		byName[v.Name] = v
	}
	require.Contains(t, byName, "PORT")
	assert.Equal(t, "3000", byName["PORT"].Default)
	assert.Contains(t, byName, "DATABASE_URL")
}

func TestFlaskHealthEndpointAndDefaultPort(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"app.py": `
import os
from flask import Flask
app = Flask(__name__)

@app.route('/health')
def health():
    return 'ok'

app.run(host='0.0.0.0')
`,
	})

	target := Target{RepoRoot: root, Language: language.Python(), Framework: framework.Flask()}

	health := ExtractHealth(target)
	require.Len(t, health, 1)
	assert.Equal(t, "/health", health[0].Path)
	assert.Equal(t, SourceCodePattern, health[0].Source)

	ports := ExtractPorts(target)
	require.Len(t, ports, 1)
	assert.Equal(t, 5000, ports[0].Port)
	assert.Equal(t, SourceFrameworkDefault, ports[0].Source)
	assert.InDelta(t, 0.7, ports[0].Confidence.Float64(), 0.001)
}

func TestComposeEnvironmentListAndMap(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"docker-compose.yml": `
services:
  api:
    image: api
    environment:
      - NODE_ENV=production
      - API_KEY=
  worker:
    image: worker
    environment:
      QUEUE_NAME: jobs
`,
	})

	vars := ExtractEnvVars(Target{RepoRoot: root})
	byName := map[string]EnvVarInfo{}
	for _, v := range vars {
		byName[v.Name] = v
	}
	require.Contains(t, byName, "NODE_ENV")
	assert.Equal(t, "production", byName["NODE_ENV"].Default)
	assert.Contains(t, byName, "API_KEY")
	require.Contains(t, byName, "QUEUE_NAME")
	assert.Equal(t, "jobs", byName["QUEUE_NAME"].Default)
	assert.Equal(t, SourceCompose, byName["NODE_ENV"].Source)
}

func TestKubernetesEnvAndProbe(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"deployment.yaml": `
apiVersion: apps/v1
kind: Deployment
spec:
  template:
    spec:
      containers:
        - name: svc
          env:
            - name: LOG_LEVEL
              value: debug
          livenessProbe:
            httpGet:
              path: /livez
              port: 8080
`,
	})

	target := Target{RepoRoot: root}
	vars := ExtractEnvVars(target)
	require.Len(t, vars, 1)
	assert.Equal(t, "LOG_LEVEL", vars[0].Name)
	assert.Equal(t, "debug", vars[0].Default)
	assert.Equal(t, SourceKubernetes, vars[0].Source)

	health := ExtractHealth(target)
	require.Len(t, health, 1)
	assert.Equal(t, "/livez", health[0].Path)
	assert.Equal(t, SourceKubernetes, health[0].Source)
}

func TestDockerfileHealthcheckCurl(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Dockerfile": `FROM cgr.dev/chainguard/python
HEALTHCHECK --interval=30s CMD curl -f http://localhost:5000/health || exit 1
`,
	})

	health := ExtractHealth(Target{RepoRoot: root})
	require.Len(t, health, 1)
	assert.Equal(t, "/health", health[0].Path)
	assert.Equal(t, SourceDockerfile, health[0].Source)
}

func TestConfigFilePort(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"config.yaml": "server:\n  port: 9000\n",
	})

	ports := ExtractPorts(Target{RepoRoot: root})
	require.Len(t, ports, 1)
	assert.Equal(t, 9000, ports[0].Port)
	assert.Equal(t, SourceConfigFile, ports[0].Source)
}

func TestNoSignalsNoDefaultsYieldsNothing(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"README.md": "# empty\n"})

	target := Target{RepoRoot: root}
	assert.Empty(t, ExtractPorts(target))
	assert.Empty(t, ExtractEnvVars(target))
	assert.Empty(t, ExtractHealth(target))
}
