// Package ubuild defines UniversalBuild, the terminal artifact of the
// detection pipeline (spec.md §3, §6): a declarative container build
// specification covering a build stage and a runtime stage for one
// deployable service.
//
// It is its own package (not nested in pkg/pipeline) so pkg/validator,
// pkg/tools, and pkg/pipeline can all depend on the schema without a
// cycle: the Tool System's submit_detection tool parses one, the
// Validator checks one, and the Assemble phase produces one.
//
// Grounded on the original Rust schema (original_source/src/output/
// schema.rs): field names, optionality, and defaults are carried over
// verbatim into Go idiom (JSON/YAML tags, omitempty in place of
// skip_serializing_if).
package ubuild

// UniversalBuild is the root artifact: one per deployable service.
type UniversalBuild struct {
	Version  string   `json:"version" yaml:"version"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
	Build    Build    `json:"build" yaml:"build"`
	Runtime  Runtime  `json:"runtime" yaml:"runtime"`
}

// Metadata carries detection provenance alongside the identified stack.
type Metadata struct {
	ProjectName string  `json:"project_name,omitempty" yaml:"project_name,omitempty"`
	Language    string  `json:"language" yaml:"language"`
	BuildSystem string  `json:"build_system" yaml:"build_system"`
	Framework   string  `json:"framework,omitempty" yaml:"framework,omitempty"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
	Reasoning   string  `json:"reasoning" yaml:"reasoning"`
}

// Build is the build-stage configuration: how to compile the service.
type Build struct {
	Base     string            `json:"base" yaml:"base"`
	Packages []string          `json:"packages,omitempty" yaml:"packages,omitempty"`
	Env      map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Commands []string          `json:"commands" yaml:"commands"`
	Context  []string          `json:"context,omitempty" yaml:"context,omitempty"`
	Cache    []string          `json:"cache,omitempty" yaml:"cache,omitempty"`
	Artifacts []string         `json:"artifacts" yaml:"artifacts"`
}

// Runtime is the runtime-stage configuration: the final image contents.
type Runtime struct {
	Base        string            `json:"base" yaml:"base"`
	Packages    []string          `json:"packages,omitempty" yaml:"packages,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Copy        []CopySpec        `json:"copy" yaml:"copy"`
	Command     []string          `json:"command" yaml:"command"`
	Ports       []int             `json:"ports,omitempty" yaml:"ports,omitempty"`
	Healthcheck *Healthcheck      `json:"healthcheck,omitempty" yaml:"healthcheck,omitempty"`
}

// CopySpec maps a build-stage output (relative to the build working dir)
// to an absolute runtime-filesystem path.
type CopySpec struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Healthcheck is a container-native health check, independent of the
// application-level health *endpoint* extractors discover (spec.md §4.3):
// this is the Docker/OCI HEALTHCHECK directive's shape.
type Healthcheck struct {
	Test     []string `json:"test" yaml:"test"`
	Interval string   `json:"interval,omitempty" yaml:"interval,omitempty"`
	Timeout  string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries  int      `json:"retries,omitempty" yaml:"retries,omitempty"`
}

// ConfidenceLevel buckets Metadata.Confidence into the five-tier label
// the original's Display impl uses for human-readable summaries.
func (m Metadata) ConfidenceLevel() string {
	switch {
	case m.Confidence >= 0.9:
		return "Very High"
	case m.Confidence >= 0.8:
		return "High"
	case m.Confidence >= 0.7:
		return "Moderate"
	case m.Confidence >= 0.6:
		return "Low"
	default:
		return "Very Low"
	}
}
