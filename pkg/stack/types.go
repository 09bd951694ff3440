package stack

import "fmt"

// Confidence is a detection confidence score clamped to [0, 1].
type Confidence float64

// NewConfidence clamps v into the valid range rather than panicking, since
// callers construct it from LLM-reported floats that can't be trusted.
func NewConfidence(v float64) Confidence {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return Confidence(v)
	}
}

// ConfidenceLabel is the coarse bucket the Validator and per-service LLM
// sub-phases report alongside a raw Confidence.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

// Label buckets the score: >= 0.8 high, >= 0.5 medium, else low.
func (c Confidence) Label() ConfidenceLabel {
	switch {
	case c >= 0.8:
		return ConfidenceHigh
	case c >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (c Confidence) Float64() float64 { return float64(c) }

// DetectionStack is the scanner's per-manifest verdict: which build
// system and language it believes a manifest belongs to, optionally which
// framework, how confident it is, and where the manifest lives.
type DetectionStack struct {
	BuildSystem  BuildSystemId
	Language     LanguageId
	Framework    *FrameworkId
	Confidence   Confidence
	ManifestPath string
}

func (d DetectionStack) String() string {
	fw := "none"
	if d.Framework != nil {
		fw = d.Framework.String()
	}
	return fmt.Sprintf("%s/%s framework=%s confidence=%.2f (%s)",
		d.Language, d.BuildSystem, fw, d.Confidence, d.ManifestPath)
}

// CopySpec maps a build-stage output path to a runtime-image path.
type CopySpec struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// BuildTemplate is a BuildSystem's default recipe for turning a detected
// service into build/runtime instructions, before any LLM or extractor
// refinement is applied.
type BuildTemplate struct {
	BuildBaseImage   string
	RuntimeBaseImage string
	BuildPackages    []string
	RuntimePackages  []string
	BuildCommands    []string
	CachePaths       []string
	Artifacts        []string
	CommonPorts      []int
	Copy             []CopySpec
}

// ProjectType distinguishes a repo with one deployable unit from a
// monorepo with several, independently built, services.
type ProjectType string

const (
	ProjectTypeSingleService ProjectType = "single-service"
	ProjectTypeMonorepo      ProjectType = "monorepo"
)
