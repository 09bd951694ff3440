package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageAliases(t *testing.T) {
	assert.True(t, ParseLanguageId("golang").Equal(Go))
	assert.True(t, ParseLanguageId("nodejs").Equal(JavaScript))
	assert.True(t, ParseLanguageId("go").Equal(Go))
}

func TestBuildSystemAliases(t *testing.T) {
	assert.True(t, ParseBuildSystemId("go mod").Equal(GoMod))
	assert.True(t, ParseBuildSystemId("gomod").Equal(GoMod))
}

func TestCustomIdEquality(t *testing.T) {
	a := CustomLanguage("Zig")
	b := CustomLanguage("zig")
	assert.True(t, a.Equal(b), "custom ids normalize case before comparing")
	assert.False(t, a.Equal(Go))
}

func TestConfidenceLabel(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, NewConfidence(0.9).Label())
	assert.Equal(t, ConfidenceMedium, NewConfidence(0.6).Label())
	assert.Equal(t, ConfidenceLow, NewConfidence(0.2).Label())
}

func TestConfidenceClamped(t *testing.T) {
	assert.Equal(t, Confidence(1.0), NewConfidence(5.0))
	assert.Equal(t, Confidence(0.0), NewConfidence(-1.0))
}
