// File: internal/provider/parse_test.go
package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

func TestParseAnalysisWellFormed(t *testing.T) {
	raw := `Root cause: The integration test dials a database that is not started in CI.
Suggested fixes:
- Start postgres as a pipeline service before the test step
- Gate the integration suite behind an environment check
Confidence: 85
Severity: high`

	result, err := ParseAnalysis("openai", raw)
	require.NoError(t, err)

	assert.Equal(t, "The integration test dials a database that is not started in CI.", result.RootCause)
	assert.Equal(t, []string{
		"Start postgres as a pipeline service before the test step",
		"Gate the integration suite behind an environment check",
	}, result.SuggestedFixes)
	assert.Equal(t, 85, result.Confidence)
	assert.Equal(t, schemas.SeverityHigh, result.Severity)
}

func TestParseAnalysisToleratesMarkdown(t *testing.T) {
	raw := `## Root Cause: **missing dependency in lockfile**

**Suggested Fixes:**
1. Run npm install and commit the lockfile
2) Pin the transitive dependency

**Confidence:** 70
> Severity: low`

	result, err := ParseAnalysis("anthropic", raw)
	require.NoError(t, err)

	assert.Equal(t, "missing dependency in lockfile", result.RootCause)
	assert.Len(t, result.SuggestedFixes, 2)
	assert.Equal(t, 70, result.Confidence)
	assert.Equal(t, schemas.SeverityLow, result.Severity)
}

func TestParseAnalysisDefaults(t *testing.T) {
	result, err := ParseAnalysis("gemini", "Root cause: flaky DNS in the runner network")
	require.NoError(t, err)

	assert.Equal(t, schemas.DefaultConfidence, result.Confidence)
	assert.Equal(t, schemas.SeverityMedium, result.Severity)
	assert.Empty(t, result.SuggestedFixes)
}

func TestParseAnalysisClampsConfidence(t *testing.T) {
	result, err := ParseAnalysis("openai", "Root cause: x\nConfidence: 400")
	require.NoError(t, err)
	assert.Equal(t, 100, result.Confidence)
}

func TestParseAnalysisMissingRootCauseIsMalformed(t *testing.T) {
	_, err := ParseAnalysis("openai", "The build failed because of reasons.\nConfidence: 90")
	require.Error(t, err)

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ClassMalformed, ce.Class)
	assert.Equal(t, "openai", ce.Provider)
	assert.False(t, ce.Retryable())
}

func TestParseAnalysisFixesBlockEndsAtProse(t *testing.T) {
	raw := `Root cause: disk full on the agent
Suggested fixes:
- Prune the docker image cache
These are only suggestions.
- this bullet is not a fix anymore
Confidence: 50`

	result, err := ParseAnalysis("openai", raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Prune the docker image cache"}, result.SuggestedFixes)
}
