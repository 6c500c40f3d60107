// File: cmd/cmd_test.go
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
	"github.com/buildmedic/buildmedic-cli/internal/observability"
	"github.com/buildmedic/buildmedic-cli/internal/orchestrator"
	"github.com/buildmedic/buildmedic-cli/internal/report"
)

// resetGlobals clears the state the root command leaves behind so each test
// starts from a clean slate.
func resetGlobals(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	viper.Reset()
	cfgFile = ""
	appConfig = nil
	t.Cleanup(func() {
		observability.ResetForTest()
		viper.Reset()
		cfgFile = ""
		appConfig = nil
	})
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "analyze")
	assert.Contains(t, names, "cache")
	assert.Contains(t, names, "doctor")
}

func TestRenderOutcomeJSON(t *testing.T) {
	outcome := &orchestrator.Outcome{
		Result: &schemas.AnalysisResult{
			Provider:  "primary",
			RootCause: "broken dependency",
			Severity:  schemas.SeverityLow,
		},
		Fingerprint: schemas.Fingerprint("abc123"),
		Report:      &schemas.SanitizationReport{Redactions: 2, Score: 95},
	}

	out, err := renderOutcome(report.FormatJSON, outcome)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "abc123", decoded["fingerprint"])
	result := decoded["result"].(map[string]any)
	assert.Equal(t, "broken dependency", result["root_cause"])
}

func TestWriteAnnotationToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotation.md")
	require.NoError(t, writeAnnotation(path, "## analysis"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "## analysis", string(data))
}

func TestAnalyzeEndToEnd(t *testing.T) {
	resetGlobals(t)
	t.Setenv("E2E_PROVIDER_KEY", "sk-e2e")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{
					"role":    "assistant",
					"content": "Root cause: the linker ran out of disk space.\nSuggested fixes:\n- clean the workspace\nConfidence: 80\nSeverity: high",
				},
			}},
			"usage": map[string]int{"total_tokens": 100},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "buildmedic.yaml")
	cfgBody := fmt.Sprintf(`logger:
  level: error
  format: console
cache:
  enabled: true
  dir: %s
providers:
  - name: primary
    provider: openai
    model: test-model
    endpoint: %s
    credential_env: E2E_PROVIDER_KEY
    timeout: 5s
`, filepath.Join(dir, "cache"), srv.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o600))

	outPath := filepath.Join(dir, "annotation.md")
	root := NewRootCommand()
	root.SetArgs([]string{
		"analyze",
		"--config", cfgPath,
		"--command", "go build ./...",
		"--exit-code", "1",
		"--output", outPath,
	})

	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	annotation := string(data)
	assert.Contains(t, annotation, "the linker ran out of disk space")
	assert.Contains(t, annotation, "clean the workspace")
	assert.Contains(t, annotation, "**Confidence:** 80%")
}

func TestAnalyzeRequiresACommand(t *testing.T) {
	resetGlobals(t)
	t.Setenv("BUILDKITE_COMMAND", "")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "buildmedic.yaml")
	cfgBody := `providers:
  - name: primary
    provider: openai
    model: m
    credential_env: X
    timeout: 5s
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o600))

	root := NewRootCommand()
	root.SetArgs([]string{"analyze", "--config", cfgPath})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no failing command")
}
