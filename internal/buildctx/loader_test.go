// File: internal/buildctx/loader_test.go
package buildctx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

func TestLoadContextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.json")
	body := `{
		"error_info": {"command": "make test", "exit_code": 2},
		"build_info": {"pipeline": "app", "branch": "main"},
		"custom_context": "nightly run"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	rc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "make test", rc.Error.Command)
	assert.Equal(t, 2, rc.Error.ExitCode)
	assert.Equal(t, "app", rc.Build.Pipeline)
	assert.Equal(t, "nightly run", rc.CustomContext)
}

func TestLoadContextFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestFromEnvBuildkite(t *testing.T) {
	t.Setenv("BUILDKITE_PIPELINE_SLUG", "checkout-service")
	t.Setenv("BUILDKITE_BRANCH", "main")
	t.Setenv("BUILDKITE_COMMIT", "abc123")
	t.Setenv("BUILDKITE_COMMAND", "go test ./...")
	t.Setenv("BUILDKITE_COMMAND_EXIT_STATUS", "1")
	t.Setenv("BUILDKITE_MESSAGE", "fix rounding")

	rc := FromEnv()
	assert.Equal(t, "checkout-service", rc.Build.Pipeline)
	assert.Equal(t, "main", rc.Build.Branch)
	assert.Equal(t, "go test ./...", rc.Error.Command)
	assert.Equal(t, 1, rc.Error.ExitCode)
	assert.Equal(t, "fix rounding", rc.Git.Message)
}

func TestFromEnvFallsBackToGitHub(t *testing.T) {
	t.Setenv("BUILDKITE_PIPELINE_SLUG", "")
	t.Setenv("CI_PROJECT_NAME", "")
	t.Setenv("GITHUB_REPOSITORY", "acme/app")
	t.Setenv("GITHUB_REF_NAME", "feature/cart")

	rc := FromEnv()
	assert.Equal(t, "acme/app", rc.Build.Pipeline)
	assert.Equal(t, "feature/cart", rc.Build.Branch)
}

func TestMergeOverlayWins(t *testing.T) {
	base := &schemas.RawContext{
		Error: schemas.ErrorInfo{Command: "from-env", ExitCode: 1},
		Build: schemas.BuildInfo{Pipeline: "env-pipeline", Branch: "main"},
	}
	over := &schemas.RawContext{
		Error:      schemas.ErrorInfo{Command: "from-flag"},
		LogExcerpt: "explicit log",
	}

	got := Merge(base, over)
	assert.Equal(t, "from-flag", got.Error.Command)
	assert.Equal(t, 1, got.Error.ExitCode, "zero exit code in overlay keeps base")
	assert.Equal(t, "env-pipeline", got.Build.Pipeline)
	assert.Equal(t, "explicit log", got.LogExcerpt)
}

func TestTailFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")

	t.Run("small file comes back whole", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o600))
		out, err := TailFile(path, 1024)
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two\n", out)
	})

	t.Run("large file keeps the tail and drops the torn line", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 1000; i++ {
			b.WriteString("a log line that repeats for padding purposes\n")
		}
		b.WriteString("the final failure line\n")
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

		out, err := TailFile(path, 256)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(out), 256)
		assert.True(t, strings.HasSuffix(out, "the final failure line\n"))
		assert.False(t, strings.HasPrefix(out, "og line"), "partial first line must be dropped")
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := TailFile(filepath.Join(t.TempDir(), "nope.log"), 100)
		assert.Error(t, err)
	})
}
