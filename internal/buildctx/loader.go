// File: internal/buildctx/loader.go
// Description: Assembles the raw failure context from the places a CI agent
// leaves it: a JSON context file, the well-known CI environment variables,
// and the failing step's log file. Everything gathered here is treated as
// untrusted and goes through the redactor before leaving the host.
package buildctx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

// DefaultLogTailBytes is how much of the log tail is captured when the
// caller does not say otherwise. Failures live at the end of logs.
const DefaultLogTailBytes = 64 * 1024

// Load reads a RawContext from a JSON file written by the pipeline.
func Load(path string) (*schemas.RawContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	var rc schemas.RawContext
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parse context file %s: %w", path, err)
	}
	return &rc, nil
}

// FromEnv builds a RawContext from the environment the CI agent exports.
// Buildkite variables take precedence; the GitLab and GitHub equivalents are
// consulted so the tool works on those runners too.
func FromEnv() *schemas.RawContext {
	rc := &schemas.RawContext{}

	rc.Build.Pipeline = firstEnv("BUILDKITE_PIPELINE_SLUG", "CI_PROJECT_NAME", "GITHUB_REPOSITORY")
	rc.Build.Branch = firstEnv("BUILDKITE_BRANCH", "CI_COMMIT_REF_NAME", "GITHUB_REF_NAME")
	rc.Build.Commit = firstEnv("BUILDKITE_COMMIT", "CI_COMMIT_SHA", "GITHUB_SHA")
	rc.Build.StepKey = firstEnv("BUILDKITE_STEP_KEY", "CI_JOB_NAME", "GITHUB_JOB")
	rc.Build.BuildID = firstEnv("BUILDKITE_BUILD_ID", "CI_PIPELINE_ID", "GITHUB_RUN_ID")

	rc.Error.Command = os.Getenv("BUILDKITE_COMMAND")
	if s := os.Getenv("BUILDKITE_COMMAND_EXIT_STATUS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			rc.Error.ExitCode = n
		}
	}

	rc.Git.Repo = firstEnv("BUILDKITE_REPO", "CI_REPOSITORY_URL")
	rc.Git.Message = firstEnv("BUILDKITE_MESSAGE", "CI_COMMIT_MESSAGE")
	rc.Git.AuthorEmail = firstEnv("BUILDKITE_BUILD_AUTHOR_EMAIL", "CI_COMMIT_AUTHOR")

	return rc
}

// Merge overlays non-zero fields of over onto base and returns base. Explicit
// flags and context files win over what the environment provided.
func Merge(base, over *schemas.RawContext) *schemas.RawContext {
	if over == nil {
		return base
	}
	if over.Error.Command != "" {
		base.Error.Command = over.Error.Command
	}
	if over.Error.ExitCode != 0 {
		base.Error.ExitCode = over.Error.ExitCode
	}
	overlayString(&base.Build.Pipeline, over.Build.Pipeline)
	overlayString(&base.Build.Branch, over.Build.Branch)
	overlayString(&base.Build.Commit, over.Build.Commit)
	overlayString(&base.Build.StepKey, over.Build.StepKey)
	overlayString(&base.Build.BuildID, over.Build.BuildID)
	overlayString(&base.Git.Repo, over.Git.Repo)
	overlayString(&base.Git.Message, over.Git.Message)
	overlayString(&base.Git.AuthorEmail, over.Git.AuthorEmail)
	if len(over.Git.RecentChanges) > 0 {
		base.Git.RecentChanges = over.Git.RecentChanges
	}
	overlayString(&base.LogExcerpt, over.LogExcerpt)
	overlayString(&base.CustomContext, over.CustomContext)
	if len(over.Environment) > 0 {
		if base.Environment == nil {
			base.Environment = make(map[string]string, len(over.Environment))
		}
		for k, v := range over.Environment {
			base.Environment[k] = v
		}
	}
	return base
}

// TailFile returns up to maxBytes from the end of a log file. When the read
// starts mid-file the partial first line is dropped.
func TailFile(path string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultLogTailBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat log file: %w", err)
	}

	offset := int64(0)
	if info.Size() > maxBytes {
		offset = info.Size() - maxBytes
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek log file: %w", err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read log file: %w", err)
	}

	out := string(data)
	if offset > 0 {
		if i := strings.IndexByte(out, '\n'); i >= 0 && i+1 < len(out) {
			out = out[i+1:]
		}
	}
	return out, nil
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
