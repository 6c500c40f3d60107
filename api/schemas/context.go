// -- api/schemas/context.go --
package schemas

// BuildInfo identifies the CI build the failure occurred in.
type BuildInfo struct {
	Pipeline string `json:"pipeline,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Commit   string `json:"commit,omitempty"`
	StepKey  string `json:"step_key,omitempty"`
	BuildID  string `json:"build_id,omitempty"`
}

// GitInfo carries repository metadata collected by the invoking agent.
type GitInfo struct {
	Repo          string   `json:"repo,omitempty"`
	Message       string   `json:"message,omitempty"`
	AuthorEmail   string   `json:"author_email,omitempty"`
	RecentChanges []string `json:"recent_changes,omitempty"`
}

// ErrorInfo describes the failing command itself.
type ErrorInfo struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	// Category is filled in by the error detector; empty until then.
	Category string `json:"category,omitempty"`
}

// RawContext is the unsanitized bag of failure metadata handed to the
// pipeline by the invoking collaborator. It is created once per failure and
// must never reach a provider or the cache in this form.
type RawContext struct {
	Error         ErrorInfo         `json:"error_info"`
	Build         BuildInfo         `json:"build_info,omitempty"`
	Git           GitInfo           `json:"git_info,omitempty"`
	LogExcerpt    string            `json:"log_excerpt,omitempty"`
	CustomContext string            `json:"custom_context,omitempty"`
	Environment   map[string]string `json:"environment,omitempty"`
}

// SanitizedContext mirrors RawContext after every secret-shaped span has been
// replaced by a typed placeholder. It is a distinct type so the compiler
// keeps raw and sanitized data apart: only SanitizedContext values may flow
// to the fingerprinter, the cache, or a provider.
type SanitizedContext struct {
	Error         ErrorInfo         `json:"error_info"`
	Build         BuildInfo         `json:"build_info,omitempty"`
	Git           GitInfo           `json:"git_info,omitempty"`
	LogExcerpt    string            `json:"log_excerpt,omitempty"`
	CustomContext string            `json:"custom_context,omitempty"`
	Environment   map[string]string `json:"environment,omitempty"`
}

// Fingerprint is the fixed-length hex digest identifying an error signature
// for caching. Two semantically equivalent failures share a fingerprint.
type Fingerprint string
