// -- api/schemas/analysis.go --
package schemas

import "time"

// Severity is the provider-assessed impact level of a failure.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AnalysisResult is the single normalized shape every provider reply is
// mapped into. Produced exactly once per failure, from the cache or from a
// live call, and immutable afterwards.
type AnalysisResult struct {
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	RootCause      string    `json:"root_cause"`
	SuggestedFixes []string  `json:"suggested_fixes"`
	// Confidence is 0-100. Providers that omit one get DefaultConfidence.
	Confidence  int       `json:"confidence"`
	Severity    Severity  `json:"severity"`
	ErrorType   string    `json:"error_type,omitempty"`
	TokensUsed  int       `json:"tokens_used"`
	Cached      bool      `json:"cached"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DefaultConfidence is assigned when a provider reply carries no usable
// confidence figure, so downstream consumers always see one contract.
const DefaultConfidence = 60

// AttemptOutcome classifies how a single provider attempt ended.
type AttemptOutcome string

const (
	OutcomeSuccess     AttemptOutcome = "success"
	OutcomeTimeout     AttemptOutcome = "timeout"
	OutcomeRateLimited AttemptOutcome = "rate_limited"
	OutcomeAuthError   AttemptOutcome = "auth_error"
	OutcomeMalformed   AttemptOutcome = "malformed"
	OutcomeError       AttemptOutcome = "error"
)

// AttemptRecord captures one provider attempt for fallback decisions and
// diagnostics. Records are ephemeral; they survive only inside the failure
// returned to the caller.
type AttemptRecord struct {
	Provider string         `json:"provider"`
	Outcome  AttemptOutcome `json:"outcome"`
	Latency  time.Duration  `json:"latency"`
	Detail   string         `json:"detail,omitempty"`
}

// SanitizationReport summarizes what the redactor removed, for audit and
// debug visibility. It never contains redacted values.
type SanitizationReport struct {
	// Redactions is the total number of spans replaced.
	Redactions int `json:"redactions"`
	// ByClass counts replacements per pattern class.
	ByClass map[string]int `json:"by_class,omitempty"`
	// Score is 0-100; lower means more residual risk was detected.
	Score int `json:"score"`
	// Degraded is set when the redactor failed closed and replaced one or
	// more whole fields conservatively.
	Degraded bool `json:"degraded"`
}

// CacheStats reports operational counters for the result cache.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
