// File: internal/provider/prompt.go
package provider

import (
	"fmt"
	"strings"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

// systemPrompt pins the response format every adapter sends to its model.
// The parser in parse.go is the other half of this contract.
const systemPrompt = `You are a CI build failure analyst. You receive sanitized build output; secrets have been replaced with [REDACTED_*] placeholders. Respond in exactly this format:

Root cause: <one or two sentences>
Suggested fixes:
- <fix>
- <fix>
Confidence: <0-100>
Severity: <low|medium|high>

Be specific and concrete. Do not speculate about the redacted values.`

// promptLogCap bounds how much log goes into a prompt; the tail carries the
// failure, the head is mostly setup noise.
const promptLogCap = 6000

// BuildPrompt renders the user message for a sanitized failure. The detected
// category is included as a hint the model may override.
func BuildPrompt(sc *schemas.SanitizedContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A CI step failed.\n\nCommand: %s\nExit code: %d\n", sc.Error.Command, sc.Error.ExitCode)
	if sc.Error.Category != "" {
		fmt.Fprintf(&b, "Detected category: %s\n", sc.Error.Category)
	}

	if sc.Build.Pipeline != "" {
		fmt.Fprintf(&b, "Pipeline: %s", sc.Build.Pipeline)
		if sc.Build.StepKey != "" {
			fmt.Fprintf(&b, " (step %s)", sc.Build.StepKey)
		}
		b.WriteString("\n")
	}
	if sc.Build.Branch != "" {
		fmt.Fprintf(&b, "Branch: %s\n", sc.Build.Branch)
	}

	if sc.Git.Message != "" {
		fmt.Fprintf(&b, "\nLast commit: %s\n", sc.Git.Message)
	}
	if len(sc.Git.RecentChanges) > 0 {
		b.WriteString("Recently changed files:\n")
		for _, f := range sc.Git.RecentChanges {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if sc.CustomContext != "" {
		fmt.Fprintf(&b, "\nAdditional context from the pipeline author:\n%s\n", sc.CustomContext)
	}

	log := sc.LogExcerpt
	if len(log) > promptLogCap {
		log = "...(truncated)...\n" + log[len(log)-promptLogCap:]
	}
	if log != "" {
		fmt.Fprintf(&b, "\nLog output:\n```\n%s\n```\n", log)
	}

	b.WriteString("\nAnalyze the failure.")
	return b.String()
}
