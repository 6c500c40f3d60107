// File: internal/provider/parse.go
// Description: Parser for the sectioned analysis format requested by the
// system prompt. Models drift, so the parser is lenient about markdown
// decoration and casing but strict about one thing: without a root cause the
// response is malformed.
package provider

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

var (
	rootCauseRe  = regexp.MustCompile(`(?i)^\s*(?:[#*>]+\s*)?root cause\s*:?\s*(?:\*+\s*)?(.*)$`)
	fixesRe      = regexp.MustCompile(`(?i)^\s*(?:[#*>]+\s*)?suggested fix(?:es)?\s*:?\s*(?:\*+)?$`)
	confidenceRe = regexp.MustCompile(`(?i)^\s*(?:[#*>]+\s*)?confidence\s*:?\s*(?:\*+\s*)?(\d{1,3})`)
	severityRe   = regexp.MustCompile(`(?i)^\s*(?:[#*>]+\s*)?severity\s*:?\s*(?:\*+\s*)?(low|medium|high)`)
	bulletRe     = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.*)$`)
)

// ParseAnalysis turns raw model output into an AnalysisResult. The caller
// fills Provider, Model and TokensUsed. A response with no recognizable root
// cause yields a malformed ClassifiedError.
func ParseAnalysis(providerName, raw string) (*schemas.AnalysisResult, error) {
	result := &schemas.AnalysisResult{
		Confidence:  schemas.DefaultConfidence,
		Severity:    schemas.SeverityMedium,
		GeneratedAt: time.Now().UTC(),
	}

	inFixes := false
	for _, line := range strings.Split(raw, "\n") {
		if m := rootCauseRe.FindStringSubmatch(line); m != nil && result.RootCause == "" {
			if rc := cleanSection(m[1]); rc != "" {
				result.RootCause = rc
				inFixes = false
				continue
			}
		}
		if fixesRe.MatchString(line) {
			inFixes = true
			continue
		}
		if m := confidenceRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				result.Confidence = clamp(n, 0, 100)
			}
			inFixes = false
			continue
		}
		if m := severityRe.FindStringSubmatch(line); m != nil {
			result.Severity = schemas.Severity(strings.ToLower(m[1]))
			inFixes = false
			continue
		}
		if inFixes {
			if m := bulletRe.FindStringSubmatch(line); m != nil {
				if fix := cleanSection(m[1]); fix != "" {
					result.SuggestedFixes = append(result.SuggestedFixes, fix)
				}
			} else if strings.TrimSpace(line) != "" {
				// A non-bullet, non-empty line ends the fixes block.
				inFixes = false
			}
		}
	}

	if result.RootCause == "" {
		return nil, &ClassifiedError{
			Provider: providerName,
			Class:    ClassMalformed,
			Err:      fmt.Errorf("response has no root cause section"),
		}
	}
	return result, nil
}

func cleanSection(s string) string {
	return strings.Trim(strings.TrimSpace(s), "*_` ")
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
