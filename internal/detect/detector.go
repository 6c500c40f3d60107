// File: internal/detect/detector.go
// Description: Heuristic error categorization. The detector scans the log
// excerpt (and the failing command) against per-category signature patterns
// and picks the category with the strongest evidence. The category feeds the
// provider prompt and the report; it is a hint, never a verdict.
package detect

import (
	"regexp"
	"strings"
)

// Category names a failure class. These values appear verbatim in prompts,
// reports, and cache entries.
const (
	CategoryCompilation   = "compilation"
	CategoryTestFailure   = "test_failure"
	CategoryDependency    = "dependency"
	CategoryNetwork       = "network"
	CategoryPermission    = "permission"
	CategoryResource      = "resource"
	CategoryConfiguration = "configuration"
	CategoryTimeout       = "timeout"
	CategoryUnknown       = "unknown"
)

// Match is a detected category with the confidence (0-100) the evidence
// supports.
type Match struct {
	Category   string
	Confidence int
	// Evidence holds up to a few matched snippets for the report.
	Evidence []string
}

type rule struct {
	category string
	weight   int
	patterns []*regexp.Regexp
}

const maxEvidence = 3

// rules are checked in order; earlier rules win ties, so the more specific
// classes precede the broad ones.
var rules = []rule{
	{
		category: CategoryTimeout,
		weight:   30,
		patterns: compile(
			`(?i)\btimed?[ -]?out\b`,
			`(?i)\bdeadline exceeded\b`,
			`(?i)cancell?ed after \d`,
		),
	},
	{
		category: CategoryCompilation,
		weight:   25,
		patterns: compile(
			`(?i)\b(syntax|compilation|compile) error\b`,
			`(?i)\bcannot find symbol\b`,
			`(?i)\bundefined: `,
			`(?i)\bundeclared identifier\b`,
			`(?i)error TS\d+`,
			`(?i)error\[E\d+\]`,
			`(?i)\bexpected .* but found\b`,
		),
	},
	{
		category: CategoryTestFailure,
		weight:   25,
		patterns: compile(
			`(?i)\b\d+ (test|tests|spec|specs) failed\b`,
			`(?im)^\s*FAIL[:\s]`,
			`(?i)\bassertion(?:error| failed)\b`,
			`(?i)\bexpected\b.*\b(to equal|to be|got)\b`,
			`--- FAIL:`,
		),
	},
	{
		category: CategoryDependency,
		weight:   20,
		patterns: compile(
			`(?i)\bcould not resolve dependencies\b`,
			`(?i)\b(module|package|gem|crate) not found\b`,
			`(?i)\bno matching version\b`,
			`(?i)\bnpm ERR! (code )?E(RESOLVE|404)\b`,
			`(?i)\bunresolved import\b`,
			`(?i)\bversion conflict\b`,
		),
	},
	{
		category: CategoryPermission,
		weight:   20,
		patterns: compile(
			`(?i)\bpermission denied\b`,
			`(?i)\baccess denied\b`,
			`(?i)\bunauthorized\b`,
			`(?i)\bEACCES\b`,
			`(?i)\bforbidden\b`,
		),
	},
	{
		category: CategoryResource,
		weight:   20,
		patterns: compile(
			`(?i)\bout of memory\b`,
			`(?i)\bOOM[- ]?kill`,
			`(?i)\bno space left on device\b`,
			`(?i)\bdisk quota exceeded\b`,
			`(?i)\btoo many open files\b`,
			`(?i)\bENOMEM\b`,
		),
	},
	{
		category: CategoryNetwork,
		weight:   15,
		patterns: compile(
			`(?i)\bconnection (refused|reset|closed)\b`,
			`(?i)\bno route to host\b`,
			`(?i)\b(name resolution|dns) fail`,
			`(?i)\bno such host\b`,
			`(?i)\bnetwork is unreachable\b`,
			`(?i)\bTLS handshake\b`,
			`(?i)\bECONNREFUSED\b`,
		),
	},
	{
		category: CategoryConfiguration,
		weight:   15,
		patterns: compile(
			`(?i)\b(missing|invalid|unknown) (required )?(option|flag|argument|configuration|config)\b`,
			`(?i)\benvironment variable .{0,40}(not set|missing|required)\b`,
			`(?i)\bcould not (parse|load) config`,
			`(?i)\bno such file or directory\b.*\.(ya?ml|toml|json|env)\b`,
		),
	},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Detect classifies a failure by its log excerpt and command line. It always
// returns a match; when nothing fires, the category is unknown with zero
// confidence.
func Detect(command string, exitCode int, log string) Match {
	text := command + "\n" + log

	best := Match{Category: CategoryUnknown}
	bestScore := 0
	for _, r := range rules {
		score := 0
		var evidence []string
		for _, p := range r.patterns {
			hits := p.FindAllString(text, -1)
			if len(hits) == 0 {
				continue
			}
			score += r.weight * len(hits)
			if len(evidence) < maxEvidence {
				evidence = append(evidence, strings.TrimSpace(hits[0]))
			}
		}
		if score > bestScore {
			bestScore = score
			best = Match{Category: r.category, Confidence: confidence(score), Evidence: evidence}
		}
	}

	// A build killed by SIGKILL with no textual evidence is usually the OOM
	// killer; say so with low confidence rather than reporting unknown.
	if best.Category == CategoryUnknown && exitCode == 137 {
		return Match{Category: CategoryResource, Confidence: 40, Evidence: []string{"exit code 137"}}
	}
	return best
}

// confidence maps the accumulated score onto 0-100. A single strong pattern
// lands in the 50-70 band; corroborating matches push it toward the cap.
func confidence(score int) int {
	c := 40 + score
	if c > 95 {
		c = 95
	}
	return c
}
