// File: internal/redact/redactor.go
// Description: Sanitization engine. Every string field of a RawContext is
// scanned against the ordered pattern classes before anything leaves the
// host; an internal failure redacts the whole offending field rather than
// letting it through.
package redact

import (
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
	"github.com/buildmedic/buildmedic-cli/internal/config"
)

// entropyFieldLimit is the number of unclassified high-entropy tokens in a
// single field past which the whole field is redacted conservatively.
const entropyFieldLimit = 3

// entropyThreshold is the minimum Shannon entropy (bits per byte) for a long
// base64-looking token to count as residual risk.
const entropyThreshold = 4.0

var entropyCandidate = regexp.MustCompile(`[A-Za-z0-9+/=_-]{28,}`)

// sensitiveEnvKeywords flag environment variable names whose values are
// always redacted regardless of content.
var sensitiveEnvKeywords = []string{
	"secret", "token", "key", "password", "passwd", "pwd",
	"auth", "credential", "cred", "private",
}

// Redactor applies the configured pattern classes to build context. It is a
// pure transformation; a single instance is safe for concurrent use.
type Redactor struct {
	patterns []Pattern
	logger   *zap.Logger
}

// New builds a Redactor from the redaction configuration. Invalid custom
// patterns are logged and skipped; they never prevent construction.
func New(cfg config.RedactionConfig, logger *zap.Logger) *Redactor {
	patterns := builtinPatterns()

	custom, errs := compileCustom(cfg.CustomPatterns, cfg.PatternFile)
	for _, err := range errs {
		logger.Warn("Skipping custom redaction pattern", zap.Error(err))
	}
	patterns = append(patterns, custom...)

	if cfg.RedactFilePaths {
		patterns = append(patterns, pathPatterns()...)
	}
	if cfg.RedactURLs {
		patterns = append(patterns, urlPatterns()...)
	}

	return &Redactor{
		patterns: patterns,
		logger:   logger.Named("redactor"),
	}
}

// Sanitize replaces every secret-shaped span in the raw context with a typed
// placeholder. It never fails: an internal error during a field redacts that
// field entirely (fail closed) and marks the report degraded.
func (r *Redactor) Sanitize(raw *schemas.RawContext) (*schemas.SanitizedContext, *schemas.SanitizationReport) {
	report := &schemas.SanitizationReport{ByClass: make(map[string]int)}
	entropyHits := 0
	degradedFields := 0

	clean := func(field string) string {
		out, counts, entropy, degraded := r.sanitizeField(field)
		for class, n := range counts {
			report.ByClass[string(class)] += n
			report.Redactions += n
		}
		entropyHits += entropy
		if degraded {
			degradedFields++
			report.Degraded = true
		}
		return out
	}

	sc := &schemas.SanitizedContext{
		Error: schemas.ErrorInfo{
			Command:  clean(raw.Error.Command),
			ExitCode: raw.Error.ExitCode,
			Category: raw.Error.Category,
		},
		Build: schemas.BuildInfo{
			Pipeline: clean(raw.Build.Pipeline),
			Branch:   clean(raw.Build.Branch),
			Commit:   raw.Build.Commit,
			StepKey:  clean(raw.Build.StepKey),
			BuildID:  raw.Build.BuildID,
		},
		Git: schemas.GitInfo{
			Repo:        clean(raw.Git.Repo),
			Message:     clean(raw.Git.Message),
			AuthorEmail: clean(raw.Git.AuthorEmail),
		},
		LogExcerpt:    clean(raw.LogExcerpt),
		CustomContext: clean(raw.CustomContext),
	}

	for _, change := range raw.Git.RecentChanges {
		sc.Git.RecentChanges = append(sc.Git.RecentChanges, clean(change))
	}

	if raw.Environment != nil {
		sc.Environment = make(map[string]string, len(raw.Environment))
		for key, value := range raw.Environment {
			if isSensitiveEnvKey(key) {
				sc.Environment[key] = Token(ClassCredential)
				report.ByClass[string(ClassCredential)]++
				report.Redactions++
				continue
			}
			sc.Environment[key] = clean(value)
		}
	}

	report.Score = score(report.Redactions, entropyHits, degradedFields)
	if report.Degraded {
		r.logger.Warn("Sanitization degraded; one or more fields were fully redacted",
			zap.Int("degraded_fields", degradedFields))
	}
	return sc, report
}

// sanitizeField applies every pattern to one string field. The recover path
// is the fail-closed guarantee: a panicking pattern replaces the whole field.
func (r *Redactor) sanitizeField(field string) (out string, counts map[Class]int, entropyHits int, degraded bool) {
	if field == "" {
		return "", nil, 0, false
	}

	counts = make(map[Class]int)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("Pattern application failed; redacting whole field", zap.Any("panic", rec))
			out = Token(ClassField)
			counts[ClassField]++
			degraded = true
		}
	}()

	out = field
	for _, p := range r.patterns {
		matches := p.Regex.FindAllString(out, -1)
		if len(matches) == 0 {
			continue
		}
		if p.Replace != nil {
			out = p.Regex.ReplaceAllStringFunc(out, p.Replace)
		} else {
			out = p.Regex.ReplaceAllString(out, Token(p.Class))
		}
		counts[p.Class] += len(matches)
	}

	// Residual-risk pass: long base64-looking tokens that matched no class.
	leftovers := 0
	out = entropyCandidate.ReplaceAllStringFunc(out, func(tok string) string {
		if strings.Contains(tok, "REDACTED") || shannonEntropy(tok) < entropyThreshold {
			return tok
		}
		leftovers++
		return Token(ClassEntropy)
	})
	if leftovers > 0 {
		counts[ClassEntropy] += leftovers
		entropyHits = leftovers
		if leftovers >= entropyFieldLimit {
			// Too much unclassified secret-shaped material; fail closed.
			out = Token(ClassField)
			counts[ClassField]++
			degraded = true
		}
	}
	return out, counts, entropyHits, degraded
}

func isSensitiveEnvKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveEnvKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// score derives the 0-100 sanitization score. Redaction density costs a
// little; unclassified entropy and degraded fields cost a lot.
func score(redactions, entropyHits, degradedFields int) int {
	s := 100
	density := redactions * 2
	if density > 40 {
		density = 40
	}
	s -= density
	s -= entropyHits * 8
	s -= degradedFields * 25
	if s < 0 {
		s = 0
	}
	return s
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	var h float64
	n := float64(len(s))
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}
