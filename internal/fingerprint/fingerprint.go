// File: internal/fingerprint/fingerprint.go
// Description: Deterministic error signatures. Two failures that differ only
// in run-specific noise (timestamps, PIDs, ports, temp paths, IDs) must map
// to the same fingerprint so cached analyses are reused across builds.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

// normalizedLogCap bounds how much of the normalized log participates in the
// digest. Failures long past this point rarely change the signature and
// letting them in makes the fingerprint sensitive to trailing noise.
const normalizedLogCap = 2000

// noLogSentinel stands in for an empty log excerpt so a missing log still
// produces a stable, command-derived fingerprint.
const noLogSentinel = "nolog"

// componentSep joins the digest components. A non-printable separator keeps
// "a b"+"c" and "a"+"b c" from colliding.
const componentSep = "\x1f"

var (
	// ISO and syslog style timestamps, with optional fractional seconds and
	// zone suffix.
	timestampRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?\b|\b\d{2}:\d{2}:\d{2}(?:[.,]\d+)?\b`)
	uuidRe      = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	hexRe       = regexp.MustCompile(`\b[0-9a-fA-F]{8,}\b`)
	tmpPathRe   = regexp.MustCompile(`/tmp/[^\s'":]+`)
	numberRe    = regexp.MustCompile(`\b\d+\b`)
	wsRe        = regexp.MustCompile(`\s+`)
)

// Compute derives the fingerprint for a sanitized failure context. It is a
// pure function of the command shape, the exit class, and the normalized log
// excerpt.
func Compute(sc *schemas.SanitizedContext) schemas.Fingerprint {
	parts := []string{
		CommandShape(sc.Error.Command),
		ExitClass(sc.Error.ExitCode),
		NormalizeLog(sc.LogExcerpt),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, componentSep)))
	return schemas.Fingerprint(hex.EncodeToString(sum[:]))
}

// CommandShape reduces a command line to its structural skeleton: the program
// name and its flags, with flag values and positional arguments blanked.
// "npm test --grep=checkout ./pkg" and "npm test --grep=cart ./lib" share a
// shape.
func CommandShape(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "nocmd"
	}

	shape := make([]string, 0, len(fields))
	// Keep the program name without its directory; wrapper paths vary per
	// agent install.
	prog := fields[0]
	if i := strings.LastIndexByte(prog, '/'); i >= 0 {
		prog = prog[i+1:]
	}
	shape = append(shape, prog)

	for _, arg := range fields[1:] {
		switch {
		case strings.HasPrefix(arg, "-"):
			if i := strings.IndexByte(arg, '='); i >= 0 {
				arg = arg[:i]
			}
			shape = append(shape, arg)
		default:
			shape = append(shape, "_")
		}
	}
	return strings.Join(shape, " ")
}

// ExitClass buckets an exit code into its conventional meaning. Codes above
// 128 keep the signal number; everything else collapses into a handful of
// classes so equivalent failures across shells agree.
func ExitClass(code int) string {
	switch {
	case code == 0:
		return "ok"
	case code == 1:
		return "generic"
	case code == 2:
		return "usage"
	case code == 124:
		// GNU timeout and Buildkite cancellation both surface 124.
		return "timeout"
	case code == 126:
		return "noexec"
	case code == 127:
		return "notfound"
	case code > 128 && code < 160:
		return fmt.Sprintf("signal_%d", code-128)
	default:
		return fmt.Sprintf("exit_%d", code)
	}
}

// NormalizeLog strips run-specific noise from a log excerpt: timestamps,
// UUIDs, long hex runs, temp paths and bare numbers are replaced with fixed
// markers, whitespace is collapsed, and the result is lowercased and capped.
func NormalizeLog(log string) string {
	if strings.TrimSpace(log) == "" {
		return noLogSentinel
	}

	out := timestampRe.ReplaceAllString(log, "TS")
	out = uuidRe.ReplaceAllString(out, "ID")
	out = hexRe.ReplaceAllString(out, "HEX")
	out = tmpPathRe.ReplaceAllString(out, "/tmp/PATH")
	out = numberRe.ReplaceAllString(out, "N")
	out = wsRe.ReplaceAllString(out, " ")
	out = strings.ToLower(strings.TrimSpace(out))

	if len(out) > normalizedLogCap {
		out = out[:normalizedLogCap]
	}
	return out
}
