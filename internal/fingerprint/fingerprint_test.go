// File: internal/fingerprint/fingerprint_test.go
package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

func ctxWith(command string, exitCode int, log string) *schemas.SanitizedContext {
	return &schemas.SanitizedContext{
		Error:      schemas.ErrorInfo{Command: command, ExitCode: exitCode},
		LogExcerpt: log,
	}
}

func TestComputeIgnoresRunSpecificNoise(t *testing.T) {
	a := ctxWith("go test ./...", 1,
		"2026-08-29T14:32:05Z pid 8412 dial tcp 127.0.0.1:54321: connection refused\nrequest 550e8400-e29b-41d4-a716-446655440000 failed")
	b := ctxWith("go test ./...", 1,
		"2026-08-30T09:01:44Z pid 29 dial tcp 127.0.0.1:6060: connection refused\nrequest 01234567-89ab-cdef-0123-456789abcdef failed")

	assert.Equal(t, Compute(a), Compute(b))
}

func TestComputeSeparatesDistinctFailures(t *testing.T) {
	refused := ctxWith("go test ./...", 1, "dial tcp: connection refused")
	compile := ctxWith("go test ./...", 1, "undefined: checkout.Apply")
	otherExit := ctxWith("go test ./...", 2, "dial tcp: connection refused")

	assert.NotEqual(t, Compute(refused), Compute(compile))
	assert.NotEqual(t, Compute(refused), Compute(otherExit))
}

func TestComputeStableLength(t *testing.T) {
	fp := Compute(ctxWith("make build", 2, "missing separator"))
	assert.Len(t, string(fp), 64)
}

func TestCommandShape(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "nocmd"},
		{"positional args blanked", "npm test ./pkg ./lib", "npm test _ _"},
		{"flag values stripped", "pytest --maxfail=3 -x tests/", "pytest --maxfail -x _"},
		{"wrapper path dropped", "/usr/local/bin/go build ./...", "go _ _"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CommandShape(tc.in))
		})
	}
}

func TestCommandShapeEquatesValueOnlyDifferences(t *testing.T) {
	assert.Equal(t,
		CommandShape("npm test --grep=checkout ./pkg"),
		CommandShape("npm test --grep=cart ./lib"))
}

func TestExitClass(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{0, "ok"},
		{1, "generic"},
		{2, "usage"},
		{124, "timeout"},
		{126, "noexec"},
		{127, "notfound"},
		{137, "signal_9"},
		{143, "signal_15"},
		{42, "exit_42"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExitClass(tc.code), "code %d", tc.code)
	}
}

func TestNormalizeLog(t *testing.T) {
	t.Run("empty falls back to sentinel", func(t *testing.T) {
		assert.Equal(t, noLogSentinel, NormalizeLog(""))
		assert.Equal(t, noLogSentinel, NormalizeLog("  \n\t"))
	})

	t.Run("noise collapses to markers", func(t *testing.T) {
		in := "2026-08-29 14:32:05 worker 17 wrote /tmp/build-8f2a91/out.log in 350 ms"
		out := NormalizeLog(in)
		assert.NotContains(t, out, "2026")
		assert.NotContains(t, out, "8f2a91")
		assert.NotContains(t, out, "350")
		assert.Contains(t, out, "worker n")
		assert.Contains(t, out, "/tmp/path")
	})

	t.Run("long input is capped", func(t *testing.T) {
		long := strings.Repeat("identical failure line\n", 500)
		assert.LessOrEqual(t, len(NormalizeLog(long)), normalizedLogCap)
	})
}
