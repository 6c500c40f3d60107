// File: internal/detect/detector_test.go
package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCategories(t *testing.T) {
	cases := []struct {
		name    string
		command string
		exit    int
		log     string
		want    string
	}{
		{
			name: "go compile error",
			log:  "checkout.go:41:2: undefined: cart.Apply\nFAIL\tgithub.com/acme/app [build failed]",
			want: CategoryCompilation,
		},
		{
			name: "typescript compile error",
			log:  "src/cart.ts(12,5): error TS2339: Property 'total' does not exist",
			want: CategoryCompilation,
		},
		{
			name: "go test failure",
			log:  "--- FAIL: TestCheckout (0.02s)\n    checkout_test.go:30: expected 3 to equal 2",
			want: CategoryTestFailure,
		},
		{
			name: "jest failures",
			log:  "Tests: 2 failed, 14 passed\n4 tests failed",
			want: CategoryTestFailure,
		},
		{
			name: "npm resolution",
			log:  "npm ERR! code ERESOLVE\nnpm ERR! could not resolve dependencies",
			want: CategoryDependency,
		},
		{
			name: "connection refused",
			log:  "dial tcp 10.0.0.5:5432: connection refused",
			want: CategoryNetwork,
		},
		{
			name: "permission denied",
			log:  "open /var/lib/builds: permission denied",
			want: CategoryPermission,
		},
		{
			name: "out of memory",
			log:  "fatal error: runtime: out of memory",
			want: CategoryResource,
		},
		{
			name: "missing config",
			log:  "could not load config: open pipeline.yaml: no such file or directory pipeline.yaml",
			want: CategoryConfiguration,
		},
		{
			name: "timeout",
			log:  "context deadline exceeded while waiting for service",
			want: CategoryTimeout,
		},
		{
			name: "unknown",
			exit: 1,
			log:  "something odd happened",
			want: CategoryUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.command, tc.exit, tc.log)
			assert.Equal(t, tc.want, got.Category)
			if tc.want != CategoryUnknown {
				assert.Greater(t, got.Confidence, 0)
				assert.NotEmpty(t, got.Evidence)
			}
		})
	}
}

func TestDetectSigkillWithoutEvidence(t *testing.T) {
	got := Detect("make build", 137, "build step terminated")
	assert.Equal(t, CategoryResource, got.Category)
	assert.Equal(t, 40, got.Confidence)
}

func TestDetectMoreEvidenceWinsAndRaisesConfidence(t *testing.T) {
	weak := Detect("", 1, "connection refused")
	strong := Detect("", 1, "connection refused\nno such host\nnetwork is unreachable")

	assert.Equal(t, CategoryNetwork, weak.Category)
	assert.Equal(t, CategoryNetwork, strong.Category)
	assert.Greater(t, strong.Confidence, weak.Confidence)
}

func TestDetectTimeoutBeatsNetworkOnTies(t *testing.T) {
	// One hit each; the more actionable class is listed first and wins.
	got := Detect("", 1, "request to registry timed out: connection refused\ndial: connection reset")
	assert.Equal(t, CategoryTimeout, got.Category)
}
