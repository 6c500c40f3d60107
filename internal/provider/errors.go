// File: internal/provider/errors.go
// Description: Provider error taxonomy. Every failure an adapter returns is
// classified so the orchestrator can decide between retrying the same
// provider, skipping to the next one, or giving up.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Class partitions provider failures by how the orchestrator should react.
type Class string

const (
	// ClassAuth marks credential problems. Retrying cannot help; the
	// provider is skipped for the rest of the invocation.
	ClassAuth Class = "auth"
	// ClassRateLimited marks quota exhaustion. Retryable after backoff.
	ClassRateLimited Class = "rate_limited"
	// ClassTimeout marks a call that exceeded its per-provider deadline.
	ClassTimeout Class = "timeout"
	// ClassTransient marks server-side and connection failures worth
	// retrying.
	ClassTransient Class = "transient"
	// ClassMalformed marks a response that arrived but could not be turned
	// into an analysis. The next provider may do better; retrying the same
	// one rarely does.
	ClassMalformed Class = "malformed"
)

// ClassifiedError wraps a provider failure with its class and origin.
type ClassifiedError struct {
	Provider string
	Class    Class
	Err      error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Retryable reports whether the same provider is worth another attempt.
func (e *ClassifiedError) Retryable() bool {
	switch e.Class {
	case ClassRateLimited, ClassTimeout, ClassTransient:
		return true
	default:
		return false
	}
}

// Classify wraps err for the named provider, deriving the class from the
// error's shape when the caller has no better information.
func Classify(providerName string, err error) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	class := ClassTransient
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		class = ClassTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		class = ClassTimeout
	}
	return &ClassifiedError{Provider: providerName, Class: class, Err: err}
}

// classifyStatus maps an HTTP response code to an error class.
func classifyStatus(providerName string, status int, detail string) *ClassifiedError {
	var class Class
	switch {
	case status == 401 || status == 403:
		class = ClassAuth
	case status == 429:
		class = ClassRateLimited
	case status == 408:
		class = ClassTimeout
	case status >= 500:
		class = ClassTransient
	default:
		// Unexpected 4xx means we built a request the provider rejects;
		// retrying the identical request cannot succeed.
		class = ClassMalformed
	}
	return &ClassifiedError{
		Provider: providerName,
		Class:    class,
		Err:      fmt.Errorf("http %d: %s", status, detail),
	}
}
