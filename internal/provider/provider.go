// File: internal/provider/provider.go
// Description: Adapter contract and shared HTTP plumbing for the AI
// providers. Adapters perform exactly one call per Analyze; retry and
// fallback policy belongs to the orchestrator.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

// maxResponseBytes bounds how much of a provider response is read. Analysis
// replies are a few KB; anything larger is misbehavior.
const maxResponseBytes = 1 << 20

// Adapter is one configured AI provider. Implementations are stateless
// between calls and safe for concurrent use.
type Adapter interface {
	// Name is the configured instance name, unique within the registry.
	Name() string
	// Model is the model identifier sent with each request.
	Model() string
	// CredentialEnv names the environment variable holding the API key.
	CredentialEnv() string
	// Analyze sends one analysis request and returns the parsed result.
	// Errors are always *ClassifiedError.
	Analyze(ctx context.Context, prompt string) (*schemas.AnalysisResult, error)
}

// postJSON performs one JSON POST and returns the response body. Non-2xx
// statuses and transport failures come back as *ClassifiedError.
func postJSON(ctx context.Context, client *http.Client, providerName, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ClassifiedError{Provider: providerName, Class: ClassMalformed, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ClassifiedError{Provider: providerName, Class: ClassMalformed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, Classify(providerName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, Classify(providerName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(providerName, resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
