// File: internal/provider/anthropic.go
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion         = "2023-06-01"
)

type anthropicAdapter struct {
	name          string
	model         string
	endpoint      string
	credentialEnv string
	maxTokens     int
	client        *http.Client
	logger        *zap.Logger
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *anthropicAdapter) Name() string          { return a.name }
func (a *anthropicAdapter) Model() string         { return a.model }
func (a *anthropicAdapter) CredentialEnv() string { return a.credentialEnv }

func (a *anthropicAdapter) Analyze(ctx context.Context, prompt string) (*schemas.AnalysisResult, error) {
	cred, err := LoadCredential(a.name, a.credentialEnv)
	if err != nil {
		return nil, err
	}
	defer cred.Clear()

	maxTokens := a.maxTokens
	if maxTokens <= 0 {
		// max_tokens is mandatory on this API.
		maxTokens = 1024
	}
	payload := anthropicRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         cred.Value(),
		"anthropic-version": anthropicVersion,
	}

	a.logger.Debug("Sending analysis request", zap.String("model", a.model))
	body, err := postJSON(ctx, a.client, a.name, a.endpoint, headers, payload)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ClassifiedError{Provider: a.name, Class: ClassMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &ClassifiedError{Provider: a.name, Class: ClassMalformed, Err: fmt.Errorf("response has no text content")}
	}

	result, err := ParseAnalysis(a.name, text.String())
	if err != nil {
		return nil, err
	}
	result.Provider = a.name
	result.Model = a.model
	result.TokensUsed = resp.Usage.InputTokens + resp.Usage.OutputTokens
	return result, nil
}
