// File: internal/provider/openai.go
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// openAIAdapter speaks the chat completions API. It also covers any
// OpenAI-compatible gateway when the endpoint is overridden in config.
type openAIAdapter struct {
	name          string
	model         string
	endpoint      string
	credentialEnv string
	maxTokens     int
	client        *http.Client
	logger        *zap.Logger
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *openAIAdapter) Name() string          { return a.name }
func (a *openAIAdapter) Model() string         { return a.model }
func (a *openAIAdapter) CredentialEnv() string { return a.credentialEnv }

func (a *openAIAdapter) Analyze(ctx context.Context, prompt string) (*schemas.AnalysisResult, error) {
	cred, err := LoadCredential(a.name, a.credentialEnv)
	if err != nil {
		return nil, err
	}
	defer cred.Clear()

	payload := openAIRequest{
		Model: a.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: a.maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + cred.Value()}

	a.logger.Debug("Sending analysis request", zap.String("model", a.model))
	body, err := postJSON(ctx, a.client, a.name, a.endpoint, headers, payload)
	if err != nil {
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ClassifiedError{Provider: a.name, Class: ClassMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &ClassifiedError{Provider: a.name, Class: ClassMalformed, Err: fmt.Errorf("response has no choices")}
	}

	result, err := ParseAnalysis(a.name, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	result.Provider = a.name
	result.Model = a.model
	result.TokensUsed = resp.Usage.TotalTokens
	return result, nil
}
