// File: internal/provider/gemini.go
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

// defaultGeminiEndpoint is a template; the model name is part of the path.
const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

type geminiAdapter struct {
	name          string
	model         string
	endpoint      string
	credentialEnv string
	maxTokens     int
	client        *http.Client
	logger        *zap.Logger
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (a *geminiAdapter) Name() string          { return a.name }
func (a *geminiAdapter) Model() string         { return a.model }
func (a *geminiAdapter) CredentialEnv() string { return a.credentialEnv }

func (a *geminiAdapter) Analyze(ctx context.Context, prompt string) (*schemas.AnalysisResult, error) {
	cred, err := LoadCredential(a.name, a.credentialEnv)
	if err != nil {
		return nil, err
	}
	defer cred.Clear()

	payload := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig:  geminiGenConfig{MaxOutputTokens: a.maxTokens},
	}
	headers := map[string]string{"x-goog-api-key": cred.Value()}

	url := a.endpoint
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, a.model)
	}

	a.logger.Debug("Sending analysis request", zap.String("model", a.model))
	body, err := postJSON(ctx, a.client, a.name, url, headers, payload)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ClassifiedError{Provider: a.name, Class: ClassMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(resp.Candidates) == 0 {
		return nil, &ClassifiedError{Provider: a.name, Class: ClassMalformed, Err: fmt.Errorf("response has no candidates")}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	result, err := ParseAnalysis(a.name, text.String())
	if err != nil {
		return nil, err
	}
	result.Provider = a.name
	result.Model = a.model
	result.TokensUsed = resp.UsageMetadata.TotalTokenCount
	return result, nil
}
