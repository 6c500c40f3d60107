// File: internal/report/renderer.go
// Description: Renders an analysis outcome as a build annotation. Markdown is
// the native format for Buildkite annotations; HTML covers systems that want
// a fragment to embed. The renderer only ever sees sanitized material, but
// HTML output still escapes everything.
package report

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
)

// Format selects the annotation output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (supported: markdown, html, json)", s)
	}
}

// Renderer produces annotations in one format. Stateless and safe for
// concurrent use.
type Renderer struct {
	format Format
}

func NewRenderer(format Format) *Renderer {
	return &Renderer{format: format}
}

func severityIcon(s schemas.Severity) string {
	switch s {
	case schemas.SeverityHigh:
		return "🔴"
	case schemas.SeverityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

// RenderResult renders a completed analysis with its sanitization footer.
func (r *Renderer) RenderResult(result *schemas.AnalysisResult, san *schemas.SanitizationReport) (string, error) {
	if r.format == FormatHTML {
		return renderResultHTML(result, san)
	}
	return renderResultMarkdown(result, san), nil
}

// RenderFailure renders the per-provider attempt log when every provider
// failed, so the build page says what was tried instead of staying silent.
func (r *Renderer) RenderFailure(attempts []schemas.AttemptRecord, san *schemas.SanitizationReport) (string, error) {
	if r.format == FormatHTML {
		return renderFailureHTML(attempts, san)
	}
	return renderFailureMarkdown(attempts, san), nil
}

func renderResultMarkdown(result *schemas.AnalysisResult, san *schemas.SanitizationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s AI failure analysis\n\n", severityIcon(result.Severity))
	fmt.Fprintf(&b, "**Root cause:** %s\n\n", result.RootCause)

	if len(result.SuggestedFixes) > 0 {
		b.WriteString("**Suggested fixes:**\n\n")
		for _, fix := range result.SuggestedFixes {
			fmt.Fprintf(&b, "1. %s\n", fix)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Severity:** %s · **Confidence:** %d%%\n\n", result.Severity, result.Confidence)

	source := fmt.Sprintf("%s (%s)", result.Provider, result.Model)
	if result.Cached {
		source += " · ♻️ cached result"
	} else if result.TokensUsed > 0 {
		source += fmt.Sprintf(" · %d tokens", result.TokensUsed)
	}
	fmt.Fprintf(&b, "_Analysis by %s_\n", source)

	b.WriteString(sanitizationFooterMarkdown(san))
	return b.String()
}

func renderFailureMarkdown(attempts []schemas.AttemptRecord, san *schemas.SanitizationReport) string {
	var b strings.Builder

	b.WriteString("## ⚠️ AI failure analysis unavailable\n\n")
	b.WriteString("Every configured provider failed; the build outcome is unaffected.\n\n")

	if len(attempts) > 0 {
		b.WriteString("| Provider | Outcome | Latency |\n|---|---|---|\n")
		for _, a := range attempts {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", a.Provider, a.Outcome, a.Latency.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	b.WriteString(sanitizationFooterMarkdown(san))
	return b.String()
}

func sanitizationFooterMarkdown(san *schemas.SanitizationReport) string {
	if san == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n---\n🔒 %d secret-shaped spans redacted before analysis · sanitization score %d/100",
		san.Redactions, san.Score)
	if classes := summarizeClasses(san.ByClass); classes != "" {
		fmt.Fprintf(&b, " (%s)", classes)
	}
	if san.Degraded {
		b.WriteString("\n⚠️ One or more fields were fully redacted as a precaution.")
	}
	b.WriteString("\n")
	return b.String()
}

func summarizeClasses(byClass map[string]int) string {
	if len(byClass) == 0 {
		return ""
	}
	keys := make([]string, 0, len(byClass))
	for k := range byClass {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s ×%d", strings.ToLower(k), byClass[k]))
	}
	return strings.Join(parts, ", ")
}

var resultTemplate = template.Must(template.New("result").Parse(`<section class="ai-analysis">
  <h2>{{.Icon}} AI failure analysis</h2>
  <p><strong>Root cause:</strong> {{.Result.RootCause}}</p>
{{- if .Result.SuggestedFixes}}
  <p><strong>Suggested fixes:</strong></p>
  <ol>
{{- range .Result.SuggestedFixes}}
    <li>{{.}}</li>
{{- end}}
  </ol>
{{- end}}
  <p><strong>Severity:</strong> {{.Result.Severity}} &middot; <strong>Confidence:</strong> {{.Result.Confidence}}%</p>
  <p><em>Analysis by {{.Result.Provider}} ({{.Result.Model}}){{if .Result.Cached}} &middot; cached result{{end}}</em></p>
{{- if .San}}
  <footer>🔒 {{.San.Redactions}} secret-shaped spans redacted &middot; sanitization score {{.San.Score}}/100{{if .San.Degraded}} &middot; degraded{{end}}</footer>
{{- end}}
</section>
`))

var failureTemplate = template.Must(template.New("failure").Parse(`<section class="ai-analysis ai-analysis-failed">
  <h2>⚠️ AI failure analysis unavailable</h2>
  <p>Every configured provider failed; the build outcome is unaffected.</p>
{{- if .Attempts}}
  <table>
    <tr><th>Provider</th><th>Outcome</th><th>Latency</th></tr>
{{- range .Attempts}}
    <tr><td>{{.Provider}}</td><td>{{.Outcome}}</td><td>{{.Latency}}</td></tr>
{{- end}}
  </table>
{{- end}}
{{- if .San}}
  <footer>🔒 {{.San.Redactions}} secret-shaped spans redacted &middot; sanitization score {{.San.Score}}/100</footer>
{{- end}}
</section>
`))

func renderResultHTML(result *schemas.AnalysisResult, san *schemas.SanitizationReport) (string, error) {
	var b strings.Builder
	data := struct {
		Icon   string
		Result *schemas.AnalysisResult
		San    *schemas.SanitizationReport
	}{severityIcon(result.Severity), result, san}
	if err := resultTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return b.String(), nil
}

func renderFailureHTML(attempts []schemas.AttemptRecord, san *schemas.SanitizationReport) (string, error) {
	var b strings.Builder
	data := struct {
		Attempts []schemas.AttemptRecord
		San      *schemas.SanitizationReport
	}{attempts, san}
	if err := failureTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return b.String(), nil
}
