// File: cmd/analyze.go
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
	"github.com/buildmedic/buildmedic-cli/internal/buildctx"
	"github.com/buildmedic/buildmedic-cli/internal/cache"
	"github.com/buildmedic/buildmedic-cli/internal/observability"
	"github.com/buildmedic/buildmedic-cli/internal/orchestrator"
	"github.com/buildmedic/buildmedic-cli/internal/provider"
	"github.com/buildmedic/buildmedic-cli/internal/redact"
	"github.com/buildmedic/buildmedic-cli/internal/report"
)

// newAnalyzeCmd creates the `analyze` command, the main entry point a CI
// step invokes after a failure.
func newAnalyzeCmd() *cobra.Command {
	var (
		flagCommand   string
		flagExitCode  int
		flagLogFile   string
		flagContext   string
		flagCustom    string
		flagFormat    string
		flagOutput    string
		flagTailBytes int64
		flagNoCache   bool
		flagStrict    bool
		flagAsync     bool
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyzes a failed build step and emits an annotation",
		Long: `Collects the failure context (from flags, a context file, and the CI
environment), sanitizes it, and requests an analysis. By default the command
exits zero even when analysis fails, so it never turns a red build redder;
--strict inverts that.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := appConfig
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration: %w", err)
			}
			if flagNoCache {
				cfg.Cache.Enabled = false
			}

			format, err := report.ParseFormat(flagFormat)
			if err != nil {
				return err
			}

			if flagAsync {
				return spawnDetached(logger)
			}

			raw := buildctx.FromEnv()
			if flagContext != "" {
				fileCtx, err := buildctx.Load(flagContext)
				if err != nil {
					return err
				}
				raw = buildctx.Merge(raw, fileCtx)
			}
			if flagCommand != "" {
				raw.Error.Command = flagCommand
			}
			if flagExitCode != 0 {
				raw.Error.ExitCode = flagExitCode
			}
			if flagCustom != "" {
				raw.CustomContext = flagCustom
			}
			if flagLogFile != "" {
				tail, err := buildctx.TailFile(flagLogFile, flagTailBytes)
				if err != nil {
					return err
				}
				raw.LogExcerpt = tail
			}
			if raw.Error.Command == "" {
				return fmt.Errorf("no failing command given; set --command or run under a CI agent")
			}

			registry, err := provider.NewRegistry(cfg, logger)
			if err != nil {
				return err
			}
			orch := orchestrator.New(
				cfg.Orchestrator,
				redact.New(cfg.Redaction, logger),
				cache.New(cfg.Cache, logger),
				registry.Adapters(),
				logger,
			)

			runID := uuid.New().String()
			logger.Info("Starting analysis",
				zap.String("run_id", runID),
				zap.String("command", raw.Error.Command),
				zap.Int("exit_code", raw.Error.ExitCode))

			outcome, err := orch.Analyze(ctx, raw)

			var exhausted *orchestrator.ExhaustedError
			switch {
			case err == nil:
				annotation, rerr := renderOutcome(format, outcome)
				if rerr != nil {
					return rerr
				}
				if werr := writeAnnotation(flagOutput, annotation); werr != nil {
					return werr
				}
				logger.Info("Analysis complete",
					zap.String("run_id", runID),
					zap.String("provider", outcome.Result.Provider),
					zap.Bool("cached", outcome.Result.Cached))
				return nil

			case errors.As(err, &exhausted):
				annotation, rerr := renderFailureOutcome(format, outcome)
				if rerr == nil {
					if werr := writeAnnotation(flagOutput, annotation); werr != nil {
						logger.Warn("Could not write failure annotation", zap.Error(werr))
					}
				}
				logger.Warn("All providers failed",
					zap.String("run_id", runID),
					zap.Int("attempts", len(exhausted.Attempts)))
				if flagStrict {
					return err
				}
				// The host build already failed; this tool must not add to it.
				return nil

			default:
				if flagStrict {
					return err
				}
				logger.Warn("Analysis aborted", zap.String("run_id", runID), zap.Error(err))
				return nil
			}
		},
	}

	analyzeCmd.Flags().StringVar(&flagCommand, "command", "", "The failing command line (default: $BUILDKITE_COMMAND)")
	analyzeCmd.Flags().IntVar(&flagExitCode, "exit-code", 0, "Exit code of the failing command (default: $BUILDKITE_COMMAND_EXIT_STATUS)")
	analyzeCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Path to the step log; its tail becomes the log excerpt")
	analyzeCmd.Flags().Int64Var(&flagTailBytes, "tail-bytes", buildctx.DefaultLogTailBytes, "How much of the log tail to read")
	analyzeCmd.Flags().StringVar(&flagContext, "context", "", "Path to a JSON context file (overrides environment values)")
	analyzeCmd.Flags().StringVar(&flagCustom, "custom-context", "", "Free-form context supplied by the pipeline author")
	analyzeCmd.Flags().StringVarP(&flagFormat, "format", "f", "markdown", "Annotation format: markdown, html, or json")
	analyzeCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write the annotation to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Skip the result cache for this run")
	analyzeCmd.Flags().BoolVar(&flagStrict, "strict", false, "Exit non-zero when the analysis itself fails")
	analyzeCmd.Flags().BoolVar(&flagAsync, "async", false, "Detach and analyze in the background; the step is not delayed")

	return analyzeCmd
}

// renderOutcome renders a completed analysis in the requested format.
func renderOutcome(format report.Format, outcome *orchestrator.Outcome) (string, error) {
	if format == report.FormatJSON {
		payload := struct {
			Result      *schemas.AnalysisResult     `json:"result"`
			Fingerprint schemas.Fingerprint         `json:"fingerprint"`
			Report      *schemas.SanitizationReport `json:"sanitization"`
		}{outcome.Result, outcome.Fingerprint, outcome.Report}
		data, err := json.MarshalIndent(payload, "", "  ")
		return string(data), err
	}
	return report.NewRenderer(format).RenderResult(outcome.Result, outcome.Report)
}

// renderFailureOutcome renders the attempt log for a fully failed analysis.
func renderFailureOutcome(format report.Format, outcome *orchestrator.Outcome) (string, error) {
	if format == report.FormatJSON {
		payload := struct {
			Attempts    []schemas.AttemptRecord     `json:"attempts"`
			Fingerprint schemas.Fingerprint         `json:"fingerprint"`
			Report      *schemas.SanitizationReport `json:"sanitization"`
		}{outcome.Attempts, outcome.Fingerprint, outcome.Report}
		data, err := json.MarshalIndent(payload, "", "  ")
		return string(data), err
	}
	return report.NewRenderer(format).RenderFailure(outcome.Attempts, outcome.Report)
}

// writeAnnotation sends the annotation to a file or stdout. Stdout is
// reserved for the annotation payload; all logging goes to stderr.
func writeAnnotation(path, annotation string) error {
	if path == "" {
		_, err := fmt.Println(annotation)
		return err
	}
	return os.WriteFile(path, []byte(annotation), 0o644)
}

// spawnDetached re-executes this invocation without --async so the analysis
// proceeds in the background while the CI step moves on.
func spawnDetached(logger *zap.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot locate executable: %w", err)
	}

	args := make([]string, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		if a == "--async" || strings.HasPrefix(a, "--async=") {
			continue
		}
		args = append(args, a)
	}

	child := exec.Command(exe, args...)
	child.Stdout = nil
	child.Stderr = nil
	child.Stdin = nil
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start background analysis: %w", err)
	}
	logger.Info("Analysis continuing in background", zap.Int("pid", child.Process.Pid))
	// Do not wait; the child owns its own lifetime now.
	return child.Process.Release()
}
