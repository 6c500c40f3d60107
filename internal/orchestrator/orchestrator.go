// File: internal/orchestrator/orchestrator.go
// Description: Drives one failure analysis end to end: categorize, sanitize,
// fingerprint, consult the cache, then walk the provider fallback sequence
// under the global deadline. Raw context never crosses this boundary; only
// the sanitized form reaches a provider or the cache.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
	"github.com/buildmedic/buildmedic-cli/internal/cache"
	"github.com/buildmedic/buildmedic-cli/internal/config"
	"github.com/buildmedic/buildmedic-cli/internal/detect"
	"github.com/buildmedic/buildmedic-cli/internal/fingerprint"
	"github.com/buildmedic/buildmedic-cli/internal/provider"
	"github.com/buildmedic/buildmedic-cli/internal/redact"
)

// Outcome is everything a successful (or cached) analysis produces, bundled
// for the renderer.
type Outcome struct {
	Result      *schemas.AnalysisResult
	Report      *schemas.SanitizationReport
	Fingerprint schemas.Fingerprint
	Category    detect.Match
	Attempts    []schemas.AttemptRecord
}

// ExhaustedError reports that every provider in the sequence failed. The
// attempt records carry the per-provider story for the failure report.
type ExhaustedError struct {
	Attempts []schemas.AttemptRecord
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted after %d attempts", len(e.Attempts))
}

// Orchestrator wires the pipeline stages together. Safe for concurrent use;
// the round-robin cursor is the only mutable state.
type Orchestrator struct {
	cfg      config.OrchestratorConfig
	redactor *redact.Redactor
	cache    *cache.Cache
	adapters []provider.Adapter
	logger   *zap.Logger

	rr atomic.Uint64
}

// New builds an orchestrator over an already-validated configuration.
func New(cfg config.OrchestratorConfig, redactor *redact.Redactor, store *cache.Cache, adapters []provider.Adapter, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		redactor: redactor,
		cache:    store,
		adapters: adapters,
		logger:   logger.Named("orchestrator"),
	}
}

// Analyze runs the full pipeline for one failure. On total provider failure
// the returned error is an *ExhaustedError; the partially filled Outcome is
// still returned so the caller can render what happened.
func (o *Orchestrator) Analyze(ctx context.Context, raw *schemas.RawContext) (*Outcome, error) {
	category := detect.Detect(raw.Error.Command, raw.Error.ExitCode, raw.LogExcerpt)
	raw.Error.Category = category.Category

	sanitized, report := o.redactor.Sanitize(raw)
	fp := fingerprint.Compute(sanitized)

	outcome := &Outcome{
		Report:      report,
		Fingerprint: fp,
		Category:    category,
	}

	o.logger.Info("Analyzing failure",
		zap.String("fingerprint", string(fp)),
		zap.String("category", category.Category),
		zap.Int("redactions", report.Redactions))

	if cached, ok := o.cache.Get(fp); ok {
		o.logger.Info("Cache hit; skipping providers", zap.String("provider", cached.Provider))
		outcome.Result = cached
		return outcome, nil
	}

	prompt := provider.BuildPrompt(sanitized)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()

	result, attempts := o.runProviders(ctx, prompt)
	outcome.Attempts = attempts
	if result == nil {
		return outcome, &ExhaustedError{Attempts: attempts}
	}

	o.cache.Put(fp, result)
	outcome.Result = result
	return outcome, nil
}

// runProviders walks the fallback sequence, retrying each provider within
// its retry budget. It stops on the first success or when the global context
// expires.
func (o *Orchestrator) runProviders(ctx context.Context, prompt string) (*schemas.AnalysisResult, []schemas.AttemptRecord) {
	var attempts []schemas.AttemptRecord

	for _, adapter := range o.ordered() {
		result, providerAttempts, expired := o.tryProvider(ctx, adapter, prompt)
		attempts = append(attempts, providerAttempts...)
		if result != nil {
			return result, attempts
		}
		if expired {
			o.logger.Warn("Global deadline reached; abandoning remaining providers")
			return nil, attempts
		}
	}
	return nil, attempts
}

// tryProvider runs one provider's retry loop. expired reports that the
// global deadline fired; the caller must not try further providers.
func (o *Orchestrator) tryProvider(ctx context.Context, adapter provider.Adapter, prompt string) (result *schemas.AnalysisResult, attempts []schemas.AttemptRecord, expired bool) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.InitialBackoff
	bo.MaxInterval = o.cfg.MaxBackoff
	bo.Reset()

	log := o.logger.With(zap.String("provider", adapter.Name()))

	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		start := time.Now()
		res, err := o.callAbandonable(ctx, adapter, prompt)
		latency := time.Since(start)

		if err == nil {
			attempts = append(attempts, schemas.AttemptRecord{
				Provider: adapter.Name(),
				Outcome:  schemas.OutcomeSuccess,
				Latency:  latency,
			})
			log.Info("Provider analysis succeeded",
				zap.Duration("latency", latency), zap.Int("tokens", res.TokensUsed))
			return res, attempts, false
		}

		ce := provider.Classify(adapter.Name(), err)
		attempts = append(attempts, schemas.AttemptRecord{
			Provider: adapter.Name(),
			Outcome:  outcomeFor(ce.Class),
			Latency:  latency,
			Detail:   ce.Error(),
		})

		if ctx.Err() != nil {
			return nil, attempts, true
		}
		if !ce.Retryable() {
			log.Warn("Provider failed permanently; moving on",
				zap.String("class", string(ce.Class)), zap.Error(ce.Err))
			return nil, attempts, false
		}
		if attempt == o.cfg.MaxRetries {
			log.Warn("Provider retry budget exhausted", zap.Error(ce.Err))
			return nil, attempts, false
		}

		wait := bo.NextBackOff()
		log.Info("Retrying provider",
			zap.Int("attempt", attempt+1), zap.Duration("backoff", wait), zap.Error(ce.Err))
		if !sleepCtx(ctx, wait) {
			return nil, attempts, true
		}
	}
	return nil, attempts, false
}

// callAbandonable runs the provider call in its own goroutine so the global
// deadline abandons an in-flight call instead of waiting it out. The adapter
// shares the context and unwinds on its own shortly after.
func (o *Orchestrator) callAbandonable(ctx context.Context, adapter provider.Adapter, prompt string) (*schemas.AnalysisResult, error) {
	type callResult struct {
		res *schemas.AnalysisResult
		err error
	}
	done := make(chan callResult, 1)

	go func() {
		res, err := adapter.Analyze(ctx, prompt)
		done <- callResult{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, &provider.ClassifiedError{
			Provider: adapter.Name(),
			Class:    provider.ClassTimeout,
			Err:      fmt.Errorf("abandoned: %w", ctx.Err()),
		}
	case cr := <-done:
		return cr.res, cr.err
	}
}

// ordered resolves the fallback sequence for this invocation.
func (o *Orchestrator) ordered() []provider.Adapter {
	switch o.cfg.FallbackStrategy {
	case config.StrategyFailFast:
		if len(o.adapters) > 1 {
			return o.adapters[:1]
		}
		return o.adapters
	case config.StrategyRoundRobin:
		if len(o.adapters) < 2 {
			return o.adapters
		}
		start := int((o.rr.Add(1) - 1) % uint64(len(o.adapters)))
		rotated := make([]provider.Adapter, 0, len(o.adapters))
		rotated = append(rotated, o.adapters[start:]...)
		rotated = append(rotated, o.adapters[:start]...)
		return rotated
	default:
		return o.adapters
	}
}

func outcomeFor(class provider.Class) schemas.AttemptOutcome {
	switch class {
	case provider.ClassTimeout:
		return schemas.OutcomeTimeout
	case provider.ClassRateLimited:
		return schemas.OutcomeRateLimited
	case provider.ClassAuth:
		return schemas.OutcomeAuthError
	case provider.ClassMalformed:
		return schemas.OutcomeMalformed
	default:
		return schemas.OutcomeError
	}
}

// sleepCtx waits for d or the context, reporting false when the context won.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
