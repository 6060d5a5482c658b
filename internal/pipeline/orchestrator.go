// Package pipeline runs one fact-check: normalize, reason, recover, expand.
package pipeline

import (
	"context"
	"errors"
	"time"

	"factcheck/backend/internal/cache"
	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/logger"
	"factcheck/backend/internal/metrics"
	"factcheck/backend/internal/prompt"
	"factcheck/backend/internal/reasoning"
	"factcheck/backend/internal/recovery"
	"factcheck/backend/internal/sources"
)

const (
	DefaultTimeout = 90 * time.Second

	recordTimeout = 5 * time.Second
	outcomeOK     = "ok"
)

type Normalizer interface {
	Normalize(ctx context.Context, req factcheck.ContentRequest) (factcheck.NormalizedContent, error)
}

type Expander interface {
	Expand(ctx context.Context, v factcheck.Verdict) factcheck.Verdict
}

// Recorder persists finished runs. verdict is nil when runErr is set.
type Recorder interface {
	Record(ctx context.Context, req factcheck.ContentRequest, verdict *factcheck.Verdict, runErr error, elapsed time.Duration) (string, error)
}

type Config struct {
	Models        prompt.Models
	MaxImageBytes int
	Timeout       time.Duration
}

type Result struct {
	Verdict factcheck.Verdict
	CheckID string
	Cached  bool
}

type Orchestrator struct {
	cfg        Config
	normalizer Normalizer
	invoker    reasoning.Invoker
	expander   Expander
	cache      cache.Cache
	recorder   Recorder
	log        logger.Logger
	metrics    *metrics.Metrics
}

type Option func(*Orchestrator)

func WithExpander(e Expander) Option {
	return func(o *Orchestrator) { o.expander = e }
}

func WithCache(c cache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func New(cfg Config, normalizer Normalizer, invoker reasoning.Invoker, opts ...Option) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	o := &Orchestrator{
		cfg:        cfg,
		normalizer: normalizer,
		invoker:    invoker,
		cache:      cache.Nop{},
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full pipeline for one request. Every failure is a
// *factcheck.Error classified by the stage that detected it.
func (o *Orchestrator) Run(ctx context.Context, req factcheck.ContentRequest) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	log := o.log.With(logger.String("content_type", string(req.Kind)))
	result, err := o.run(runCtx, req, log)

	elapsed := time.Since(started)
	outcome := outcomeOK
	var verdict *factcheck.Verdict
	if err != nil {
		fe := factcheck.AsError(err)
		err = fe
		outcome = string(fe.Kind)
		log.Warn("fact-check failed",
			logger.String("kind", string(fe.Kind)),
			logger.String("class", string(fe.Class())),
			logger.Duration("elapsed", elapsed),
			logger.Error(fe),
		)
	} else {
		verdict = &result.Verdict
		log.Info("fact-check completed",
			logger.Int("reliability_score", result.Verdict.ReliabilityScore),
			logger.Int("sources", len(result.Verdict.Sources)),
			logger.Bool("cached", result.Cached),
			logger.Duration("elapsed", elapsed),
		)
	}
	o.metrics.ObserveCheck(string(req.Kind), outcome, len(result.Verdict.Sources))

	if o.recorder != nil {
		// The run deadline may already be spent; the record still lands.
		recordCtx, cancelRecord := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		id, recErr := o.recorder.Record(recordCtx, req, verdict, err, elapsed)
		cancelRecord()
		if recErr != nil {
			log.Error("failed to record check", logger.Error(recErr))
		} else {
			result.CheckID = id
		}
	}

	if err != nil {
		return Result{CheckID: result.CheckID}, err
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, req factcheck.ContentRequest, log logger.Logger) (Result, error) {
	if err := o.stage(log, "validate", func() error {
		return req.Validate(o.cfg.MaxImageBytes)
	}); err != nil {
		return Result{}, err
	}

	cacheKey := cache.Key(req, o.modelFor(req.Kind))
	if cached, ok := o.lookup(ctx, cacheKey, log); ok {
		return Result{Verdict: cached, Cached: true}, nil
	}

	var content factcheck.NormalizedContent
	if err := o.stage(log, "normalize", func() error {
		var err error
		content, err = o.normalizer.Normalize(ctx, req)
		return err
	}); err != nil {
		return Result{}, err
	}

	request := prompt.Build(content, o.cfg.Models)

	var raw string
	if err := o.stage(log, "reason", func() error {
		var err error
		raw, err = o.invoker.Invoke(ctx, request)
		return err
	}); err != nil {
		return Result{}, err
	}

	var verdict factcheck.Verdict
	if err := o.stage(log, "recover", func() error {
		var err error
		verdict, err = recovery.Recover(raw)
		return err
	}); err != nil {
		var fe *factcheck.Error
		if errors.As(err, &fe) {
			log.Error("could not recover verdict from reasoning response",
				logger.String("kind", string(fe.Kind)),
				logger.String("field", fe.Field),
				logger.String("raw_response", fe.Raw),
			)
		}
		return Result{}, err
	}

	if o.expander != nil && len(verdict.KeyClaims) > 0 {
		_ = o.stage(log, "expand", func() error {
			verdict = o.expander.Expand(ctx, verdict)
			return nil
		})
	}
	// The model's own list is bounded even when expansion is skipped.
	verdict.Sources = sources.Merge(sources.DefaultMaxSources, verdict.Sources)

	if err := o.cache.Set(ctx, cacheKey, verdict); err != nil {
		log.Warn("failed to cache verdict", logger.Error(err))
	}
	return Result{Verdict: verdict}, nil
}

func (o *Orchestrator) stage(log logger.Logger, name string, fn func() error) error {
	started := time.Now()
	err := fn()
	elapsed := time.Since(started)

	outcome := outcomeOK
	if err != nil {
		outcome = string(factcheck.KindOf(err))
	}
	o.metrics.ObserveStage(name, outcome, elapsed)
	log.Debug("stage finished",
		logger.String("stage", name),
		logger.String("outcome", outcome),
		logger.Duration("elapsed", elapsed),
	)
	return err
}

func (o *Orchestrator) lookup(ctx context.Context, key string, log logger.Logger) (factcheck.Verdict, bool) {
	cached, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		log.Warn("verdict cache lookup failed", logger.Error(err))
		return factcheck.Verdict{}, false
	}
	if _, nop := o.cache.(cache.Nop); !nop {
		o.metrics.ObserveCacheLookup(ok)
	}
	return cached, ok
}

func (o *Orchestrator) modelFor(kind factcheck.Kind) string {
	if kind == factcheck.KindImage {
		return o.cfg.Models.Vision
	}
	return o.cfg.Models.Text
}
