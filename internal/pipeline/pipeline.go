// Package pipeline ties parsing, annotation and scoring together for single
// variants and batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/varscore/internal/annotate"
	"github.com/ppiankov/varscore/internal/cache"
	"github.com/ppiankov/varscore/internal/config"
	"github.com/ppiankov/varscore/internal/metrics"
	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/score"
	"github.com/ppiankov/varscore/internal/source"
	"github.com/ppiankov/varscore/internal/util"
	"github.com/ppiankov/varscore/internal/variant"
	"github.com/ppiankov/varscore/internal/worker"
)

// Pipeline annotates and scores variants
type Pipeline struct {
	cfg          config.Config
	orchestrator *annotate.Orchestrator
	scorer       *score.Scorer
	memo         cache.Cache
	batch        *worker.BatchProcessor
	logger       *zap.Logger
}

// Option customizes a Pipeline
type Option func(*options)

type options struct {
	httpClient *http.Client
	clients    []source.Client
	clientsSet bool
}

// WithHTTPClient replaces the shared HTTP client of the sources
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClients replaces the configured sources
func WithClients(clients ...source.Client) Option {
	return func(o *options) {
		o.clients = clients
		o.clientsSet = true
	}
}

// New validates cfg and builds the pipeline. Invalid configuration is the
// only construction failure.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	clients := o.clients
	if !o.clientsSet {
		limiter := worker.NewLimiter(cfg.MinInterval, cfg.MaxWait)
		for name, d := range cfg.SourceIntervals {
			limiter.SetSourceInterval(name, d)
		}

		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = util.NewHTTPClient(cfg)
		}

		srcOpts := source.OptionsFromConfig(cfg)
		srcOpts.HTTPClient = httpClient
		srcOpts.Limiter = limiter
		srcOpts.Logger = logger

		var err error
		clients, err = source.NewClients(cfg, srcOpts)
		if err != nil {
			return nil, fmt.Errorf("build sources: %w", err)
		}
	}

	p := &Pipeline{
		cfg:          cfg,
		orchestrator: annotate.New(clients, logger),
		scorer:       score.NewScorer(cfg.Weights),
		logger:       logger,
	}
	if cfg.Cache.Enabled {
		p.memo = cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
	}
	p.batch = worker.NewBatchProcessor(p, cfg.WorkerConcurrency, logger)

	return p, nil
}

// Sources returns the consulted sources in order
func (p *Pipeline) Sources() []string {
	return p.orchestrator.Sources()
}

// AnnotateInput parses and annotates one raw input. Unrecognized input yields
// a report flagged UnrecognizedIdentifier with a zero score.
func (p *Pipeline) AnnotateInput(ctx context.Context, input string) *model.Report {
	id, err := variant.Parse(input)
	if err != nil {
		var perr *variant.ParseError
		msg := err.Error()
		if errors.As(err, &perr) && perr.Reason != "" {
			msg = perr.Reason
		}
		p.logger.Warn("Unrecognized identifier", zap.String("input", input), zap.Error(err))
		return &model.Report{
			Input:       input,
			Failure:     &model.Failure{Kind: model.FailureUnrecognized, Message: msg},
			Score:       p.scorer.Calculate(model.AnnotationResult{}),
			AnnotatedAt: time.Now().UTC(),
		}
	}
	return p.AnnotateIdentifier(ctx, input, id)
}

// AnnotatePosition annotates explicit coordinates
func (p *Pipeline) AnnotatePosition(ctx context.Context, chrom string, pos int64, ref, alt string) (*model.Report, error) {
	id, err := variant.FromPosition(chrom, pos, ref, alt)
	if err != nil {
		return nil, err
	}
	return p.AnnotateIdentifier(ctx, id.Raw, id), nil
}

// AnnotateIdentifier annotates and scores a parsed identifier. Bundles with at
// least one successful source are memoized for the rest of the process.
func (p *Pipeline) AnnotateIdentifier(ctx context.Context, input string, id variant.Identifier) *model.Report {
	var (
		bundle model.AnnotationResult
		cached bool
		key    string
	)

	if p.memo != nil {
		key = cache.CacheKey(id.Key(), p.Sources())
		bundle, cached = p.memo.Get(key)
		if cached {
			metrics.AnnotationCacheTotal.WithLabelValues("hit").Inc()
		} else {
			metrics.AnnotationCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	if !cached {
		bundle = p.orchestrator.Annotate(ctx, id)
		if p.memo != nil && bundle.OverallSuccess() {
			p.memo.Set(key, bundle, 0)
		}
	}

	sc := p.scorer.Calculate(bundle)
	metrics.VariantsScoredTotal.WithLabelValues(string(model.Interpret(sc.Value))).Inc()

	p.logger.Info("Variant scored",
		zap.String("variant", id.Key()),
		zap.Float64("score", sc.Value),
		zap.Bool("insufficient_data", sc.InsufficientData),
		zap.Bool("cached", cached),
	)

	return &model.Report{
		Input:       input,
		Identifier:  &id,
		Annotation:  &bundle,
		Score:       sc,
		AnnotatedAt: time.Now().UTC(),
		Cached:      cached,
	}
}

// Batch annotates inputs concurrently and returns one report per input in
// input order
func (p *Pipeline) Batch(ctx context.Context, inputs []string) []*model.Report {
	return p.batch.ProcessInputs(ctx, inputs)
}

// BatchFile annotates the identifiers listed in a text file
func (p *Pipeline) BatchFile(ctx context.Context, path string) ([]*model.Report, error) {
	return p.batch.ProcessFile(ctx, path)
}

// Config returns the validated configuration
func (p *Pipeline) Config() config.Config {
	return p.cfg
}
