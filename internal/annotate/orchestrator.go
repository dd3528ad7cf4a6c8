// Package annotate fans one identifier out to every configured source and
// assembles the per-source results into a single bundle.
package annotate

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/source"
	"github.com/ppiankov/varscore/internal/variant"
)

// Orchestrator queries all configured sources concurrently
type Orchestrator struct {
	clients []source.Client
	logger  *zap.Logger
}

// New creates an orchestrator. The order of clients is the order of sources
// in every bundle it produces.
func New(clients []source.Client, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{clients: clients, logger: logger}
}

// Sources returns the configured source names in order
func (o *Orchestrator) Sources() []string {
	names := make([]string, len(o.clients))
	for i, c := range o.clients {
		names[i] = c.Name()
	}
	return names
}

// Annotate fetches every source for id and waits for all of them. The bundle
// holds exactly one result per configured source; a source that did not run
// because ctx ended is recorded as a timeout.
func (o *Orchestrator) Annotate(ctx context.Context, id variant.Identifier) model.AnnotationResult {
	results := make([]model.SourceResult, len(o.clients))
	done := make([]bool, len(o.clients))

	// Fetch never returns an error, so the group only joins the fan-out.
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range o.clients {
		i, c := i, c
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = c.Fetch(gctx, id)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range o.clients {
		if !done[i] {
			results[i] = model.Failed(c.Name(), &model.Failure{
				Kind:    model.FailureTimeout,
				Message: "not started: " + context.Cause(ctx).Error(),
			})
		}
	}

	bundle := model.NewAnnotationResult(id, results)
	o.logger.Debug("Variant annotated",
		zap.String("variant", id.Key()),
		zap.Strings("succeeded", bundle.Succeeded()),
		zap.Bool("overall_success", bundle.OverallSuccess()),
	)
	return bundle
}
