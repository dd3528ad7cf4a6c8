// Package source implements the clients of the remote annotation services.
// Every client turns one identifier into exactly one model.SourceResult and
// never returns a Go error or panics past Fetch: failures are data.
package source

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/varscore/internal/metrics"
	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/variant"
)

// Client fetches the annotation of one source for one identifier
type Client interface {
	Name() string
	Fetch(ctx context.Context, id variant.Identifier) model.SourceResult
}

// Acquirer grants permission to issue one request to a source
type Acquirer interface {
	Acquire(ctx context.Context, source string) error
}

// errNotApplicable is returned by request builders for identifier forms a
// source cannot query
var errNotApplicable = errors.New("identifier form not supported by source")

// Options configures the shared requester of every client
type Options struct {
	HTTPClient     *http.Client
	Limiter        Acquirer
	MaxRetries     int
	BaseDelay      time.Duration
	RequestTimeout time.Duration
	UserAgent      string
	Logger         *zap.Logger
}

// noLimit grants every request immediately
type noLimit struct{}

func (noLimit) Acquire(context.Context, string) error { return nil }

// finish stamps duration, records outcome metrics and logs the final state
func finish(log *zap.Logger, res model.SourceResult, start time.Time) model.SourceResult {
	res.Duration = time.Since(start)

	outcome := "success"
	if !res.Success && res.Failure != nil {
		outcome = string(res.Failure.Kind)
	}
	metrics.SourceResultsTotal.WithLabelValues(res.Source, outcome).Inc()

	switch {
	case res.Success:
		log.Debug("Source succeeded",
			zap.String("source", res.Source),
			zap.Int("fields", len(res.Fields)),
			zap.Int("attempts", res.Attempts),
			zap.Duration("duration", res.Duration),
		)
	case res.Skipped():
		log.Debug("Source not applicable", zap.String("source", res.Source), zap.String("reason", res.Failure.Message))
	default:
		log.Warn("Source failed",
			zap.String("source", res.Source),
			zap.String("kind", string(res.Failure.Kind)),
			zap.String("message", res.Failure.Message),
			zap.Int("attempts", res.Attempts),
		)
	}
	return res
}
