// Package server exposes the annotation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ppiankov/varscore/internal/config"
	"github.com/ppiankov/varscore/internal/metrics"
	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/pipeline"
)

// Error codes of ErrorResponse
const (
	CodeBadRequest     = "bad_request"
	CodeUnrecognized   = "unrecognized_identifier"
	CodeBatchTooLarge  = "batch_too_large"
	CodeInternalError  = "internal_error"
	CodeInvalidVariant = "invalid_variant"
)

// Annotator is the part of the pipeline the API serves
type Annotator interface {
	AnnotateInput(ctx context.Context, input string) *model.Report
	AnnotatePosition(ctx context.Context, chrom string, pos int64, ref, alt string) (*model.Report, error)
	Batch(ctx context.Context, inputs []string) []*model.Report
	Sources() []string
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Report  *model.Report `json:"report,omitempty"`
}

// BatchRequest is the body of POST /batch
type BatchRequest struct {
	Variants []string `json:"variants"`
}

// BatchResponse is the JSON result of POST /batch
type BatchResponse struct {
	Reports []*model.Report  `json:"reports"`
	Summary pipeline.Summary `json:"summary"`
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status  string   `json:"status"`
	Sources []string `json:"sources"`
}

// Server serves annotation requests
type Server struct {
	annotator Annotator
	maxBatch  int
	logger    *zap.Logger
}

// New creates an API server. maxBatch bounds the variants per batch request.
func New(annotator Annotator, maxBatch int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatch < 1 {
		maxBatch = 1
	}
	return &Server{annotator: annotator, maxBatch: maxBatch, logger: logger}
}

// Routes builds the chi router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/annotate/{id}", s.annotate)
	r.Get("/position/{chrom}/{pos}/{ref}/{alt}", s.position)
	r.Post("/batch", s.batch)

	return r
}

// ListenAndServe serves cfg.Addr until ctx is done, then shuts down
// gracefully within cfg.ShutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("Server stopped gracefully")
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sources: s.annotator.Sources()})
}

// annotate handles GET /annotate/{id}. HGVS input must be path-escaped.
func (s *Server) annotate(w http.ResponseWriter, r *http.Request) {
	input, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid identifier encoding")
		return
	}

	report := s.annotator.AnnotateInput(r.Context(), input)
	if report.Failure != nil && report.Failure.Kind == model.FailureUnrecognized {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    CodeUnrecognized,
			Message: report.Failure.Error(),
			Report:  report,
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// position handles GET /position/{chrom}/{pos}/{ref}/{alt}
func (s *Server) position(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.ParseInt(chi.URLParam(r, "pos"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidVariant, "position must be an integer")
		return
	}

	report, err := s.annotator.AnnotatePosition(r.Context(),
		chi.URLParam(r, "chrom"), pos, chi.URLParam(r, "ref"), chi.URLParam(r, "alt"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidVariant, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// batch handles POST /batch. ?format=csv returns the result table instead
// of JSON reports.
func (s *Server) batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Variants) == 0 || len(req.Variants) > s.maxBatch {
		writeError(w, http.StatusBadRequest, CodeBatchTooLarge,
			fmt.Sprintf("variants count must be between 1 and %d", s.maxBatch))
		return
	}

	reports := s.annotator.Batch(r.Context(), req.Variants)
	sources := s.annotator.Sources()

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := pipeline.WriteCSV(w, pipeline.Table(reports, sources)); err != nil {
			s.logger.Error("Write CSV response", zap.Error(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		Reports: reports,
		Summary: pipeline.Summarize(reports, sources),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// jsonRecoverer returns JSON instead of a plain text stacktrace on panic
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one log line per request and echoes X-Request-ID
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http_request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
