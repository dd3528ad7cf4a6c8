package model

import (
	"fmt"
	"time"

	"github.com/ppiankov/varscore/internal/variant"
)

// FailureKind classifies why a source or a variant produced no data
type FailureKind string

const (
	FailureUnrecognized     FailureKind = "unrecognized_identifier" // Input matched no identifier pattern
	FailureTimeout          FailureKind = "timeout"                 // Request or batch deadline exceeded
	FailureTransport        FailureKind = "transport_error"         // Network failure, bad status or unreadable body
	FailureRateLimited      FailureKind = "rate_limited"            // Remote 429 or local limiter ceiling
	FailureNotFound         FailureKind = "not_found"               // Source has no record for the variant
	FailureNotApplicable    FailureKind = "not_applicable"          // Identifier form unusable by the source
	FailureInsufficientData FailureKind = "insufficient_data"       // No scoring factor had data
)

// Failure describes a captured failure. It is data, not a Go error crossing
// component boundaries, though it satisfies error for logging.
type Failure struct {
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Attempts   int         `json:"attempts,omitempty"`
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// SourceResult is the outcome of one source for one variant
type SourceResult struct {
	Source   string           `json:"source"`
	Success  bool             `json:"success"`
	Fields   map[string]Value `json:"fields,omitempty"`
	Failure  *Failure         `json:"error,omitempty"`
	Attempts int              `json:"attempts"`
	Duration time.Duration    `json:"duration_ns"`
}

// Succeeded builds a successful result
func Succeeded(source string, fields map[string]Value, attempts int) SourceResult {
	if fields == nil {
		fields = map[string]Value{}
	}
	return SourceResult{Source: source, Success: true, Fields: fields, Attempts: attempts}
}

// Failed builds a failed result
func Failed(source string, f *Failure) SourceResult {
	r := SourceResult{Source: source, Failure: f}
	if f != nil {
		r.Attempts = f.Attempts
	}
	return r
}

// NotApplicable builds the result of a deliberately skipped source
func NotApplicable(source, reason string) SourceResult {
	return SourceResult{Source: source, Failure: &Failure{Kind: FailureNotApplicable, Message: reason}}
}

// Skipped reports whether the source was not consulted on purpose
func (r SourceResult) Skipped() bool {
	return r.Failure != nil && r.Failure.Kind == FailureNotApplicable
}

// Field returns a field of a successful result
func (r SourceResult) Field(name string) (Value, bool) {
	if !r.Success {
		return Value{}, false
	}
	v, ok := r.Fields[name]
	return v, ok
}

// AnnotationResult bundles one SourceResult per configured source for a
// single identifier. Sources preserves the configured consultation order.
type AnnotationResult struct {
	Identifier variant.Identifier      `json:"identifier"`
	Sources    []string                `json:"sources"`
	Results    map[string]SourceResult `json:"results"`
}

// NewAnnotationResult assembles a bundle from results in source order
func NewAnnotationResult(id variant.Identifier, results []SourceResult) AnnotationResult {
	ar := AnnotationResult{
		Identifier: id,
		Sources:    make([]string, 0, len(results)),
		Results:    make(map[string]SourceResult, len(results)),
	}
	for _, r := range results {
		ar.Sources = append(ar.Sources, r.Source)
		ar.Results[r.Source] = r
	}
	return ar
}

// Result returns the result recorded for source
func (a AnnotationResult) Result(source string) (SourceResult, bool) {
	r, ok := a.Results[source]
	return r, ok
}

// Field returns a field from source when that source succeeded
func (a AnnotationResult) Field(source, name string) (Value, bool) {
	r, ok := a.Results[source]
	if !ok {
		return Value{}, false
	}
	return r.Field(name)
}

// OverallSuccess is true iff at least one source succeeded
func (a AnnotationResult) OverallSuccess() bool {
	for _, r := range a.Results {
		if r.Success {
			return true
		}
	}
	return false
}

// Succeeded lists successful sources in configured order
func (a AnnotationResult) Succeeded() []string {
	var out []string
	for _, s := range a.Sources {
		if a.Results[s].Success {
			out = append(out, s)
		}
	}
	return out
}

// Failures maps each failed (not skipped) source to its failure
func (a AnnotationResult) Failures() map[string]*Failure {
	out := make(map[string]*Failure)
	for _, s := range a.Sources {
		r := a.Results[s]
		if !r.Success && !r.Skipped() {
			out[s] = r.Failure
		}
	}
	return out
}
