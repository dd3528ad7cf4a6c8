package model

import (
	"time"

	"github.com/ppiankov/varscore/internal/variant"
)

// Report is the per-input outcome handed to renderers: one per input row,
// whether or not the input could be parsed.
type Report struct {
	Input       string              `json:"input"`                // Original input text
	Identifier  *variant.Identifier `json:"identifier,omitempty"` // Nil when the input was unrecognized
	Annotation  *AnnotationResult   `json:"annotation,omitempty"` // Nil when the input was unrecognized
	Score       Score               `json:"score"`                // Composite score; zero when no data
	Failure     *Failure            `json:"error,omitempty"`      // Variant-level failure (unrecognized, cancelled)
	AnnotatedAt time.Time           `json:"annotated_at"`
	Cached      bool                `json:"cached,omitempty"` // Annotation served from the in-process memo
}

// Interpretation returns the presentation band of the score
func (r *Report) Interpretation() Interpretation {
	return Interpret(r.Score.Value)
}

// OverallSuccess is true when at least one source returned data
func (r *Report) OverallSuccess() bool {
	return r.Annotation != nil && r.Annotation.OverallSuccess()
}

// SourceSucceeded reports the success flag of a single source
func (r *Report) SourceSucceeded(source string) bool {
	if r.Annotation == nil {
		return false
	}
	res, ok := r.Annotation.Result(source)
	return ok && res.Success
}
