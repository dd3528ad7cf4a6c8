package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/varscore/internal/model"
)

// mockAnnotator implements Annotator
type mockAnnotator struct {
	delay time.Duration
	calls int32
}

func (m *mockAnnotator) AnnotateInput(ctx context.Context, input string) *model.Report {
	atomic.AddInt32(&m.calls, 1)
	time.Sleep(m.delay)
	if strings.HasPrefix(input, "bad") {
		return &model.Report{
			Input:   input,
			Failure: &model.Failure{Kind: model.FailureUnrecognized, Message: "unrecognized"},
		}
	}
	return &model.Report{Input: input, Score: model.Score{Value: 0.5}}
}

func TestBatchProcessor_ProcessInputs(t *testing.T) {
	annotator := &mockAnnotator{delay: 5 * time.Millisecond}
	processor := NewBatchProcessor(annotator, 2, nil)

	inputs := []string{"rs1", "rs2", "bad-input", "rs4", "rs5"}
	reports := processor.ProcessInputs(context.Background(), inputs)

	if len(reports) != len(inputs) {
		t.Fatalf("expected %d reports, got %d", len(inputs), len(reports))
	}

	for i, r := range reports {
		if r == nil {
			t.Fatalf("report %d is nil", i)
		}
		if r.Input != inputs[i] {
			t.Errorf("report %d out of order: got %q, want %q", i, r.Input, inputs[i])
		}
	}

	if reports[2].Failure == nil || reports[2].Failure.Kind != model.FailureUnrecognized {
		t.Errorf("expected unrecognized failure for bad input, got %+v", reports[2].Failure)
	}
	if reports[0].Failure != nil {
		t.Errorf("unexpected failure: %v", reports[0].Failure)
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockAnnotator{}, 2, nil)

	reports := processor.ProcessInputs(context.Background(), nil)
	if len(reports) != 0 {
		t.Errorf("expected no reports, got %d", len(reports))
	}
}

func TestBatchProcessor_CancelledBeforeStart(t *testing.T) {
	annotator := &mockAnnotator{}
	processor := NewBatchProcessor(annotator, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := []string{"rs1", "rs2", "rs3"}
	reports := processor.ProcessInputs(ctx, inputs)

	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	if atomic.LoadInt32(&annotator.calls) != 0 {
		t.Errorf("no input should be annotated after cancellation, got %d", annotator.calls)
	}
	for i, r := range reports {
		if r.Failure == nil || r.Failure.Kind != model.FailureTimeout {
			t.Errorf("report %d: expected timeout failure, got %+v", i, r.Failure)
		}
		if r.Input != inputs[i] {
			t.Errorf("report %d: input %q, want %q", i, r.Input, inputs[i])
		}
	}
}

func TestBatchProcessor_CancelMidBatch(t *testing.T) {
	annotator := &mockAnnotator{delay: 20 * time.Millisecond}
	processor := NewBatchProcessor(annotator, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	inputs := make([]string, 20)
	for i := range inputs {
		inputs[i] = "rs" + strings.Repeat("1", i+1)
	}

	reports := processor.ProcessInputs(ctx, inputs)
	if len(reports) != len(inputs) {
		t.Fatalf("expected %d reports, got %d", len(inputs), len(reports))
	}

	completed, cancelled := 0, 0
	for _, r := range reports {
		switch {
		case r.Failure == nil:
			completed++
		case r.Failure.Kind == model.FailureTimeout:
			cancelled++
		}
	}
	if completed == 0 {
		t.Error("expected the in-flight input to complete")
	}
	if cancelled == 0 {
		t.Error("expected unstarted inputs to be reported as cancelled")
	}
	if completed+cancelled != len(inputs) {
		t.Errorf("every input must be accounted for: %d + %d != %d", completed, cancelled, len(inputs))
	}
}

func TestAnnotateJob_IgnoresCancellation(t *testing.T) {
	var seen error
	job := &AnnotateJob{Index: 0, Input: "rs1", Annotator: annotatorFunc(func(ctx context.Context, in string) *model.Report {
		seen = ctx.Err()
		return &model.Report{Input: in}
	})}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := job.Execute(ctx)
	if seen != nil {
		t.Errorf("annotator saw cancelled context: %v", seen)
	}
	if res.GetError() != nil {
		t.Errorf("unexpected error: %v", res.GetError())
	}
}

type annotatorFunc func(ctx context.Context, input string) *model.Report

func (f annotatorFunc) AnnotateInput(ctx context.Context, input string) *model.Report {
	return f(ctx, input)
}

func TestBatchResult_GetError(t *testing.T) {
	if err := (&BatchResult{}).GetError(); err != nil {
		t.Errorf("nil report should have no error, got %v", err)
	}
	r := &BatchResult{Report: &model.Report{Failure: &model.Failure{Kind: model.FailureTimeout, Message: "x"}}}
	if r.GetError() == nil {
		t.Error("expected failure to surface")
	}
}

func TestReadInputsFromFile(t *testing.T) {
	content := `# variants
rs429358

chr17:g.43045712T>C
# duplicate kept
rs429358
  NM_000059.3:c.68_69del
`
	path := filepath.Join(t.TempDir(), "variants.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	inputs, err := ReadInputsFromFile(path)
	if err != nil {
		t.Fatalf("ReadInputsFromFile failed: %v", err)
	}

	expected := []string{"rs429358", "chr17:g.43045712T>C", "rs429358", "NM_000059.3:c.68_69del"}
	if len(inputs) != len(expected) {
		t.Fatalf("expected %d inputs, got %d: %v", len(expected), len(inputs), inputs)
	}
	for i := range expected {
		if inputs[i] != expected[i] {
			t.Errorf("input %d: got %q, want %q", i, inputs[i], expected[i])
		}
	}
}

func TestReadInputsFromFile_Missing(t *testing.T) {
	if _, err := ReadInputsFromFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, []byte("rs1\nrs2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	processor := NewBatchProcessor(&mockAnnotator{}, 4, nil)
	reports, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Errorf("expected 2 reports, got %d", len(reports))
	}
}
