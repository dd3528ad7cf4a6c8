package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/varscore/internal/model"
)

// Annotator produces a complete report for one raw input
type Annotator interface {
	AnnotateInput(ctx context.Context, input string) *model.Report
}

// AnnotateJob annotates a single input of a batch
type AnnotateJob struct {
	Index     int
	Input     string
	Annotator Annotator
}

// Execute runs the annotation. Batch cancellation is not propagated into a
// job that already started: its source fetches finish or time out on their
// own so the resulting bundle is complete.
func (j *AnnotateJob) Execute(ctx context.Context) Result {
	report := j.Annotator.AnnotateInput(context.WithoutCancel(ctx), j.Input)
	return &BatchResult{Index: j.Index, Input: j.Input, Report: report}
}

// BatchResult is the outcome of one batch entry
type BatchResult struct {
	Index  int
	Input  string
	Report *model.Report
}

// GetError returns the variant-level failure, if any
func (r *BatchResult) GetError() error {
	if r.Report == nil || r.Report.Failure == nil {
		return nil
	}
	return r.Report.Failure
}

// BatchProcessor annotates many inputs concurrently with a bounded number of
// workers and returns one report per input, in input order.
type BatchProcessor struct {
	annotator   Annotator
	concurrency int
	logger      *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(annotator Annotator, concurrency int, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		annotator:   annotator,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessInputs annotates inputs and returns exactly one report per input.
// Entries never started because ctx ended are reported as timeouts.
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []string) []*model.Report {
	reports := make([]*model.Report, len(inputs))
	if len(inputs) == 0 {
		return reports
	}

	runID := uuid.NewString()
	log := b.logger.With(zap.String("run_id", runID))
	log.Info("Batch started", zap.Int("variants", len(inputs)), zap.Int("workers", b.concurrency))
	start := time.Now()

	pool := NewPool(ctx, b.concurrency)
	defer pool.Shutdown()
	pool.Start()

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range pool.Results() {
			br := res.(*BatchResult)
			reports[br.Index] = br.Report
			if err := br.GetError(); err != nil {
				log.Warn("Variant not annotated", zap.String("input", br.Input), zap.Error(err))
			} else {
				log.Debug("Variant annotated",
					zap.String("input", br.Input),
					zap.Float64("score", br.Report.Score.Value),
				)
			}
		}
	}()

	for i, in := range inputs {
		if !pool.Submit(&AnnotateJob{Index: i, Input: in, Annotator: b.annotator}) {
			break
		}
	}

	pool.Wait()
	<-collected

	skipped := 0
	for i := range reports {
		if reports[i] == nil {
			reports[i] = cancelledReport(inputs[i], ctx.Err())
			skipped++
		}
	}

	log.Info("Batch finished",
		zap.Int("variants", len(inputs)),
		zap.Int("not_started", skipped),
		zap.Duration("duration", time.Since(start)),
	)

	return reports
}

// ProcessFile reads inputs from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*model.Report, error) {
	inputs, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, inputs), nil
}

func cancelledReport(input string, cause error) *model.Report {
	msg := "batch cancelled before annotation"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &model.Report{
		Input:       input,
		Failure:     &model.Failure{Kind: model.FailureTimeout, Message: msg},
		Score:       model.Score{InsufficientData: true, Factors: map[string]model.Factor{}},
		AnnotatedAt: time.Now().UTC(),
	}
}

// ReadInputsFromFile reads variant identifiers from a file (one per line).
// Blank lines and lines starting with '#' are skipped; duplicates are kept so
// every line yields a report.
func ReadInputsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		inputs = append(inputs, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
