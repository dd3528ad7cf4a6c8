package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/spf13/cobra"

	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/pipeline"
)

var (
	column       string
	positions    bool
	outCSV       string
	outJSON      string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Annotate many variants from a file in parallel",
	Long: `Batch annotates every variant listed in a file:
- Plain text: one identifier per line (blank lines and # comments skipped)
- CSV: identifiers read from a designated column (--column)
- CSV with --positions: chromosome, position, reference, alternate columns

Variants are processed concurrently (worker_concurrency) and results keep
input order. With --out the result columns are appended to the input table.

Example:
  varscore batch variants.txt
  varscore batch variants.csv --column variant_id --out scored.csv
  varscore batch positions.csv --positions --out scored.csv --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&column, "column", pipeline.ColumnVariantID, "identifier column of a CSV input")
	batchCmd.Flags().BoolVar(&positions, "positions", false, "input is a CSV of chromosome,position,reference,alternate")
	batchCmd.Flags().StringVar(&outCSV, "out", "", "output CSV path (input columns plus results)")
	batchCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (full reports and summary)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
}

// batchOutput is the JSON document written by --json
type batchOutput struct {
	Reports []*model.Report  `json:"reports"`
	Summary pipeline.Summary `json:"summary"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	p, logger, err := newPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg := p.Config()
	sources := p.Sources()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  varscore Batch Annotation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Sources:      %s\n", strings.Join(sources, ", "))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.WorkerConcurrency)
	fmt.Fprintf(os.Stderr, "  Genome:       %s\n", cfg.Genome)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	var (
		input   *dataframe.DataFrame
		reports []*model.Report
	)

	if positions || isCSV(file) || cmd.Flags().Changed("column") {
		df, inputs, err := readTableInputs(file)
		if err != nil {
			return err
		}
		input = &df
		fmt.Fprintf(os.Stderr, "✓ Loaded %d variants\n\n", len(inputs))
		reports = p.Batch(ctx, inputs)
	} else {
		reports, err = p.BatchFile(ctx, file)
		if err != nil {
			return fmt.Errorf("process file: %w", err)
		}
	}

	for _, r := range reports {
		if r.Failure != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", r.Input, r.Failure.Error())
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s (score: %.3f %s, sources: %d/%d)\n",
			r.Input, r.Score.Value, r.Interpretation(), len(r.Annotation.Succeeded()), len(sources))
	}

	summary := pipeline.Summarize(reports, sources)
	pipeline.RenderSummary(os.Stderr, summary, sources)

	if outCSV != "" {
		if err := writeTable(outCSV, input, pipeline.Table(reports, sources)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\n  Table:  %s\n", outCSV)
	}

	if outJSON != "" {
		if err := writeJSONFile(outJSON, batchOutput{Reports: reports, Summary: summary}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "  JSON:   %s\n", outJSON)
	}

	if outCSV == "" && outJSON == "" {
		return pipeline.WriteCSV(os.Stdout, pipeline.Table(reports, sources))
	}
	fmt.Fprintf(os.Stderr, "\n")
	return nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// readTableInputs reads a CSV input and extracts one identifier per row
func readTableInputs(path string) (dataframe.DataFrame, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	df, err := pipeline.ReadTable(f)
	if err != nil {
		return df, nil, err
	}

	var inputs []string
	if positions {
		inputs, err = pipeline.PositionInputs(df)
	} else {
		inputs, err = pipeline.ColumnValues(df, column)
	}
	if err != nil {
		return df, nil, err
	}
	return df, inputs, nil
}

// writeTable writes results, merged into the input table when there is one
func writeTable(path string, input *dataframe.DataFrame, results dataframe.DataFrame) (err error) {
	out := results
	if input != nil {
		if out, err = pipeline.Merge(*input, results); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output: %w", closeErr)
		}
	}()

	return pipeline.WriteCSV(f, out)
}

func writeJSONFile(path string, v interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output: %w", closeErr)
		}
	}()

	return pipeline.RenderJSON(f, v)
}
