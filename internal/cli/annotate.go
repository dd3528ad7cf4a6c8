package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/pipeline"
)

var (
	jsonOutput      bool
	annotateTimeout time.Duration
)

// annotateCmd represents the annotate command
var annotateCmd = &cobra.Command{
	Use:   "annotate <variant>...",
	Short: "Annotate and score one or more variants",
	Long: `Annotate queries every enabled source for each variant and prints the
per-source results and the composite score.

Accepted identifiers:
- dbSNP rsIDs (rs80357906)
- genomic HGVS (chr17:g.43094692G>A)
- chromosome positions (chr1:12345:A>G, or chr1:12345 without alleles)
- transcript HGVS (NM_007294.4:c.5266dupC), VEP and ClinVar only

Example:
  varscore annotate rs80357906
  varscore annotate chr1:g.12345A>G --json
  varscore annotate rs80357906 rs7412 --sources myvariant,clinvar`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnnotate,
}

// positionCmd represents the position command
var positionCmd = &cobra.Command{
	Use:   "position <chromosome> <position> <ref> <alt>",
	Short: "Annotate a variant given as explicit coordinates",
	Long: `Position annotates a variant from its chromosome, 1-based position and
alleles. All enabled sources are consulted.

Example:
  varscore position chr1 12345 A G
  varscore position X 54321 T C --sources phylop,phastcons`,
	Args: cobra.ExactArgs(4),
	RunE: runPosition,
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(positionCmd)

	for _, cmd := range []*cobra.Command{annotateCmd, positionCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON reports instead of text")
		cmd.Flags().DurationVar(&annotateTimeout, "timeout", 5*time.Minute, "overall timeout")
	}
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	p, logger, err := newPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), annotateTimeout)
	defer cancel()

	unrecognized := 0
	for _, input := range args {
		report := p.AnnotateInput(ctx, input)
		if report.Failure != nil && report.Failure.Kind == model.FailureUnrecognized {
			unrecognized++
		}
		if err := printReport(report); err != nil {
			return err
		}
	}

	if unrecognized == len(args) {
		return fmt.Errorf("no recognized variant identifiers")
	}
	return nil
}

func runPosition(cmd *cobra.Command, args []string) error {
	pos, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("position must be an integer: %q", args[1])
	}

	p, logger, err := newPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), annotateTimeout)
	defer cancel()

	report, err := p.AnnotatePosition(ctx, args[0], pos, args[2], args[3])
	if err != nil {
		return fmt.Errorf("invalid position: %w", err)
	}
	logger.Debug("Position annotated", zap.String("variant", report.Input))

	return printReport(report)
}

func printReport(report *model.Report) error {
	if jsonOutput {
		return pipeline.RenderJSON(os.Stdout, report)
	}
	pipeline.RenderText(os.Stdout, report)
	return nil
}
