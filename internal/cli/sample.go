package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/varscore/internal/pipeline"
)

var (
	sampleOut       string
	samplePositions string
)

// sampleCmd represents the sample command
var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write example input tables",
	Long: `Sample writes a small variant table usable with the batch command, and
optionally a position table for batch --positions.

Example:
  varscore sample
  varscore sample --out variants.csv --positions positions.csv
  varscore batch sample_variants.csv --out scored.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := writeRecordsFile(sampleOut, pipeline.SampleVariants); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d sample variants: %s\n", len(pipeline.SampleVariants)-1, sampleOut)

		if samplePositions != "" {
			if err := writeRecordsFile(samplePositions, pipeline.SamplePositions); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d sample positions: %s\n", len(pipeline.SamplePositions)-1, samplePositions)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().StringVar(&sampleOut, "out", "sample_variants.csv", "variant table path")
	sampleCmd.Flags().StringVar(&samplePositions, "positions", "", "position table path (optional)")
}

func writeRecordsFile(path string, records [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return pipeline.WriteRecords(f, records)
}
