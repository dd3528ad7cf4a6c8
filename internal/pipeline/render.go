package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/ppiankov/varscore/internal/config"
	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/source"
	"github.com/ppiankov/varscore/internal/variant"
)

// ColumnVariantID is the identifier column of input and output tables
const ColumnVariantID = "variant_id"

// Position table columns
var positionColumns = []string{"chromosome", "position", "reference", "alternate"}

// RenderJSON writes v as indented JSON
func RenderJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// Table renders reports as one row per report: variant_id, score,
// interpretation, per-factor contributions, per-source success flags, the
// successful source names and the main MyVariant values.
func Table(reports []*model.Report, sources []string) dataframe.DataFrame {
	n := len(reports)
	ids := make([]string, n)
	scores := make([]float64, n)
	bands := make([]string, n)
	errs := make([]string, n)
	succeeded := make([]string, n)
	cadd := make([]string, n)
	af := make([]string, n)

	contrib := make(map[string][]float64, len(model.FactorOrder))
	for _, f := range model.FactorOrder {
		contrib[f] = make([]float64, n)
	}
	flags := make(map[string][]bool, len(sources))
	for _, s := range sources {
		flags[s] = make([]bool, n)
	}

	for i, r := range reports {
		ids[i] = r.Input
		scores[i] = r.Score.Value
		bands[i] = string(r.Interpretation())
		if r.Failure != nil {
			errs[i] = r.Failure.Error()
		}
		for _, f := range model.FactorOrder {
			contrib[f][i] = r.Score.Contribution(f)
		}
		for _, s := range sources {
			flags[s][i] = r.SourceSucceeded(s)
		}
		if r.Annotation != nil {
			succeeded[i] = strings.Join(r.Annotation.Succeeded(), ",")
			cadd[i] = numberField(r.Annotation, source.FieldCADDPhred)
			af[i] = numberField(r.Annotation, source.FieldGnomADExomeAF)
		}
	}

	cols := []series.Series{
		series.New(ids, series.String, ColumnVariantID),
		series.New(scores, series.Float, "score"),
		series.New(bands, series.String, "interpretation"),
	}
	for _, f := range model.FactorOrder {
		cols = append(cols, series.New(contrib[f], series.Float, "contribution_"+f))
	}
	for _, s := range sources {
		cols = append(cols, series.New(flags[s], series.Bool, s+"_success"))
	}
	cols = append(cols,
		series.New(succeeded, series.String, "successful_sources"),
		series.New(cadd, series.String, "cadd_phred"),
		series.New(af, series.String, "gnomad_af"),
		series.New(errs, series.String, "error"),
	)

	return dataframe.New(cols...)
}

func numberField(ar *model.AnnotationResult, field string) string {
	v, ok := ar.Field(config.SourceMyVariant, field)
	if !ok {
		return ""
	}
	f, ok := v.Number()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ReadTable reads a CSV with a header row. All cells are kept as strings.
func ReadTable(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r, dataframe.DetectTypes(false), dataframe.HasHeader(true))
	if df.Err != nil {
		return df, fmt.Errorf("read CSV: %w", df.Err)
	}
	return df, nil
}

// ColumnValues returns the trimmed values of a column
func ColumnValues(df dataframe.DataFrame, column string) ([]string, error) {
	if !hasColumn(df, column) {
		return nil, fmt.Errorf("column %q not found (have %s)", column, strings.Join(df.Names(), ", "))
	}
	values := df.Col(column).Records()
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return values, nil
}

// PositionInputs converts a chromosome/position/reference/alternate table
// into canonical identifiers, one per row. Rows that do not form a valid
// position are passed through as their raw text and fail identifier parsing
// later, so every row still yields a report.
func PositionInputs(df dataframe.DataFrame) ([]string, error) {
	cols := make([][]string, len(positionColumns))
	for i, c := range positionColumns {
		v, err := ColumnValues(df, c)
		if err != nil {
			return nil, err
		}
		cols[i] = v
	}

	inputs := make([]string, df.Nrow())
	for row := range inputs {
		chrom, posText, ref, alt := cols[0][row], cols[1][row], cols[2][row], cols[3][row]
		pos, err := strconv.ParseInt(posText, 10, 64)
		if err == nil {
			if id, err := variant.FromPosition(chrom, pos, ref, alt); err == nil {
				inputs[row] = id.Raw
				continue
			}
		}
		inputs[row] = strings.Join([]string{chrom, posText, ref, alt}, ":")
	}
	return inputs, nil
}

// Merge appends the result columns to the input table row by row. The
// result identifier column is dropped when the input already has one.
func Merge(input, results dataframe.DataFrame) (dataframe.DataFrame, error) {
	if input.Nrow() != results.Nrow() {
		return dataframe.DataFrame{}, fmt.Errorf("row count mismatch: %d inputs, %d results", input.Nrow(), results.Nrow())
	}
	if hasColumn(input, ColumnVariantID) {
		results = results.Drop(ColumnVariantID)
	}
	for _, name := range results.Names() {
		if hasColumn(input, name) {
			results = results.Rename("result_"+name, name)
		}
	}
	merged := input.CBind(results)
	if merged.Err != nil {
		return merged, fmt.Errorf("merge tables: %w", merged.Err)
	}
	return merged, nil
}

// WriteCSV writes a table with its header row
func WriteCSV(w io.Writer, df dataframe.DataFrame) error {
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	return nil
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Summary aggregates a batch
type Summary struct {
	Total         int                `json:"total_variants"`
	Annotated     int                `json:"successfully_annotated"`
	Unrecognized  int                `json:"unrecognized"`
	MeanScore     float64            `json:"mean_score"`
	HighImpact    int                `json:"high_impact_variants"`
	Bands         map[string]int     `json:"interpretations"`
	SourceSuccess map[string]float64 `json:"source_success_rates"`
}

// Summarize computes batch statistics. HighImpact counts HIGH-interpreted
// scores; rates are fractions of all reports.
func Summarize(reports []*model.Report, sources []string) Summary {
	s := Summary{
		Total:         len(reports),
		Bands:         make(map[string]int),
		SourceSuccess: make(map[string]float64, len(sources)),
	}
	if s.Total == 0 {
		return s
	}

	total := 0.0
	counts := make(map[string]int, len(sources))
	for _, r := range reports {
		total += r.Score.Value
		band := r.Interpretation()
		s.Bands[string(band)]++
		if band == model.InterpretationHigh {
			s.HighImpact++
		}
		if r.OverallSuccess() {
			s.Annotated++
		}
		if r.Failure != nil && r.Failure.Kind == model.FailureUnrecognized {
			s.Unrecognized++
		}
		for _, src := range sources {
			if r.SourceSucceeded(src) {
				counts[src]++
			}
		}
	}

	s.MeanScore = total / float64(s.Total)
	for _, src := range sources {
		s.SourceSuccess[src] = float64(counts[src]) / float64(s.Total)
	}
	return s
}

// RenderSummary writes batch statistics for humans
func RenderSummary(w io.Writer, s Summary, sources []string) {
	fmt.Fprintf(w, "\n=== BATCH SUMMARY ===\n")
	fmt.Fprintf(w, "Variants:       %d\n", s.Total)
	fmt.Fprintf(w, "Annotated:      %d\n", s.Annotated)
	if s.Unrecognized > 0 {
		fmt.Fprintf(w, "Unrecognized:   %d\n", s.Unrecognized)
	}
	fmt.Fprintf(w, "Mean score:     %.3f\n", s.MeanScore)
	fmt.Fprintf(w, "High impact:    %d\n", s.HighImpact)
	fmt.Fprintf(w, "\nSource success rates:\n")
	for _, src := range sources {
		fmt.Fprintf(w, "  %-12s %5.1f%%\n", src, s.SourceSuccess[src]*100)
	}
}

// maxDisplayFields bounds the fields shown per source
const maxDisplayFields = 3

// RenderText writes a single report for humans
func RenderText(w io.Writer, r *model.Report) {
	fmt.Fprintf(w, "\n=== ANNOTATION RESULTS FOR: %s ===\n", r.Input)

	if r.Failure != nil {
		fmt.Fprintf(w, "Error: %s\n", r.Failure.Error())
	}

	if r.Annotation != nil {
		for _, src := range r.Annotation.Sources {
			res := r.Annotation.Results[src]
			fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(src))
			fmt.Fprintf(w, "  Success: %t\n", res.Success)

			names := make([]string, 0, len(res.Fields))
			for k := range res.Fields {
				names = append(names, k)
			}
			sort.Strings(names)
			for i, k := range names {
				if i == maxDisplayFields {
					fmt.Fprintf(w, "  ... and %d more fields\n", len(names)-maxDisplayFields)
					break
				}
				fmt.Fprintf(w, "  %s: %s\n", k, displayValue(res.Fields[k]))
			}

			if res.Failure != nil {
				fmt.Fprintf(w, "  Error: %s\n", res.Failure.Error())
			}
		}
	}

	fmt.Fprintf(w, "\nSCORE: %.3f (%s)\n", r.Score.Value, r.Interpretation())
	if r.Score.InsufficientData {
		fmt.Fprintf(w, "  No factor had data\n")
		return
	}
	for _, name := range model.FactorOrder {
		f := r.Score.Factors[name]
		if !f.Available {
			fmt.Fprintf(w, "  %-13s n/a\n", name)
			continue
		}
		fmt.Fprintf(w, "  %-13s raw=%.4f weight=%.3f contribution=%.4f\n", name, f.Raw, f.Effective, f.Contribution)
	}
}

func displayValue(v model.Value) string {
	if l, ok := v.List(); ok && len(l) > maxDisplayFields {
		return fmt.Sprintf("[%d items]", len(l))
	}
	return v.String()
}

// SampleVariants is an example input table for the batch command
var SampleVariants = [][]string{
	{ColumnVariantID, "gene", "condition"},
	{"rs238242", "VHL", "VHL syndrome"},
	{"rs7527068", "TCF7L2", "Diabetes"},
	{"rs142513484", "BRCA1", "Breast cancer"},
	{"chr1:12345:A>G", "Unknown", "Unknown"},
	{"chr2:67890:C>T", "Unknown", "Unknown"},
}

// SamplePositions is an example position table
var SamplePositions = [][]string{
	positionColumns,
	{"chr1", "12345", "A", "G"},
	{"chr2", "67890", "C", "T"},
	{"chr3", "111222", "G", "A"},
	{"chrX", "54321", "T", "C"},
}

// WriteRecords writes a record table as CSV
func WriteRecords(w io.Writer, records [][]string) error {
	return WriteCSV(w, dataframe.LoadRecords(records, dataframe.DetectTypes(false)))
}
