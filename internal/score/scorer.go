package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/varscore/internal/config"
	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/source"
)

// Normalization constants
const (
	caddCeiling = 40.0 // PHRED at or above this maps to 1

	rareFrequency = 0.01 // Allele frequency at or above this maps to 0

	phyloPMin = -20.0 // PhyloP 100-way documented value range
	phyloPMax = 10.0
)

// ClinVar significance values by precedence
const (
	clinvarPathogenic = 1.0
	clinvarUncertain  = 0.5
	clinvarBenign     = 0.0
)

// Scorer fuses an annotation bundle into a composite score. It is a pure
// function of its weights and the bundle.
type Scorer struct {
	weights map[string]float64
}

// NewScorer creates a scorer with the given factor weights
func NewScorer(w config.Weights) *Scorer {
	return &Scorer{weights: map[string]float64{
		model.FactorCADD:         w.CADD,
		model.FactorClinVar:      w.ClinVar,
		model.FactorFrequency:    w.Frequency,
		model.FactorConservation: w.Conservation,
	}}
}

// Calculate computes every factor, renormalizes the weights of the factors
// that had data and sums their contributions in FactorOrder.
func (s *Scorer) Calculate(ar model.AnnotationResult) model.Score {
	factors := map[string]model.Factor{
		model.FactorCADD:         s.caddFactor(ar),
		model.FactorClinVar:      s.clinvarFactor(ar),
		model.FactorFrequency:    s.frequencyFactor(ar),
		model.FactorConservation: s.conservationFactor(ar),
	}

	available := 0.0
	for _, name := range model.FactorOrder {
		f := factors[name]
		f.Weight = s.weights[name]
		factors[name] = f
		if f.Available {
			available += f.Weight
		}
	}

	if available == 0 {
		return model.Score{Value: 0, Factors: factors, InsufficientData: true}
	}

	total := 0.0
	for _, name := range model.FactorOrder {
		f := factors[name]
		if !f.Available {
			continue
		}
		f.Effective = f.Weight / available
		f.Contribution = f.Effective * f.Raw
		factors[name] = f
		total += f.Contribution
	}

	return model.Score{Value: clamp01(total), Factors: factors}
}

// caddFactor scales the CADD PHRED score onto [0,1]
func (s *Scorer) caddFactor(ar model.AnnotationResult) model.Factor {
	f := model.Factor{
		Name:    model.FactorCADD,
		Formula: fmt.Sprintf("min(cadd_phred / %g, 1)", caddCeiling),
	}

	v, ok := ar.Field(config.SourceMyVariant, source.FieldCADDPhred)
	if !ok {
		return f
	}
	phred, ok := v.Number()
	if !ok {
		return f
	}

	f.Available = true
	f.Raw = clamp01(phred / caddCeiling)
	f.Inputs = map[string]float64{"cadd_phred": phred}
	return f
}

// clinvarFactor maps clinical significance text onto {0, 0.5, 1}. Texts from
// MyVariant's ClinVar records and the ClinVar source are pooled; the highest
// matching category wins. Texts matching no category carry no data.
func (s *Scorer) clinvarFactor(ar model.AnnotationResult) model.Factor {
	f := model.Factor{
		Name:    model.FactorClinVar,
		Formula: "1 if any contains 'pathogenic', else 0.5 if 'uncertain', else 0 if 'benign' (case-insensitive)",
	}

	var texts []string
	if v, ok := ar.Field(config.SourceMyVariant, source.FieldClinVarSignificance); ok {
		texts = append(texts, v.Strings()...)
	}
	if v, ok := ar.Field(config.SourceClinVar, source.FieldClinicalSignificance); ok {
		texts = append(texts, v.Strings()...)
	}

	best := -1.0
	for _, t := range texts {
		if c, ok := classifySignificance(t); ok {
			f.Evidence = append(f.Evidence, t)
			if c > best {
				best = c
			}
		}
	}
	if best < 0 {
		return f
	}

	f.Available = true
	f.Raw = best
	return f
}

func classifySignificance(text string) (float64, bool) {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "pathogenic"):
		return clinvarPathogenic, true
	case strings.Contains(t, "uncertain"):
		return clinvarUncertain, true
	case strings.Contains(t, "benign"):
		return clinvarBenign, true
	default:
		return 0, false
	}
}

// frequencyFactor scores rarity from the gnomAD exome allele frequency. It has
// data whenever MyVariant answered: a missing frequency there means the
// variant is unobserved and therefore rare.
func (s *Scorer) frequencyFactor(ar model.AnnotationResult) model.Factor {
	f := model.Factor{
		Name:    model.FactorFrequency,
		Formula: fmt.Sprintf("clamp(1 - gnomad_exome_af / %g, 0, 1); 1 when af absent", rareFrequency),
	}

	res, ok := ar.Result(config.SourceMyVariant)
	if !ok || !res.Success {
		return f
	}

	f.Available = true
	af, ok := res.Field(source.FieldGnomADExomeAF)
	if !ok {
		f.Raw = 1.0
		return f
	}
	v, ok := af.Number()
	if !ok {
		f.Raw = 1.0
		return f
	}

	f.Raw = clamp01(1 - v/rareFrequency)
	f.Inputs = map[string]float64{"gnomad_exome_af": v}
	return f
}

// conservationFactor averages normalized PhyloP and PhastCons scores
func (s *Scorer) conservationFactor(ar model.AnnotationResult) model.Factor {
	f := model.Factor{
		Name:    model.FactorConservation,
		Formula: fmt.Sprintf("mean(clamp((phylop - %g) / %g, 0, 1), clamp(phastcons, 0, 1)) over present tracks", phyloPMin, phyloPMax-phyloPMin),
	}

	var sum float64
	var n int
	inputs := map[string]float64{}

	if v, ok := trackScore(ar, config.SourcePhyloP); ok {
		inputs["phylop"] = v
		sum += clamp01((v - phyloPMin) / (phyloPMax - phyloPMin))
		n++
	}
	if v, ok := trackScore(ar, config.SourcePhastCons); ok {
		inputs["phastcons"] = v
		sum += clamp01(v)
		n++
	}
	if n == 0 {
		return f
	}

	f.Available = true
	f.Raw = sum / float64(n)
	f.Inputs = inputs
	return f
}

func trackScore(ar model.AnnotationResult, src string) (float64, bool) {
	v, ok := ar.Field(src, source.FieldScore)
	if !ok {
		return 0, false
	}
	return v.Number()
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
