package model

// Factor names used in Score.Factors
const (
	FactorCADD         = "cadd"
	FactorClinVar      = "clinvar"
	FactorFrequency    = "frequency"
	FactorConservation = "conservation"
)

// FactorOrder is the fixed order factors are evaluated and summed in
var FactorOrder = []string{FactorCADD, FactorClinVar, FactorFrequency, FactorConservation}

// Factor is one weighted input of the composite score
type Factor struct {
	Name         string             `json:"name"`
	Available    bool               `json:"available"`          // Whether the factor had data
	Raw          float64            `json:"raw"`                // Normalized value in [0,1]
	Weight       float64            `json:"weight"`             // Configured weight
	Effective    float64            `json:"effective_weight"`   // Weight after renormalization over available factors
	Contribution float64            `json:"contribution"`       // Effective * Raw
	Formula      string             `json:"formula"`            // How Raw was derived
	Inputs       map[string]float64 `json:"inputs,omitempty"`   // Source values Raw was computed from
	Evidence     []string           `json:"evidence,omitempty"` // Textual inputs (clinical significances)
}

// Score is the composite pathogenicity estimate with its breakdown
type Score struct {
	Value            float64           `json:"value"`
	Factors          map[string]Factor `json:"factors"`
	InsufficientData bool              `json:"insufficient_data"`
}

// Contribution returns the contribution of a factor, zero when missing
func (s Score) Contribution(name string) float64 {
	return s.Factors[name].Contribution
}

// Interpretation is a human-readable band of a composite score
type Interpretation string

const (
	InterpretationHigh     Interpretation = "HIGH"
	InterpretationModerate Interpretation = "MODERATE"
	InterpretationLow      Interpretation = "LOW"
	InterpretationMinimal  Interpretation = "MINIMAL"
)

// Interpret maps a score onto its band: >0.6 HIGH, [0.3,0.6] MODERATE,
// [0.1,0.3) LOW, <0.1 MINIMAL.
func Interpret(v float64) Interpretation {
	switch {
	case v > 0.6:
		return InterpretationHigh
	case v >= 0.3:
		return InterpretationModerate
	case v >= 0.1:
		return InterpretationLow
	default:
		return InterpretationMinimal
	}
}
