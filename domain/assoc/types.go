package assoc

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"lassoc/domain/core"
	"lassoc/domain/dataset"
)

// Measure identifies the association measure applied to a contingency table.
// The set is closed; dispatch switches over it exhaustively.
type Measure string

const (
	// MeasureZ is Ducher's Z, bounded in [-1, 1].
	MeasureZ Measure = "z"
	// MeasurePMI is pointwise mutual information, unbounded below
	// (-Inf where the joint probability is zero).
	MeasurePMI Measure = "pmi"
	// MeasureNPMI is normalized pointwise mutual information, bounded in [-1, 1].
	MeasureNPMI Measure = "npmi"
	// MeasureChiResidual is the cell-wise Pearson residual; its squares sum to
	// the classical chi-squared statistic.
	MeasureChiResidual Measure = "chi_residual"
)

// ParseMeasure validates a measure name.
func ParseMeasure(s string) (Measure, error) {
	switch Measure(s) {
	case MeasureZ, MeasurePMI, MeasureNPMI, MeasureChiResidual:
		return Measure(s), nil
	}
	return "", fmt.Errorf("unknown measure %q (want z, pmi, npmi or chi_residual)", s)
}

// Bounded reports whether local values of the measure lie in [-1, 1].
func (m Measure) Bounded() bool {
	return m == MeasureZ || m == MeasureNPMI
}

// Adjustment selects the multiple-comparison correction applied across local
// p-values after permutation testing.
type Adjustment string

const (
	AdjustBH         Adjustment = "bh"
	AdjustBonferroni Adjustment = "bonferroni"
	AdjustNone       Adjustment = "none"
)

// ParseAdjustment validates an adjustment name; empty selects the default.
func ParseAdjustment(s string) (Adjustment, error) {
	if s == "" {
		return AdjustBH, nil
	}
	switch Adjustment(s) {
	case AdjustBH, AdjustBonferroni, AdjustNone:
		return Adjustment(s), nil
	}
	return "", fmt.Errorf("unknown adjustment %q (want bh, bonferroni or none)", s)
}

// FloatArray is a float64 slice whose JSON encoding survives non-finite
// values: pmi produces -Inf at unobserved joint events, which encoding/json
// rejects. Non-finite entries round-trip as the strings "Infinity",
// "-Infinity" and "NaN".
type FloatArray []float64

func (a FloatArray) MarshalJSON() ([]byte, error) {
	out := make([]interface{}, len(a))
	for i, v := range a {
		switch {
		case math.IsInf(v, 1):
			out[i] = "Infinity"
		case math.IsInf(v, -1):
			out[i] = "-Infinity"
		case math.IsNaN(v):
			out[i] = "NaN"
		default:
			out[i] = v
		}
	}
	return json.Marshal(out)
}

func (a *FloatArray) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make([]float64, len(raw))
	for i, e := range raw {
		switch v := e.(type) {
		case float64:
			values[i] = v
		case string:
			switch v {
			case "Infinity":
				values[i] = math.Inf(1)
			case "-Infinity":
				values[i] = math.Inf(-1)
			case "NaN":
				values[i] = math.NaN()
			default:
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("invalid float value %q", v)
				}
				values[i] = f
			}
		default:
			return fmt.Errorf("invalid float entry of type %T", e)
		}
	}
	*a = values
	return nil
}

// Result is the output of applying a measure to a contingency table.
// Immutable once constructed: permutation testing wraps it in a TestedResult
// instead of mutating it.
type Result struct {
	AnalysisID core.AnalysisID    `json:"analysis_id"`
	Measure    Measure            `json:"measure"`
	Variables  []dataset.Variable `json:"variables"`
	Dims       []int              `json:"dims"`

	// Local holds one value per joint-event cell, flat in row-major order
	// over Dims.
	Local FloatArray `json:"local"`
	// Global aggregates Local: probability-weighted sum for z/pmi/npmi,
	// sum of squares (the chi-squared statistic) for chi_residual.
	Global     float64 `json:"global"`
	SampleSize int     `json:"sample_size"`

	// AsymptoticP carries the theoretical chi-squared p-value and is set only
	// for chi_residual results. Permutation p-values are the primary inference.
	AsymptoticP *float64 `json:"asymptotic_p,omitempty"`
	DegreesOfFreedom int `json:"degrees_of_freedom,omitempty"`

	Fingerprint core.Hash      `json:"fingerprint"`
	ComputedAt  core.Timestamp `json:"computed_at"`
}

// Cells returns the number of joint-event cells.
func (r *Result) Cells() int {
	return len(r.Local)
}

// Offset converts an index tuple into the flat row-major cell offset.
func (r *Result) Offset(idx []int) int {
	off := 0
	for d, i := range idx {
		off = off*r.Dims[d] + i
	}
	return off
}

// LocalAt returns the local value for an index tuple.
func (r *Result) LocalAt(idx []int) float64 {
	return r.Local[r.Offset(idx)]
}

// TestedResult extends a Result with permutation-derived significance.
// Whether a result has been permutation-tested is a type-level fact.
type TestedResult struct {
	Result

	// PLocal holds raw two-sided empirical p-values, cell-aligned with Local.
	PLocal []float64 `json:"p_local"`
	// PLocalAdjusted holds PLocal after multiple-comparison adjustment.
	PLocalAdjusted []float64 `json:"p_local_adjusted"`
	// PGlobal is the empirical p-value of the global statistic; it is a single
	// test and never adjusted.
	PGlobal float64 `json:"p_global"`

	Iterations int                `json:"iterations"`
	Adjustment Adjustment         `json:"adjustment"`
	Seed       int64              `json:"seed"`
	Groups     [][]core.VariableKey `json:"groups,omitempty"`
}

// PFloor is the smallest resolvable p-value: empirical zeroes mean
// "below this", not exactly zero, and render as "< floor".
func (t *TestedResult) PFloor() float64 {
	return 1 / float64(t.Iterations)
}

// SubgroupLevel is one of the three ordered subgroup classes.
type SubgroupLevel = dataset.Level

const (
	SubgroupNegative    SubgroupLevel = "negative"
	SubgroupIndependent SubgroupLevel = "independent"
	SubgroupPositive    SubgroupLevel = "positive"
)

// SubgroupLevels is the canonical ordering of the derived subgroup variable.
func SubgroupLevels() []dataset.Level {
	return []dataset.Level{SubgroupNegative, SubgroupIndependent, SubgroupPositive}
}
