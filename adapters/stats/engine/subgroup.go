package engine

import (
	"fmt"
	"math"

	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/domain/dataset"
	"lassoc/internal/errors"
)

// SubgroupOptions govern how joint-event cells are re-labeled into the three
// ordered subgroup classes.
type SubgroupOptions struct {
	// Low and High bound the independent band: local < Low classifies as
	// negative, local > High as positive. Both default to 0, reducing
	// classification to the sign of the local value.
	Low  float64
	High float64

	// UseSignificance forces cells whose adjusted p-value exceeds Alpha to
	// independent regardless of the local value. Requires a tested result.
	UseSignificance bool

	// Alpha is the significance cutoff; 0 defaults to 0.05.
	Alpha float64

	// Key names the derived column; empty derives one from the table's
	// variables.
	Key core.VariableKey
}

// BuildSubgroups re-labels the joint events of a two-variable association
// result into {negative, independent, positive}, row-aligned with the
// observations that built the table. The output is an ordinary ordered
// categorical column with no remaining tie to the result; it re-enters
// BuildTable for follow-up analysis against further variables.
func BuildSubgroups(t *Table, res *assoc.Result, opts SubgroupOptions) (dataset.Column, error) {
	if opts.UseSignificance {
		return dataset.Column{}, errors.ConfigInvalid(
			"significance filtering requires a permutation-tested result")
	}
	return buildSubgroups(t, res, nil, opts)
}

// BuildSubgroupsTested is BuildSubgroups over a permutation-tested result,
// enabling the significance filter on adjusted local p-values.
func BuildSubgroupsTested(t *Table, res *assoc.TestedResult, opts SubgroupOptions) (dataset.Column, error) {
	return buildSubgroups(t, &res.Result, res.PLocalAdjusted, opts)
}

func buildSubgroups(t *Table, res *assoc.Result, pAdjusted []float64, opts SubgroupOptions) (dataset.Column, error) {
	if len(t.dims) != 2 {
		return dataset.Column{}, errors.ConfigInvalidf(
			"subgroups are defined over two variables, table has %d", len(t.dims))
	}
	if t.Cells() != res.Cells() {
		return dataset.Column{}, errors.ConfigInvalid("result shape does not match table")
	}
	if opts.Low > opts.High {
		return dataset.Column{}, errors.ConfigInvalidf(
			"low threshold %g exceeds high threshold %g", opts.Low, opts.High)
	}
	alpha := opts.Alpha
	if opts.UseSignificance {
		if alpha == 0 {
			alpha = 0.05
		}
		if alpha <= 0 || alpha >= 1 {
			return dataset.Column{}, errors.ConfigInvalidf("alpha must be in (0, 1), got %g", alpha)
		}
	}

	// One label per cell, then fan out to rows.
	cellLabels := make([]dataset.Level, t.Cells())
	for off := range cellLabels {
		local := res.Local[off]
		switch {
		case opts.UseSignificance && pAdjusted[off] > alpha:
			cellLabels[off] = assoc.SubgroupIndependent
		case local < opts.Low:
			cellLabels[off] = assoc.SubgroupNegative
		case local > opts.High:
			cellLabels[off] = assoc.SubgroupPositive
		default:
			cellLabels[off] = assoc.SubgroupIndependent
		}
		if math.IsNaN(local) {
			cellLabels[off] = assoc.SubgroupIndependent
		}
	}

	labels := make([]dataset.Level, t.n)
	for row := 0; row < t.n; row++ {
		labels[row] = cellLabels[t.rowCells[row]]
	}

	key := opts.Key
	if key == "" {
		key = core.VariableKey(fmt.Sprintf("%s_x_%s_subgroup", t.vars[0].Key, t.vars[1].Key))
	}
	return dataset.Column{
		Variable: dataset.NewVariable(key, assoc.SubgroupLevels(), true),
		Labels:   labels,
	}, nil
}
