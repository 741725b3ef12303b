package engine

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/internal/errors"
)

// Compute applies an association measure to a contingency table. Pure and
// deterministic: the same table and measure always produce bit-identical
// local and global values.
//
// Local values are cell-wise; the global value is the probability-weighted
// sum of locals for z, pmi and npmi, and the sum of squared locals (the
// Pearson chi-squared statistic) for chi_residual. Cells with zero joint
// probability contribute 0 to the weighted sum even where local pmi is -Inf.
func Compute(t *Table, m assoc.Measure) (*assoc.Result, error) {
	if _, err := assoc.ParseMeasure(string(m)); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	if err := t.checkDegenerate(); err != nil {
		return nil, err
	}

	local := make([]float64, t.Cells())
	global := computeCells(m, t.probs, t.marginals, t.strides, t.n, local)

	res := &assoc.Result{
		AnalysisID: core.NewAnalysisID(),
		Measure:    m,
		Variables:  t.vars,
		Dims:       append([]int(nil), t.dims...),
		Local:      local,
		Global:     global,
		SampleSize: t.n,
		ComputedAt: core.Now(),
	}

	if m == assoc.MeasureChiResidual {
		df := chiSquaredDF(t.dims)
		res.DegreesOfFreedom = df
		p := distuv.ChiSquared{K: float64(df)}.Survival(global)
		res.AsymptoticP = &p
	}

	fpValues := make([]float64, 0, len(local)+1)
	fpValues = append(fpValues, local...)
	fpValues = append(fpValues, global)
	res.Fingerprint = core.ComputeValueFingerprint(string(m), res.Dims, fpValues)

	return res, nil
}

// computeCells fills local values for every cell and returns the global
// aggregate. It operates on raw arrays so the permutation loop can reuse it
// against scratch tallies without rebuilding a Table.
func computeCells(m assoc.Measure, probs []float64, marginals [][]float64, strides []int, n int, local []float64) float64 {
	sqrtN := math.Sqrt(float64(n))
	global := 0.0

	for off, pJoint := range probs {
		pProd := 1.0
		minMarg := math.MaxFloat64
		rem := off
		for d, stride := range strides {
			p := marginals[d][rem/stride]
			rem %= stride
			pProd *= p
			if p < minMarg {
				minMarg = p
			}
		}

		var v float64
		switch m {
		case assoc.MeasureZ:
			v = ducherZ(pJoint, pProd, minMarg)
		case assoc.MeasurePMI:
			v = pmi(pJoint, pProd)
		case assoc.MeasureNPMI:
			v = npmi(pJoint, pProd, minMarg)
		case assoc.MeasureChiResidual:
			v = sqrtN * (pJoint - pProd) / math.Sqrt(pProd)
		}
		local[off] = v

		if m == assoc.MeasureChiResidual {
			global += v * v
		} else if pJoint > 0 {
			global += pJoint * v
		}
	}
	return global
}

// ducherZ normalizes the raw deviation from independence by its attainable
// extreme, bounding the value in [-1, 1]: positive deviations by
// min(marginals) - p_prod, negative ones by p_prod.
func ducherZ(pJoint, pProd, minMarg float64) float64 {
	dif := pJoint - pProd
	switch {
	case dif > 0:
		denom := minMarg - pProd
		if denom <= 0 {
			return 0
		}
		return dif / denom
	case dif < 0:
		return dif / pProd
	default:
		return 0
	}
}

// pmi is log(p_joint / p_prod); -Inf where the joint probability is zero.
// The negative infinity is a representable result, not a failure.
func pmi(pJoint, pProd float64) float64 {
	if pJoint == 0 {
		return math.Inf(-1)
	}
	return math.Log(pJoint / pProd)
}

// npmi removes the pmi singularity. Positive values are normalized by the
// attainable maximum sum(h_i) - max(h_i), so npmi = 1 exactly at maximal
// co-occurrence; negative values by the joint self-information h_joint, so
// npmi -> -1 as p_joint -> 0.
func npmi(pJoint, pProd, minMarg float64) float64 {
	if pJoint == 0 {
		return -1
	}
	v := math.Log(pJoint / pProd)
	switch {
	case v > 0:
		sumH := -math.Log(pProd)
		maxH := -math.Log(minMarg)
		denom := sumH - maxH
		if denom <= 0 {
			return 0
		}
		return v / denom
	case v < 0:
		hJoint := -math.Log(pJoint)
		if hJoint <= 0 {
			return 0
		}
		return v / hJoint
	default:
		return 0
	}
}

// chiSquaredDF is the degrees of freedom of the chi-squared statistic under
// the mutual-independence model: cells - 1 - sum(levels_i - 1). Reduces to
// (r-1)(c-1) for two variables.
func chiSquaredDF(dims []int) int {
	cells := 1
	fitted := 0
	for _, d := range dims {
		cells *= d
		fitted += d - 1
	}
	return cells - 1 - fitted
}
