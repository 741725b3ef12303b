package engine

import (
	"sort"

	"lassoc/domain/assoc"
	"lassoc/internal/errors"
)

// AdjustPValues applies a multiple-comparison correction across a family of
// raw p-values, returning a new slice in the original order. Every adjusted
// value is >= its raw value and clamped to [0, 1].
func AdjustPValues(raw []float64, method assoc.Adjustment) ([]float64, error) {
	switch method {
	case assoc.AdjustNone:
		return append([]float64(nil), raw...), nil
	case assoc.AdjustBonferroni:
		return bonferroni(raw), nil
	case assoc.AdjustBH:
		return benjaminiHochberg(raw), nil
	}
	return nil, errors.ConfigInvalidf("unknown adjustment method %q", method)
}

func bonferroni(raw []float64) []float64 {
	m := float64(len(raw))
	adjusted := make([]float64, len(raw))
	for i, p := range raw {
		q := p * m
		if q > 1 {
			q = 1
		}
		adjusted[i] = q
	}
	return adjusted
}

// benjaminiHochberg is the step-up false-discovery-rate correction:
// q_(i) = min over j >= i of p_(j) * m / j over the ascending order, which
// keeps adjusted values monotone in the raw ordering.
func benjaminiHochberg(raw []float64) []float64 {
	m := len(raw)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return raw[order[a]] < raw[order[b]] })

	adjusted := make([]float64, m)
	running := 1.0
	for rank := m; rank >= 1; rank-- {
		idx := order[rank-1]
		q := raw[idx] * float64(m) / float64(rank)
		if q < running {
			running = q
		}
		adjusted[idx] = running
	}
	return adjusted
}
