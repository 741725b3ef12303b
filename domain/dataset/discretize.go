package dataset

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"lassoc/domain/core"
	"lassoc/internal/errors"
)

// BinMethod selects how continuous values are cut into categorical bins.
type BinMethod string

const (
	// BinEqualWidth cuts the observed range into bins of equal width.
	BinEqualWidth BinMethod = "equal_width"
	// BinEqualFrequency cuts at quantiles so bins hold similar counts.
	BinEqualFrequency BinMethod = "equal_frequency"
)

// Discretize converts a continuous column into an ordered categorical column.
// Bins are left-closed/right-open, the last bin closed on both sides, with
// deterministic interval labels. NaN values become Missing cells.
func Discretize(key core.VariableKey, values []float64, bins int, method BinMethod) (Column, error) {
	if bins < 2 {
		return Column{}, errors.ConfigInvalidf("bins must be >= 2, got %d", bins)
	}
	if len(values) == 0 {
		return Column{}, errors.DataInvalidf("no values to discretize for %s", key)
	}

	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	if len(observed) == 0 {
		return Column{}, errors.DataInvalidf("all values missing for %s", key)
	}

	breaks, err := cutPoints(observed, bins, method)
	if err != nil {
		return Column{}, err
	}

	levels := make([]Level, len(breaks)-1)
	for i := range levels {
		close := ")"
		if i == len(levels)-1 {
			close = "]"
		}
		levels[i] = Level(fmt.Sprintf("[%g,%g%s", breaks[i], breaks[i+1], close))
	}

	labels := make([]Level, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			labels[i] = Missing
			continue
		}
		labels[i] = levels[binIndex(v, breaks)]
	}

	return Column{
		Variable: Variable{Key: key, Levels: levels, Ordered: true},
		Labels:   labels,
	}, nil
}

func cutPoints(observed []float64, bins int, method BinMethod) ([]float64, error) {
	min, _ := stats.Min(observed)
	max, _ := stats.Max(observed)
	if min == max {
		return nil, errors.DataInvalid("cannot discretize a constant column")
	}

	switch method {
	case BinEqualWidth:
		breaks := make([]float64, bins+1)
		width := (max - min) / float64(bins)
		for i := 0; i <= bins; i++ {
			breaks[i] = min + float64(i)*width
		}
		breaks[bins] = max
		return breaks, nil

	case BinEqualFrequency:
		breaks := []float64{min}
		for i := 1; i < bins; i++ {
			q, err := stats.Percentile(observed, float64(i)*100/float64(bins))
			if err != nil {
				return nil, errors.Wrap(errors.DataInvalid(err.Error()), "quantile break")
			}
			// Skip duplicate cuts from heavily tied data.
			if q > breaks[len(breaks)-1] {
				breaks = append(breaks, q)
			}
		}
		breaks = append(breaks, max)
		if len(breaks) < 3 {
			return nil, errors.DataInvalid("ties collapse all quantile breaks; use equal_width")
		}
		return breaks, nil

	default:
		return nil, errors.ConfigInvalidf("unknown bin method %q", method)
	}
}

func binIndex(v float64, breaks []float64) int {
	last := len(breaks) - 2
	for i := 1; i <= last; i++ {
		if v < breaks[i] {
			return i - 1
		}
	}
	return last
}
