package engine

import (
	"lassoc/domain/core"
	"lassoc/domain/dataset"
	"lassoc/internal/errors"
)

// DefaultMaxCells is the cardinality ceiling on the joint level space.
// Tables above it fail fast instead of exhausting memory.
const DefaultMaxCells = 1 << 20

// BuildOptions tune table construction.
type BuildOptions struct {
	// LevelOrder overrides the canonical ordering for named variables, e.g.
	// the natural ordering produced by a discretization step. Orders may list
	// unobserved levels; only observed ones become dimensions, in the given
	// order. An observed label absent from its order is a data error.
	LevelOrder map[core.VariableKey][]dataset.Level

	// MaxCells caps the joint cardinality; 0 selects DefaultMaxCells.
	MaxCells int
}

// Table is a k-dimensional contingency table over categorical variables.
// Cells live in a flat arena addressed by row-major strides; the per-row cell
// offset is retained so derived labelings stay row-aligned.
type Table struct {
	vars    []dataset.Variable
	dims    []int
	strides []int

	counts    []int
	probs     []float64
	marginals [][]float64

	codes    [][]int // per variable, per observation row
	rowCells []int   // cell offset per observation row
	n        int
}

// BuildTable tallies the selected columns of a frame into a contingency table.
// It fails with a data error on missing values, single-level variables or a
// joint cardinality above the ceiling.
func BuildTable(f *dataset.Frame, keys []core.VariableKey, opts *BuildOptions) (*Table, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}
	maxCells := opts.MaxCells
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	if len(keys) < 2 {
		return nil, errors.ConfigInvalidf("select at least two variables, got %d", len(keys))
	}
	if f.Rows() < 1 {
		return nil, errors.DataInvalid("frame has no observations")
	}

	k := len(keys)
	t := &Table{
		vars:    make([]dataset.Variable, k),
		dims:    make([]int, k),
		codes:   make([][]int, k),
		n:       f.Rows(),
	}

	for d, key := range keys {
		col, ok := f.Column(key)
		if !ok {
			return nil, errors.DataInvalidf("variable %s not present in frame", key)
		}
		variable, codes, err := encodeColumn(col, opts.LevelOrder[key])
		if err != nil {
			return nil, err
		}
		if variable.Cardinality() < 2 {
			return nil, errors.DataInvalidf(
				"variable %s has a single observed level and carries no information", key)
		}
		t.vars[d] = variable
		t.dims[d] = variable.Cardinality()
		t.codes[d] = codes
	}

	cells := 1
	for _, dim := range t.dims {
		if cells > maxCells/dim {
			return nil, errors.DataInvalidf(
				"joint cardinality of %d variables exceeds the ceiling of %d cells", k, maxCells)
		}
		cells *= dim
	}

	t.strides = rowMajorStrides(t.dims)
	t.counts = make([]int, cells)
	t.probs = make([]float64, cells)
	t.marginals = make([][]float64, k)
	for d, dim := range t.dims {
		t.marginals[d] = make([]float64, dim)
	}

	t.rowCells = make([]int, t.n)
	for row := 0; row < t.n; row++ {
		off := 0
		for d := 0; d < k; d++ {
			off += t.codes[d][row] * t.strides[d]
		}
		t.counts[off]++
		t.rowCells[row] = off
	}

	tallyProbabilities(t.counts, t.strides, t.n, t.probs, t.marginals)
	return t, nil
}

// encodeColumn maps a column's labels to dense level codes under the
// canonical ordering: the supplied order filtered to observed levels, or the
// column's own deterministic ordering.
func encodeColumn(col dataset.Column, order []dataset.Level) (dataset.Variable, []int, error) {
	observed := make(map[dataset.Level]struct{})
	for row, label := range col.Labels {
		if label.IsMissing() {
			return dataset.Variable{}, nil, errors.DataInvalidf(
				"variable %s has a missing value at row %d", col.Variable.Key, row+1)
		}
		observed[label] = struct{}{}
	}

	var levels []dataset.Level
	ordered := col.Variable.Ordered
	if order != nil {
		ordered = true
		inOrder := make(map[dataset.Level]struct{}, len(order))
		for _, l := range order {
			inOrder[l] = struct{}{}
			if _, ok := observed[l]; ok {
				levels = append(levels, l)
			}
		}
		for l := range observed {
			if _, ok := inOrder[l]; !ok {
				return dataset.Variable{}, nil, errors.DataInvalidf(
					"observed label %q of variable %s is not in the supplied level order", l, col.Variable.Key)
			}
		}
	} else {
		for _, l := range col.Variable.Levels {
			if _, ok := observed[l]; ok {
				levels = append(levels, l)
			}
		}
	}

	index := make(map[dataset.Level]int, len(levels))
	for i, l := range levels {
		index[l] = i
	}
	codes := make([]int, len(col.Labels))
	for row, label := range col.Labels {
		codes[row] = index[label]
	}

	variable := dataset.Variable{Key: col.Variable.Key, Levels: levels, Ordered: ordered}
	return variable, codes, nil
}

func rowMajorStrides(dims []int) []int {
	strides := make([]int, len(dims))
	stride := 1
	for d := len(dims) - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= dims[d]
	}
	return strides
}

// tallyProbabilities fills joint and marginal probabilities from cell counts.
// Shared with the permutation loop, which re-tallies into scratch arrays.
func tallyProbabilities(counts []int, strides []int, n int, probs []float64, marginals [][]float64) {
	for d := range marginals {
		for i := range marginals[d] {
			marginals[d][i] = 0
		}
	}
	fn := float64(n)
	for off, c := range counts {
		p := float64(c) / fn
		probs[off] = p
		if c == 0 {
			continue
		}
		rem := off
		for d, stride := range strides {
			marginals[d][rem/stride] += p
			rem %= stride
		}
	}
}

// N returns the sample size.
func (t *Table) N() int {
	return t.n
}

// Variables returns the table's variables in dimension order.
func (t *Table) Variables() []dataset.Variable {
	return t.vars
}

// Dims returns the per-dimension level counts.
func (t *Table) Dims() []int {
	return t.dims
}

// Cells returns the number of joint-event cells.
func (t *Table) Cells() int {
	return len(t.counts)
}

// Offset converts an index tuple into a flat cell offset.
func (t *Table) Offset(idx []int) int {
	off := 0
	for d, i := range idx {
		off += i * t.strides[d]
	}
	return off
}

// Coords converts a flat cell offset back into an index tuple.
func (t *Table) Coords(off int) []int {
	idx := make([]int, len(t.dims))
	for d, stride := range t.strides {
		idx[d] = off / stride
		off %= stride
	}
	return idx
}

// Count returns the observed frequency of a cell.
func (t *Table) Count(idx []int) int {
	return t.counts[t.Offset(idx)]
}

// JointProb returns the observed joint probability of a cell.
func (t *Table) JointProb(idx []int) float64 {
	return t.probs[t.Offset(idx)]
}

// MarginalProb returns the marginal probability of one variable's level.
func (t *Table) MarginalProb(variable, level int) float64 {
	return t.marginals[variable][level]
}

// RowCell returns the cell offset the given observation row falls into.
func (t *Table) RowCell(row int) int {
	return t.rowCells[row]
}

// checkDegenerate rejects tables no measure is defined on. Unreachable from
// BuildTable, which only admits observed levels, but guards direct
// construction paths.
func (t *Table) checkDegenerate() error {
	if t.n < 1 {
		return errors.DataInvalid("table has no observations")
	}
	for d, marg := range t.marginals {
		for level, p := range marg {
			if p == 0 {
				return errors.DataInvalidf("variable %s has a zero-probability level %q",
					t.vars[d].Key, t.vars[d].Levels[level])
			}
		}
	}
	return nil
}
