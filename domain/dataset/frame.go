package dataset

import (
	"sort"

	"lassoc/domain/core"
	"lassoc/internal/errors"
)

// Level is a single categorical label.
type Level string

// Missing marks an unobserved cell. Frames may carry missing cells; table
// construction rejects them.
const Missing Level = ""

// IsMissing reports whether a label marks an unobserved cell.
func (l Level) IsMissing() bool {
	return l == Missing
}

// Variable describes a categorical column: its key and its canonical,
// deterministic level ordering. Repeated builds of the same data always index
// cells identically.
type Variable struct {
	Key     core.VariableKey `json:"key"`
	Levels  []Level          `json:"levels"`
	Ordered bool             `json:"ordered"`
}

// NewVariable creates a variable with an explicit level ordering.
func NewVariable(key core.VariableKey, levels []Level, ordered bool) Variable {
	return Variable{Key: key, Levels: levels, Ordered: ordered}
}

// VariableFromObserved creates a variable whose level set is the distinct
// non-missing labels observed in a column, sorted lexically.
func VariableFromObserved(key core.VariableKey, labels []Level) Variable {
	seen := make(map[Level]struct{})
	for _, l := range labels {
		if !l.IsMissing() {
			seen[l] = struct{}{}
		}
	}
	levels := make([]Level, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return Variable{Key: key, Levels: levels}
}

// LevelIndex returns the position of a label in the canonical ordering.
func (v Variable) LevelIndex(l Level) (int, bool) {
	for i, lv := range v.Levels {
		if lv == l {
			return i, true
		}
	}
	return 0, false
}

// Cardinality returns the number of levels.
func (v Variable) Cardinality() int {
	return len(v.Levels)
}

// Column is one categorical observation column, row-aligned with its frame.
type Column struct {
	Variable Variable `json:"variable"`
	Labels   []Level  `json:"labels"`
}

// NewColumn builds a column from raw labels, deriving the level set from the
// observed values.
func NewColumn(key core.VariableKey, labels []Level) Column {
	return Column{Variable: VariableFromObserved(key, labels), Labels: labels}
}

// Frame is a rectangular set of categorical columns: rows are observations.
type Frame struct {
	columns []Column
	byKey   map[core.VariableKey]int
	rows    int
}

// NewFrame assembles a frame from row-aligned columns.
func NewFrame(columns ...Column) (*Frame, error) {
	if len(columns) == 0 {
		return nil, errors.DataInvalid("frame requires at least one column")
	}
	rows := len(columns[0].Labels)
	byKey := make(map[core.VariableKey]int, len(columns))
	for i, col := range columns {
		if len(col.Labels) != rows {
			return nil, errors.DataInvalidf("column %s has %d rows, expected %d",
				col.Variable.Key, len(col.Labels), rows)
		}
		if _, dup := byKey[col.Variable.Key]; dup {
			return nil, errors.DataInvalidf("duplicate column %s", col.Variable.Key)
		}
		byKey[col.Variable.Key] = i
	}
	return &Frame{columns: columns, byKey: byKey, rows: rows}, nil
}

// FrameFromRecords builds a frame from a header row and string records, the
// shape produced by CSV and spreadsheet readers. Empty cells become Missing.
func FrameFromRecords(header []string, records [][]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, errors.DataInvalid("header row is empty")
	}
	labels := make([][]Level, len(header))
	for i := range labels {
		labels[i] = make([]Level, 0, len(records))
	}
	for r, rec := range records {
		if len(rec) != len(header) {
			return nil, errors.DataInvalidf("row %d has %d cells, expected %d", r+1, len(rec), len(header))
		}
		for c, cell := range rec {
			labels[c] = append(labels[c], Level(cell))
		}
	}
	columns := make([]Column, len(header))
	for i, name := range header {
		key, err := core.ParseVariableKey(name)
		if err != nil {
			return nil, errors.Wrapf(errors.DataInvalid(err.Error()), "column %d", i+1)
		}
		columns[i] = NewColumn(key, labels[i])
	}
	return NewFrame(columns...)
}

// Rows returns the observation count.
func (f *Frame) Rows() int {
	return f.rows
}

// Keys returns the column keys in frame order.
func (f *Frame) Keys() []core.VariableKey {
	keys := make([]core.VariableKey, len(f.columns))
	for i, col := range f.columns {
		keys[i] = col.Variable.Key
	}
	return keys
}

// Column returns the column for a key.
func (f *Frame) Column(key core.VariableKey) (Column, bool) {
	i, ok := f.byKey[key]
	if !ok {
		return Column{}, false
	}
	return f.columns[i], true
}

// WithColumn returns a new frame extended by one row-aligned column. The
// receiver is unchanged; derived variables (subgroups, discretized bins)
// re-enter analysis this way.
func (f *Frame) WithColumn(col Column) (*Frame, error) {
	columns := make([]Column, 0, len(f.columns)+1)
	columns = append(columns, f.columns...)
	columns = append(columns, col)
	return NewFrame(columns...)
}
