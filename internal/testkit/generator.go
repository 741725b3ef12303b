package testkit

import (
	"fmt"
	"math/rand"

	"lassoc/domain/core"
	"lassoc/domain/dataset"
)

// GeneratorConfig configures the synthetic categorical data generator.
type GeneratorConfig struct {
	Rows int   `json:"rows"`
	Seed int64 `json:"seed"`
}

// DefaultGeneratorConfig returns sensible defaults for synthetic data.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{Rows: 500, Seed: 42}
}

// Generator produces seeded synthetic categorical columns for tests and
// demos. The same config always yields the same data.
type Generator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

// NewGenerator creates a generator with a deterministic random stream.
func NewGenerator(config GeneratorConfig) *Generator {
	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// IndependentColumn draws labels uniformly over the given levels,
// independently of everything generated before.
func (g *Generator) IndependentColumn(key core.VariableKey, levels []dataset.Level) dataset.Column {
	labels := make([]dataset.Level, g.config.Rows)
	for i := range labels {
		labels[i] = levels[g.rng.Intn(len(levels))]
	}
	return dataset.Column{
		Variable: dataset.NewVariable(key, levels, false),
		Labels:   labels,
	}
}

// DependentColumn copies the base column's level position with probability
// agree and draws uniformly otherwise, inducing a tunable association while
// keeping levels near-uniform.
func (g *Generator) DependentColumn(key core.VariableKey, base dataset.Column, levels []dataset.Level, agree float64) dataset.Column {
	labels := make([]dataset.Level, g.config.Rows)
	for i := range labels {
		if g.rng.Float64() < agree {
			idx, _ := base.Variable.LevelIndex(base.Labels[i])
			labels[i] = levels[idx%len(levels)]
		} else {
			labels[i] = levels[g.rng.Intn(len(levels))]
		}
	}
	return dataset.Column{
		Variable: dataset.NewVariable(key, levels, false),
		Labels:   labels,
	}
}

// IndependentFrame generates k independent uniform columns named var_1..var_k.
func (g *Generator) IndependentFrame(k int, levels []dataset.Level) (*dataset.Frame, error) {
	columns := make([]dataset.Column, k)
	for i := range columns {
		key := core.VariableKey(fmt.Sprintf("var_%d", i+1))
		columns[i] = g.IndependentColumn(key, levels)
	}
	return dataset.NewFrame(columns...)
}

// DrugRecoveryFrame builds the canonical 2x2 treatment scenario: 100 rows
// where drug and recovery co-occur in 40 of 50 takers and 10 of 50
// non-takers. Deterministic, no randomness involved.
func DrugRecoveryFrame() *dataset.Frame {
	drug := make([]dataset.Level, 0, 100)
	recovered := make([]dataset.Level, 0, 100)
	appendRows := func(d, r dataset.Level, count int) {
		for i := 0; i < count; i++ {
			drug = append(drug, d)
			recovered = append(recovered, r)
		}
	}
	appendRows("yes", "yes", 40)
	appendRows("yes", "no", 10)
	appendRows("no", "yes", 10)
	appendRows("no", "no", 40)

	frame, err := dataset.NewFrame(
		dataset.NewColumn("drug", drug),
		dataset.NewColumn("recovered", recovered),
	)
	if err != nil {
		panic(err) // static data, cannot fail
	}
	return frame
}

// CrossJoinFrame builds an exactly independent two-variable frame: every
// (a, b) level combination appears perCell times, so joint probabilities
// factorize with no sampling noise.
func CrossJoinFrame(levelsA, levelsB []dataset.Level, perCell int) *dataset.Frame {
	var a, b []dataset.Level
	for _, la := range levelsA {
		for _, lb := range levelsB {
			for i := 0; i < perCell; i++ {
				a = append(a, la)
				b = append(b, lb)
			}
		}
	}
	frame, err := dataset.NewFrame(
		dataset.NewColumn("a", a),
		dataset.NewColumn("b", b),
	)
	if err != nil {
		panic(err) // static data, cannot fail
	}
	return frame
}
