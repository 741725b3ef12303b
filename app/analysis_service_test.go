package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lassoc/adapters/stats/engine"
	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/domain/dataset"
	"lassoc/internal/config"
	"lassoc/internal/errors"
	"lassoc/internal/testkit"
)

func testService() *AnalysisService {
	return NewAnalysisService(testkit.DrugRecoveryFrame(), nil, config.AnalysisConfig{
		Iterations: 200,
		Seed:       42,
		Workers:    2,
		Adjustment: "bh",
	})
}

func TestAnalysisService_Analyze(t *testing.T) {
	svc := testService()
	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Variables: []core.VariableKey{"drug", "recovered"},
		Measure:   assoc.MeasureZ,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.36, res.Global, 1e-9)
	assert.Equal(t, 100, res.SampleSize)
}

func TestAnalysisService_PermutationDefaults(t *testing.T) {
	svc := testService()
	tested, err := svc.PermutationTest(context.Background(), PermutationRequest{
		AnalyzeRequest: AnalyzeRequest{
			Variables: []core.VariableKey{"drug", "recovered"},
			Measure:   assoc.MeasureZ,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, tested.Iterations)
	assert.Equal(t, int64(42), tested.Seed)
	assert.Equal(t, assoc.AdjustBH, tested.Adjustment)
	assert.Less(t, tested.PGlobal, 0.05)
}

func TestAnalysisService_SubgroupsExtendFrame(t *testing.T) {
	svc := testService()
	resp, err := svc.BuildSubgroups(context.Background(), SubgroupRequest{
		AnalyzeRequest: AnalyzeRequest{
			Variables: []core.VariableKey{"drug", "recovered"},
			Measure:   assoc.MeasureZ,
		},
		Options: engine.SubgroupOptions{Key: "response"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.VariableKey("response"), resp.Column.Variable.Key)

	// The derived column joins the service's frame for follow-up analyses.
	_, ok := svc.Frame().Column("response")
	require.True(t, ok)
	follow, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Variables: []core.VariableKey{"drug", "response"},
		Measure:   assoc.MeasureNPMI,
	})
	require.NoError(t, err)
	assert.Len(t, follow.Local, 4)

	_, err = svc.BuildSubgroups(context.Background(), SubgroupRequest{
		AnalyzeRequest: AnalyzeRequest{
			Variables: []core.VariableKey{"drug"},
			Measure:   assoc.MeasureZ,
		},
	})
	assert.True(t, errors.IsConfigInvalid(err))
}

func TestAnalysisService_Discretize(t *testing.T) {
	svc := testService()
	col, err := svc.Discretize(DiscretizeRequest{
		Key:    "age_bin",
		Values: ageValues(100),
		Bins:   4,
		Method: dataset.BinEqualFrequency,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, col.Variable.Cardinality())

	_, ok := svc.Frame().Column("age_bin")
	assert.True(t, ok)
}

func TestAnalysisService_RepositoryRequired(t *testing.T) {
	svc := testService()
	_, err := svc.ListResults(context.Background(), 10)
	assert.True(t, errors.IsConfigInvalid(err))
	_, err = svc.GetResult(context.Background(), "some-id")
	assert.True(t, errors.IsConfigInvalid(err))
}

func ageValues(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(20 + i%50)
	}
	return values
}
