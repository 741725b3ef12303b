package app

import (
	"context"

	"lassoc/adapters/stats/engine"
	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/domain/dataset"
	"lassoc/internal"
	"lassoc/internal/config"
	"lassoc/internal/errors"
	"lassoc/ports"
)

var logger = internal.NewLogger("AnalysisService")

// AnalysisService orchestrates the analysis pipeline: frame access,
// discretization, table construction, measure computation, permutation
// testing and subgroup derivation. Persistence is optional; a nil repository
// keeps the service purely in-memory.
type AnalysisService struct {
	frame    *dataset.Frame
	repo     ports.ResultRepository
	defaults config.AnalysisConfig
}

// NewAnalysisService creates a service over a loaded frame.
func NewAnalysisService(frame *dataset.Frame, repo ports.ResultRepository, defaults config.AnalysisConfig) *AnalysisService {
	return &AnalysisService{frame: frame, repo: repo, defaults: defaults}
}

// Frame returns the service's current frame.
func (s *AnalysisService) Frame() *dataset.Frame {
	return s.frame
}

// AnalyzeRequest selects the variables and measure of one analysis.
type AnalyzeRequest struct {
	Variables  []core.VariableKey
	Measure    assoc.Measure
	LevelOrder map[core.VariableKey][]dataset.Level
}

func (s *AnalysisService) buildOptions(order map[core.VariableKey][]dataset.Level) *engine.BuildOptions {
	return &engine.BuildOptions{
		LevelOrder: order,
		MaxCells:   s.defaults.MaxCells,
	}
}

// Analyze computes local and global association values for the selected
// variables.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*assoc.Result, error) {
	tbl, err := engine.BuildTable(s.frame, req.Variables, s.buildOptions(req.LevelOrder))
	if err != nil {
		return nil, err
	}
	res, err := engine.Compute(tbl, req.Measure)
	if err != nil {
		return nil, err
	}
	logger.Info("computed %s over %d variables: global %g", req.Measure, len(req.Variables), res.Global)

	if s.repo != nil {
		if err := s.repo.SaveResult(ctx, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// PermutationRequest parameterizes a permutation test. Zero-valued fields
// fall back to the configured defaults.
type PermutationRequest struct {
	AnalyzeRequest
	Iterations int
	Seed       *int64
	Workers    int
	Groups     [][]core.VariableKey
	Adjustment assoc.Adjustment
	Progress   *engine.Progress
}

// PermutationTest runs a grouped permutation test over the selected
// variables and persists the tested result when a repository is configured.
func (s *AnalysisService) PermutationTest(ctx context.Context, req PermutationRequest) (*assoc.TestedResult, error) {
	iterations := req.Iterations
	if iterations == 0 {
		iterations = s.defaults.Iterations
	}
	seed := s.defaults.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	workers := req.Workers
	if workers == 0 {
		workers = s.defaults.Workers
	}
	adjustment := req.Adjustment
	if adjustment == "" {
		adjustment = assoc.Adjustment(s.defaults.Adjustment)
	}

	tested, err := engine.PermutationTest(ctx, s.frame, req.Variables, req.Measure, engine.PermutationConfig{
		Iterations:   iterations,
		Groups:       req.Groups,
		Adjustment:   adjustment,
		Seed:         seed,
		Workers:      workers,
		TableOptions: s.buildOptions(req.LevelOrder),
		Progress:     req.Progress,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("permutation test: %d iterations, global p %g", tested.Iterations, tested.PGlobal)

	if s.repo != nil {
		if err := s.repo.SaveTestedResult(ctx, tested); err != nil {
			return nil, err
		}
	}
	return tested, nil
}

// SubgroupRequest derives a subgroup column from a pairwise analysis and
// extends the frame with it.
type SubgroupRequest struct {
	AnalyzeRequest
	Options engine.SubgroupOptions

	// Significance runs a permutation test first and filters insignificant
	// cells to independent.
	Significance *PermutationRequest
}

// SubgroupResponse carries the derived column and the analysis behind it.
type SubgroupResponse struct {
	Column dataset.Column
	Result *assoc.Result
	Tested *assoc.TestedResult
}

// BuildSubgroups classifies the joint events of a two-variable analysis into
// {negative, independent, positive} and extends the service's frame with the
// derived column, making it available to follow-up analyses.
func (s *AnalysisService) BuildSubgroups(ctx context.Context, req SubgroupRequest) (*SubgroupResponse, error) {
	if len(req.Variables) != 2 {
		return nil, errors.ConfigInvalidf("subgroups require exactly two variables, got %d", len(req.Variables))
	}
	tbl, err := engine.BuildTable(s.frame, req.Variables, s.buildOptions(req.LevelOrder))
	if err != nil {
		return nil, err
	}

	resp := &SubgroupResponse{}
	var col dataset.Column
	if req.Significance != nil {
		opts := req.Options
		opts.UseSignificance = true
		perm := *req.Significance
		perm.AnalyzeRequest = req.AnalyzeRequest
		tested, err := s.PermutationTest(ctx, perm)
		if err != nil {
			return nil, err
		}
		col, err = engine.BuildSubgroupsTested(tbl, tested, opts)
		if err != nil {
			return nil, err
		}
		resp.Tested = tested
		resp.Result = &tested.Result
	} else {
		res, err := engine.Compute(tbl, req.Measure)
		if err != nil {
			return nil, err
		}
		col, err = engine.BuildSubgroups(tbl, res, req.Options)
		if err != nil {
			return nil, err
		}
		resp.Result = res
	}

	extended, err := s.frame.WithColumn(col)
	if err != nil {
		return nil, err
	}
	s.frame = extended
	resp.Column = col
	logger.Info("derived subgroup column %s over %d rows", col.Variable.Key, len(col.Labels))
	return resp, nil
}

// DiscretizeRequest bins one numeric series into a categorical column.
type DiscretizeRequest struct {
	Key    core.VariableKey
	Values []float64
	Bins   int
	Method dataset.BinMethod
}

// Discretize bins a numeric series and extends the frame with the resulting
// ordered categorical column.
func (s *AnalysisService) Discretize(req DiscretizeRequest) (dataset.Column, error) {
	col, err := dataset.Discretize(req.Key, req.Values, req.Bins, req.Method)
	if err != nil {
		return dataset.Column{}, err
	}
	extended, err := s.frame.WithColumn(col)
	if err != nil {
		return dataset.Column{}, err
	}
	s.frame = extended
	return col, nil
}

// GetResult loads a stored result by id.
func (s *AnalysisService) GetResult(ctx context.Context, id core.AnalysisID) (*assoc.Result, error) {
	if s.repo == nil {
		return nil, errors.ConfigInvalid("no result repository configured")
	}
	return s.repo.GetResult(ctx, id)
}

// ListResults lists the most recent stored results.
func (s *AnalysisService) ListResults(ctx context.Context, limit int) ([]*assoc.Result, error) {
	if s.repo == nil {
		return nil, errors.ConfigInvalid("no result repository configured")
	}
	return s.repo.ListResults(ctx, limit)
}
