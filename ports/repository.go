package ports

import (
	"context"

	"lassoc/domain/assoc"
	"lassoc/domain/core"
)

// ResultRepository persists association results and their permutation-derived
// significance for later retrieval.
type ResultRepository interface {
	SaveResult(ctx context.Context, res *assoc.Result) error
	SaveTestedResult(ctx context.Context, res *assoc.TestedResult) error
	GetResult(ctx context.Context, id core.AnalysisID) (*assoc.Result, error)
	GetTestedResult(ctx context.Context, id core.AnalysisID) (*assoc.TestedResult, error)
	ListResults(ctx context.Context, limit int) ([]*assoc.Result, error)
}
