package engine

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/domain/dataset"
	"lassoc/internal/errors"
)

// PermutationConfig parameterizes a permutation test.
type PermutationConfig struct {
	// Iterations is the number of permutations; must be >= 1.
	Iterations int

	// Groups partitions the selected variables into permutation blocks. Each
	// iteration draws one fresh row permutation per block and applies it to
	// all of the block's variables, preserving association within a block
	// while destroying it between blocks. Variables in no listed group form
	// one leftover block. Nil means one block per variable: the fully
	// independent null.
	Groups [][]core.VariableKey

	// Adjustment selects the multiple-comparison correction over local
	// p-values; empty selects Benjamini-Hochberg. The global p-value is a
	// single test and never adjusted.
	Adjustment assoc.Adjustment

	// Seed derives one deterministic random stream per worker. A fixed seed
	// and worker count reproduce the exact p-values; exceedance counts are
	// integers, so merge order cannot perturb them.
	Seed int64

	// Workers bounds the iteration fan-out; 0 selects GOMAXPROCS.
	Workers int

	// TableOptions are forwarded to the initial table build.
	TableOptions *BuildOptions

	// Progress, when set, is advanced once per completed iteration. It is a
	// read-only observer and never gates correctness.
	Progress *Progress
}

// Progress exposes a monotonically increasing completed-iteration counter.
type Progress struct {
	completed atomic.Int64
}

// Completed returns the number of finished iterations so far.
func (p *Progress) Completed() int64 {
	return p.completed.Load()
}

// PermutationTest estimates the significance of an association under the null
// hypothesis that the permutation blocks are mutually independent. It builds
// the observed table once (all data and shape validation happens here; the
// iteration loop cannot fail afterwards), then re-tallies permuted data for
// each iteration and counts two-sided exceedances per cell and globally.
//
// Empirical p-values are count(|permuted| > |observed|) / iterations; ties do
// not count as exceeding. The estimator's floor is 1/iterations; a stored 0
// means "below the floor" and renders as such.
//
// Iterations are independent and fan out across workers; cancellation is
// cooperative between iterations and discards the partial accumulators.
func PermutationTest(ctx context.Context, f *dataset.Frame, keys []core.VariableKey, m assoc.Measure, cfg PermutationConfig) (*assoc.TestedResult, error) {
	if cfg.Iterations < 1 {
		return nil, errors.ConfigInvalidf("iterations must be >= 1, got %d", cfg.Iterations)
	}
	if cfg.Workers < 0 {
		return nil, errors.ConfigInvalidf("workers must be >= 0, got %d", cfg.Workers)
	}
	adjustment := cfg.Adjustment
	if adjustment == "" {
		adjustment = assoc.AdjustBH
	}
	if _, err := assoc.ParseAdjustment(string(adjustment)); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	groups, err := resolveGroups(keys, cfg.Groups)
	if err != nil {
		return nil, err
	}

	tbl, err := BuildTable(f, keys, cfg.TableOptions)
	if err != nil {
		return nil, err
	}
	observed, err := Compute(tbl, m)
	if err != nil {
		return nil, err
	}

	// Dimension indices per permutation block.
	keyDim := make(map[core.VariableKey]int, len(keys))
	for d, key := range keys {
		keyDim[key] = d
	}
	blocks := make([][]int, len(groups))
	for g, group := range groups {
		blocks[g] = make([]int, len(group))
		for i, key := range group {
			blocks[g][i] = keyDim[key]
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > cfg.Iterations {
		workers = cfg.Iterations
	}

	cells := tbl.Cells()
	exceedLocal := make([][]int64, workers)
	exceedGlobal := make([]int64, workers)

	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		start := w * cfg.Iterations / workers
		end := (w + 1) * cfg.Iterations / workers
		exceedLocal[w] = make([]int64, cells)
		eg.Go(func() error {
			return permutationWorker(egCtx, tbl, m, observed, blocks,
				rand.New(rand.NewSource(cfg.Seed+int64(w)+1)),
				end-start, exceedLocal[w], &exceedGlobal[w], cfg.Progress)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	iters := float64(cfg.Iterations)
	pLocal := make([]float64, cells)
	for c := range pLocal {
		var total int64
		for w := 0; w < workers; w++ {
			total += exceedLocal[w][c]
		}
		pLocal[c] = float64(total) / iters
	}
	var globalTotal int64
	for w := 0; w < workers; w++ {
		globalTotal += exceedGlobal[w]
	}

	adjusted, err := AdjustPValues(pLocal, adjustment)
	if err != nil {
		return nil, err
	}

	return &assoc.TestedResult{
		Result:         *observed,
		PLocal:         pLocal,
		PLocalAdjusted: adjusted,
		PGlobal:        float64(globalTotal) / iters,
		Iterations:     cfg.Iterations,
		Adjustment:     adjustment,
		Seed:           cfg.Seed,
		Groups:         groups,
	}, nil
}

// permutationWorker runs a contiguous share of iterations against private
// scratch tallies, recording exceedance counts for later merging.
func permutationWorker(ctx context.Context, tbl *Table, m assoc.Measure, observed *assoc.Result,
	blocks [][]int, rng *rand.Rand, iterations int,
	exceedLocal []int64, exceedGlobal *int64, progress *Progress) error {

	k := len(tbl.dims)
	n := tbl.n
	cells := tbl.Cells()

	permCodes := make([][]int, k)
	for d := 0; d < k; d++ {
		permCodes[d] = make([]int, n)
	}
	perm := make([]int, n)
	counts := make([]int, cells)
	probs := make([]float64, cells)
	marginals := make([][]float64, k)
	for d, dim := range tbl.dims {
		marginals[d] = make([]float64, dim)
	}
	local := make([]float64, cells)
	absObserved := math.Abs(observed.Global)

	for it := 0; it < iterations; it++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for _, block := range blocks {
			shuffleIdentity(perm, rng)
			for _, d := range block {
				src := tbl.codes[d]
				dst := permCodes[d]
				for i, j := range perm {
					dst[i] = src[j]
				}
			}
		}

		for i := range counts {
			counts[i] = 0
		}
		for row := 0; row < n; row++ {
			off := 0
			for d := 0; d < k; d++ {
				off += permCodes[d][row] * tbl.strides[d]
			}
			counts[off]++
		}
		tallyProbabilities(counts, tbl.strides, n, probs, marginals)

		global := computeCells(m, probs, marginals, tbl.strides, n, local)

		for c, v := range local {
			if math.Abs(v) > math.Abs(observed.Local[c]) {
				exceedLocal[c]++
			}
		}
		if math.Abs(global) > absObserved {
			*exceedGlobal++
		}
		if progress != nil {
			progress.completed.Add(1)
		}
	}
	return nil
}

func shuffleIdentity(perm []int, rng *rand.Rand) {
	for i := range perm {
		perm[i] = i
	}
	rng.Shuffle(len(perm), func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})
}

// resolveGroups validates the requested permutation blocks against the
// selected variables and completes the partition: unlisted variables join one
// leftover block, and nil input yields one block per variable.
func resolveGroups(keys []core.VariableKey, groups [][]core.VariableKey) ([][]core.VariableKey, error) {
	selected := make(map[core.VariableKey]bool, len(keys))
	for _, key := range keys {
		selected[key] = false
	}

	if len(groups) == 0 {
		resolved := make([][]core.VariableKey, len(keys))
		for i, key := range keys {
			resolved[i] = []core.VariableKey{key}
		}
		return resolved, nil
	}

	resolved := make([][]core.VariableKey, 0, len(groups)+1)
	for _, group := range groups {
		if len(group) == 0 {
			return nil, errors.ConfigInvalid("permutation group is empty")
		}
		for _, key := range group {
			used, ok := selected[key]
			if !ok {
				return nil, errors.ConfigInvalidf("permutation group references unselected variable %s", key)
			}
			if used {
				return nil, errors.ConfigInvalidf("variable %s appears in more than one permutation group", key)
			}
			selected[key] = true
		}
		resolved = append(resolved, append([]core.VariableKey(nil), group...))
	}

	var leftover []core.VariableKey
	for _, key := range keys {
		if !selected[key] {
			leftover = append(leftover, key)
		}
	}
	if len(leftover) > 0 {
		resolved = append(resolved, leftover)
	}
	return resolved, nil
}
