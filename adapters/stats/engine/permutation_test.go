package engine

import (
	"context"
	"testing"

	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/domain/dataset"
	"lassoc/internal/errors"
	"lassoc/internal/testkit"
)

func TestPermutationTest_DetectsStrongAssociation(t *testing.T) {
	frame := testkit.DrugRecoveryFrame()
	progress := &Progress{}
	tested, err := PermutationTest(context.Background(), frame,
		[]core.VariableKey{"drug", "recovered"}, assoc.MeasureZ,
		PermutationConfig{
			Iterations: 1000,
			Seed:       42,
			Workers:    2,
			Progress:   progress,
		})
	if err != nil {
		t.Fatalf("PermutationTest failed: %v", err)
	}

	// chi2 = 36 on this table; a random relabeling essentially never reaches
	// |global z| = 0.36.
	if tested.PGlobal >= 0.01 {
		t.Errorf("global p = %g, want < 0.01 for a strong association", tested.PGlobal)
	}
	if got := tested.PLocalAdjusted[tested.Offset([]int{1, 1})]; got >= 0.05 {
		t.Errorf("adjusted local p at (drug=yes, recovered=yes) = %g, want < 0.05", got)
	}
	if tested.Iterations != 1000 {
		t.Errorf("iterations = %d, want 1000", tested.Iterations)
	}
	if tested.Adjustment != assoc.AdjustBH {
		t.Errorf("default adjustment = %s, want bh", tested.Adjustment)
	}
	if tested.PFloor() != 0.001 {
		t.Errorf("p floor = %g, want 0.001", tested.PFloor())
	}
	if got := progress.Completed(); got != 1000 {
		t.Errorf("progress counter = %d, want 1000", got)
	}

	// Nil groups resolve to the fully independent null: one block per variable.
	if len(tested.Groups) != 2 || len(tested.Groups[0]) != 1 || len(tested.Groups[1]) != 1 {
		t.Errorf("resolved groups = %v, want one block per variable", tested.Groups)
	}
}

func TestPermutationTest_IndependentDataNotSignificant(t *testing.T) {
	frame := testkit.CrossJoinFrame(
		[]dataset.Level{"a1", "a2"},
		[]dataset.Level{"b1", "b2"},
		25,
	)
	tested, err := PermutationTest(context.Background(), frame,
		[]core.VariableKey{"a", "b"}, assoc.MeasureZ,
		PermutationConfig{Iterations: 500, Seed: 11, Workers: 2})
	if err != nil {
		t.Fatalf("PermutationTest failed: %v", err)
	}

	// Observed global is exactly 0; nearly every permutation deviates from the
	// perfectly balanced table, so the p-value sits near 1.
	if tested.PGlobal <= 0.5 {
		t.Errorf("global p = %g under exact independence, want > 0.5", tested.PGlobal)
	}
	for off, p := range tested.PLocal {
		if p <= 0.5 {
			t.Errorf("local p at cell %d = %g under exact independence, want > 0.5", off, p)
		}
	}
}

func TestPermutationTest_Reproducible(t *testing.T) {
	frame := testkit.DrugRecoveryFrame()
	keys := []core.VariableKey{"drug", "recovered"}
	cfg := PermutationConfig{Iterations: 300, Seed: 99, Workers: 3}

	first, err := PermutationTest(context.Background(), frame, keys, assoc.MeasureChiResidual, cfg)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := PermutationTest(context.Background(), frame, keys, assoc.MeasureChiResidual, cfg)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.PGlobal != second.PGlobal {
		t.Errorf("same seed and workers gave different global p: %g vs %g",
			first.PGlobal, second.PGlobal)
	}
	for off := range first.PLocal {
		if first.PLocal[off] != second.PLocal[off] {
			t.Errorf("local p at cell %d differs across identical runs", off)
		}
	}
	if first.Fingerprint != second.Fingerprint {
		t.Error("observed result fingerprints differ across identical runs")
	}
}

func TestPermutationTest_GroupedBlocksPreserveWithinAssociation(t *testing.T) {
	frame := testkit.DrugRecoveryFrame()
	keys := []core.VariableKey{"drug", "recovered"}

	// Both variables in one block: every iteration applies one shared
	// permutation, which preserves the joint table exactly, so no permuted
	// statistic ever exceeds the observed one.
	tested, err := PermutationTest(context.Background(), frame, keys, assoc.MeasureZ,
		PermutationConfig{
			Iterations: 100,
			Seed:       5,
			Workers:    2,
			Groups:     [][]core.VariableKey{{"drug", "recovered"}},
		})
	if err != nil {
		t.Fatalf("PermutationTest failed: %v", err)
	}
	if tested.PGlobal != 0 {
		t.Errorf("shared permutation must preserve the statistic, got global p %g", tested.PGlobal)
	}
	if len(tested.Groups) != 1 {
		t.Errorf("resolved groups = %v, want the single requested block", tested.Groups)
	}
}

func TestPermutationTest_ConfigErrors(t *testing.T) {
	frame := testkit.DrugRecoveryFrame()
	keys := []core.VariableKey{"drug", "recovered"}
	ctx := context.Background()

	cases := []struct {
		name string
		cfg  PermutationConfig
	}{
		{"zero iterations", PermutationConfig{Iterations: 0}},
		{"negative workers", PermutationConfig{Iterations: 10, Workers: -1}},
		{"unknown adjustment", PermutationConfig{Iterations: 10, Adjustment: "holm"}},
		{"empty group", PermutationConfig{Iterations: 10,
			Groups: [][]core.VariableKey{{}}}},
		{"unselected variable", PermutationConfig{Iterations: 10,
			Groups: [][]core.VariableKey{{"age"}}}},
		{"duplicate variable", PermutationConfig{Iterations: 10,
			Groups: [][]core.VariableKey{{"drug"}, {"drug"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PermutationTest(ctx, frame, keys, assoc.MeasureZ, tc.cfg)
			if !errors.IsConfigInvalid(err) {
				t.Errorf("expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestPermutationTest_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frame := testkit.DrugRecoveryFrame()
	_, err := PermutationTest(ctx, frame,
		[]core.VariableKey{"drug", "recovered"}, assoc.MeasureZ,
		PermutationConfig{Iterations: 100000, Seed: 1, Workers: 2})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestResolveGroups(t *testing.T) {
	keys := []core.VariableKey{"a", "b", "c", "d"}

	resolved, err := resolveGroups(keys, nil)
	if err != nil {
		t.Fatalf("nil groups failed: %v", err)
	}
	if len(resolved) != 4 {
		t.Errorf("nil groups resolved to %d blocks, want 4", len(resolved))
	}

	// Unlisted variables join one leftover block.
	resolved, err = resolveGroups(keys, [][]core.VariableKey{{"a", "c"}})
	if err != nil {
		t.Fatalf("partial groups failed: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved to %d blocks, want 2", len(resolved))
	}
	leftover := resolved[1]
	if len(leftover) != 2 || leftover[0] != "b" || leftover[1] != "d" {
		t.Errorf("leftover block = %v, want [b d]", leftover)
	}
}
