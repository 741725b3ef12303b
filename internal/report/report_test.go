package report

import (
	"encoding/csv"
	"math"
	"strings"
	"testing"

	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/domain/dataset"
)

func sampleResult() *assoc.Result {
	return &assoc.Result{
		AnalysisID: "a-1",
		Measure:    assoc.MeasurePMI,
		Variables: []dataset.Variable{
			dataset.NewVariable("x", []dataset.Level{"x1", "x2"}, false),
			dataset.NewVariable("y", []dataset.Level{"y1", "y2"}, false),
		},
		Dims:       []int{2, 2},
		Local:      []float64{0.47, -0.22, -0.22, math.Inf(-1)},
		Global:     0.31,
		SampleSize: 30,
		ComputedAt: core.Now(),
	}
}

func TestFormatValue_NonFinite(t *testing.T) {
	cases := map[float64]string{
		math.Inf(1):  "Inf",
		math.Inf(-1): "-Inf",
		0.5:          "0.5",
	}
	for v, want := range cases {
		if got := FormatValue(v); got != want {
			t.Errorf("FormatValue(%g) = %q, want %q", v, got, want)
		}
	}
	if got := FormatValue(math.NaN()); got != "NaN" {
		t.Errorf("FormatValue(NaN) = %q, want NaN", got)
	}
}

func TestFormatP_FloorRule(t *testing.T) {
	if got := FormatP(0, 0.001); got != "<0.001" {
		t.Errorf("p below floor rendered %q, want <0.001", got)
	}
	if got := FormatP(0.001, 0.001); got != "0.001" {
		t.Errorf("p at floor rendered %q, want 0.001", got)
	}
	if got := FormatP(0.25, 0.001); got != "0.25" {
		t.Errorf("FormatP(0.25) = %q", got)
	}
}

func TestWriteText_IncludesCellsAndGlobal(t *testing.T) {
	var buf strings.Builder
	if err := WriteText(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"measure: pmi", "global: 0.31", "x=x1, y=y1", "x=x2, y=y2", "-Inf"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTestedText_RendersFlooredP(t *testing.T) {
	res := &assoc.TestedResult{
		Result:         *sampleResult(),
		PLocal:         []float64{0, 0.2, 0.2, 0.8},
		PLocalAdjusted: []float64{0, 0.266667, 0.266667, 0.8},
		PGlobal:        0,
		Iterations:     1000,
		Adjustment:     assoc.AdjustBH,
		Seed:           42,
	}
	var buf strings.Builder
	if err := WriteTestedText(&buf, res); err != nil {
		t.Fatalf("WriteTestedText failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "global: 0.31 (p <0.001)") {
		t.Errorf("global p not rendered against the floor:\n%s", out)
	}
	if !strings.Contains(out, "iterations: 1000 (seed 42)") {
		t.Errorf("iteration line missing:\n%s", out)
	}
	if !strings.Contains(out, "adjustment: bh") {
		t.Errorf("adjustment line missing:\n%s", out)
	}
}

func TestWriteTestedCSV_Shape(t *testing.T) {
	res := &assoc.TestedResult{
		Result:         *sampleResult(),
		PLocal:         []float64{0, 0.2, 0.2, 0.8},
		PLocalAdjusted: []float64{0, 0.27, 0.27, 0.8},
		PGlobal:        0.004,
		Iterations:     500,
		Adjustment:     assoc.AdjustBH,
	}
	var buf strings.Builder
	if err := WriteTestedCSV(&buf, res); err != nil {
		t.Fatalf("WriteTestedCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	// Header + 4 cells + global row.
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6", len(records))
	}
	if got := records[0]; strings.Join(got, ",") != "x,y,scope,local,p,p_adj" {
		t.Errorf("header = %v", got)
	}
	if records[1][4] != "<0.002" {
		t.Errorf("first cell p = %q, want <0.002", records[1][4])
	}
	last := records[5]
	if last[2] != "global" || last[4] != "0.004" {
		t.Errorf("global row = %v", last)
	}
}
