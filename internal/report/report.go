package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"lassoc/domain/assoc"
)

// FormatValue renders a local or global value; non-finite values print as
// Inf/-Inf/NaN instead of a float artifact.
func FormatValue(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// FormatP renders an empirical p-value against the estimator's floor. A
// stored value below the floor means "fewer exceedances than one", which the
// permutation count cannot resolve, so it renders as "< floor".
func FormatP(p, floor float64) string {
	if p < floor {
		return "<" + strconv.FormatFloat(floor, 'g', 6, 64)
	}
	return strconv.FormatFloat(p, 'g', 6, 64)
}

// cellLabel joins the level labels addressing one joint-event cell.
func cellLabel(res *assoc.Result, idx []int) string {
	parts := make([]string, len(idx))
	for d, i := range idx {
		parts[d] = fmt.Sprintf("%s=%s", res.Variables[d].Key, res.Variables[d].Levels[i])
	}
	return strings.Join(parts, ", ")
}

// eachCell walks the result's cells in row-major order.
func eachCell(res *assoc.Result, fn func(off int, idx []int)) {
	idx := make([]int, len(res.Dims))
	for off := 0; off < res.Cells(); off++ {
		fn(off, idx)
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < res.Dims[d] {
				break
			}
			idx[d] = 0
		}
	}
}

// WriteText renders a plain association result as an aligned text table.
func WriteText(w io.Writer, res *assoc.Result) error {
	fmt.Fprintf(w, "measure: %s\n", res.Measure)
	fmt.Fprintf(w, "sample size: %d\n", res.SampleSize)
	fmt.Fprintf(w, "global: %s\n", FormatValue(res.Global))
	if res.AsymptoticP != nil {
		fmt.Fprintf(w, "asymptotic p (df=%d): %s\n", res.DegreesOfFreedom, FormatValue(*res.AsymptoticP))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "cell\tlocal")
	eachCell(res, func(off int, idx []int) {
		fmt.Fprintf(tw, "%s\t%s\n", cellLabel(res, idx), FormatValue(res.Local[off]))
	})
	return tw.Flush()
}

// WriteTestedText renders a permutation-tested result as an aligned text
// table including raw and adjusted p-values.
func WriteTestedText(w io.Writer, res *assoc.TestedResult) error {
	floor := res.PFloor()
	fmt.Fprintf(w, "measure: %s\n", res.Measure)
	fmt.Fprintf(w, "sample size: %d\n", res.SampleSize)
	fmt.Fprintf(w, "iterations: %d (seed %d)\n", res.Iterations, res.Seed)
	fmt.Fprintf(w, "adjustment: %s\n", res.Adjustment)
	fmt.Fprintf(w, "global: %s (p %s)\n", FormatValue(res.Global), FormatP(res.PGlobal, floor))
	if res.AsymptoticP != nil {
		fmt.Fprintf(w, "asymptotic p (df=%d): %s\n", res.DegreesOfFreedom, FormatValue(*res.AsymptoticP))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "cell\tlocal\tp\tp_adj")
	eachCell(&res.Result, func(off int, idx []int) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			cellLabel(&res.Result, idx),
			FormatValue(res.Local[off]),
			FormatP(res.PLocal[off], floor),
			FormatP(res.PLocalAdjusted[off], floor))
	})
	return tw.Flush()
}

// WriteCSV renders a plain result as CSV, one row per cell plus one trailing
// global row.
func WriteCSV(w io.Writer, res *assoc.Result) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(res.Variables)+2)
	for _, v := range res.Variables {
		header = append(header, string(v.Key))
	}
	header = append(header, "scope", "local")
	if err := cw.Write(header); err != nil {
		return err
	}

	var writeErr error
	eachCell(res, func(off int, idx []int) {
		if writeErr != nil {
			return
		}
		rec := make([]string, 0, len(idx)+2)
		for d, i := range idx {
			rec = append(rec, string(res.Variables[d].Levels[i]))
		}
		rec = append(rec, "local", FormatValue(res.Local[off]))
		writeErr = cw.Write(rec)
	})
	if writeErr != nil {
		return writeErr
	}

	globalRec := make([]string, len(res.Variables))
	globalRec = append(globalRec, "global", FormatValue(res.Global))
	if err := cw.Write(globalRec); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteTestedCSV renders a tested result as CSV with p-value columns. The
// floor rule applies: unresolvable p-values render as "<1/iterations".
func WriteTestedCSV(w io.Writer, res *assoc.TestedResult) error {
	floor := res.PFloor()
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(res.Variables)+5)
	for _, v := range res.Variables {
		header = append(header, string(v.Key))
	}
	header = append(header, "scope", "local", "p", "p_adj")
	if err := cw.Write(header); err != nil {
		return err
	}

	var writeErr error
	eachCell(&res.Result, func(off int, idx []int) {
		if writeErr != nil {
			return
		}
		rec := make([]string, 0, len(idx)+4)
		for d, i := range idx {
			rec = append(rec, string(res.Variables[d].Levels[i]))
		}
		rec = append(rec, "local",
			FormatValue(res.Local[off]),
			FormatP(res.PLocal[off], floor),
			FormatP(res.PLocalAdjusted[off], floor))
		writeErr = cw.Write(rec)
	})
	if writeErr != nil {
		return writeErr
	}

	globalRec := make([]string, len(res.Variables))
	globalRec = append(globalRec, "global",
		FormatValue(res.Global),
		FormatP(res.PGlobal, floor), "")
	if err := cw.Write(globalRec); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
