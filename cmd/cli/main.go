package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lassoc/adapters/excel"
	"lassoc/adapters/stats/engine"
	"lassoc/app"
	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/domain/dataset"
	"lassoc/internal/config"
	"lassoc/internal/report"
)

var (
	flagFile       string
	flagVars       []string
	flagMeasure    string
	flagCSV        bool
	flagIterations int
	flagSeed       int64
	flagWorkers    int
	flagGroups     []string
	flagAdjustment string
	flagLow        float64
	flagHigh       float64
	flagKey        string
	flagOut        string
	flagBins       int
	flagMethod     string
)

func main() {
	root := &cobra.Command{
		Use:   "lassoc",
		Short: "Local association analysis over categorical data",
		Long: "Computes local and global association measures over discretized " +
			"categorical data, with permutation-based significance testing and " +
			"subgroup derivation.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "CSV or XLSX input file")
	root.MarkPersistentFlagRequired("file")

	root.AddCommand(analyzeCmd(), permtestCmd(), subgroupsCmd(), discretizeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadService() (*app.AnalysisService, error) {
	frame, err := excel.NewDataReader(flagFile).Load()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.NewAnalysisService(frame, nil, cfg.Analysis), nil
}

func parseRequest() (app.AnalyzeRequest, error) {
	measure, err := assoc.ParseMeasure(flagMeasure)
	if err != nil {
		return app.AnalyzeRequest{}, err
	}
	keys := make([]core.VariableKey, len(flagVars))
	for i, v := range flagVars {
		keys[i], err = core.ParseVariableKey(v)
		if err != nil {
			return app.AnalyzeRequest{}, err
		}
	}
	return app.AnalyzeRequest{Variables: keys, Measure: measure}, nil
}

func addMeasureFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&flagVars, "vars", "v", nil, "variables to analyze (comma-separated)")
	cmd.Flags().StringVarP(&flagMeasure, "measure", "m", "z", "association measure: z, pmi, npmi, chi_residual")
	cmd.MarkFlagRequired("vars")
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute local and global association values",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			req, err := parseRequest()
			if err != nil {
				return err
			}
			res, err := svc.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			if flagCSV {
				return report.WriteCSV(os.Stdout, res)
			}
			return report.WriteText(os.Stdout, res)
		},
	}
	addMeasureFlags(cmd)
	cmd.Flags().BoolVar(&flagCSV, "csv", false, "emit CSV instead of a text table")
	return cmd
}

// parseGroups splits "a,b;c" into permutation blocks: semicolons separate
// blocks, commas separate variables within a block.
func parseGroups(specs []string) [][]core.VariableKey {
	var groups [][]core.VariableKey
	for _, spec := range specs {
		for _, block := range strings.Split(spec, ";") {
			var group []core.VariableKey
			for _, v := range strings.Split(block, ",") {
				v = strings.TrimSpace(v)
				if v != "" {
					group = append(group, core.VariableKey(v))
				}
			}
			if len(group) > 0 {
				groups = append(groups, group)
			}
		}
	}
	return groups
}

func permtestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permtest",
		Short: "Estimate significance with a grouped permutation test",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			base, err := parseRequest()
			if err != nil {
				return err
			}
			seed := flagSeed
			progress := &engine.Progress{}
			tested, err := svc.PermutationTest(cmd.Context(), app.PermutationRequest{
				AnalyzeRequest: base,
				Iterations:     flagIterations,
				Seed:           &seed,
				Workers:        flagWorkers,
				Groups:         parseGroups(flagGroups),
				Adjustment:     assoc.Adjustment(flagAdjustment),
				Progress:       progress,
			})
			if err != nil {
				return err
			}
			if flagCSV {
				return report.WriteTestedCSV(os.Stdout, tested)
			}
			return report.WriteTestedText(os.Stdout, tested)
		},
	}
	addMeasureFlags(cmd)
	cmd.Flags().BoolVar(&flagCSV, "csv", false, "emit CSV instead of a text table")
	cmd.Flags().IntVarP(&flagIterations, "iterations", "n", 1000, "permutation iterations")
	cmd.Flags().Int64Var(&flagSeed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "worker count (0 = all cores)")
	cmd.Flags().StringArrayVarP(&flagGroups, "group", "g", nil,
		`permutation blocks, e.g. -g "a,b" -g "c" (unlisted variables form one block)`)
	cmd.Flags().StringVar(&flagAdjustment, "adjust", "bh", "p-value adjustment: bh, bonferroni, none")
	return cmd
}

func subgroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subgroups",
		Short: "Derive a subgroup column from a pairwise analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			base, err := parseRequest()
			if err != nil {
				return err
			}
			resp, err := svc.BuildSubgroups(cmd.Context(), app.SubgroupRequest{
				AnalyzeRequest: base,
				Options: engine.SubgroupOptions{
					Low:  flagLow,
					High: flagHigh,
					Key:  core.VariableKey(flagKey),
				},
			})
			if err != nil {
				return err
			}

			counts := map[dataset.Level]int{}
			for _, l := range resp.Column.Labels {
				counts[l]++
			}
			fmt.Printf("derived column: %s\n", resp.Column.Variable.Key)
			for _, level := range assoc.SubgroupLevels() {
				fmt.Printf("  %-12s %d\n", level, counts[level])
			}

			if flagOut != "" {
				if err := writeFrameCSV(flagOut, svc.Frame()); err != nil {
					return err
				}
				fmt.Printf("extended frame written to %s\n", flagOut)
			}
			return nil
		},
	}
	addMeasureFlags(cmd)
	cmd.Flags().Float64Var(&flagLow, "low", 0, "lower threshold of the independent band")
	cmd.Flags().Float64Var(&flagHigh, "high", 0, "upper threshold of the independent band")
	cmd.Flags().StringVar(&flagKey, "key", "", "name for the derived column")
	cmd.Flags().StringVarP(&flagOut, "out", "o", "", "write the extended frame as CSV")
	return cmd
}

func discretizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discretize",
		Short: "Bin a numeric column into an ordered categorical one",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			if len(flagVars) != 1 {
				return fmt.Errorf("discretize takes exactly one variable, got %d", len(flagVars))
			}
			key := core.VariableKey(flagVars[0])
			col, ok := svc.Frame().Column(key)
			if !ok {
				return fmt.Errorf("variable %s not present in file", key)
			}

			values := make([]float64, len(col.Labels))
			for i, label := range col.Labels {
				if label.IsMissing() {
					values[i] = math.NaN()
					continue
				}
				v, err := strconv.ParseFloat(string(label), 64)
				if err != nil {
					return fmt.Errorf("row %d of %s is not numeric: %q", i+1, key, label)
				}
				values[i] = v
			}

			binned, err := svc.Discretize(app.DiscretizeRequest{
				Key:    key + "_bin",
				Values: values,
				Bins:   flagBins,
				Method: dataset.BinMethod(flagMethod),
			})
			if err != nil {
				return err
			}
			fmt.Printf("derived column: %s (%d bins)\n", binned.Variable.Key, binned.Variable.Cardinality())

			if flagOut != "" {
				if err := writeFrameCSV(flagOut, svc.Frame()); err != nil {
					return err
				}
				fmt.Printf("extended frame written to %s\n", flagOut)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&flagVars, "vars", "v", nil, "numeric variable to bin")
	cmd.MarkFlagRequired("vars")
	cmd.Flags().IntVar(&flagBins, "bins", 4, "number of bins")
	cmd.Flags().StringVar(&flagMethod, "method", "equal_width", "binning method: equal_width, equal_frequency")
	cmd.Flags().StringVarP(&flagOut, "out", "o", "", "write the extended frame as CSV")
	return cmd
}

func writeFrameCSV(path string, frame *dataset.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	keys := frame.Keys()
	header := make([]string, len(keys))
	columns := make([]dataset.Column, len(keys))
	for i, key := range keys {
		header[i] = string(key)
		columns[i], _ = frame.Column(key)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for row := 0; row < frame.Rows(); row++ {
		rec := make([]string, len(keys))
		for i := range keys {
			rec[i] = string(columns[i].Labels[row])
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
