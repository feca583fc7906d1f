package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teilomillet/relcheck"
	"github.com/teilomillet/relcheck/dataset"
)

func newDataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Check and split labeled training data",
	}
	cmd.AddCommand(newDataSplitCmd(a), newDataCheckCmd(a))
	return cmd
}

func newDataSplitCmd(a *app) *cobra.Command {
	var (
		ratios     = dataset.DefaultRatios
		stratified bool
		seed       uint64
		outDir     string
		folds      int
	)
	cmd := &cobra.Command{
		Use:   "split <labeled.csv>",
		Short: "Split labeled data into train, validation and test files",
		Long: `Split labeled data into train.csv, validation.csv and test.csv, or with
--folds into fold_1.csv ... fold_k.csv. Data failing the quality checks
is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			m := dataset.NewManager(
				dataset.WithSplitter(dataset.NewSplitter(seed)),
				dataset.WithLogger(relcheck.NewLogger(cfg.LogLevel)),
			)
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output dir: %w", err)
			}
			out := cmd.OutOrStdout()

			if folds > 0 {
				parts, err := m.PrepareFolds(args[0], folds)
				if err != nil {
					return err
				}
				for i, part := range parts {
					path := filepath.Join(outDir, fmt.Sprintf("fold_%d.csv", i+1))
					if err := dataset.WriteCSV(path, dataset.Records(part)); err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d examples\n", path, len(part))
				}
				return nil
			}

			split, err := m.LoadAndSplit(args[0], ratios, stratified)
			if err != nil {
				return err
			}
			for _, part := range []struct {
				name string
				data []dataset.Example
			}{
				{"train", split.Train},
				{"validation", split.Validation},
				{"test", split.Test},
			} {
				path := filepath.Join(outDir, part.name+".csv")
				if err := dataset.WriteCSV(path, dataset.Records(part.data)); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d examples\n", path, len(part.data))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&ratios.Train, "train", ratios.Train, "Training share")
	cmd.Flags().Float64Var(&ratios.Validation, "validation", ratios.Validation, "Validation share")
	cmd.Flags().Float64Var(&ratios.Test, "test", ratios.Test, "Test share")
	cmd.Flags().BoolVar(&stratified, "stratified", false, "Preserve label proportions in each set")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Shuffle seed")
	cmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
	cmd.Flags().IntVar(&folds, "folds", 0, "Write k cross-validation folds instead of a three-way split")
	return cmd
}

func newDataCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <labeled.csv>",
		Short: "Report label counts and data quality issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			examples, err := dataset.ReadExamples(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			labels, counts := dataset.LabelCounts(examples)
			fmt.Fprintf(out, "%d examples\n", len(examples))
			for _, l := range labels {
				fmt.Fprintf(out, "  label %s: %d\n", l, counts[l])
			}
			issues := dataset.NewValidator().QualityIssues(examples)
			if len(issues) == 0 {
				fmt.Fprintln(out, "No data quality issues found")
				return nil
			}
			fmt.Fprintln(out, "Data quality issues:")
			for _, issue := range issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			return nil
		},
	}
}
