package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teilomillet/relcheck"
	"github.com/teilomillet/relcheck/abtest"
	"github.com/teilomillet/relcheck/classifier"
	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/debug"
	"github.com/teilomillet/relcheck/metrics"
	"github.com/teilomillet/relcheck/optimizer"
	"github.com/teilomillet/relcheck/registry"
)

// Default optimization settings
const (
	DefaultTargetAccuracy = 0.8
	DefaultMaxIterations  = 10
)

// templateFlags selects the prompt a command classifies with.
type templateFlags struct {
	template string
	model    string
}

func (f *templateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.template, "template", "", "Prompt template containing {text}")
	cmd.Flags().StringVar(&f.model, "model", "", "Registered model to classify with (name:version)")
	cmd.MarkFlagsMutuallyExclusive("template", "model")
}

func (f *templateFlags) classifier(ctx context.Context, sys *relcheck.System) (*classifier.TextClassifier, error) {
	if f.model != "" {
		ref, err := abtest.ParseModelRef(f.model)
		if err != nil {
			return nil, err
		}
		return sys.ModelClassifier(ctx, ref.Name, ref.Version)
	}
	return sys.NewClassifier(classifier.WithTemplate(f.template))
}

func newClassifyCmd(a *app) *cobra.Command {
	var tf templateFlags
	cmd := &cobra.Command{
		Use:   "classify <input.csv> <output.csv>",
		Short: "Classify every text of a CSV file",
		Long: `Classify every row of a CSV file with a text column. The output keeps
all input columns and adds classification and confidence.`,
		Args: cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
			records, err := dataset.ReadCSV(args[0])
			if err != nil {
				return err
			}
			clf, err := tf.classifier(cmd.Context(), sys)
			if err != nil {
				return err
			}
			out, err := clf.ClassifyRecords(cmd.Context(), records)
			if err != nil {
				return err
			}
			if err := dataset.WriteCSV(args[1], out); err != nil {
				return err
			}
			u := clf.Usage()
			sys.Logger.Debug("Classifier usage", "calls", u.Calls, "cache_hits", u.CacheHits, "prompt_tokens", u.PromptTokens)
			fmt.Fprintf(cmd.OutOrStdout(), "Classified %d rows, results written to %s\n", len(out), args[1])
			return nil
		}),
	}
	tf.register(cmd)
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var tf templateFlags
	cmd := &cobra.Command{
		Use:     "validate <labeled.csv>",
		Aliases: []string{"evaluate"},
		Short:   "Score the classifier on labeled data",
		Args:    cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
			examples, err := dataset.ReadExamples(args[0])
			if err != nil {
				return err
			}
			clf, err := tf.classifier(cmd.Context(), sys)
			if err != nil {
				return err
			}
			report, err := clf.Validate(cmd.Context(), examples)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evaluation results (%d examples):\n", len(examples))
			writeReport(cmd.OutOrStdout(), report)
			return nil
		}),
	}
	tf.register(cmd)
	return cmd
}

func writeReport(w io.Writer, r metrics.Report) {
	fmt.Fprintf(w, "  Accuracy:  %.3f\n", r.Accuracy)
	fmt.Fprintf(w, "  Precision: %.3f\n", r.Precision)
	fmt.Fprintf(w, "  Recall:    %.3f\n", r.Recall)
	fmt.Fprintf(w, "  F1:        %.3f\n", r.F1)
}

type optimizeFlags struct {
	strategy    string
	target      float64
	iterations  int
	register    string
	description string
	fewShot     bool
	trace       bool
}

func newOptimizeCmd(a *app) *cobra.Command {
	var f optimizeFlags
	cmd := &cobra.Command{
		Use:   "optimize <labeled.csv> [more.csv...]",
		Short: "Search for the prompt template that best classifies labeled data",
		Long: `Search for the best prompt template with the genetic or iterative strategy.
Several files are optimized concurrently, one independent run per file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
			if f.register != "" && len(args) > 1 {
				return errors.New("--register needs a single training file")
			}
			if len(args) > 1 {
				return optimizeBatch(cmd, args, sys, f)
			}
			return optimizeOne(cmd, args[0], sys, f)
		}),
	}
	cmd.Flags().StringVar(&f.strategy, "strategy", relcheck.StrategyGenetic, "Optimization strategy (genetic, iterative)")
	cmd.Flags().Float64Var(&f.target, "target", DefaultTargetAccuracy, "Stop once this accuracy is reached")
	cmd.Flags().IntVar(&f.iterations, "iterations", DefaultMaxIterations, "Maximum optimizer iterations")
	cmd.Flags().StringVar(&f.register, "register", "", "Register the best template as name:version")
	cmd.Flags().StringVar(&f.description, "description", "", "Description stored with --register")
	cmd.Flags().BoolVar(&f.fewShot, "few-shot", false, "Add few-shot seed templates built from the data")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "Write an iteration trace under <data-dir>/traces")
	return cmd
}

func optimizeOne(cmd *cobra.Command, path string, sys *relcheck.System, f optimizeFlags) error {
	data, err := dataset.ReadExamples(path)
	if err != nil {
		return err
	}
	run := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dm := debug.NewDebugManager(f.trace, filepath.Join(sys.Config.Store.Dir, "traces"), run, f.strategy, sys.Logger)

	po, err := sys.NewOptimizer(f.strategy,
		optimizer.WithFewShotSeeds(f.fewShot),
		optimizer.WithIterationCallback(dm.Callback()),
	)
	if err != nil {
		return err
	}
	best, runErr := po.Optimize(cmd.Context(), data, f.target, f.iterations)
	tracePath, err := dm.Finish(best, runErr)
	if err != nil {
		sys.Logger.Warn("Failed to write optimization trace", "error", err)
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Optimization completed after %d iterations\n", len(po.History()))
	fmt.Fprintf(out, "Best prompt: %s\n", best.Template)
	writeReport(out, best.Report())
	if tracePath != "" {
		fmt.Fprintf(out, "Trace: %s\n", tracePath)
	}

	if f.register == "" {
		return nil
	}
	ref, err := abtest.ParseModelRef(f.register)
	if err != nil {
		return err
	}
	m := registry.ModelMetadata{
		Name:           ref.Name,
		Version:        ref.Version,
		Description:    f.description,
		PromptTemplate: best.Template,
		LLMConfig: map[string]any{
			"provider_type": sys.Config.LLM.ProviderType,
			"model":         sys.Config.LLM.Model,
		},
		Performance: best.Report(),
		CreatedAt:   time.Now().UTC(),
		Tags:        []string{f.strategy},
	}
	if err := sys.Registry.Register(cmd.Context(), m); err != nil {
		return err
	}
	fmt.Fprintf(out, "Model %s registered successfully\n", m.Ref())
	return nil
}

func optimizeBatch(cmd *cobra.Command, paths []string, sys *relcheck.System, f optimizeFlags) error {
	jobs := make([]optimizer.BatchJob, 0, len(paths))
	for _, path := range paths {
		data, err := dataset.ReadExamples(path)
		if err != nil {
			return err
		}
		jobs = append(jobs, optimizer.BatchJob{
			Name:           path,
			Data:           data,
			TargetAccuracy: f.target,
			MaxIterations:  f.iterations,
		})
	}

	batch := sys.NewBatchOptimizer(f.strategy, optimizer.WithFewShotSeeds(f.fewShot))
	out := cmd.OutOrStdout()
	var failed []string
	for _, r := range batch.OptimizeAll(cmd.Context(), jobs) {
		if r.Error != nil {
			fmt.Fprintf(out, "%s: optimization failed: %v\n", r.Name, r.Error)
			failed = append(failed, r.Name)
			continue
		}
		fmt.Fprintf(out, "%s: optimization completed\n", r.Name)
		fmt.Fprintf(out, "Best prompt: %s\n", r.Best.Template)
		writeReport(out, r.Best.Report())
	}
	if len(failed) > 0 {
		return fmt.Errorf("optimization failed for %s", strings.Join(failed, ", "))
	}
	return nil
}
