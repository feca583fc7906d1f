package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teilomillet/relcheck"
	"github.com/teilomillet/relcheck/abtest"
	"github.com/teilomillet/relcheck/dataset"
)

func newABTestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abtest",
		Short: "Compare two registered models on split traffic",
	}
	cmd.AddCommand(
		newABSetupCmd(a),
		&cobra.Command{
			Use:   "run <test> [data.csv]",
			Short: "Run a configured test on labeled data",
			Long: `Run a configured test. The labeled data defaults to the file given
at setup time.`,
			Args: cobra.RangeArgs(1, 2),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				runner, err := sys.NewABRunner()
				if err != nil {
					return err
				}
				test, err := runner.Test(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if test == nil {
					return fmt.Errorf("%w: %s", abtest.ErrTestNotFound, args[0])
				}
				path := test.Config.TestDataPath
				if len(args) == 2 {
					path = args[1]
				}
				if path == "" {
					return errors.New("no test data given and none stored with the test")
				}
				data, err := dataset.ReadExamples(path)
				if err != nil {
					return err
				}
				result, err := runner.RunTest(cmd.Context(), args[0], data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), abtest.Test{Config: test.Config, Result: &result}.Summary())
				return nil
			}),
		},
		&cobra.Command{
			Use:   "result <test>",
			Short: "Print the summary of a test",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				runner, err := sys.NewABRunner()
				if err != nil {
					return err
				}
				test, err := runner.Test(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if test == nil {
					return fmt.Errorf("%w: %s", abtest.ErrTestNotFound, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), test.Summary())
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all tests",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, _ []string, sys *relcheck.System) error {
				runner, err := sys.NewABRunner()
				if err != nil {
					return err
				}
				tests, err := runner.List(cmd.Context())
				if err != nil {
					return err
				}
				writeTests(cmd.OutOrStdout(), "A/B tests", tests)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "active",
			Short: "List active tests",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, _ []string, sys *relcheck.System) error {
				runner, err := sys.NewABRunner()
				if err != nil {
					return err
				}
				tests, err := runner.Active(cmd.Context())
				if err != nil {
					return err
				}
				writeTests(cmd.OutOrStdout(), "Active A/B tests", tests)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "stop <test>",
			Short: "Pause a test",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				runner, err := sys.NewABRunner()
				if err != nil {
					return err
				}
				ok, err := runner.Stop(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", abtest.ErrTestNotFound, args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "A/B test '%s' stopped\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}

func newABSetupCmd(a *app) *cobra.Command {
	var cfg abtest.Config
	cmd := &cobra.Command{
		Use:   "setup <test>",
		Short: "Configure a test between two registered models",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
			runner, err := sys.NewABRunner()
			if err != nil {
				return err
			}
			cfg.TestName = args[0]
			if err := runner.Setup(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "A/B test '%s' configured: %s vs %s, %d%% to A\n",
				cfg.TestName, cfg.ModelA, cfg.ModelB, cfg.TrafficSplit)
			return nil
		}),
	}
	cmd.Flags().StringVar(&cfg.ModelA, "model-a", "", "Model A (name:version)")
	cmd.Flags().StringVar(&cfg.ModelB, "model-b", "", "Model B (name:version)")
	cmd.Flags().IntVar(&cfg.TrafficSplit, "split", 50, "Percentage of traffic sent to model A")
	cmd.Flags().StringVar(&cfg.TestDataPath, "data", "", "Labeled data used by 'abtest run' by default")
	_ = cmd.MarkFlagRequired("model-a")
	_ = cmd.MarkFlagRequired("model-b")
	return cmd
}

func writeTests(w io.Writer, title string, tests []abtest.Config) {
	if len(tests) == 0 {
		fmt.Fprintf(w, "%s: none\n", title)
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, t := range tests {
		fmt.Fprintf(w, "  %s  %s vs %s  split=%d  status=%s\n", t.TestName, t.ModelA, t.ModelB, t.TrafficSplit, t.Status)
	}
}
