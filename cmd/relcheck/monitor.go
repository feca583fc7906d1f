package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teilomillet/relcheck"
	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/monitor"
)

func newMonitorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Track model performance and alert on regressions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "collect <name> <version> <labeled.csv>",
			Short: "Score a registered model on labeled data and record the result",
			Args:  cobra.ExactArgs(3),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				data, err := dataset.ReadExamples(args[2])
				if err != nil {
					return err
				}
				clf, err := sys.ModelClassifier(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				r, err := sys.Collector.CollectPerformance(cmd.Context(), args[0], args[1], clf, data)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recorded performance of %s:%s (%d samples):\n", args[0], args[1], r.SampleCount)
				writeReport(out, r.Report())
				fmt.Fprintf(out, "  Latency:   %.2f ms\n", r.LatencyMs)
				return checkAlerts(cmd.Context(), out, sys, args[0])
			}),
		},
		&cobra.Command{
			Use:   "latency <name> <version> <ms> [ms...]",
			Short: "Record observed latencies in milliseconds",
			Args:  cobra.MinimumNArgs(3),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				latencies := make([]float64, 0, len(args)-2)
				for _, s := range args[2:] {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil {
						return fmt.Errorf("invalid latency %q: %w", s, err)
					}
					latencies = append(latencies, v)
				}
				r, err := sys.Collector.CollectLatency(cmd.Context(), args[0], args[1], latencies)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recorded latency of %s:%s: mean %.2f ms, %.2f req/s\n", args[0], args[1], r.LatencyMs, r.ThroughputRPS)
				return checkAlerts(cmd.Context(), out, sys, args[0])
			}),
		},
		newMonitorRuleCmd(a),
		&cobra.Command{
			Use:   "alerts <name>",
			Short: "List unacknowledged alerts of a model",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				alerts, err := sys.Monitor.ActiveAlerts(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				writeAlerts(cmd.OutOrStdout(), "Active alerts for "+args[0], alerts)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "ack <alert-id>",
			Short: "Acknowledge an alert",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				ok, err := sys.Monitor.AcknowledgeAlert(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("alert not found: %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %s acknowledged\n", args[0])
				return nil
			}),
		},
		newMonitorSummaryCmd(a),
		&cobra.Command{
			Use:   "health <name>",
			Short: "Show the health of a model",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				h, err := sys.Monitor.Health(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Health of %s: %s\n", args[0], h.Status)
				if h.Message != "" {
					fmt.Fprintf(out, "  %s\n", h.Message)
				}
				if h.Status != monitor.HealthUnknown {
					fmt.Fprintf(out, "  Accuracy: %.3f\n  Latency: %.2f ms\n  Active alerts: %d\n", h.Accuracy, h.LatencyMs, h.ActiveAlerts)
				}
				return nil
			}),
		},
	)
	return cmd
}

func newMonitorRuleCmd(a *app) *cobra.Command {
	var (
		metric      string
		condition   string
		threshold   float64
		severity    string
		description string
	)
	cmd := &cobra.Command{
		Use:   "rule <name>",
		Short: "Add an alert rule for a model",
		Long: fmt.Sprintf(`Add an alert rule for a model. The rule fires when the latest value of
the metric satisfies the condition against the threshold.

Metrics: %s
Conditions: <, >, ==, !=`, strings.Join(monitor.Metrics(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
			rule, err := monitor.NewRule(args[0], metric, monitor.Condition(condition), threshold, monitor.Severity(severity), description)
			if err != nil {
				return err
			}
			if err := sys.Monitor.AddRule(cmd.Context(), rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Alert rule %s added: %s %s %g\n", rule.ID, rule.Metric, rule.Condition, rule.Threshold)
			return nil
		}),
	}
	cmd.Flags().StringVar(&metric, "metric", "accuracy", "Metric to watch")
	cmd.Flags().StringVar(&condition, "condition", "<", "Comparison against the threshold")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Threshold value")
	cmd.Flags().StringVar(&severity, "severity", string(monitor.SeverityMedium), "Severity (low, medium, high, critical)")
	cmd.Flags().StringVar(&description, "description", "", "Text included in alert messages")
	_ = cmd.MarkFlagRequired("threshold")
	return cmd
}

func newMonitorSummaryCmd(a *app) *cobra.Command {
	var timeRange string
	cmd := &cobra.Command{
		Use:   "summary <name>",
		Short: "Summarize the accuracy of a model over a time range",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
			s, err := sys.Monitor.Summary(cmd.Context(), args[0], timeRange)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		}),
	}
	cmd.Flags().StringVar(&timeRange, "range", "7d", "Time range such as 24h, 7d or all")
	return cmd
}

func checkAlerts(ctx context.Context, w io.Writer, sys *relcheck.System, model string) error {
	alerts, err := sys.Monitor.CheckAlerts(ctx, model)
	if err != nil {
		return err
	}
	if len(alerts) > 0 {
		writeAlerts(w, "Triggered alerts", alerts)
	}
	return nil
}

func writeAlerts(w io.Writer, title string, alerts []monitor.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintf(w, "%s: none\n", title)
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, al := range alerts {
		fmt.Fprintf(w, "  [%s] %s  %s  (%s)\n", al.Severity, al.ID, al.Message, al.TriggeredAt.Format("2006-01-02 15:04:05"))
	}
}
