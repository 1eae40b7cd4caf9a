package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlbench/benchmarking"
	"github.com/YuminosukeSato/mlbench/config"
	"github.com/YuminosukeSato/mlbench/estimators"
	"github.com/YuminosukeSato/mlbench/metrics"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/pkg/log"
	"github.com/YuminosukeSato/mlbench/report"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "mlbench",
		Short:         "Benchmark ensemble estimators with nested cross-validation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				return nil
			}
			return log.SetupLogger(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	root.AddCommand(newRunCmd(&logLevel))
	root.AddCommand(newEstimatorsCmd())
	root.AddCommand(newResultsCmd())
	root.AddCommand(newEvaluateCmd())
	return root
}

func newRunCmd(logLevel *string) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fit every strategy on every dataset and store predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if *logLevel == "" {
				if err := log.SetupLogger(cfg.LogLevel); err != nil {
					return err
				}
			}

			datasets, err := cfg.BuildDatasets()
			if err != nil {
				return err
			}
			strategies, err := cfg.BuildStrategies(estimators.Default())
			if err != nil {
				return err
			}
			results, closeResults, err := cfg.OpenResults()
			if err != nil {
				return err
			}
			defer closeResults()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			orch := benchmarking.NewOrchestrator(datasets, strategies, cfg.Splitter(), results)
			summary, err := orch.Run(ctx, cfg.RunOptions()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d fitted, %d reused, %d skipped, %d prediction sets saved\n",
				summary.RunID, summary.Fitted, summary.Reused, summary.Skipped, summary.PredictionsSaved)
			fmt.Fprintln(cmd.OutOrStdout(), results.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "mlbench.yaml", "Benchmark definition (YAML)")
	return cmd
}

func newEstimatorsCmd() *cobra.Command {
	var task string
	cmd := &cobra.Command{
		Use:   "estimators",
		Short: "List the available estimators and their default grids",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := estimators.Default()
			names := registry.Names()
			if task != "" {
				t := estimators.Task(task)
				if t != estimators.Classification && t != estimators.Regression {
					return errors.NewValidationError("task", "must be classification or regression", task)
				}
				names = registry.ForTask(t)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFAMILY\tTASKS\tHYPERPARAMETERS")
			for _, name := range names {
				est, err := registry.New(name)
				if err != nil {
					return err
				}
				props := est.Properties()
				families := make([]string, len(props.EstimatorFamily))
				for i, f := range props.EstimatorFamily {
					families[i] = string(f)
				}
				tasks := make([]string, len(props.Tasks))
				for i, t := range props.Tasks {
					tasks[i] = string(t)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name,
					strings.Join(families, ","), strings.Join(tasks, ","), est.Hyperparameters())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "Only list estimators for this task (classification, regression)")
	return cmd
}

type resultsFlags struct {
	path    string
	backend string
}

func (f *resultsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "path", "p", "results", "Results directory")
	cmd.Flags().StringVar(&f.backend, "backend", config.BackendHDD, "Results backend (hdd, kv)")
}

// open opens existing results for reading.
func (f *resultsFlags) open() (benchmarking.Results, func() error, error) {
	switch f.backend {
	case config.BackendHDD:
		r, err := benchmarking.LoadHDDResults(f.path)
		if err != nil {
			return nil, nil, err
		}
		return r, func() error { return nil }, nil
	case config.BackendKV:
		r, err := benchmarking.OpenKVResults(benchmarking.DefaultKVConfig(f.path))
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, errors.NewValidationError("backend", "must be \"hdd\" or \"kv\"", f.backend)
	}
}

func newResultsCmd() *cobra.Command {
	var flags resultsFlags
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the registry of stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, closeResults, err := flags.open()
			if err != nil {
				return err
			}
			defer closeResults()
			return printResults(cmd.OutOrStdout(), results)
		},
	}
	flags.register(cmd)
	return cmd
}

func printResults(out io.Writer, results benchmarking.Results) error {
	fmt.Fprintln(out, results.String())
	cv := results.CV()
	if cv == nil {
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tDATASET\tFOLDS WITH TEST PREDICTIONS")
	for strategy, dataset := range results.Iter() {
		n := 0
		for k := 0; k < cv.GetNSplits(); k++ {
			ok, err := results.CheckPredictionsExist(strategy, dataset, k, benchmarking.Test)
			if err != nil {
				return err
			}
			if ok {
				n++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\n", strategy, dataset, n, cv.GetNSplits())
	}
	return w.Flush()
}

func newEvaluateCmd() *cobra.Command {
	var (
		flags      resultsFlags
		metricName string
		splitName  string
		plotPath   string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score stored predictions with a metric",
		RunE: func(cmd *cobra.Command, args []string) error {
			metric, err := metrics.Get(metricName)
			if err != nil {
				return errors.Wrapf(err, "available metrics: %s", strings.Join(metrics.Names(), ", "))
			}
			split, err := benchmarking.ParseSplit(splitName)
			if err != nil {
				return err
			}
			results, closeResults, err := flags.open()
			if err != nil {
				return err
			}
			defer closeResults()

			return evaluate(cmd.OutOrStdout(), benchmarking.NewEvaluator(results), metric, split, plotPath)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&metricName, "metric", "m", "accuracy", "Metric name")
	cmd.Flags().StringVar(&splitName, "split", string(benchmarking.Test), "Split to evaluate (train, test)")
	cmd.Flags().StringVar(&plotPath, "plot", "", "Write a box plot of fold scores to this file")
	return cmd
}

func evaluate(out io.Writer, eval *benchmarking.Evaluator, metric metrics.Metric, split benchmarking.Split, plotPath string) error {
	summary, err := eval.Summary(metric, split)
	if err != nil {
		return err
	}
	if len(summary) == 0 {
		return errors.Wrapf(errors.ErrNotFound, "no %s predictions", split)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "STRATEGY\t%s\tSTD ERR\n", strings.ToUpper(metric.Name()))
	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", s.Strategy, s.Mean, s.StdErr)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if plotPath != "" {
		folds, err := eval.FoldScores(metric, split)
		if err != nil {
			return err
		}
		if err := report.BoxPlot(folds, metric.Name()+" ("+string(split)+")", plotPath); err != nil {
			return err
		}
		fmt.Fprintln(out, "plot written to", plotPath)
	}
	return nil
}
