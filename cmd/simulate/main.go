// Command simulate prepares a synthetic hackathon, lets simulated judges
// walk it concurrently and reports how well the rankings recover the hidden
// project quality.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/okian/jury/internal/adapters/repository"
	service "github.com/okian/jury/internal/app"
	"github.com/okian/jury/internal/domain/crowdbt"
	"github.com/okian/jury/internal/domain/selection"
	"github.com/okian/jury/internal/simulation"
	"github.com/okian/jury/pkg/logger"
)

const reportFilePermission = 0o600

type options struct {
	sim     simulation.Config
	driver  string
	dsn     string
	epsilon float64
	report  string
	logFile string
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{sim: simulation.DefaultConfig(), driver: repository.DriverMemory, epsilon: crowdbt.Epsilon}

	cmd := &cobra.Command{
		Use:           "simulate",
		Short:         "Run a synthetic judging round and score the resulting rankings",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), opts, cmd.OutOrStdout())
			if err != nil {
				color.New(color.FgRed, color.Bold).Fprintf(cmd.ErrOrStderr(), "simulation failed: %v\n", err)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.sim.Judges, "judges", opts.sim.Judges, "number of judges")
	f.IntVar(&opts.sim.Prizes, "prizes", opts.sim.Prizes, "number of prizes")
	f.IntVar(&opts.sim.Projects, "projects", opts.sim.Projects, "number of projects")
	f.Float64Var(&opts.sim.SubmitProbability, "submit-probability", opts.sim.SubmitProbability, "chance a project enters each prize")
	f.Float64Var(&opts.sim.JudgeAccuracy, "accuracy", opts.sim.JudgeAccuracy, "probability a judge votes for the better project")
	f.Float64Var(&opts.sim.NoisyAccuracy, "noisy-accuracy", opts.sim.NoisyAccuracy, "accuracy of noisy judges")
	f.Float64Var(&opts.sim.NoisyJudgeFraction, "noisy-judges", opts.sim.NoisyJudgeFraction, "fraction of noisy judges")
	f.IntVar(&opts.sim.Workers, "workers", opts.sim.Workers, "judges walking concurrently")
	f.IntVar(&opts.sim.MaxVotesPerJudge, "max-votes", opts.sim.MaxVotesPerJudge, "votes after which a judge stops (0 = until exhausted)")
	f.Float64Var(&opts.sim.VotesPerSecond, "rate", opts.sim.VotesPerSecond, "comparison batches per second across all judges (0 = unlimited)")
	f.Int64Var(&opts.sim.Seed, "seed", opts.sim.Seed, "random seed")
	f.Float64Var(&opts.epsilon, "epsilon", opts.epsilon, "exploration probability of the selection policy")
	f.StringVar(&opts.driver, "driver", opts.driver, "storage driver: memory, postgres or sqlite")
	f.StringVar(&opts.dsn, "dsn", "", "storage DSN for SQL drivers")
	f.StringVar(&opts.report, "report", "", "write the YAML report to this file")
	f.StringVar(&opts.logFile, "log", "", "write logs to this file instead of stderr")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func run(ctx context.Context, opts options, out io.Writer) error {
	logOut := io.Writer(os.Stderr)
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, reportFilePermission)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	if err := logger.Init(logger.WithWriter(logOut)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if opts.verbose {
		_ = logger.SetLevelString("debug")
	}

	store, err := repository.Open(ctx, opts.driver, opts.dsn, opts.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	world, err := simulation.Prepare(ctx, store, opts.sim)
	if err != nil {
		return err
	}
	svc := service.New(store, service.WithPolicy(selection.New(
		selection.WithEpsilon(opts.epsilon),
		selection.WithSeed(opts.sim.Seed),
	)))
	stats, err := simulation.Run(ctx, svc, world, opts.sim)
	if err != nil {
		return err
	}
	prizes, err := simulation.Evaluate(ctx, svc, world)
	if err != nil {
		return err
	}
	report := simulation.NewReport(opts.sim, stats, prizes)

	printSummary(out, report)
	if opts.report != "" {
		f, err := os.OpenFile(opts.report, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, reportFilePermission)
		if err != nil {
			return fmt.Errorf("open report: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := report.WriteYAML(f); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(out io.Writer, r simulation.Report) {
	bold := color.New(color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgYellow)

	bold.Fprintf(out, "Simulated %d judges, %d prizes, %d projects\n", r.Config.Judges, r.Config.Prizes, r.Config.Projects)
	fmt.Fprintf(out, "  visits %d  votes %d  agreement %.1f%%  %.0f votes/s  %s\n",
		r.Stats.Visits, r.Stats.Votes, percent(r.Stats.Agreements, r.Stats.Votes), r.Stats.VotesPerSec, r.Stats.Duration)
	for _, p := range r.Prizes {
		c := good
		mark := "ok"
		if !p.TopCorrect {
			c, mark = bad, "miss"
		}
		c.Fprintf(out, "  %-12s entries %3d  tau %+.3f  top %-4s (%s)\n", p.Name, p.Entries, p.KendallTau, mark, p.Leader)
	}
	bold.Fprintf(out, "Mean Kendall tau %.3f, true winner first in %d/%d prizes\n", r.MeanKendallTau, r.TopCorrect, len(r.Prizes))
}

func percent(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}
