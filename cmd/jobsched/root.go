package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobsched/internal/app"
)

// defaultConfig returns JOBSCHED_CONFIG when set.
func defaultConfig() string {
	if s := os.Getenv("JOBSCHED_CONFIG"); s != "" {
		return s
	}
	return "./jobsched.yaml"
}

type rootFlags struct {
	config string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "jobsched",
		Short:         "Run cron-style scheduled jobs",
		Long:          "jobsched runs the jobs of a schedule file that are due this minute. Call \"run\" from cron every minute, or keep \"work\" running.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.config, "config", defaultConfig(), "schedule config file, JSON or YAML (or JOBSCHED_CONFIG env)")

	root.AddCommand(
		newRunCmd(f),
		newDryRunCmd(f),
		newFinishCmd(f),
		newListCmd(f),
		newHistoryCmd(f),
		newWorkCmd(f),
	)
	return root
}

// withApp opens the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, f *rootFlags, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, f.config, app.Options{Stdout: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}

func newRunCmd(f *rootFlags) *cobra.Command {
	var (
		dryRun     bool
		omitErrors bool
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the jobs due this minute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ro := app.RunOptions{DryRun: dryRun, Quiet: quiet}
			if cmd.Flags().Changed("omit-errors") {
				ro.OmitErrors = &omitErrors
			}
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				_, err := a.Run(ctx, ro)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the due jobs without running them")
	cmd.Flags().BoolVar(&omitErrors, "omit-errors", false, "send stderr to the output target of every job")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress lines")
	return cmd
}

func newDryRunCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Print the jobs due this minute without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				_, err := a.Run(ctx, app.RunOptions{DryRun: true})
				return err
			})
		},
	}
}

func newFinishCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:    "finish <id> <exit-code>",
		Short:  "Complete a background job (called by the job itself)",
		Args:   cobra.ExactArgs(2),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("exit code %q: %w", args[1], err)
			}
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				return a.Finish(ctx, args[0], code)
			})
		},
	}
}

func newListCmd(f *rootFlags) *cobra.Command {
	var next int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured jobs and when they run next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				jobs, err := a.List(time.Now(), next)
				if err != nil {
					return err
				}
				return printJobs(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().IntVar(&next, "next", 1, "number of upcoming run times to show")
	return cmd
}

func printJobs(w io.Writer, jobs []app.JobInfo) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No jobs are scheduled.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPRESSION\tTIMEZONE\tNEXT\tFLAGS\tJOB")
	for _, j := range jobs {
		next := "-"
		if len(j.Next) > 0 {
			next = j.Next[0].Format("2006-01-02 15:04")
			for _, t := range j.Next[1:] {
				next += ", " + t.Format("2006-01-02 15:04")
			}
		}
		flags := ""
		if j.Background {
			flags += "b"
		}
		if j.WithoutOverlapping {
			flags += "o"
		}
		if flags == "" {
			flags = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.Expression, j.Timezone, next, flags, j.Summary)
	}
	return tw.Flush()
}

func newHistoryCmd(f *rootFlags) *cobra.Command {
	var (
		limit int
		jobID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs recorded in storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				runs, err := a.History(ctx, jobID, limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "AT\tOUTCOME\tEXIT\tTOOK\tJOB")
				for _, r := range runs {
					exit := "-"
					if r.ExitCode != nil {
						exit = strconv.Itoa(*r.ExitCode)
					}
					outcome := r.Outcome
					if r.Reason != "" {
						outcome += " (" + r.Reason + ")"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", r.At.Local().Format(time.DateTime), outcome, exit, r.TookMS, r.Summary)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().StringVar(&jobID, "job", "", "only runs of this job id")
	return cmd
}

func newWorkCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run the scheduler every minute until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				_, err := a.Work(ctx)
				return err
			})
		},
	}
}
