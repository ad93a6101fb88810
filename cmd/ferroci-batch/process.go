package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	apierrors "ferroci/internal/errors"
	"ferroci/internal/files"
	"ferroci/pkg/contracts/domain"
)

func newProcessCmd(opts *cliOptions) *cobra.Command {
	var failOnError bool

	cmd := &cobra.Command{
		Use:   "process <files...>",
		Short: "Analyze CSV exports as one drop",
		Long: `process treats its arguments as a single drop. Glob patterns are expanded
and files are grouped by folder. In a folder without a reference, the first
file becomes the reference curve.`,
		Example: `  ferroci-batch process ~/cv/run1/ref.csv ~/cv/run1/sample_*.csv`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := files.ExpandPatterns(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no input files matched")
			}

			deps, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			report, err := deps.service.Drop(cmd.Context(), paths)
			if report != nil && !opts.quiet {
				printSummary(cmd.OutOrStdout(), report)
			}
			if apierrors.IsPersistenceError(err) {
				return fmt.Errorf("results not saved, processing stopped: %w", err)
			}
			if err != nil {
				return err
			}
			if failOnError && report.Count(domain.OutcomeFailed) > 0 {
				return fmt.Errorf("%d file(s) failed", report.Count(domain.OutcomeFailed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero when any file fails to parse or evaluate")
	return cmd
}

// printSummary writes one line per outcome kind plus failure details
func printSummary(w io.Writer, report *domain.DropReport) {
	fmt.Fprintf(w, "\n%d reference, %d processed, %d skipped, %d failed in %s\n",
		report.Count(domain.OutcomeReference),
		report.Count(domain.OutcomeProcessed),
		report.Count(domain.OutcomeSkipped),
		report.Count(domain.OutcomeFailed),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	for _, o := range report.Outcomes {
		if o.Kind == domain.OutcomeFailed {
			fmt.Fprintf(w, "  failed: %s: %s\n", o.Path, o.Message)
		}
	}
	for _, s := range report.Sessions {
		fmt.Fprintf(w, "  %s: %d rows\n", s.Directory, s.RowCount)
	}
}
