package cmd

import (
	"fmt"
	"time"

	"github.com/sarathm09/vibranium/packages/core/config"
	"github.com/sarathm09/vibranium/packages/db"
	"github.com/spf13/cobra"
)

var (
	historyLimitFlag int
	historyJobFlag   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show jobs recorded in the configured database",
	Long: `List recorded jobs, newest first, or the executions of one job.
Requires "database" in the configuration.

Examples:
  vibranium history
  vibranium history --limit 5
  vibranium history --job 1700000000000`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of jobs to show")
	historyCmd.Flags().StringVar(&historyJobFlag, "job", "", "Show the executions of one job")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database == "" {
		return fmt.Errorf("%w: no database configured", config.ErrConfiguration)
	}

	store, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	if historyJobFlag != "" {
		execs, err := store.Executions(cmd.Context(), historyJobFlag)
		if err != nil {
			return err
		}
		if len(execs) == 0 {
			fmt.Fprintf(w, "No executions recorded for job %s\n", historyJobFlag)
			return nil
		}
		for _, e := range execs {
			status := "PASS"
			if !e.Passed {
				status = "FAIL"
			}
			cached := ""
			if e.Cached {
				cached = " (cached)"
			}
			fmt.Fprintf(w, "%s  %-40s #%d %s %s -> %d %s%s\n",
				status, e.Ref, e.Repeat+1, e.Method, e.URL, e.StatusCode, e.Duration.Round(time.Millisecond), cached)
			if e.Message != "" {
				fmt.Fprintf(w, "      %s\n", e.Message)
			}
		}
		return nil
	}

	jobs, err := store.Jobs(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs recorded")
		return nil
	}
	for _, j := range jobs {
		status := "PASS"
		if !j.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s  %s  endpoints %d/%d  assertions %d/%d  p95 %s  %s\n",
			j.ID, j.StartedAt.Local().Format(time.DateTime), status,
			j.EndpointsPassed, j.EndpointsExecuted, j.AssertionsPassed, j.AssertionsProcessed,
			j.Latency.P95.Round(time.Millisecond), j.Duration.Round(time.Millisecond))
	}
	return nil
}
