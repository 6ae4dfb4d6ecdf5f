package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
)

var runNow string

var runCmd = &cobra.Command{
	Use:   "run <name|all>",
	Short: "Run one reconciler, or all of them, once and exit",
	Long: `Run executes reconcilers synchronously, for use from an external cron.
Names: attendance, leave-expiry, missions. A run whose lock is held elsewhere is
skipped and does not fail the command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		override, err := parseNow(runNow)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var summaries []*models.RunSummary
		if args[0] == "all" {
			summaries, err = a.runner.RunAll(ctx, override)
		} else {
			var summary *models.RunSummary
			summary, err = a.runner.Run(ctx, args[0], override)
			if summary != nil {
				summaries = append(summaries, summary)
			}
			if errors.Is(err, appErrors.ErrRunInProgress) {
				err = nil
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, summary := range summaries {
			if encErr := enc.Encode(summary); encErr != nil {
				return encErr
			}
		}
		return err
	},
}

func parseNow(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("--now must be RFC3339: %w", err)
	}
	return &t, nil
}

func init() {
	runCmd.Flags().StringVar(&runNow, "now", "", "Override the current time (RFC3339)")
	rootCmd.AddCommand(runCmd)
}
