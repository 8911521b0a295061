package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relic/internal/finder"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove idle working copies now",
	Long: `Run one sweep of the working-copy directory, removing every copy whose
last use is older than the configured retention window.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := finder.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	removed := svc.SweepNow()
	fmt.Printf("Removed %d idle working %s\n", removed, plural(removed, "copy", "copies"))
	return nil
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
