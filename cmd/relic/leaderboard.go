package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relic/internal/finder"
	"relic/internal/repo"
)

var leaderboardFormatFlag string

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the all-time oldest TODOs across every scanned repository",
	RunE:  runLeaderboard,
}

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardFormatFlag, "format", "text", "Output format: text or json")
	rootCmd.AddCommand(leaderboardCmd)
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := finder.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	entries := svc.Leaderboard()

	if leaderboardFormatFlag == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("Leaderboard is empty. Run 'relic scan <url>' to add an entry.")
		return nil
	}

	for i, e := range entries {
		fmt.Printf("%2d. %5d days  %s  %s:%d\n",
			i+1,
			e.Attribution.AgeInDays(),
			repo.DisplayName(e.Candidate.SourceURL),
			e.Candidate.FilePath,
			e.Candidate.LineNumber)
		fmt.Printf("               %s\n", e.Candidate.Text)
	}
	return nil
}
