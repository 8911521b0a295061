package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relic/internal/blame"
	"relic/internal/finder"
	"relic/internal/relicerr"
	"relic/internal/repo"
)

var scanFormatFlag string

var scanCmd = &cobra.Command{
	Use:   "scan <repository-url>",
	Short: "Find the oldest TODO in a repository",
	Long: `Clone or refresh the repository, scan it for TODO markers, attribute each
one, and print the oldest survivor. The winner also competes for the
persistent leaderboard.

Examples:
  relic scan https://github.com/torvalds/linux
  relic scan --format json https://gitlab.com/gitlab-org/gitlab`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormatFlag, "format", "text", "Output format: text or json")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := finder.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	winner, err := svc.ScanOnce(context.Background(), args[0])
	if err != nil {
		if relicerr.HasCode(err, relicerr.NoCandidates) {
			fmt.Printf("No TODO markers found in %s\n", repo.DisplayName(args[0]))
			return nil
		}
		return err
	}

	if scanFormatFlag == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(winner)
	}

	printWinner(winner)
	return nil
}

func printWinner(w *blame.Winner) {
	fmt.Printf("Oldest TODO in %s\n\n", repo.DisplayName(w.Candidate.SourceURL))
	fmt.Printf("  %s:%d\n", w.Candidate.FilePath, w.Candidate.LineNumber)
	fmt.Printf("  %s\n\n", w.Candidate.Text)
	fmt.Printf("  Author:   %s <%s>\n", w.Attribution.AuthorName, w.Attribution.AuthorEmail)
	fmt.Printf("  Commit:   %.12s  %s\n", w.Attribution.RevisionID, w.Attribution.Summary)
	fmt.Printf("  Date:     %s  (%d days ago)\n",
		w.Attribution.Timestamp.Format("2006-01-02"), w.Attribution.AgeInDays())
	if w.Permalink != "" {
		fmt.Printf("  Link:     %s\n", w.Permalink)
	}
}
