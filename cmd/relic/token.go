package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relic/internal/auth"
	"relic/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue the API bearer token",
	Long: `Generate a new bearer token for the HTTP API and store its hash in the
data directory. The plaintext token is printed once and cannot be recovered;
issuing a new token invalidates the previous one.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	dataDir := dataDirFlag
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}
	if err := auth.SaveTokenHash(dataDir, hash); err != nil {
		return err
	}

	fmt.Println("New API token (save it now, it will not be shown again):")
	fmt.Println()
	fmt.Printf("  %s\n", token)
	fmt.Println()
	fmt.Println("Enable auth by setting server.auth.enabled to true in config.json.")
	return nil
}
