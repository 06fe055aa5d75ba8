package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bountyd",
	Short: "Task-bounty escrow service",
	Long: `bountyd escrows sponsor funds for external tasks and releases them to the
worker once the sponsor confirms the submission.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./bountyd.yaml if present)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(fundCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(taskHashCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
