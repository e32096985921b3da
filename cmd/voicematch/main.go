// Voicematch - Smart-Home Entity Matching Engine
//
// Voicematch resolves natural-language device requests (floor, room,
// name, type) against a caller-supplied entity pool and returns ranked
// targets, disambiguation flags, and near-miss suggestions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/hearthwise/voicematch/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor VOICEMATCH_CONFIG
// is set.
const defaultConfigPath = "configs/config.yaml"

var configFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "voicematch",
		Short: "Smart-home entity matching and ranking engine",
		Long: `Voicematch resolves natural-language device requests against an
entity pool: fuzzy field matching, multi-field scoring, ranking,
disambiguation, and near-miss suggestions.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "path to config.yaml")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMatchCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configPath resolves the configuration file path: flag, then
// VOICEMATCH_CONFIG, then the default.
func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	if path := os.Getenv("VOICEMATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("voicematch %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
