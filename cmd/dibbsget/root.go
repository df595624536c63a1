package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dibbsget/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dibbsget",
	Short: "Daily downloader for DIBBS procurement data files",
	Long: `dibbsget retrieves the daily DIBBS procurement files (the bq zip bundle
and the standalone in text file) through a previously captured browser
session, validates them, and places the three text outputs in the output
directory under date-tagged names.

The site gates downloads behind a consent banner, so a session snapshot
must be captured in a browser first and made available either as a
storage-state JSON file or through 'dibbsget session import'.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetQuietMode(quiet)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error console output")
}
