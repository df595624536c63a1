package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dibbsget/pkg/config"
	"dibbsget/pkg/dates"
	"dibbsget/pkg/errors"
	"dibbsget/pkg/fetch"
	"dibbsget/pkg/logger"
	"dibbsget/pkg/pipeline"
	"dibbsget/pkg/session"
	"dibbsget/pkg/ui"
)

// Exit codes: a missing session snapshot gets its own code so schedulers can
// distinguish "re-run the capture step" from everything else.
const (
	exitOK              = 0
	exitFailure         = 1
	exitMissingSnapshot = 2
)

var (
	dateOverride string
	cookiesFile  string
)

// runCmd executes the daily download pipeline
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download, validate and place the daily DIBBS files",
	Long: `Run the full daily pipeline: download the bq zip bundle, extract its
bq and as text members, download the standalone in text file (primary URL
with uppercase fallback), and atomically move all three into the output
directory.

The date defaults to yesterday in the publisher's timezone
(America/Los_Angeles) and can be overridden with --date.`,
	Example: `  # Download yesterday's files
  dibbsget run

  # Download a specific day
  dibbsget run --date 250903

  # Use an explicit session snapshot
  dibbsget run --cookies /path/to/cookies.json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runDownload())
	},
}

func init() {
	runCmd.Flags().StringVar(&dateOverride, "date", "", "date tag YYMMDD (default: yesterday in "+dates.Timezone+")")
	runCmd.Flags().StringVar(&cookiesFile, "cookies", "cookies.json", "session snapshot (browser storage-state JSON)")
	rootCmd.AddCommand(runCmd)
}

// runDownload executes the pipeline and maps the failure to an exit code.
func runDownload() int {
	dateTag, err := dates.Resolve(dateOverride)
	if err != nil {
		ui.PrintError("Invalid date", err.Error())
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		return exitFailure
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		return exitFailure
	}

	if err := cfg.EnsureDirs(); err != nil {
		ui.PrintError("Failed to create directories", err.Error())
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		return exitFailure
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Paths.Logs, dateTag, cfg.Logging.Console && !ui.IsQuietMode())
	if err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		return exitFailure
	}
	defer log.Close()

	ui.PrintInfo("Date tag", dateTag)

	state, err := session.Load(cookiesFile, snapshotStores()...)
	if err != nil {
		return fatal(log, err)
	}

	sess, err := session.Build(state, cfg.HTTP, log)
	if err != nil {
		return fatal(log, err)
	}

	client := fetch.NewClient(sess, log)
	if err := pipeline.New(cfg, client, log).Run(dateTag); err != nil {
		return fatal(log, err)
	}

	ui.PrintSuccess("All three files placed in " + cfg.Paths.Output)
	return exitOK
}

// fatal logs the terminating error to the run log and stderr and picks the
// exit code from the error type.
func fatal(log logger.Logger, err error) int {
	log.WithError(err).Error("run aborted")
	fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
	ui.PrintError("Run failed", err.Error())

	if errors.IsType(err, errors.ErrorTypePrecondition) {
		return exitMissingSnapshot
	}
	return exitFailure
}

// snapshotStores assembles the fallback snapshot sources tried when the
// --cookies file is absent: the system keychain, then the encrypted file if
// a passphrase is configured.
func snapshotStores() []session.SnapshotStore {
	var stores []session.SnapshotStore

	if ks, err := session.NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	if pass := os.Getenv("DIBBSGET_PASSPHRASE"); pass != "" {
		if es, err := session.NewEncryptedFileStore(encryptedSnapshotPath(), pass); err == nil {
			stores = append(stores, es)
		}
	}

	return stores
}

// encryptedSnapshotPath is the default location of the encrypted snapshot.
func encryptedSnapshotPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "dibbsget", "session.enc")
}
