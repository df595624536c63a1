package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dibbsget/pkg/session"
	"dibbsget/pkg/ui"
)

// sessionCmd groups the snapshot management subcommands
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the stored session snapshot",
	Long: `Manage the browser session snapshot used to authenticate downloads.

The snapshot is a storage-state JSON document exported from a browser after
manually accepting the site's consent banner. 'session import' copies it
into the system keychain (or an encrypted file when no keychain is
available) so the daily run does not depend on a plain cookies.json lying
around.`,
}

// sessionImportCmd copies a snapshot file into the secure store
var sessionImportCmd = &cobra.Command{
	Use:   "import <storage-state.json>",
	Short: "Import a session snapshot into the secure store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}

		// Reject documents that do not parse before storing them.
		state, err := session.ParseStorageState(raw)
		if err != nil {
			return err
		}
		if len(state.Cookies) == 0 {
			return fmt.Errorf("snapshot %s contains no cookies", args[0])
		}

		store, name, err := openStore(true)
		if err != nil {
			return err
		}
		if err := store.Store(raw); err != nil {
			return err
		}

		ui.PrintSuccess(fmt.Sprintf("Imported %d cookies into the %s store", len(state.Cookies), name))
		return nil
	},
}

// sessionShowCmd prints cookie names and domains, never values
var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored session snapshot (names and domains only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, name, err := openStore(false)
		if err != nil {
			return err
		}

		raw, err := store.Retrieve()
		if err != nil {
			return err
		}
		state, err := session.ParseStorageState(raw)
		if err != nil {
			return err
		}

		ui.PrintInfo("Store", name)
		for _, c := range state.Cookies {
			ui.PrintInfo(c.Name, c.Domain)
		}
		return nil
	},
}

// sessionDeleteCmd removes the stored snapshot
var sessionDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the stored session snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, name, err := openStore(false)
		if err != nil {
			return err
		}
		if err := store.Delete(); err != nil {
			return err
		}
		ui.PrintSuccess("Deleted snapshot from the " + name + " store")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionImportCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

// openStore picks the snapshot store: the system keychain when available,
// otherwise the encrypted file. forWrite controls whether a passphrase may
// be prompted for interactively.
func openStore(forWrite bool) (session.SnapshotStore, string, error) {
	if ks, err := session.NewKeyringStore(); err == nil {
		return ks, "keyring", nil
	}

	pass := os.Getenv("DIBBSGET_PASSPHRASE")
	if pass == "" {
		var err error
		pass, err = promptPassphrase(forWrite)
		if err != nil {
			return nil, "", err
		}
	}

	es, err := session.NewEncryptedFileStore(encryptedSnapshotPath(), pass)
	if err != nil {
		return nil, "", err
	}
	return es, "encrypted file", nil
}

// promptPassphrase reads a passphrase without echo, confirming it when a
// new snapshot is being written.
func promptPassphrase(confirm bool) (string, error) {
	fmt.Print("Passphrase: ")
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(pass) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}

	if confirm {
		fmt.Print("Confirm passphrase: ")
		again, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		if string(pass) != string(again) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}

	return string(pass), nil
}
