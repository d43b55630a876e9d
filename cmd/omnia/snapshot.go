package main

import (
	"fmt"
	"os"

	"omnia/internal/encryption"

	"github.com/spf13/cobra"
)

// readPassphrase reads from --passphrase-file when set, otherwise prompts on the terminal.
func readPassphrase(cmd *cobra.Command, prompt string, confirm bool) (string, error) {
	if path, _ := cmd.Flags().GetString("passphrase-file"); path != "" {
		return encryption.ReadPassphraseFile(path, cmd.InOrStdin())
	}
	return encryption.ReadPassphrase(prompt, confirm)
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the catalog to and from the vault",
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload a snapshot of the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "snapshot push")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		version, err := a.SnapshotPush(cmd.Context())
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed catalog snapshot version %d\n", version)
		return nil
	},
}

var snapshotPullCmd = &cobra.Command{
	Use:   "pull DEST",
	Short: "Download the latest snapshot to a new file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := args[0]
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s already exists", dest)
		}

		a, err := newApp(cmd, "snapshot pull")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		info, err := a.SnapshotPull(cmd.Context(), dest, func() (string, error) {
			return readPassphrase(cmd, "Passphrase: ", false)
		})
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}

		kind := "plain"
		if info.Encrypted {
			kind = "encrypted"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pulled %s snapshot version %d to %s\n", kind, info.Version, dest)
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotPushCmd)
	snapshotCmd.AddCommand(snapshotPullCmd)
	snapshotPullCmd.Flags().String("passphrase-file", "", "Read the passphrase from a file (- for stdin)")
	rootCmd.AddCommand(snapshotCmd)
}
