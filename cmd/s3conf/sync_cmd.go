package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the mapped local files to the remote storage",
	Long: "Uploads every configured file mapping. Unless --force is set, the push is " +
		"refused when a remote file changed since the last known sync, so concurrent " +
		"edits are never silently overwritten.",
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, err := newSyncer()
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		hashes, err := syncer.Push(cmd.Context(), force)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("pushed %d file(s)", len(hashes))))
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the mapped remote files to the local root",
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, err := newSyncer()
		if err != nil {
			return err
		}

		hashes, err := syncer.Pull(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("pulled %d file(s)", len(hashes))))
		return nil
	},
}

func init() {
	pushCmd.Flags().BoolP("force", "f", false, "upload even when the remote changed since the last sync")
}
