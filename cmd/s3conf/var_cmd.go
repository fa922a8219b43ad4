package main

import (
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set KEY=VALUE",
	Short: "Set one variable in the remote environment file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, err := newSyncer()
		if err != nil {
			return err
		}
		create, _ := cmd.Flags().GetBool("create")
		return syncer.SetVar(cmd.Context(), args[0], create)
	},
}

var unsetCmd = &cobra.Command{
	Use:   "unset KEY",
	Short: "Remove one variable from the remote environment file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, err := newSyncer()
		if err != nil {
			return err
		}
		return syncer.UnsetVar(cmd.Context(), args[0])
	},
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the remote environment file with your local editor",
	Long: "Downloads the remote environment file into a temp file, opens $EDITOR on it " +
		"and uploads the result. The upload is refused with a diff when the remote " +
		"changed while you were editing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, err := newSyncer()
		if err != nil {
			return err
		}
		create, _ := cmd.Flags().GetBool("create")
		return syncer.Edit(cmd.Context(), create)
	},
}

func init() {
	setCmd.Flags().Bool("create", false, "create the environment file when it does not exist")
	editCmd.Flags().Bool("create", false, "create the environment file when it does not exist")
}
