package main

import (
	"fmt"
	"sort"

	"github.com/sbneto/s3conf/internal/s3sync"
	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the variables of the remote environment file",
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, err := newSyncer()
		if err != nil {
			return err
		}

		if mapFiles, _ := cmd.Flags().GetBool("map-files"); mapFiles {
			if _, err := syncer.Pull(cmd.Context()); err != nil {
				return err
			}
		}

		vars, err := syncer.EnvMap(cmd.Context())
		if err != nil {
			return err
		}

		if dump, _ := cmd.Flags().GetBool("dump"); dump {
			dumpPath, _ := cmd.Flags().GetString("dump-path")
			return s3sync.DumpPhusion(vars, dumpPath)
		}

		keys := make([]string, 0, len(vars))
		for key := range vars {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, vars[key])
		}
		return nil
	},
}

func init() {
	envCmd.Flags().BoolP("map-files", "m", false, "pull the configured file mappings before printing")
	envCmd.Flags().BoolP("dump", "d", false, "dump variables to --dump-path in the phusion docker image format")
	envCmd.Flags().StringP("dump-path", "p", "/etc/container_environment", "target directory for --dump")
}
