package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec -- command [args...]",
	Short: "Run a command with the remote environment file injected",
	Args:  cobra.MinimumNArgs(1),
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

		env := os.Environ()
		for key, value := range vars {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}

		child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
		child.Env = env
		child.Stdin = os.Stdin
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		return child.Run()
	},
}

// childExitCode extracts the exit status of a finished child process, so the
// wrapper can terminate with the same code instead of a generic failure.
func childExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

func init() {
	execCmd.Flags().BoolP("map-files", "m", false, "pull the configured file mappings before running")
}
