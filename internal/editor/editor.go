// Package editor invokes the user's interactive text editor on a staged
// copy of some initial bytes and returns the edited result.
package editor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Edit writes initial to a temp file, runs the configured editor on it
// attached to the caller's terminal, and returns the file's contents
// afterwards. The temp file is removed on every exit path.
func Edit(initial []byte) ([]byte, error) {
	path := filepath.Join(os.TempDir(), "s3conf-"+uuid.NewString()+".env")
	if err := os.WriteFile(path, initial, 0o600); err != nil {
		return nil, fmt.Errorf("stage editor file: %w", err)
	}
	defer os.Remove(path)

	command := editorCommand()
	args := append(strings.Fields(command), path)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("editor %q: %w", command, err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read edited file: %w", err)
	}
	return edited, nil
}

func editorCommand() string {
	for _, name := range []string{"EDITOR", "VISUAL"} {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return "vi"
}
