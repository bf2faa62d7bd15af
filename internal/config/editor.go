package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EditorCommand builds the $EDITOR invocation for path, falling back to vi.
// Stdio is left unset so callers can attach it or hand it to Bubble Tea.
func EditorCommand(path string) (*exec.Cmd, error) {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return nil, fmt.Errorf("editor command is empty")
	}
	return exec.Command(parts[0], append(parts[1:], path)...), nil
}
