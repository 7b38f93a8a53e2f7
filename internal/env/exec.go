package env

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// shellCommand creates a cross-platform shell invocation for one command line.
// On Windows, uses PowerShell.
// On Unix, uses sh -c.
func shellCommand(ctx context.Context, cmdStr string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", cmdStr)
	}
	return exec.CommandContext(ctx, "sh", "-c", cmdStr)
}

// runCapture runs the prepared command, capturing combined stdout+stderr.
// In verbose mode output is also streamed to the writers while being
// captured, following the MultiWriter pattern.
func runCapture(cmd *exec.Cmd, verbose bool, stdout, stderr io.Writer) (string, error) {
	var captured bytes.Buffer

	if verbose {
		cmd.Stdout = io.MultiWriter(stdout, &captured)
		cmd.Stderr = io.MultiWriter(stderr, &captured)
	} else {
		cmd.Stdout = &captured
		cmd.Stderr = &captured
	}

	err := cmd.Run()
	return captured.String(), err
}

// prependPath returns a copy of environ with dir prepended to the PATH
// entry. When environ carries no PATH, one is added.
func prependPath(environ []string, dir string) []string {
	const prefix = "PATH="
	result := make([]string, 0, len(environ)+1)
	found := false
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			result = append(result, prefix+dir+string(os.PathListSeparator)+kv[len(prefix):])
			found = true
			continue
		}
		result = append(result, kv)
	}
	if !found {
		result = append(result, prefix+dir)
	}
	return result
}
