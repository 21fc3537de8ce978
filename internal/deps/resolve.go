package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Resolve reports the binary a configured tool command will actually execute.
// Bare names are resolved through PATH the way os/exec does it; explicit
// paths are checked directly for an executable file. The returned Command
// holds the resolved absolute path when the tool is available.
func Resolve(name, command, description string) Status {
	result := Status{
		Name:        name,
		Command:     strings.TrimSpace(command),
		Description: strings.TrimSpace(description),
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}

	if strings.ContainsRune(result.Command, filepath.Separator) {
		info, err := os.Stat(result.Command)
		if err != nil {
			result.Detail = fmt.Sprintf("binary %q not found", result.Command)
			return result
		}
		if !isExecutable(info) {
			result.Detail = fmt.Sprintf("%q is not executable", result.Command)
			return result
		}
		if abs, err := filepath.Abs(result.Command); err == nil {
			result.Command = abs
		}
		result.Available = true
		return result
	}

	resolved, err := exec.LookPath(result.Command)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", result.Command)
		return result
	}
	result.Command = resolved
	result.Available = true
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
