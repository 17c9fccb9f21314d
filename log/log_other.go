//go:build !windows

package log

import (
	"os"
	"path/filepath"
	"runtime"
)

func getDefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "voicedesk"), nil
	}

	xdgState := os.Getenv("XDG_STATE_HOME")
	if xdgState == "" {
		xdgState = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(xdgState, "voicedesk", "logs"), nil
}
