//go:build !windows && !darwin

package locate

import (
	"os"
	"os/exec"
)

func findChromiumSystem() (string, error) {
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if exe, err := exec.LookPath(name); err == nil {
			return exe, nil
		}
	}
	for _, exe := range []string{"/opt/google/chrome/chrome", "/opt/microsoft/msedge/msedge"} {
		if _, err := os.Stat(exe); err == nil {
			return exe, nil
		}
	}
	return "", ErrNotFound
}
