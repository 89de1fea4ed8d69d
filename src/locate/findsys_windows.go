package locate

import (
	"os"
	"path/filepath"
)

func findChromiumSystem() (string, error) {
	names := []string{
		`Google\Chrome\Application\chrome.exe`,
		`Chromium\Application\chrome.exe`,
		`Microsoft\Edge\Application\msedge.exe`,
	}
	roots := []string{os.Getenv("LOCALAPPDATA"), os.Getenv("PROGRAMFILES"), os.Getenv("PROGRAMFILES(x86)")}
	for _, name := range names {
		for _, root := range roots {
			if root == "" {
				continue
			}
			exe := filepath.Join(root, name)
			if _, err := os.Stat(exe); err == nil {
				return exe, nil
			}
		}
	}
	return "", ErrNotFound
}
