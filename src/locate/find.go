// Package locate finds the target executable when none was given explicitly.
package locate

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/playwright-community/playwright-go"

	"github.com/cdp-inject/launcher/src/options"
)

var ErrNotFound = errors.New("target executable not found")

// Find returns explicit when it exists, otherwise a platform default for the
// profile. The chromium profile falls back to the Chromium build managed by
// playwright.
func Find(profile options.Profile, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: '%s' does not exist", ErrNotFound, explicit)
		} else if err != nil {
			return "", fmt.Errorf("stat %s: %w", explicit, err)
		}
		return explicit, nil
	}

	switch profile {
	case options.ChromiumProfile:
		if exe, err := findChromiumSystem(); err == nil {
			return exe, nil
		}
		return findPlaywrightChromium()
	case options.NodeProfile:
		exe, err := exec.LookPath("node")
		if err != nil {
			return "", fmt.Errorf("%w: node is not on PATH", ErrNotFound)
		}
		return exe, nil
	}
	return "", fmt.Errorf("%w: no default location for the %s profile, pass the executable as an argument", ErrNotFound, profile)
}

// playwright keeps its own Chromium download, installing it on first use.
func findPlaywrightChromium() (string, error) {
	if err := playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
	}); err != nil {
		return "", fmt.Errorf("%w: install chromium: %w", ErrNotFound, err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("%w: start playwright: %w", ErrNotFound, err)
	}
	defer pw.Stop()

	exe := pw.Chromium.ExecutablePath()
	if exe == "" {
		return "", fmt.Errorf("%w: playwright has no chromium", ErrNotFound)
	}
	return exe, nil
}
