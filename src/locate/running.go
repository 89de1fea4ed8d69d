package locate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

const cacheSuffix = "_executable.txt"

// FromProcess finds the executable of a running process called name. Apps
// installed through their own updater move around between versions, so a
// running instance is the most reliable source. A hit is cached under
// cacheDir so later runs work while the app is closed.
func FromProcess(name, cacheDir string) (string, error) {
	cache := ""
	if cacheDir != "" {
		cache = filepath.Join(cacheDir, sanitize(name)+cacheSuffix)
		if data, err := os.ReadFile(cache); err == nil {
			exe := strings.TrimSpace(string(data))
			if _, err := os.Stat(exe); err == nil {
				return exe, nil
			}
		}
	}

	proc, err := findByName(name)
	if err != nil {
		return "", err
	}
	exe, err := proc.Exe()
	if err != nil {
		return "", fmt.Errorf("%w: executable of process %d: %w", ErrNotFound, proc.Pid, err)
	}

	if cache != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err == nil {
			_ = os.WriteFile(cache, []byte(exe), 0o644)
		}
	}
	return exe, nil
}

func findByName(name string) (*process.Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue
		}
		if matchesName(pname, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no running process named %q", ErrNotFound, name)
}

func matchesName(processName, want string) bool {
	if strings.EqualFold(processName, want) {
		return true
	}
	return strings.EqualFold(strings.TrimSuffix(strings.ToLower(processName), ".exe"), want)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == ' ' {
			return '_'
		}
		return r
	}, name)
}
