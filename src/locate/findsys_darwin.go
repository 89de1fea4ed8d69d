package locate

import (
	"os"
	"path"
)

func findChromiumSystem() (string, error) {
	for _, name := range []string{"Google Chrome", "Chromium", "Microsoft Edge"} {
		exe := path.Join("/Applications", name+".app", "Contents", "MacOS", name)
		if _, err := os.Stat(exe); err == nil {
			return exe, nil
		}
		userExe := path.Join(os.Getenv("HOME"), exe)
		if _, err := os.Stat(userExe); err == nil {
			return userExe, nil
		}
	}
	return "", ErrNotFound
}
