//go:build unix

package isadmin

import "golang.org/x/sys/unix"

// Elevated reports whether the launcher runs as root. Chromium refuses to
// start its sandbox in that case.
func Elevated() bool {
	return unix.Geteuid() == 0
}
