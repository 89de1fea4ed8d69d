//go:build linux

package launch_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/launch"
)

// copySleep gives the test a binary path no other process is using.
func copySleep(t *testing.T) string {
	t.Helper()
	src, err := exec.LookPath("sleep")
	require.NoError(t, err)
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), "single-instance-app")
	require.NoError(t, os.WriteFile(dst, data, 0o755))
	return dst
}

func TestCloseRunningTerminatesInstances(t *testing.T) {
	exe := copySleep(t)
	cmd := exec.Command(exe, "30")
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, launch.CloseRunning(ctx, exe, 5*time.Second, zap.NewNop()))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("instance still running")
	}
}

func TestCloseRunningNothingToClose(t *testing.T) {
	exe := copySleep(t)
	require.NoError(t, launch.CloseRunning(context.Background(), exe, time.Second, zap.NewNop()))
}
