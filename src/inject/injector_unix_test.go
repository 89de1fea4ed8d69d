//go:build !windows

package inject_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/inject"
	"github.com/cdp-inject/launcher/src/launch"
	"github.com/cdp-inject/launcher/src/options"
)

func TestRunScansRealProcess(t *testing.T) {
	ft := newFakeTarget(t, singleTarget)
	opts := testOptions(t)
	opts.Executable = "/bin/sh"
	opts.Discovery = options.DiscoveryScan
	opts.ExtraArgs = []string{"-c", `echo booting >&2; echo "DevTools listening on ` + ft.wsURL() + `" >&2; echo Ready >&2; exec sleep 30`, "sh"}

	var handle *launch.Handle
	in := inject.New(opts,
		inject.WithLauncher(func(spec launch.Spec, logger *zap.Logger) (inject.Process, error) {
			h, err := launch.Start(spec, logger)
			if err != nil {
				return nil, err
			}
			handle = h
			return h, nil
		}),
		inject.WithSleep(noSleep),
	)
	require.NoError(t, in.Run(context.Background()))
	require.NotNil(t, handle)
	t.Cleanup(func() {
		_ = handle.Kill()
		<-handle.Exited()
	})

	select {
	case <-handle.Exited():
		t.Fatal("a successful run must leave the target running")
	default:
	}
	assert.Len(t, ft.sent(t), 1)
}
