package launch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/logging"
)

const closePollInterval = 250 * time.Millisecond

// CloseRunning terminates every process started from executable and waits
// for them to go away. Single-instance apps hand a second launch over to the
// running instance, which drops the debug flag. Processes still alive after
// grace are killed.
func CloseRunning(ctx context.Context, executable string, grace time.Duration, logger *zap.Logger) error {
	logger = logging.Component(logger, "launch")
	want := filepath.Clean(executable)

	closed := make(map[int32]bool)
	deadline := time.Now().Add(grace)
	for {
		procs, err := running(ctx, want)
		if err != nil {
			return err
		}
		if len(procs) == 0 {
			return nil
		}
		for _, p := range procs {
			if time.Now().After(deadline) {
				logger.Warn("instance did not exit, killing it", zap.Int32(logging.FieldPID, p.Pid))
				_ = p.KillWithContext(ctx)
				continue
			}
			if closed[p.Pid] {
				continue
			}
			// fresh pids show up when the app was still bootstrapping
			logger.Info("closing running instance", zap.Int32(logging.FieldPID, p.Pid))
			if err := p.TerminateWithContext(ctx); err != nil {
				logger.Debug("terminate failed", zap.Int32(logging.FieldPID, p.Pid), zap.Error(err))
			}
			closed[p.Pid] = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(closePollInterval):
		}
	}
}

func running(ctx context.Context, executable string) ([]*process.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var out []*process.Process
	for _, p := range procs {
		exe, err := p.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		if filepath.Clean(exe) == executable {
			out = append(out, p)
		}
	}
	return out, nil
}
