package launch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/go-rod/rod/lib/launcher/flags"
	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/logging"
)

var ErrSpawn = errors.New("process spawn failed")

// Inspect is the Node/Electron main-process inspector flag. Chromium-style
// targets use flags.RemoteDebuggingPort instead.
const Inspect flags.Flag = "inspect"

type Spec struct {
	Executable string
	Args       []string
	DebugFlag  flags.Flag
	Port       int
}

func (s Spec) arguments() []string {
	args := make([]string, 0, len(s.Args)+1)
	args = append(args, s.Args...)
	if s.DebugFlag != "" {
		args = append(args, "--"+string(s.DebugFlag)+"="+strconv.Itoa(s.Port))
	}
	return args
}

// Handle owns a spawned target process and, until readiness is confirmed,
// its diagnostic (stderr) stream.
type Handle struct {
	cmd    *exec.Cmd
	stderr *os.File
	output *bufio.Reader
	logger *zap.Logger

	exited  chan struct{}
	waitErr error

	drain sync.Once
}

// Start spawns the executable with the debug flag appended to its arguments.
// stdin is closed and stdout is forwarded to the debug log.
func Start(spec Spec, logger *zap.Logger) (*Handle, error) {
	logger = logging.Component(logger, "launch")

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", ErrSpawn, err)
	}

	args := spec.arguments()
	cmd := exec.Command(spec.Executable, args...) //nolint:gosec
	cmd.Stdin = nil
	cmd.Stdout = &lineLogger{logger: logger, stream: "stdout"}
	cmd.Stderr = w
	setupProcessGroup(cmd)

	logger.Debug("starting target", zap.String("executable", spec.Executable), zap.Strings("args", args))
	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("%w: start %q: %w", ErrSpawn, spec.Executable, err)
	}
	// the child holds its own copy, ours must go for EOF to be seen
	_ = w.Close()

	h := &Handle{
		cmd:    cmd,
		stderr: r,
		output: bufio.NewReader(r),
		logger: logger.With(zap.Int(logging.FieldPID, cmd.Process.Pid)),
		exited: make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()

	h.logger.Info("target started")
	return h, nil
}

func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Output is the diagnostic stream. It must not be read after DiscardOutput.
func (h *Handle) Output() *bufio.Reader {
	return h.output
}

// Exited is closed once the process has exited and been reaped.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// ExitErr returns the result of waiting on the process; only valid after
// Exited is closed.
func (h *Handle) ExitErr() error {
	return h.waitErr
}

// DiscardOutput drains the rest of the diagnostic stream into the debug log
// so the target never blocks on a full pipe.
func (h *Handle) DiscardOutput() {
	h.drain.Do(func() {
		go func() {
			defer h.stderr.Close()
			w := &lineLogger{logger: h.logger, stream: "stderr"}
			_, _ = io.Copy(w, h.output)
			w.flush()
		}()
	})
}

// Kill terminates the process and its descendants. Killing a process that
// already exited is not an error.
func (h *Handle) Kill() error {
	select {
	case <-h.exited:
		return nil
	default:
	}

	descendants := collectDescendants(h.Pid())
	err := killProcessGroup(h.cmd)
	for _, p := range descendants {
		_ = p.Kill()
	}
	if errors.Is(err, os.ErrProcessDone) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("kill pid %d: %w", h.Pid(), err)
	}
	h.logger.Info("target killed", zap.Int("descendants", len(descendants)))
	return nil
}
