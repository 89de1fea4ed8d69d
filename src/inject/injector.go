// Package inject runs the whole launch, discovery, handshake and send
// sequence and guarantees that a failed run does not leave the target behind.
package inject

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/cdp"
	"github.com/cdp-inject/launcher/src/discovery"
	"github.com/cdp-inject/launcher/src/isadmin"
	"github.com/cdp-inject/launcher/src/launch"
	"github.com/cdp-inject/launcher/src/logging"
	"github.com/cdp-inject/launcher/src/options"
	"github.com/cdp-inject/launcher/src/port"
)

const (
	lockName     = "launcher.lock"
	replyTimeout = 5 * time.Second
)

var ErrBusy = errors.New("another launcher run is in progress")

// Process is the part of a launched target the injector needs.
type Process interface {
	discovery.Output
	Pid() int
	Kill() error
}

type Ports interface {
	Allocate() (int, error)
	Release(port int)
}

type LaunchFunc func(spec launch.Spec, logger *zap.Logger) (Process, error)

type DialFunc func(ctx context.Context, endpoint string, opts ...cdp.Option) (*cdp.Session, error)

type CloseFunc func(ctx context.Context, executable string, grace time.Duration, logger *zap.Logger) error

type Option func(*Injector)

func WithLogger(logger *zap.Logger) Option {
	return func(in *Injector) {
		if logger != nil {
			in.logger = logger
		}
	}
}

func WithPorts(p Ports) Option {
	return func(in *Injector) { in.ports = p }
}

func WithLauncher(fn LaunchFunc) Option {
	return func(in *Injector) { in.launch = fn }
}

func WithDialer(fn DialFunc) Option {
	return func(in *Injector) { in.dial = fn }
}

func WithCloser(fn CloseFunc) Option {
	return func(in *Injector) { in.close = fn }
}

func WithStrategy(s discovery.Strategy) Option {
	return func(in *Injector) { in.strategy = s }
}

func WithHTTPClient(c *http.Client) Option {
	return func(in *Injector) { in.client = c }
}

// WithSleep replaces the settle delay wait. fn must return early with the
// context's error once ctx is done.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(in *Injector) { in.sleep = fn }
}

func WithElevated(fn func() bool) Option {
	return func(in *Injector) { in.elevated = fn }
}

type Injector struct {
	opts   *options.Options
	logger *zap.Logger

	ports    Ports
	launch   LaunchFunc
	dial     DialFunc
	close    CloseFunc
	strategy discovery.Strategy
	client   *http.Client
	sleep    func(ctx context.Context, d time.Duration) error
	elevated func() bool

	state   State
	history []State
}

func New(opts *options.Options, o ...Option) *Injector {
	in := &Injector{
		opts:     opts,
		logger:   zap.NewNop(),
		ports:    port.NewAllocator(),
		launch:   startProcess,
		dial:     cdp.Dial,
		close:    launch.CloseRunning,
		sleep:    sleepContext,
		elevated: isadmin.Elevated,
		state:    NotStarted,
	}
	for _, opt := range o {
		opt(in)
	}
	in.logger = logging.Component(in.logger, "inject")
	return in
}

func startProcess(spec launch.Spec, logger *zap.Logger) (Process, error) {
	h, err := launch.Start(spec, logger)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (in *Injector) State() State {
	return in.state
}

// History lists every state the run went through, NotStarted first.
func (in *Injector) History() []State {
	return append([]State{NotStarted}, in.history...)
}

func (in *Injector) transition(next State) {
	in.logger.Debug("state change",
		zap.Stringer("from", in.state),
		zap.Stringer(logging.FieldState, next))
	in.state = next
	in.history = append(in.history, next)
}

// Run performs one injection. Any failure after the target was spawned kills
// it before Run returns; the kill itself never masks the original error.
// Failures before that point leave the state at NotStarted.
func (in *Injector) Run(ctx context.Context) (err error) {
	unlock, err := in.lock()
	if err != nil {
		return err
	}
	defer unlock()

	var proc Process
	defer func() {
		if err == nil || in.state == NotStarted {
			return
		}
		in.transition(Failed)
		if proc == nil {
			return
		}
		if kerr := proc.Kill(); kerr != nil {
			in.logger.Warn("failed to kill target", zap.Int(logging.FieldPID, proc.Pid()), zap.Error(kerr))
		}
	}()

	script, err := loadScript(in.opts.Script)
	if err != nil {
		return err
	}
	dir, err := resolveDirectory(in.opts.Directory)
	if err != nil {
		return err
	}
	command, err := BuildCommand(in.opts.Method, script, dir)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}
	strategy, err := in.discoveryStrategy()
	if err != nil {
		return err
	}

	debugPort := 0
	if !in.opts.Attach() {
		if in.opts.CloseRunning {
			if err := in.close(ctx, in.opts.Executable, in.opts.CloseGrace(), in.logger); err != nil {
				return fmt.Errorf("close running instance: %w", err)
			}
		}
		debugPort, err = in.ports.Allocate()
		if err != nil {
			return fmt.Errorf("failed to find free tcp port: %w", err)
		}
		defer in.ports.Release(debugPort)

		spec := launch.Spec{
			Executable: in.opts.Executable,
			Args:       in.targetArgs(),
			DebugFlag:  flags.Flag(in.opts.DebugFlag),
			Port:       debugPort,
		}
		proc, err = in.launch(spec, in.logger)
		if err != nil {
			return fmt.Errorf("failed to start '%s': %w", in.opts.Executable, err)
		}
		in.logger = in.logger.With(zap.Int(logging.FieldPID, proc.Pid()), zap.Int(logging.FieldPort, debugPort))
		in.transition(Launched)
	}

	in.transition(AwaitingReadiness)
	endpoint, err := strategy.Discover(ctx, discovery.Probe{Process: proc, Port: debugPort})
	if err != nil {
		return fmt.Errorf("failed to discover debugger: %w", err)
	}
	in.transition(Ready)
	in.logger.Info("debugger ready", zap.String(logging.FieldEndpoint, endpoint))

	// the target accepts the handshake before its main context can run code
	if delay := in.opts.SettleDelay(); delay > 0 {
		if err := in.sleep(ctx, delay); err != nil {
			return fmt.Errorf("settle delay: %w", err)
		}
	}

	session, err := in.dial(ctx, endpoint, cdp.WithLogger(in.logger))
	if err != nil {
		return fmt.Errorf("failed to connect debugger: %w", err)
	}
	defer session.Close()
	in.transition(SessionOpen)

	id, err := session.Call(ctx, command)
	if err != nil {
		return fmt.Errorf("failed to send payload: %w", err)
	}
	in.transition(Sent)
	in.logger.Info("payload sent", zap.Int64("id", id), zap.String("method", command.ProtoReq()), zap.String("directory", dir))

	if in.opts.EchoReply {
		in.echoReply(ctx, session)
	}
	return nil
}

func (in *Injector) discoveryStrategy() (discovery.Strategy, error) {
	if in.strategy != nil {
		return in.strategy, nil
	}
	s, err := discovery.New(in.opts.Discovery, discovery.Config{
		Prefixes: []string{discovery.DevToolsPrefix, discovery.DebuggerPrefix},
		URL:      in.opts.URL,
		Client:   in.client,
		Attempts: uint(in.opts.PollAttempts),
		Interval: in.opts.PollInterval(),
		Logger:   in.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	return s, nil
}

func (in *Injector) targetArgs() []string {
	args := append([]string{}, in.opts.ExtraArgs...)
	if in.opts.NoSandboxAsRoot && in.opts.Profile.Sandboxed() && in.elevated() {
		in.logger.Warn("running elevated, starting target without its sandbox")
		args = append(args, "--"+string(flags.NoSandbox))
	}
	return args
}

func (in *Injector) echoReply(ctx context.Context, session *cdp.Session) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	reply, err := session.ReadReply(ctx)
	if err != nil {
		in.logger.Warn("no reply from target", zap.Error(err))
		return
	}
	in.logger.Info("target replied", zap.ByteString("reply", reply.Raw))
}

func (in *Injector) lock() (func(), error) {
	dir := in.opts.StateDir
	if dir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}
	path := filepath.Join(dir, lockName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrBusy, path)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			in.logger.Warn("failed to release lock", zap.String("lock", path), zap.Error(err))
		}
	}, nil
}
