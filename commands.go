package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/inject"
	"github.com/cdp-inject/launcher/src/locate"
	"github.com/cdp-inject/launcher/src/logging"
	"github.com/cdp-inject/launcher/src/notify"
	"github.com/cdp-inject/launcher/src/options"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

type runFlags struct {
	config    string
	profile   string
	process   string
	close     bool
	debugFlag string
	discovery string
	url       string
	directory string
	script    string
	method    string
	extraArgs []string
	settle    int
	attempts  int
	interval  int
	echo      bool
	notify    bool
	verbose   bool
	logFormat string
}

type runner func(cmd *cobra.Command, opts *options.Options) error

func newRootCommand() *cobra.Command {
	return newRootCommandWith(func(cmd *cobra.Command, opts *options.Options) error {
		return runInjection(cmd, opts)
	})
}

func newRootCommandWith(run runner) *cobra.Command {
	var f runFlags

	rootCmd := &cobra.Command{
		Use:           "launcher [executable]",
		Short:         "Start a debug-enabled application and inject a script into it",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(cmd, &f, args)
			if err != nil {
				return err
			}
			return run(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&f.config, "config", "c", "", "Configuration file path")

	flags := rootCmd.Flags()
	flags.StringVarP(&f.profile, "profile", "p", "", "Target kind: electron, chromium, node or attach")
	flags.StringVar(&f.process, "process-name", "", "Take the executable from a running process with this name")
	flags.BoolVar(&f.close, "close-running", false, "Close running instances of the executable before launching")
	flags.StringVar(&f.debugFlag, "debug-flag", "", "Flag that enables the debugger, without leading dashes")
	flags.StringVar(&f.discovery, "discovery", "", "How to find the debugger: poll, scan or direct")
	flags.StringVar(&f.url, "url", "", "Debugger URL for direct discovery")
	flags.StringVarP(&f.directory, "dir", "d", "", "Directory passed to the injected script (default: launcher directory)")
	flags.StringVarP(&f.script, "script", "s", "", "Script to inject instead of the built-in loader")
	flags.StringVar(&f.method, "method", "", "Runtime.callFunctionOn or Runtime.evaluate")
	flags.StringArrayVar(&f.extraArgs, "arg", nil, "Extra argument for the target, repeatable")
	flags.IntVar(&f.settle, "settle-ms", 0, "Delay between readiness and sending the payload")
	flags.IntVar(&f.attempts, "poll-attempts", 0, "Number of /json/list requests before giving up")
	flags.IntVar(&f.interval, "poll-interval-ms", 0, "Delay between /json/list requests")
	flags.BoolVar(&f.echo, "echo", false, "Log the target's reply to the payload")
	flags.BoolVar(&f.notify, "notify", false, "Show a desktop notification on failure")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&f.logFormat, "log-format", "", "console or json")

	rootCmd.AddCommand(newTargetsCommand())
	rootCmd.AddCommand(newConfigCommand(&f.config))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// resolveOptions layers command line flags over the configuration file.
func resolveOptions(cmd *cobra.Command, f *runFlags, args []string) (*options.Options, error) {
	opts, _, _, err := options.Load(strings.TrimSpace(f.config))
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("profile") {
		opts.Profile = options.Profile(f.profile)
		// a profile on the command line brings its own flag and discovery
		opts.DebugFlag = ""
		opts.Discovery = ""
	}
	if changed("process-name") {
		opts.ProcessName = f.process
	}
	if changed("close-running") {
		opts.CloseRunning = f.close
	}
	if changed("debug-flag") {
		opts.DebugFlag = f.debugFlag
	}
	if changed("discovery") {
		opts.Discovery = f.discovery
	}
	if changed("url") {
		opts.URL = f.url
	}
	if changed("dir") {
		opts.Directory = f.directory
	}
	if changed("script") {
		opts.Script = f.script
	}
	if changed("method") {
		opts.Method = f.method
	}
	if changed("arg") {
		opts.ExtraArgs = f.extraArgs
	}
	if changed("settle-ms") {
		opts.SettleDelayMs = f.settle
	}
	if changed("poll-attempts") {
		opts.PollAttempts = f.attempts
	}
	if changed("poll-interval-ms") {
		opts.PollIntervalMs = f.interval
	}
	if changed("echo") {
		opts.EchoReply = f.echo
	}
	if changed("notify") {
		opts.Notify = f.notify
	}
	if changed("log-format") {
		opts.LogFormat = f.logFormat
	}
	if f.verbose {
		opts.LogLevel = "debug"
	}
	if len(args) == 1 {
		opts.Executable = args[0]
	}

	if err := opts.Normalize(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !opts.Attach() {
		if opts.Executable == "" && opts.ProcessName != "" {
			exe, err := locate.FromProcess(opts.ProcessName, opts.StateDir)
			if err != nil {
				return nil, err
			}
			opts.Executable = exe
		}
		exe, err := locate.Find(opts.Profile, opts.Executable)
		if err != nil {
			return nil, err
		}
		opts.Executable = exe
	}
	return opts, nil
}

func runInjection(cmd *cobra.Command, opts *options.Options, extra ...inject.Option) error {
	logger, err := logging.New(logging.Options{
		Level:  opts.LogLevel,
		Format: opts.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String(logging.FieldRunID, uuid.NewString()))

	var notifier notify.Notifier = notify.Nop{}
	if opts.Notify {
		notifier = notify.Desktop{}
	}

	logger.Info("starting run",
		zap.String("profile", string(opts.Profile)),
		zap.String("executable", opts.Executable),
		zap.String("discovery", opts.Discovery))

	injector := inject.New(opts, append([]inject.Option{inject.WithLogger(logger)}, extra...)...)
	if err := injector.Run(cmd.Context()); err != nil {
		notify.Failure(notifier, logger, err)
		return err
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the launcher version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "launcher %s\n", version)
			return nil
		},
	}
}
