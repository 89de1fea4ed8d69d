package options

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

type Options struct {
	Executable  string   `toml:"executable"`
	ProcessName string   `toml:"process_name"`
	Profile     Profile  `toml:"profile"`
	DebugFlag   string   `toml:"debug_flag"`
	Discovery   string   `toml:"discovery"`
	URL         string   `toml:"url"`
	ExtraArgs   []string `toml:"extra_args"`

	Directory string `toml:"directory"`
	Script    string `toml:"script"`
	Method    string `toml:"method"`

	SettleDelayMs  int  `toml:"settle_delay_ms"`
	PollAttempts   int  `toml:"poll_attempts"`
	PollIntervalMs int  `toml:"poll_interval_ms"`
	EchoReply      bool `toml:"echo_reply"`

	CloseRunning bool `toml:"close_running"`
	CloseGraceMs int  `toml:"close_grace_ms"`

	Notify          bool   `toml:"notify"`
	NoSandboxAsRoot bool   `toml:"no_sandbox_as_root"`
	StateDir        string `toml:"state_dir"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

const (
	MethodCallFunctionOn = "Runtime.callFunctionOn"
	MethodEvaluate       = "Runtime.evaluate"
)

func NewOptions() *Options {
	return &Options{
		Profile:         ElectronProfile,
		Method:          MethodCallFunctionOn,
		SettleDelayMs:   1000,
		PollAttempts:    4,
		PollIntervalMs:  1000,
		CloseGraceMs:    10000,
		NoSandboxAsRoot: true,
		StateDir:        DefaultStateDir(),
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Load reads the TOML file at path over the defaults. An empty path means the
// default location; a missing file is not an error. It returns the resolved
// path and whether the file existed.
func Load(path string) (*Options, string, bool, error) {
	opts := NewOptions()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(opts); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := opts.Normalize(); err != nil {
		return nil, "", false, err
	}
	return opts, resolved, exists, nil
}

const appDir = "launcher"

// DefaultStateDir holds the config file, the run lock and cached paths. It
// falls back to the temp dir when the user has no config dir (no $HOME).
func DefaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, appDir)
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultStateDir(), "config.toml")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config %s is a directory", expanded)
	}
	return expanded, true, nil
}

// Normalize fills profile-dependent defaults and expands paths.
func (o *Options) Normalize() error {
	o.Profile = Profile(strings.ToLower(strings.TrimSpace(string(o.Profile))))
	if o.Profile == "" {
		o.Profile = ElectronProfile
	}
	defaults := o.Profile.defaults()
	if o.DebugFlag == "" {
		o.DebugFlag = defaults.debugFlag
	}
	if o.Discovery == "" {
		o.Discovery = defaults.discovery
	}
	o.DebugFlag = strings.TrimLeft(strings.TrimSpace(o.DebugFlag), "-")
	o.Discovery = strings.ToLower(strings.TrimSpace(o.Discovery))

	var err error
	if o.Executable, err = ExpandPath(o.Executable); err != nil {
		return fmt.Errorf("executable: %w", err)
	}
	if o.Directory, err = ExpandPath(o.Directory); err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	if o.Script, err = ExpandPath(o.Script); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	if o.StateDir, err = ExpandPath(o.StateDir); err != nil {
		return fmt.Errorf("state_dir: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (o *Options) Validate() error {
	if !o.Profile.known() {
		return fmt.Errorf("profile: unsupported value %q", o.Profile)
	}
	switch o.DebugFlag {
	case FlagRemoteDebuggingPort, FlagInspect:
	default:
		return fmt.Errorf("debug_flag: unsupported value %q", o.DebugFlag)
	}
	switch o.Discovery {
	case DiscoveryPoll, DiscoveryScan:
	case DiscoveryDirect:
		if strings.TrimSpace(o.URL) == "" {
			return errors.New("url: required when discovery is direct")
		}
	default:
		return fmt.Errorf("discovery: unsupported value %q", o.Discovery)
	}
	switch o.Method {
	case MethodCallFunctionOn, MethodEvaluate:
	default:
		return fmt.Errorf("method: unsupported value %q", o.Method)
	}
	if o.PollAttempts < 1 {
		return fmt.Errorf("poll_attempts: must be at least 1, got %d", o.PollAttempts)
	}
	if o.PollIntervalMs < 0 || o.SettleDelayMs < 0 || o.CloseGraceMs < 0 {
		return errors.New("poll_interval_ms, settle_delay_ms and close_grace_ms must not be negative")
	}
	return nil
}

// Attach reports whether the run connects to an already running target
// instead of launching one.
func (o *Options) Attach() bool {
	return o.Discovery == DiscoveryDirect && o.Executable == ""
}

func (o *Options) SettleDelay() time.Duration {
	return time.Duration(o.SettleDelayMs) * time.Millisecond
}

func (o *Options) CloseGrace() time.Duration {
	return time.Duration(o.CloseGraceMs) * time.Millisecond
}

func (o *Options) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalMs) * time.Millisecond
}

// ExpandPath resolves a leading ~ and makes the path absolute. Empty stays empty.
func ExpandPath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if value == "~" {
			value = home
		} else if value[1] == '/' || value[1] == '\\' {
			value = filepath.Join(home, value[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective options as TOML.
func (o *Options) Encode() ([]byte, error) {
	return toml.Marshal(o)
}
