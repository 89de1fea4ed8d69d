package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	opts, resolved, exists, err := Load(path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, ElectronProfile, opts.Profile)
	assert.Equal(t, FlagRemoteDebuggingPort, opts.DebugFlag)
	assert.Equal(t, DiscoveryPoll, opts.Discovery)
	assert.Equal(t, 4, opts.PollAttempts)
	require.NoError(t, opts.Validate())
}

func TestLoadProfileDefaults(t *testing.T) {
	cases := map[string]struct {
		flag, discovery string
	}{
		"chromium": {FlagRemoteDebuggingPort, DiscoveryScan},
		"node":     {FlagInspect, DiscoveryScan},
		"attach":   {FlagRemoteDebuggingPort, DiscoveryDirect},
		"Electron": {FlagRemoteDebuggingPort, DiscoveryPoll},
	}
	for profile, want := range cases {
		t.Run(profile, func(t *testing.T) {
			opts, _, exists, err := Load(writeConfig(t, "profile = \""+profile+"\"\n"))
			require.NoError(t, err)
			assert.True(t, exists)
			assert.Equal(t, want.flag, opts.DebugFlag)
			assert.Equal(t, want.discovery, opts.Discovery)
		})
	}
}

func TestLoadExplicitValuesWin(t *testing.T) {
	opts, _, _, err := Load(writeConfig(t, `
profile = "node"
debug_flag = "--remote-debugging-port"
discovery = "poll"
settle_delay_ms = 0
extra_args = ["--no-first-run"]
directory = "/opt/agents"
`))
	require.NoError(t, err)
	assert.Equal(t, FlagRemoteDebuggingPort, opts.DebugFlag)
	assert.Equal(t, DiscoveryPoll, opts.Discovery)
	assert.Zero(t, opts.SettleDelay())
	assert.Equal(t, []string{"--no-first-run"}, opts.ExtraArgs)
	assert.Equal(t, filepath.Clean("/opt/agents"), opts.Directory)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, _, _, err := Load(writeConfig(t, "colour = \"blue\"\n"))
	assert.Error(t, err)
}

func TestSampleConfigIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, CreateSample(path))

	opts, _, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, opts.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(o *Options){
		"profile":   func(o *Options) { o.Profile = "firefox" },
		"flag":      func(o *Options) { o.DebugFlag = "remote-debugging-pipe" },
		"discovery": func(o *Options) { o.Discovery = "mdns" },
		"direct":    func(o *Options) { o.Discovery = DiscoveryDirect },
		"method":    func(o *Options) { o.Method = "Page.navigate" },
		"attempts":  func(o *Options) { o.PollAttempts = 0 },
		"negative":  func(o *Options) { o.SettleDelayMs = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := NewOptions()
			require.NoError(t, opts.Normalize())
			mutate(opts)
			assert.Error(t, opts.Validate())
		})
	}
}

func TestAttach(t *testing.T) {
	opts := NewOptions()
	opts.Profile = AttachProfile
	opts.URL = "ws://127.0.0.1:9222/devtools/page/1"
	require.NoError(t, opts.Normalize())
	require.NoError(t, opts.Validate())
	assert.True(t, opts.Attach())

	opts.Executable = "/usr/bin/app"
	assert.False(t, opts.Attach())
}

func TestEncodeRoundTrips(t *testing.T) {
	opts := NewOptions()
	opts.ExtraArgs = []string{"--a"}
	data, err := opts.Encode()
	require.NoError(t, err)

	loaded, _, _, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, opts.ExtraArgs, loaded.ExtraArgs)
	assert.Equal(t, opts.Method, loaded.Method)
}

func TestLoadRunningInstanceKeys(t *testing.T) {
	path := writeConfig(t, "process_name = 'Discord'\nclose_running = true\nclose_grace_ms = 2500\n")
	opts, _, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Discord", opts.ProcessName)
	assert.True(t, opts.CloseRunning)
	assert.Equal(t, 2500*time.Millisecond, opts.CloseGrace())

	opts.CloseGraceMs = -1
	assert.ErrorContains(t, opts.Validate(), "close_grace_ms")
}

func TestDefaultPathsFollowUserConfigDir(t *testing.T) {
	base, err := os.UserConfigDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "launcher"), DefaultStateDir())
	assert.Equal(t, filepath.Join(base, "launcher", "config.toml"), DefaultConfigPath())
	assert.Equal(t, DefaultStateDir(), NewOptions().StateDir)
}
