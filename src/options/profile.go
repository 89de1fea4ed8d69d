package options

type Profile string

const (
	ElectronProfile Profile = "electron"
	ChromiumProfile Profile = "chromium"
	NodeProfile     Profile = "node"
	AttachProfile   Profile = "attach"
)

const (
	FlagRemoteDebuggingPort = "remote-debugging-port"
	FlagInspect             = "inspect"
)

const (
	DiscoveryPoll   = "poll"
	DiscoveryScan   = "scan"
	DiscoveryDirect = "direct"
)

type profileDefaults struct {
	debugFlag string
	discovery string
}

// Electron builds answer /json/list on the renderer port; bare Chromium and
// Node print their endpoint on stderr first.
func (p Profile) defaults() profileDefaults {
	switch p {
	case ChromiumProfile:
		return profileDefaults{FlagRemoteDebuggingPort, DiscoveryScan}
	case NodeProfile:
		return profileDefaults{FlagInspect, DiscoveryScan}
	case AttachProfile:
		return profileDefaults{FlagRemoteDebuggingPort, DiscoveryDirect}
	}
	return profileDefaults{FlagRemoteDebuggingPort, DiscoveryPoll}
}

func (p Profile) known() bool {
	switch p {
	case ElectronProfile, ChromiumProfile, NodeProfile, AttachProfile:
		return true
	}
	return false
}

// Sandboxed reports whether the target refuses to start elevated without
// --no-sandbox.
func (p Profile) Sandboxed() bool {
	return p == ElectronProfile || p == ChromiumProfile
}
