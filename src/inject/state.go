package inject

// State is the progress of one run. Failed is only reachable once the run
// has left NotStarted; errors before the launch leave NotStarted in place.
type State int

const (
	NotStarted State = iota
	Launched
	AwaitingReadiness
	Ready
	SessionOpen
	Sent
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Launched:
		return "launched"
	case AwaitingReadiness:
		return "awaiting_readiness"
	case Ready:
		return "ready"
	case SessionOpen:
		return "session_open"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == Sent || s == Failed
}
