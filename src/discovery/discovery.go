// Package discovery finds the debug endpoint of a launched target, either by
// scanning its diagnostic output, by polling its HTTP discovery endpoint, or
// by taking a URL handed over by whoever launched it.
package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/logging"
)

var (
	ErrReadinessEOF       = errors.New("diagnostic stream ended before the debug endpoint was announced")
	ErrMalformedMarker    = errors.New("readiness marker does not name an endpoint")
	ErrDiscoveryHTTP      = errors.New("discovery request failed")
	ErrDiscoveryExhausted = errors.New("discovery attempts exhausted")
	ErrTargetNotFound     = errors.New("no debugging targets found")
	ErrInvalidURL         = errors.New("invalid debugger url")
)

// Output is the diagnostic stream of a launched target, see launch.Handle.
type Output interface {
	Output() *bufio.Reader
	DiscardOutput()
}

// Probe is what a strategy gets to work with. Process is nil when nothing was
// launched (attach mode).
type Probe struct {
	Process Output
	Port    int
}

type Strategy interface {
	Discover(ctx context.Context, probe Probe) (string, error)
}

type Kind = string

const (
	KindPoll   Kind = "poll"
	KindScan   Kind = "scan"
	KindDirect Kind = "direct"
)

const (
	DefaultAttempts = 4
	DefaultInterval = time.Second
)

// Config carries the settings of every strategy; each one reads what it needs.
type Config struct {
	Prefixes []string
	URL      string

	Client   *http.Client
	Attempts uint
	Interval time.Duration

	Logger *zap.Logger
}

// New returns the strategy for kind.
func New(kind Kind, cfg Config) (Strategy, error) {
	logger := logging.Component(cfg.Logger, "discovery")
	poll := PollStrategy{
		Client:   cfg.Client,
		Attempts: cfg.Attempts,
		Interval: cfg.Interval,
		Logger:   logger,
	}
	switch kind {
	case KindPoll:
		return poll, nil
	case KindScan:
		if len(cfg.Prefixes) == 0 {
			return nil, errors.New("stream scan needs at least one readiness prefix")
		}
		return ScanStrategy{Prefixes: cfg.Prefixes, Logger: logger}, nil
	case KindDirect:
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: direct discovery needs a url", ErrInvalidURL)
		}
		return DirectStrategy{URL: cfg.URL, Poll: poll}, nil
	}
	return nil, fmt.Errorf("unknown discovery strategy %q", kind)
}

// strategies that do not read the diagnostic stream still have to drain it
func discard(probe Probe) {
	if probe.Process != nil {
		probe.Process.DiscardOutput()
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
