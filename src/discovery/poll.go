package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/logging"
)

const listPath = "/json/list"

// Target is one entry of the /json/list response.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// PollStrategy asks the target's HTTP discovery endpoint for its targets,
// retrying while the listener is not up yet.
type PollStrategy struct {
	Client   *http.Client
	Host     string
	Attempts uint
	Interval time.Duration
	Logger   *zap.Logger

	// Timer replaces the wall clock between attempts (tests).
	Timer retry.Timer
}

func (s PollStrategy) Discover(ctx context.Context, probe Probe) (string, error) {
	discard(probe)

	host := s.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return s.poll(ctx, "http://"+net.JoinHostPort(host, strconv.Itoa(probe.Port)))
}

func (s PollStrategy) poll(ctx context.Context, base string) (string, error) {
	logger := nopIfNil(s.Logger)
	attempts := s.Attempts
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var selected Target
	made := 0
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("discovery attempt failed", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	}
	if s.Timer != nil {
		opts = append(opts, retry.WithTimer(s.Timer))
	}

	err := retry.Do(func() error {
		made++
		targets, err := ListTargets(ctx, s.Client, base)
		if err != nil {
			return err
		}
		target, err := Select(targets)
		if err != nil {
			// the target answered; asking again will not add a page
			return retry.Unrecoverable(err)
		}
		selected = target
		return nil
	}, opts...)
	if err != nil {
		if errors.Is(err, ErrTargetNotFound) || ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w after %d attempts: %w", ErrDiscoveryExhausted, made, err)
	}

	logger.Debug("target selected",
		zap.String("target_id", selected.ID),
		zap.String("type", selected.Type),
		zap.String(logging.FieldEndpoint, selected.WebSocketDebuggerURL))
	return selected.WebSocketDebuggerURL, nil
}

// Select picks the first target that can still be attached to.
func Select(targets []Target) (Target, error) {
	if len(targets) == 0 {
		return Target{}, ErrTargetNotFound
	}
	for _, t := range targets {
		if t.WebSocketDebuggerURL != "" {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("%w: %d targets, none attachable", ErrTargetNotFound, len(targets))
}

// ListTargets fetches the target list from a discovery base such as
// http://127.0.0.1:9222.
func ListTargets(ctx context.Context, client *http.Client, base string) ([]Target, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+listPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryHTTP, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryHTTP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrDiscoveryHTTP, base+listPath, resp.StatusCode)
	}

	var targets []Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("%w: decode target list: %w", ErrDiscoveryHTTP, err)
	}
	return targets, nil
}
