package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DirectStrategy uses an endpoint handed over by the launcher. An http URL is
// a discovery base and goes through the poll.
type DirectStrategy struct {
	URL  string
	Poll PollStrategy
}

func (s DirectStrategy) Discover(ctx context.Context, probe Probe) (string, error) {
	discard(probe)

	u, err := url.Parse(strings.TrimSpace(s.URL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, s.URL)
	}
	switch u.Scheme {
	case "ws", "wss":
		return u.String(), nil
	case "http", "https":
		base := u.Scheme + "://" + u.Host
		return s.Poll.poll(ctx, base)
	}
	return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
}
