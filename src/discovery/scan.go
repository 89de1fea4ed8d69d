package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/logging"
)

const (
	DevToolsPrefix = "DevTools listening on "
	DebuggerPrefix = "Debugger listening on "
)

// Marker is a matched readiness line.
type Marker struct {
	URL  string
	Line int
}

// Scan reads r one line at a time until a line starts with one of prefixes
// and returns the endpoint announced on it. Nothing past the matching line is
// consumed.
func Scan(r *bufio.Reader, prefixes []string, port int) (Marker, error) {
	consumed := 0
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			consumed++
			if suffix, ok := matchPrefix(line, prefixes); ok {
				endpoint, perr := endpointFrom(suffix, port)
				if perr != nil {
					return Marker{}, perr
				}
				return Marker{URL: endpoint, Line: consumed}, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Marker{}, fmt.Errorf("%w (%d lines read)", ErrReadinessEOF, consumed)
			}
			return Marker{}, fmt.Errorf("%w: %w", ErrReadinessEOF, err)
		}
	}
}

func matchPrefix(line string, prefixes []string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	for _, prefix := range prefixes {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	return "", false
}

// endpointFrom accepts a full ws:// URL or a path that is joined with the
// port the target was started on.
func endpointFrom(suffix string, port int) (string, error) {
	if strings.HasPrefix(suffix, "/") {
		if port <= 0 {
			return "", fmt.Errorf("%w: path %q without a known port", ErrMalformedMarker, suffix)
		}
		return "ws://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + suffix, nil
	}
	u, err := url.Parse(suffix)
	if err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
		return "", fmt.Errorf("%w: %q", ErrMalformedMarker, suffix)
	}
	return u.String(), nil
}

// ScanStrategy waits for the target to announce its endpoint on stderr.
type ScanStrategy struct {
	Prefixes []string
	Logger   *zap.Logger
}

// Discover returns as soon as ctx is done. The scan itself keeps the reader
// until the stream ends, which happens once the caller kills the target.
func (s ScanStrategy) Discover(ctx context.Context, probe Probe) (string, error) {
	if probe.Process == nil {
		return "", errors.New("stream scan needs a launched process")
	}

	type scanResult struct {
		marker Marker
		err    error
	}
	done := make(chan scanResult, 1)
	go func() {
		defer probe.Process.DiscardOutput()
		marker, err := Scan(probe.Process.Output(), s.Prefixes, probe.Port)
		done <- scanResult{marker: marker, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for readiness marker: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		nopIfNil(s.Logger).Debug("readiness marker found",
			zap.Int("line", res.marker.Line), zap.String(logging.FieldEndpoint, res.marker.URL))
		return res.marker.URL, nil
	}
}
