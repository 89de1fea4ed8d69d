package launch

import (
	"bytes"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// lineLogger turns a byte stream into one debug entry per line.
type lineLogger struct {
	mu     sync.Mutex
	logger *zap.Logger
	stream string
	buf    bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(l.buf.Next(i + 1))
		l.emit(line)
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.emit(l.buf.String())
		l.buf.Reset()
	}
}

func (l *lineLogger) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	l.logger.Debug("target output", zap.String("stream", l.stream), zap.String("line", line))
}
