// Package cdp is a send-mostly Chrome DevTools Protocol client: it opens a
// WebSocket to a debug target and writes framed JSON-RPC requests.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cdp-inject/launcher/src/logging"
)

var (
	ErrHandshake     = errors.New("websocket handshake failed")
	ErrSerialization = errors.New("request cannot be encoded as json")
	ErrSend          = errors.New("request could not be written")
)

const closeGrace = time.Second

// Request is one CDP call as it goes over the wire.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Response is a frame read back from the target. It is not validated.
type Response struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
	Raw    []byte          `json:"-"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Command is a typed request such as the ones in go-rod's proto package.
type Command interface {
	ProtoReq() string
}

type Option func(*Session)

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dialer = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logging.Component(logger, "cdp")
	}
}

// Session is an open connection to one target. It is not safe for
// concurrent use; ids are handed out by the session alone.
type Session struct {
	conn   *websocket.Conn
	dialer *websocket.Dialer
	logger *zap.Logger
	nextID int64
}

// Dial performs the WebSocket opening handshake against endpoint.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Session, error) {
	s := &Session{
		dialer: websocket.DefaultDialer,
		logger: zap.NewNop(),
		nextID: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	conn, resp, err := s.dialer.DialContext(ctx, endpoint, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s: status %d: %w", ErrHandshake, endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrHandshake, endpoint, err)
	}
	s.conn = conn
	s.logger.Debug("session open", zap.String(logging.FieldEndpoint, endpoint))
	return s, nil
}

// NextID is the id the next Send will use.
func (s *Session) NextID() int64 {
	return s.nextID
}

// Send writes {id, method, params} as a single text frame and returns the id
// it used. It does not wait for the reply. An id is spent once the frame has
// been handed to the transport, even if the write then fails.
func (s *Session) Send(ctx context.Context, method string, params any) (int64, error) {
	if params == nil {
		params = struct{}{}
	}
	id := s.nextID
	payload, err := json.Marshal(Request{ID: id, Method: method, Params: params})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrSerialization, method, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	}
	s.nextID++
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return 0, fmt.Errorf("%w: %s (id %d): %w", ErrSend, method, id, err)
	}
	s.logger.Debug("request sent", zap.Int64("id", id), zap.String("method", method), zap.Int("bytes", len(payload)))
	return id, nil
}

// Call sends a typed command under its protocol method name.
func (s *Session) Call(ctx context.Context, cmd Command) (int64, error) {
	return s.Send(ctx, cmd.ProtoReq(), cmd)
}

// ReadReply reads one frame. Used for diagnostics only.
func (s *Session) ReadReply(ctx context.Context) (Response, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return Response{}, fmt.Errorf("read reply: %w", err)
	}
	var resp Response
	// a frame that is not a CDP message is still returned raw
	_ = json.Unmarshal(data, &resp)
	resp.Raw = data
	return resp, nil
}

// Close sends a normal closure and drops the connection.
func (s *Session) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	return s.conn.Close()
}
