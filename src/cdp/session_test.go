package cdp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cdp-inject/launcher/src/cdp"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type frame struct {
	kind int
	data []byte
}

// newTarget serves a websocket that records every frame and optionally
// answers each one.
func newTarget(t *testing.T, reply bool) (string, <-chan frame) {
	t.Helper()
	frames := make(chan frame, 16)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				close(frames)
				return
			}
			frames <- frame{kind: kind, data: data}
			if reply {
				var req cdp.Request
				_ = json.Unmarshal(data, &req)
				out, _ := json.Marshal(map[string]any{"id": req.ID, "result": map[string]any{}})
				_ = conn.WriteMessage(websocket.TextMessage, out)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/devtools/page/1", frames
}

func TestSendIDsStartAtOneAndIncrease(t *testing.T) {
	url, frames := newTarget(t, false)
	s, err := cdp.Dial(context.Background(), url)
	require.NoError(t, err)

	for want := int64(1); want <= 5; want++ {
		id, err := s.Send(context.Background(), "Runtime.enable", nil)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	require.NoError(t, s.Close())

	var ids []int64
	for f := range frames {
		assert.Equal(t, websocket.TextMessage, f.kind)
		var req map[string]any
		require.NoError(t, json.Unmarshal(f.data, &req))
		assert.Equal(t, "Runtime.enable", req["method"])
		assert.Equal(t, map[string]any{}, req["params"])
		ids = append(ids, int64(req["id"].(float64)))
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
}

func TestSendSerializationErrorKeepsID(t *testing.T) {
	url, _ := newTarget(t, false)
	s, err := cdp.Dial(context.Background(), url)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Send(context.Background(), "Runtime.evaluate", map[string]any{"bad": make(chan int)})
	require.ErrorIs(t, err, cdp.ErrSerialization)
	assert.EqualValues(t, 1, s.NextID())

	id, err := s.Send(context.Background(), "Runtime.evaluate", map[string]any{"expression": "1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
}

func TestSendAfterCloseFails(t *testing.T) {
	url, _ := newTarget(t, false)
	s, err := cdp.Dial(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Send(context.Background(), "Runtime.evaluate", nil)
	require.ErrorIs(t, err, cdp.ErrSend)
}

func TestCallUsesProtoMethodName(t *testing.T) {
	url, frames := newTarget(t, false)
	s, err := cdp.Dial(context.Background(), url)
	require.NoError(t, err)

	_, err = s.Call(context.Background(), proto.RuntimeEvaluate{Expression: "1+1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f := <-frames
	var req struct {
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	require.NoError(t, json.Unmarshal(f.data, &req))
	assert.Equal(t, "Runtime.evaluate", req.Method)
	assert.Equal(t, "1+1", req.Params["expression"])
}

func TestReadReply(t *testing.T) {
	url, _ := newTarget(t, true)
	s, err := cdp.Dial(context.Background(), url)
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Send(context.Background(), "Runtime.evaluate", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := s.ReadReply(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, resp.ID)
	assert.NotEmpty(t, resp.Raw)
}

func TestDialHandshakeErrors(t *testing.T) {
	plain := httptest.NewServer(http.NotFoundHandler())
	defer plain.Close()

	_, err := cdp.Dial(context.Background(), "ws"+strings.TrimPrefix(plain.URL, "http"))
	require.ErrorIs(t, err, cdp.ErrHandshake)

	closed := httptest.NewServer(http.NotFoundHandler())
	addr := closed.Listener.Addr().String()
	closed.Close()
	_, err = cdp.Dial(context.Background(), "ws://"+addr+"/devtools")
	require.ErrorIs(t, err, cdp.ErrHandshake)

	_, err = cdp.Dial(context.Background(), "not a url")
	require.ErrorIs(t, err, cdp.ErrHandshake)
}
