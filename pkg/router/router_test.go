package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/telemetry"
)

type stubBridge struct {
	state string
	size  int
}

func (s stubBridge) State() string  { return s.state }
func (s stubBridge) QueueSize() int { return s.size }

type stubGame struct{ connected bool }

func (s stubGame) Connected() bool { return s.connected }

func newTestRouter(t *testing.T) (*Router, *httptest.Server) {
	t.Helper()
	r := New(config.RouterConfig{Host: "127.0.0.1", Port: 8765},
		telemetry.Noop(),
		stubBridge{state: "connected", size: 4},
		stubGame{connected: true})
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	return r, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(raw)))
}

func readResponse(t *testing.T, conn *websocket.Conn) Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestHealthzReportsLinkState(t *testing.T) {
	_, srv := newTestRouter(t)

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Bridge struct {
			State     string `json:"state"`
			QueueSize int    `json:"queue_size"`
		} `json:"bridge"`
		Game struct {
			Connected bool `json:"connected"`
		} `json:"game"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Version)
	assert.Equal(t, "connected", body.Bridge.State)
	assert.Equal(t, 4, body.Bridge.QueueSize)
	assert.True(t, body.Game.Connected)
}

func TestDispatchesRegisteredVerb(t *testing.T) {
	r, srv := newTestRouter(t)
	var gotText string
	r.Handle("chat", func(ctx context.Context, args map[string]any) (any, error) {
		gotText, _ = args["text"].(string)
		return nil, nil
	})

	conn := dialWS(t, srv)
	sendFrame(t, conn, `{"type":"chat","args":{"text":"hello"}}`)

	resp := readResponse(t, conn)
	assert.True(t, resp.OK)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "hello", gotText)
}

func TestInvalidPayloadKeepsSessionOpen(t *testing.T) {
	r, srv := newTestRouter(t)
	r.Handle("chat", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})

	conn := dialWS(t, srv)
	sendFrame(t, conn, `{"type": "chat", "args":`)

	resp := readResponse(t, conn)
	assert.False(t, resp.OK)
	assert.Equal(t, "Invalid payload format", resp.Error)

	// The session survives the bad frame.
	sendFrame(t, conn, `{"type":"chat","args":{"text":"still here"}}`)
	assert.True(t, readResponse(t, conn).OK)
}

func TestUnknownVerb(t *testing.T) {
	_, srv := newTestRouter(t)

	conn := dialWS(t, srv)
	sendFrame(t, conn, `{"type":"selfDestruct","args":{}}`)

	resp := readResponse(t, conn)
	assert.False(t, resp.OK)
	assert.Equal(t, "Unknown command type", resp.Error)
}

func TestHandlerErrorGoesOnTheWire(t *testing.T) {
	r, srv := newTestRouter(t)
	r.Handle("moveTo", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("Invalid coordinates")
	})

	conn := dialWS(t, srv)
	sendFrame(t, conn, `{"type":"moveTo","args":{"x":"nan","y":2,"z":3}}`)

	resp := readResponse(t, conn)
	assert.False(t, resp.OK)
	assert.Equal(t, "Invalid coordinates", resp.Error)
	assert.Nil(t, resp.Data)
}

func TestHandlerDataOnSuccess(t *testing.T) {
	r, srv := newTestRouter(t)
	r.Handle("gatherStatus", func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"kind": args["kind"]}, nil
	})

	conn := dialWS(t, srv)
	sendFrame(t, conn, `{"type":"gatherStatus","args":{"kind":"position"}}`)

	resp := readResponse(t, conn)
	require.True(t, resp.OK)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "position", data["kind"])
}

func TestFramesDispatchInParallel(t *testing.T) {
	r, srv := newTestRouter(t)
	release := make(chan struct{})
	r.Handle("slow", func(ctx context.Context, args map[string]any) (any, error) {
		<-release
		return "slow", nil
	})
	r.Handle("fast", func(ctx context.Context, args map[string]any) (any, error) {
		return "fast", nil
	})

	conn := dialWS(t, srv)
	sendFrame(t, conn, `{"type":"slow","args":{}}`)
	sendFrame(t, conn, `{"type":"fast","args":{}}`)

	// The fast frame answers while the slow handler is still blocked.
	first := readResponse(t, conn)
	require.True(t, first.OK)
	assert.Equal(t, "fast", first.Data)

	close(release)
	second := readResponse(t, conn)
	require.True(t, second.OK)
	assert.Equal(t, "slow", second.Data)
}

func TestSummariseArgs(t *testing.T) {
	assert.Equal(t, "{}", summariseArgs(nil))
	assert.Equal(t, `{"x":1}`, summariseArgs(map[string]any{"x": 1}))

	long := map[string]any{"text": strings.Repeat("a", 400), "zz": 1}
	summary := summariseArgs(long)
	assert.Equal(t, "keys:text,zz", summary)
}
