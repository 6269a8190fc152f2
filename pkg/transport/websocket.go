package transport

import (
	"context"
	"sync"

	"github.com/coder/websocket"
)

// WebsocketDialer dials text-frame WebSocket connections and pumps inbound
// frames into the supplied callbacks.
type WebsocketDialer struct{}

// Dial connects to url and starts the read loop. The returned Conn is ready
// for Send immediately.
func (WebsocketDialer) Dial(ctx context.Context, url string, cb Callbacks) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	wc := &wsConn{conn: c}
	go wc.readLoop(cb)
	return wc, nil
}

// WrapServerConn adapts an accepted server-side WebSocket into a Conn and
// starts its read loop. Used by tests that stand in for the planner service.
func WrapServerConn(c *websocket.Conn, cb Callbacks) Conn {
	wc := &wsConn{conn: c}
	go wc.readLoop(cb)
	return wc
}

type wsConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// readLoop delivers frames until the connection errors out, then fires
// OnClose exactly once.
func (w *wsConn) readLoop(cb Callbacks) {
	for {
		_, data, err := w.conn.Read(context.Background())
		if err != nil {
			w.mu.Lock()
			w.closed = true
			w.mu.Unlock()
			if cb.OnClose != nil {
				cb.OnClose(err)
			}
			return
		}
		if cb.OnMessage != nil {
			cb.OnMessage(data)
		}
	}
}

func (w *wsConn) Send(ctx context.Context, data []byte) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}

func (w *wsConn) Terminate() {
	_ = w.conn.CloseNow()
}
