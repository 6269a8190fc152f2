package transport

import (
	"context"
	"sync"
)

// MemoryConn is an in-process Conn whose frames are delivered synchronously
// to its peer's OnMessage callback. Tests use pairs of MemoryConns to drive
// the bridge and router without sockets.
type MemoryConn struct {
	mu       sync.Mutex
	peer     *MemoryConn
	cb       Callbacks
	closed   bool
	sent     [][]byte
	received [][]byte
}

// NewMemoryPair returns two connected MemoryConns. Bind callbacks on each
// side before sending.
func NewMemoryPair() (*MemoryConn, *MemoryConn) {
	a := &MemoryConn{}
	b := &MemoryConn{}
	a.peer = b
	b.peer = a
	return a, b
}

// Bind installs the callbacks that receive this side's inbound frames.
func (c *MemoryConn) Bind(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

// Send delivers the frame to the peer's OnMessage callback synchronously and
// records it for inspection.
func (c *MemoryConn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.sent = append(c.sent, buf)
	peer := c.peer
	c.mu.Unlock()

	peer.mu.Lock()
	onMsg := peer.cb.OnMessage
	closed := peer.closed
	if !closed {
		peer.received = append(peer.received, buf)
	}
	peer.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if onMsg != nil {
		onMsg(buf)
	}
	return nil
}

// Sent returns a copy of every frame written on this side.
func (c *MemoryConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Received returns a copy of every frame delivered to this side.
func (c *MemoryConn) Received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.received))
	copy(out, c.received)
	return out
}

func (c *MemoryConn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *MemoryConn) Terminate() {
	c.shutdown(ErrClosed)
}

// shutdown closes both ends and fires each side's OnClose exactly once.
func (c *MemoryConn) shutdown(err error) {
	for _, side := range []*MemoryConn{c, c.peer} {
		side.mu.Lock()
		if side.closed {
			side.mu.Unlock()
			continue
		}
		side.closed = true
		onClose := side.cb.OnClose
		side.mu.Unlock()
		if onClose != nil {
			onClose(err)
		}
	}
}

// MemoryDialer hands out the client end of a fresh MemoryConn pair per Dial
// and exposes the matching server ends for inspection.
type MemoryDialer struct {
	mu      sync.Mutex
	dialErr error
	servers []*MemoryConn
}

// SetDialError makes subsequent Dial calls fail with err (nil restores
// normal behaviour).
func (d *MemoryDialer) SetDialError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

// Dial creates a connected pair, binds cb to the client end, and keeps the
// server end for the test to drive.
func (d *MemoryDialer) Dial(ctx context.Context, _ string, cb Callbacks) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.dialErr != nil {
		err := d.dialErr
		d.mu.Unlock()
		return nil, err
	}
	client, server := NewMemoryPair()
	client.Bind(cb)
	d.servers = append(d.servers, server)
	d.mu.Unlock()
	return client, nil
}

// DialCount reports how many Dial calls succeeded.
func (d *MemoryDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.servers)
}

// Server returns the server end of the i-th successful dial, or nil.
func (d *MemoryDialer) Server(i int) *MemoryConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.servers) {
		return nil
	}
	return d.servers[i]
}

// LastServer returns the server end of the most recent dial, or nil.
func (d *MemoryDialer) LastServer() *MemoryConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.servers) == 0 {
		return nil
	}
	return d.servers[len(d.servers)-1]
}
