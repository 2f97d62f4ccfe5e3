package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const (
	tcpDialTimeout = 10 * time.Second
	recvChunkSize  = 512
)

// tcpTransport talks to Wi-Fi adapters (typically 192.168.0.10:35000).
type tcpTransport struct {
	addr string

	mu     sync.Mutex
	conn   net.Conn
	recv   chan []byte
	err    error
	closed bool
}

func newTCPTransport(addr string) *tcpTransport {
	return &tcpTransport{addr: addr}
}

func (t *tcpTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return fmt.Errorf("transport: already connected to %s", t.addr)
	}

	d := net.Dialer{Timeout: tcpDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}

	t.conn = conn
	t.recv = make(chan []byte, 16)
	t.err = nil
	t.closed = false
	go t.readLoop(conn, t.recv)
	return nil
}

func (t *tcpTransport) readLoop(conn net.Conn, recv chan []byte) {
	buf := make([]byte, recvChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			recv <- chunk
		}
		if err != nil {
			t.terminate(err)
			close(recv)
			return
		}
	}
}

// terminate records the stream's terminal error. A cause already recorded
// by a failed write wins; only a plain local Disconnect is marked
// ErrLinkClosed.
func (t *tcpTransport) terminate(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if t.closed {
		t.err = ErrLinkClosed
		return
	}
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("transport: remote closed connection")
	}
	t.err = err
}

// closeWithError tears the link down after a failed write, recording the
// write error as the terminal cause so it is not mistaken for a local
// disconnect.
func (t *tcpTransport) closeWithError(err error) {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.closed = true
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (t *tcpTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.closed = true
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *tcpTransport) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(data); err != nil {
		// A failed write means the link is gone; tear it down so the
		// receive stream terminates as well.
		werr := fmt.Errorf("write %s: %w", t.addr, err)
		t.closeWithError(werr)
		return werr
	}
	return nil
}

func (t *tcpTransport) Recv() <-chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recv
}

func (t *tcpTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
