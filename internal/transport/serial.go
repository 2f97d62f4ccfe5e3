package transport

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// defaultBaudRate matches most ELM327 clones.
const defaultBaudRate = 38400

// serialTransport covers USB/serial adapters and Bluetooth SPP adapters
// exposed as an RFCOMM device node.
type serialTransport struct {
	device string
	baud   int

	mu     sync.Mutex
	port   serial.Port
	recv   chan []byte
	err    error
	closed bool
}

func newSerialTransport(device string, baud int) *serialTransport {
	if baud <= 0 {
		baud = defaultBaudRate
	}
	return &serialTransport{device: device, baud: baud}
}

func (t *serialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return fmt.Errorf("transport: already connected to %s", t.device)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := &serial.Mode{BaudRate: t.baud}
	port, err := serial.Open(t.device, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.device, err)
	}

	t.port = port
	t.recv = make(chan []byte, 16)
	t.err = nil
	t.closed = false
	go t.readLoop(port, t.recv)
	return nil
}

func (t *serialTransport) readLoop(port serial.Port, recv chan []byte) {
	buf := make([]byte, recvChunkSize)
	for {
		n, err := port.Read(buf)
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

func (t *serialTransport) terminate(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if t.closed {
		t.err = ErrLinkClosed
		return
	}
	t.err = fmt.Errorf("read %s: %w", t.device, err)
}

// closeWithError mirrors Disconnect but keeps the write error as the
// terminal cause instead of the local-close marker.
func (t *serialTransport) closeWithError(err error) {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.closed = true
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	if port != nil {
		_ = port.Close()
	}
}

func (t *serialTransport) Disconnect() error {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.closed = true
	t.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

func (t *serialTransport) Send(data []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}
	if _, err := port.Write(data); err != nil {
		werr := fmt.Errorf("write %s: %w", t.device, err)
		t.closeWithError(werr)
		return werr
	}
	return nil
}

func (t *serialTransport) Recv() <-chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recv
}

func (t *serialTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
