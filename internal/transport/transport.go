// Package transport abstracts the byte link to the OBD-II adapter. The
// dispatcher is the only writer; the frame codec is the only reader of the
// receive stream.
package transport

import (
	"context"
	"errors"
	"fmt"

	"obd_diagnostics/internal/models"
)

// ErrNotConnected is returned by Send before Connect or after Disconnect.
var ErrNotConnected = errors.New("transport: not connected")

// ErrLinkClosed marks an intentional local disconnect on the receive stream.
var ErrLinkClosed = errors.New("transport: link closed")

// Transport is one duplex byte channel to an adapter.
//
// Recv returns the receive stream: a channel of byte chunks that is closed
// on link loss or disconnect. The stream is not resumable; reconnecting
// creates a fresh one. After Recv's channel closes, Err reports the cause
// (ErrLinkClosed for a local disconnect). Send failures also terminate the
// stream, so link loss always surfaces there rather than only as a Send
// error.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(data []byte) error
	Recv() <-chan []byte
	Err() error
}

// New selects a transport implementation for the configured kind.
func New(cfg models.ConnectionConfig) (Transport, error) {
	switch cfg.Transport {
	case models.TransportWifi:
		return newTCPTransport(cfg.Address), nil
	case models.TransportUSB, models.TransportSerial:
		return newSerialTransport(cfg.Address, cfg.BaudRate), nil
	case models.TransportBluetooth:
		// Classic SPP adapters appear as a bound RFCOMM device node and
		// speak plain serial from there on.
		return newSerialTransport(cfg.Address, cfg.BaudRate), nil
	default:
		return nil, fmt.Errorf("transport: unsupported kind %q", cfg.Transport)
	}
}
