// Package dispatcher serializes command traffic over a single adapter link.
// It is the only writer to the transport; the frame scanner is the only
// reader. Commands are answered strictly in submission order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"obd_diagnostics/internal/decode"
	"obd_diagnostics/internal/elm"
	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/stream"
	"obd_diagnostics/internal/transport"
)

// DefaultCommandTimeout applies when no per-command timeout is given.
const DefaultCommandTimeout = 5 * time.Second

// resetTimeout gives ATZ extra room; the adapter reboots on it.
const resetTimeout = 3 * time.Second

// requestQueueSize bounds the FIFO of commands waiting for the link.
const requestQueueSize = 256

// Errors returned by Send for caller mistakes (protocol outcomes ride
// inside the OBDResponse instead).
var (
	ErrNotConnected     = errors.New("dispatcher: not connected")
	ErrAlreadyConnected = errors.New("dispatcher: already connected")
	ErrQueueFull        = errors.New("dispatcher: command queue full")
)

// AdapterInfo holds best-effort identity replies gathered during init.
type AdapterInfo struct {
	Version string `json:"version,omitempty"`
	Voltage string `json:"voltage,omitempty"`
}

// newTransport is swapped out by tests.
var newTransport = transport.New

type request struct {
	command string
	timeout time.Duration
	resp    chan models.OBDResponse
}

// Dispatcher owns the transport, the pending-command FIFO and the
// connection-status stream.
type Dispatcher struct {
	log     *logger.Logger
	decoder *decode.Decoder
	timeout time.Duration

	status *stream.Broadcaster[models.StatusUpdate]

	mu          sync.Mutex
	current     models.ConnectionStatus
	tr          transport.Transport
	frames      chan models.RawReply
	vehicleMake string
	adapter     AdapterInfo

	sendMu   sync.RWMutex
	requests chan *request
}

// New builds a disconnected dispatcher. defaultTimeout <= 0 selects
// DefaultCommandTimeout.
func New(decoder *decode.Decoder, defaultTimeout time.Duration, log *logger.Logger) *Dispatcher {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultCommandTimeout
	}
	d := &Dispatcher{
		log:     log.Named("dispatcher"),
		decoder: decoder,
		timeout: defaultTimeout,
		status:  stream.NewBroadcaster[models.StatusUpdate](),
		current: models.StatusDisconnected,
	}
	d.status.Publish(models.StatusUpdate{Status: models.StatusDisconnected})
	return d
}

// Status returns the current connection state.
func (d *Dispatcher) Status() models.ConnectionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// StatusStream subscribes to connection-status transitions. The current
// status is replayed immediately.
func (d *Dispatcher) StatusStream() (<-chan models.StatusUpdate, func()) {
	return d.status.Subscribe()
}

// Adapter returns identity info collected during the last connect.
func (d *Dispatcher) Adapter() AdapterInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adapter
}

// SetVehicleMake scopes manufacturer PID decoding for subsequent commands.
func (d *Dispatcher) SetVehicleMake(vehicleMake string) {
	d.mu.Lock()
	d.vehicleMake = vehicleMake
	d.mu.Unlock()
}

// transition mutates the connection status through the single legal path.
// A connected link never jumps back to connecting; it passes through
// disconnected or error first.
func (d *Dispatcher) transition(to models.ConnectionStatus, detail string) {
	d.mu.Lock()
	from := d.current
	if from == to || (from == models.StatusConnected && to == models.StatusConnecting) {
		d.mu.Unlock()
		return
	}
	d.current = to
	d.mu.Unlock()

	d.log.Infow("connection_status", "from", from, "to", to, "detail", detail)
	d.status.Publish(models.StatusUpdate{Status: to, Detail: detail})
}

// Connect opens the transport and runs the adapter init sequence
// (ATZ, ATE0, ATSP0). Any failed step tears the link down and transitions
// to error.
func (d *Dispatcher) Connect(ctx context.Context, cfg models.ConnectionConfig) error {
	d.mu.Lock()
	if d.current == models.StatusConnected || d.current == models.StatusConnecting {
		d.mu.Unlock()
		return ErrAlreadyConnected
	}
	d.mu.Unlock()

	d.transition(models.StatusConnecting, string(cfg.Transport)+" "+cfg.Address)

	tr, err := newTransport(cfg)
	if err != nil {
		d.transition(models.StatusError, err.Error())
		return err
	}
	if err := tr.Connect(ctx); err != nil {
		d.transition(models.StatusError, err.Error())
		return fmt.Errorf("connect transport: %w", err)
	}

	frames := make(chan models.RawReply, 16)
	requests := make(chan *request, requestQueueSize)
	scanner := elm.NewScanner()

	d.mu.Lock()
	d.tr = tr
	d.frames = frames
	d.mu.Unlock()
	d.sendMu.Lock()
	d.requests = requests
	d.sendMu.Unlock()

	go d.pumpFrames(tr, scanner, frames)
	go d.commandLoop(tr, scanner, requests, frames)

	if err := d.initAdapter(ctx); err != nil {
		d.teardown()
		d.transition(models.StatusError, err.Error())
		return err
	}

	d.transition(models.StatusConnected, "")
	return nil
}

// initAdapter runs the mandatory reset/echo-off/auto-protocol sequence and
// then a handful of best-effort settings and identity queries.
func (d *Dispatcher) initAdapter(ctx context.Context) error {
	steps := []struct {
		command string
		timeout time.Duration
	}{
		{elm.CmdReset, resetTimeout},
		{elm.CmdEchoOff, d.timeout},
		{elm.CmdAutoProtocol, d.timeout},
	}
	for _, step := range steps {
		resp, err := d.enqueue(ctx, step.command, step.timeout)
		if err != nil {
			return fmt.Errorf("init %s: %w", step.command, err)
		}
		if !resp.Success {
			return fmt.Errorf("init %s: %s", step.command, resp.Error)
		}
	}

	// Optional tidy-up settings; failures are logged, not fatal.
	for _, cmd := range []string{elm.CmdLinefeedOff, elm.CmdSpacesOff, elm.CmdHeadersOff} {
		if resp, err := d.enqueue(ctx, cmd, d.timeout); err != nil || !resp.Success {
			d.log.Warnw("adapter_setting_skipped", "command", cmd)
		}
	}

	var info AdapterInfo
	if resp, err := d.enqueue(ctx, elm.CmdVersion, d.timeout); err == nil && resp.Success {
		info.Version = resp.Raw
	}
	if resp, err := d.enqueue(ctx, elm.CmdVoltage, d.timeout); err == nil && resp.Success {
		info.Voltage = resp.Raw
	}
	d.mu.Lock()
	d.adapter = info
	d.mu.Unlock()
	return nil
}

// ResetAdapterAndReinit re-runs the init sequence on the open link, for
// recovery without a reconnect.
func (d *Dispatcher) ResetAdapterAndReinit(ctx context.Context) error {
	if d.Status() != models.StatusConnected {
		return ErrNotConnected
	}
	if err := d.initAdapter(ctx); err != nil {
		d.transition(models.StatusError, err.Error())
		return err
	}
	return nil
}

// Send issues one command with the default timeout. The returned response
// is error-flagged on timeout, sentinel replies and link loss; the error
// return is reserved for fail-fast conditions (not connected, full queue).
func (d *Dispatcher) Send(ctx context.Context, command string) (models.OBDResponse, error) {
	return d.SendWithTimeout(ctx, command, d.timeout)
}

// SendWithTimeout issues one command with an explicit reply deadline.
func (d *Dispatcher) SendWithTimeout(ctx context.Context, command string, timeout time.Duration) (models.OBDResponse, error) {
	if d.Status() != models.StatusConnected {
		return models.OBDResponse{}, ErrNotConnected
	}
	return d.enqueue(ctx, command, timeout)
}

func (d *Dispatcher) enqueue(ctx context.Context, command string, timeout time.Duration) (models.OBDResponse, error) {
	command = strings.ToUpper(strings.TrimSpace(command))
	if command == "" {
		return models.OBDResponse{}, errors.New("dispatcher: empty command")
	}
	if timeout <= 0 {
		timeout = d.timeout
	}
	req := &request{command: command, timeout: timeout, resp: make(chan models.OBDResponse, 1)}

	d.sendMu.RLock()
	requests := d.requests
	if requests == nil {
		d.sendMu.RUnlock()
		return models.OBDResponse{}, ErrNotConnected
	}
	select {
	case requests <- req:
		d.sendMu.RUnlock()
	default:
		d.sendMu.RUnlock()
		return models.OBDResponse{}, ErrQueueFull
	}

	select {
	case resp := <-req.resp:
		return resp, nil
	case <-ctx.Done():
		// The command stays queued and will still consume its reply slot,
		// preserving FIFO matching for later commands.
		return models.OBDResponse{}, ctx.Err()
	}
}

// pumpFrames is the transport stream's single reader. On link loss it
// closes the frame channel, which fails the in-flight command, and flips
// the status to error unless the disconnect was local.
func (d *Dispatcher) pumpFrames(tr transport.Transport, scanner *elm.Scanner, frames chan<- models.RawReply) {
	for chunk := range tr.Recv() {
		for _, frame := range scanner.Push(chunk, time.Now()) {
			frames <- frame
		}
	}
	close(frames)

	if err := tr.Err(); err != nil && !errors.Is(err, transport.ErrLinkClosed) {
		d.transition(models.StatusError, err.Error())
	}
}

// commandLoop executes queued commands one at a time, guaranteeing at most
// one in-flight command on the wire.
func (d *Dispatcher) commandLoop(tr transport.Transport, scanner *elm.Scanner, requests <-chan *request, frames <-chan models.RawReply) {
	linkDown := false
	for req := range requests {
		if linkDown {
			req.resp <- transportFailure(req.command, "link lost")
			continue
		}
		resp, alive := d.execute(tr, scanner, req, frames)
		linkDown = !alive
		req.resp <- resp
	}
}

func (d *Dispatcher) execute(tr transport.Transport, scanner *elm.Scanner, req *request, frames <-chan models.RawReply) (models.OBDResponse, bool) {
	// Drop stale frames from a previously timed-out command so replies
	// never cross over to the wrong request.
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return transportFailure(req.command, "link lost"), false
			}
			continue
		default:
		}
		break
	}

	scanner.NoteSent(req.command)
	if err := tr.Send([]byte(req.command + elm.Terminator)); err != nil {
		return transportFailure(req.command, err.Error()), false
	}

	timer := time.NewTimer(req.timeout)
	defer timer.Stop()

	select {
	case frame, ok := <-frames:
		if !ok {
			return transportFailure(req.command, "link lost while awaiting reply"), false
		}
		d.mu.Lock()
		vehicleMake := d.vehicleMake
		d.mu.Unlock()
		return d.decoder.Decode(vehicleMake, req.command, frame), true
	case <-timer.C:
		d.log.Warnw("command_timeout", "command", req.command, "timeout", req.timeout)
		return models.OBDResponse{
			Command: req.command,
			Error:   fmt.Sprintf("no reply within %s", req.timeout),
		}, true
	}
}

func transportFailure(command, detail string) models.OBDResponse {
	return models.OBDResponse{
		Command: command,
		Error:   "transport failure: " + detail,
	}
}

// Disconnect cancels the in-flight command and any queued ones with a
// transport error and resets the status to disconnected.
func (d *Dispatcher) Disconnect() {
	if d.Status() == models.StatusDisconnected {
		return
	}
	d.teardown()
	d.transition(models.StatusDisconnected, "")
}

func (d *Dispatcher) teardown() {
	d.sendMu.Lock()
	requests := d.requests
	d.requests = nil
	d.sendMu.Unlock()

	d.mu.Lock()
	tr := d.tr
	d.tr = nil
	d.frames = nil
	d.mu.Unlock()

	if tr != nil {
		_ = tr.Disconnect()
	}
	if requests != nil {
		close(requests)
	}
}
