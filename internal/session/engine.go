// Package session drives ECU programming: a strict forward state machine
// (connecting → authenticating → reading → erasing → programming →
// verifying → completed) with error and cancelled as the only escapes.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/stream"
)

// Validation failures returned synchronously by Start, before any session
// exists.
var (
	ErrUnknownECU      = errors.New("session: unknown ECU")
	ErrNotProgrammable = errors.New("session: ECU does not support programming")
	ErrModeUnsupported = errors.New("session: ECU does not support requested mode")
	ErrFileUnreadable  = errors.New("session: programming file missing or unreadable")
	ErrSessionNotFound = errors.New("session: no such session")
	ErrSessionFinished = errors.New("session: already in a terminal state")
)

// CommandRunner is the slice of the dispatcher the engine needs. All
// session traffic serializes through it in FIFO order with everything else.
type CommandRunner interface {
	Send(ctx context.Context, command string) (models.OBDResponse, error)
	SendWithTimeout(ctx context.Context, command string, timeout time.Duration) (models.OBDResponse, error)
}

// EcuDirectory resolves ECU ids against the latest discovery inventory.
type EcuDirectory interface {
	Lookup(id string) (models.EcuInfo, bool)
}

// BackupStore persists the pre-erase backup artifact (file plus metadata).
type BackupStore interface {
	Save(ctx context.Context, artifact models.BackupArtifact, data []byte) (models.BackupArtifact, error)
}

// EventSink records session milestones in the diagnostic event log.
type EventSink interface {
	Append(ctx context.Context, e models.DiagEvent) error
}

const (
	backupChunkSize  = 1024
	backupChunkCount = 4
	flashBlockSize   = 256
	eraseTimeout     = 30 * time.Second
	flashBaseAddress = 0x00000000
)

// Engine owns all programming sessions and their snapshot stream.
type Engine struct {
	runner  CommandRunner
	ecus    EcuDirectory
	backups BackupStore
	events  EventSink
	log     *logger.Logger
	stream  *stream.Broadcaster[models.ProgrammingSession]

	mu      sync.Mutex
	drivers map[string]*driver
}

// NewEngine wires the session engine to its collaborators.
func NewEngine(runner CommandRunner, ecus EcuDirectory, backups BackupStore, events EventSink, log *logger.Logger) *Engine {
	return &Engine{
		runner:  runner,
		ecus:    ecus,
		backups: backups,
		events:  events,
		log:     log.Named("session"),
		stream:  stream.NewBroadcaster[models.ProgrammingSession](),
		drivers: make(map[string]*driver),
	}
}

// Stream subscribes to session snapshots. Every state transition and
// progress update is one element, so a replay reconstructs full history.
func (e *Engine) Stream() (<-chan models.ProgrammingSession, func()) {
	return e.stream.Subscribe()
}

// Start validates the request and, only if everything checks out, creates a
// session in connecting and launches its driver goroutine.
func (e *Engine) Start(ecuID string, mode models.ProgrammingMode, filePath string) (models.ProgrammingSession, error) {
	ecu, ok := e.ecus.Lookup(ecuID)
	if !ok {
		return models.ProgrammingSession{}, fmt.Errorf("%w: %s", ErrUnknownECU, ecuID)
	}
	if !ecu.ProgrammingSupported {
		return models.ProgrammingSession{}, fmt.Errorf("%w: %s", ErrNotProgrammable, ecuID)
	}
	if !ecu.SupportsMode(mode) {
		return models.ProgrammingSession{}, fmt.Errorf("%w: %s does not support %s", ErrModeUnsupported, ecuID, mode)
	}
	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		return models.ProgrammingSession{}, fmt.Errorf("%w: %s", ErrFileUnreadable, filePath)
	}

	drv := &driver{
		engine:   e,
		ecu:      ecu,
		filePath: filePath,
		snap: models.ProgrammingSession{
			ID:        uuid.NewString(),
			EcuID:     ecu.ID,
			Mode:      mode,
			Status:    models.SessionConnecting,
			StartedAt: time.Now().UTC(),
		},
	}

	e.mu.Lock()
	e.drivers[drv.snap.ID] = drv
	e.mu.Unlock()

	e.log.Infow("session_started", "session", drv.snap.ID, "ecu", ecu.ID, "mode", mode)
	drv.publish()
	go drv.run(context.Background())

	return drv.Snapshot(), nil
}

// Get returns the current snapshot for a session id.
func (e *Engine) Get(id string) (models.ProgrammingSession, error) {
	e.mu.Lock()
	drv, ok := e.drivers[id]
	e.mu.Unlock()
	if !ok {
		return models.ProgrammingSession{}, ErrSessionNotFound
	}
	return drv.Snapshot(), nil
}

// List returns snapshots of all known sessions.
func (e *Engine) List() []models.ProgrammingSession {
	e.mu.Lock()
	drivers := make([]*driver, 0, len(e.drivers))
	for _, drv := range e.drivers {
		drivers = append(drivers, drv)
	}
	e.mu.Unlock()

	out := make([]models.ProgrammingSession, 0, len(drivers))
	for _, drv := range drivers {
		out = append(out, drv.Snapshot())
	}
	return out
}

// Cancel requests cooperative cancellation. The driver honors it at the
// next checkpoint, never abandoning a partially written chunk.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	drv, ok := e.drivers[id]
	e.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if drv.Snapshot().Status.Terminal() {
		return ErrSessionFinished
	}
	drv.cancelRequested.Store(true)
	e.log.Infow("session_cancel_requested", "session", id)
	return nil
}

// Close shuts the snapshot stream down.
func (e *Engine) Close() {
	e.stream.Close()
}

// driver owns one session's state; everything mutates through its mutex and
// is published as value snapshots.
type driver struct {
	engine          *Engine
	ecu             models.EcuInfo
	filePath        string
	cancelRequested atomic.Bool

	mu   sync.Mutex
	snap models.ProgrammingSession
}

// Snapshot returns a defensive copy for observers.
func (d *driver) Snapshot() models.ProgrammingSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.copyLocked()
}

func (d *driver) copyLocked() models.ProgrammingSession {
	s := d.snap
	s.Log = append([]string(nil), d.snap.Log...)
	return s
}

func (d *driver) publish() {
	d.mu.Lock()
	s := d.copyLocked()
	d.mu.Unlock()
	d.engine.stream.Publish(s)
}

func (d *driver) setStatus(status models.SessionStatus) {
	d.mu.Lock()
	d.snap.Status = status
	if status.Terminal() {
		d.snap.EndedAt = time.Now().UTC()
	}
	d.mu.Unlock()
	d.publish()
}

// setProgress only ever raises the value; each raise is one publish.
func (d *driver) setProgress(pct int) {
	d.mu.Lock()
	if pct <= d.snap.Progress {
		d.mu.Unlock()
		return
	}
	d.snap.Progress = pct
	d.mu.Unlock()
	d.publish()
}

func (d *driver) logf(format string, args ...any) {
	entry := fmt.Sprintf(format, args...)
	d.mu.Lock()
	d.snap.Log = append(d.snap.Log, entry)
	d.mu.Unlock()
	d.publish()

	_ = d.engine.events.Append(context.Background(), models.DiagEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventSession,
		Description: entry,
		Metadata:    map[string]any{"session_id": d.snap.ID, "ecu_id": d.ecu.ID},
	})
}

// checkpoint reports whether the driver should stop; called only between
// atomic sub-steps.
func (d *driver) checkpoint() bool {
	return d.cancelRequested.Load()
}

func (d *driver) fail(stage string, err error) {
	d.mu.Lock()
	d.snap.Error = err.Error()
	d.mu.Unlock()
	d.logf("%s failed: %v", stage, err)
	d.setStatus(models.SessionError)
	d.engine.log.Errorw("session_failed", "session", d.snap.ID, "stage", stage, "err", err)
}

func (d *driver) cancelled(stage string) {
	d.logf("cancelled during %s", stage)
	d.setStatus(models.SessionCancelled)
}

// run executes the full workflow. Backup always precedes the first
// destructive step, and verification failure keeps the backup reference so
// a restore can be offered.
func (d *driver) run(ctx context.Context) {
	if err := d.connectPhase(ctx); err != nil {
		d.fail("connect", err)
		return
	}
	d.setProgress(5)
	if d.checkpoint() {
		d.cancelled("connect")
		return
	}

	d.setStatus(models.SessionAuthenticating)
	if err := d.authenticatePhase(ctx); err != nil {
		d.fail("security access", err)
		return
	}
	d.setProgress(10)
	if d.checkpoint() {
		d.cancelled("security access")
		return
	}

	d.setStatus(models.SessionReading)
	if err := d.backupPhase(ctx); err != nil {
		d.fail("backup", err)
		return
	}
	if d.checkpoint() {
		d.cancelled("backup")
		return
	}

	d.setStatus(models.SessionErasing)
	if err := d.erasePhase(ctx); err != nil {
		d.fail("erase", err)
		return
	}
	d.setProgress(55)
	if d.checkpoint() {
		d.cancelled("erase")
		return
	}

	d.setStatus(models.SessionProgramming)
	image, done, err := d.programPhase(ctx)
	if err != nil {
		d.fail("programming", err)
		return
	}
	if !done {
		d.cancelled("programming")
		return
	}

	d.setStatus(models.SessionVerifying)
	if err := d.verifyPhase(ctx, image); err != nil {
		d.fail("verify", err)
		return
	}

	d.setProgress(100)
	d.logf("programming completed")
	d.setStatus(models.SessionCompleted)
	d.engine.log.Infow("session_completed", "session", d.snap.ID, "ecu", d.ecu.ID)
}

func (d *driver) connectPhase(ctx context.Context) error {
	if _, err := d.expect(ctx, elmSetHeader(d.ecu.BusAddress), 0); err != nil {
		return err
	}
	// UDS diagnostic session control: programming session.
	if _, err := d.expect(ctx, "1002", 0); err != nil {
		return err
	}
	d.logf("entered programming session on %s", d.ecu.BusAddress)
	return nil
}

func (d *driver) authenticatePhase(ctx context.Context) error {
	seedResp, err := d.expect(ctx, "2701", 0)
	if err != nil {
		return err
	}
	seed, err := seedFromReply(seedResp)
	if err != nil {
		return err
	}
	key := securityKey(seed)
	if _, err := d.expect(ctx, fmt.Sprintf("2702%04X", key), 0); err != nil {
		return err
	}
	// Suppress DTC setting while the flash is open.
	if _, err := d.expect(ctx, "8502", 0); err != nil {
		return err
	}
	d.logf("security access granted")
	return nil
}

func (d *driver) backupPhase(ctx context.Context) error {
	var data []byte
	for i := 0; i < backupChunkCount; i++ {
		if d.checkpoint() {
			// Leave via the caller's checkpoint so the current chunk is
			// never half-recorded.
			return nil
		}
		addr := flashBaseAddress + i*backupChunkSize
		resp, err := d.expect(ctx, fmt.Sprintf("23%08X%04X", addr, backupChunkSize), 0)
		if err != nil {
			return fmt.Errorf("read chunk %d: %w", i+1, err)
		}
		chunk, err := memoryFromReply(resp)
		if err != nil {
			return fmt.Errorf("read chunk %d: %w", i+1, err)
		}
		data = append(data, chunk...)
		d.setProgress(10 + (i+1)*30/backupChunkCount)
	}

	sum := sha256.Sum256(data)
	artifact, err := d.engine.backups.Save(ctx, models.BackupArtifact{
		SessionID: d.snap.ID,
		EcuID:     d.ecu.ID,
		SHA256:    hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}, data)
	if err != nil {
		return fmt.Errorf("store backup: %w", err)
	}

	d.mu.Lock()
	d.snap.BackupPath = artifact.Path
	d.snap.BackupSHA256 = artifact.SHA256
	d.mu.Unlock()
	d.logf("backup stored at %s (%d bytes)", artifact.Path, artifact.SizeBytes)
	d.setProgress(45)
	return nil
}

func (d *driver) erasePhase(ctx context.Context) error {
	// Routine control: start erase routine. Erasing is slow; give it its
	// own generous deadline.
	if _, err := d.expect(ctx, "310101FF00", eraseTimeout); err != nil {
		return err
	}
	d.logf("flash memory erased")
	return nil
}

// programPhase streams the image in fixed blocks. done=false means a
// cancellation was honored at a block boundary.
func (d *driver) programPhase(ctx context.Context) (image []byte, done bool, err error) {
	image, err = os.ReadFile(d.filePath)
	if err != nil {
		return nil, false, fmt.Errorf("read programming file: %w", err)
	}
	if len(image) == 0 {
		return nil, false, errors.New("programming file is empty")
	}

	if _, err := d.expect(ctx, fmt.Sprintf("3400%08X%08X", flashBaseAddress, len(image)), 0); err != nil {
		return nil, false, fmt.Errorf("request download: %w", err)
	}

	blocks := (len(image) + flashBlockSize - 1) / flashBlockSize
	for i := 0; i < blocks; i++ {
		start := i * flashBlockSize
		end := min(start+flashBlockSize, len(image))
		block := image[start:end]

		cmd := fmt.Sprintf("36%02X%s", byte(i+1), strings.ToUpper(hex.EncodeToString(block)))
		if _, err := d.expect(ctx, cmd, 0); err != nil {
			return nil, false, fmt.Errorf("transfer block %d/%d: %w", i+1, blocks, err)
		}
		d.setProgress(55 + (i+1)*35/blocks)

		// The block just written is complete; this is the safe point to
		// honor a cancel request.
		if d.checkpoint() {
			d.logf("cancel honored after block %d/%d", i+1, blocks)
			return image, false, nil
		}
	}

	if _, err := d.expect(ctx, "37", 0); err != nil {
		return nil, false, fmt.Errorf("transfer exit: %w", err)
	}
	d.logf("transferred %d blocks", blocks)
	return image, true, nil
}

// verifyPhase reads the programmed region back and compares checksums. A
// mismatch is an integrity failure: the session ends in error with the
// backup reference retained for a restore.
func (d *driver) verifyPhase(ctx context.Context, image []byte) error {
	var readback []byte
	chunks := (len(image) + backupChunkSize - 1) / backupChunkSize
	for i := 0; i < chunks; i++ {
		start := i * backupChunkSize
		size := min(backupChunkSize, len(image)-start)
		resp, err := d.expect(ctx, fmt.Sprintf("23%08X%04X", flashBaseAddress+start, size), 0)
		if err != nil {
			return fmt.Errorf("verify read %d: %w", i+1, err)
		}
		chunk, err := memoryFromReply(resp)
		if err != nil {
			return fmt.Errorf("verify read %d: %w", i+1, err)
		}
		readback = append(readback, chunk...)
		d.setProgress(90 + (i+1)*8/chunks)
	}

	want := sha256.Sum256(image)
	got := sha256.Sum256(readback)
	if want != got {
		return fmt.Errorf("checksum mismatch: wrote %x, read back %x", want[:8], got[:8])
	}
	d.logf("verification passed")
	return nil
}

// expect sends a command and treats any non-success response as an error.
func (d *driver) expect(ctx context.Context, command string, timeout time.Duration) (models.OBDResponse, error) {
	var (
		resp models.OBDResponse
		err  error
	)
	if timeout > 0 {
		resp, err = d.engine.runner.SendWithTimeout(ctx, command, timeout)
	} else {
		resp, err = d.engine.runner.Send(ctx, command)
	}
	if err != nil {
		return resp, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("command %s: %s", command, resp.Error)
	}
	return resp, nil
}

func elmSetHeader(busAddress string) string {
	return "ATSH" + strings.ToUpper(strings.TrimSpace(busAddress))
}

// seedFromReply extracts the 16-bit seed from a 67 01 xx xx reply.
func seedFromReply(resp models.OBDResponse) (uint16, error) {
	if resp.Payload == nil || len(resp.Payload.Bytes) < 4 {
		return 0, fmt.Errorf("seed reply %q too short", resp.Raw)
	}
	b := resp.Payload.Bytes
	if b[0] != 0x67 || b[1] != 0x01 {
		return 0, fmt.Errorf("unexpected seed reply %q", resp.Raw)
	}
	return binary.BigEndian.Uint16(b[2:4]), nil
}

// memoryFromReply strips the 0x63 positive-response byte from a memory
// read.
func memoryFromReply(resp models.OBDResponse) ([]byte, error) {
	if resp.Payload == nil || len(resp.Payload.Bytes) < 2 {
		return nil, fmt.Errorf("memory reply %q too short", resp.Raw)
	}
	b := resp.Payload.Bytes
	if b[0] != 0x63 {
		return nil, fmt.Errorf("memory reply %q: expected 63 header", resp.Raw)
	}
	return b[1:], nil
}

// securityKey derives the response key from a seed. Placeholder transform:
// real key algorithms are manufacturer secrets and out of scope.
func securityKey(seed uint16) uint16 {
	return (seed ^ 0x5555) + 0x1234
}
