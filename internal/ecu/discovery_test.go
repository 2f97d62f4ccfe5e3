package ecu

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/models"
)

// fakeBus answers identifier reads for a configured set of addresses.
type fakeBus struct {
	mu      sync.Mutex
	header  string
	modules map[string]fakeModule
	// flaky addresses fail the first identity read and answer the retry
	flaky     map[string]bool
	attempted map[string]int
}

type fakeModule struct {
	part         string
	version      string
	programmable bool
}

func (f *fakeBus) Send(ctx context.Context, command string) (models.OBDResponse, error) {
	return f.SendWithTimeout(ctx, command, time.Second)
}

func (f *fakeBus) SendWithTimeout(ctx context.Context, command string, _ time.Duration) (models.OBDResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasPrefix(command, "ATSH") {
		f.header = strings.TrimPrefix(command, "ATSH")
		return models.OBDResponse{Command: command, Success: true}, nil
	}

	mod, present := f.modules[f.header]
	noData := models.OBDResponse{Command: command, Unsupported: true, Error: "no data"}

	record := func(text string) (models.OBDResponse, error) {
		b := []byte{0x62, 0x00, 0x00}
		b = append(b, []byte(text)...)
		return models.OBDResponse{
			Command: command,
			Success: true,
			Payload: &models.Payload{Kind: models.PayloadRawHex, Bytes: b},
		}, nil
	}

	switch command {
	case "22F187":
		if !present {
			return noData, nil
		}
		if f.flaky[f.header] {
			f.attempted[f.header]++
			if f.attempted[f.header] == 1 {
				return noData, nil
			}
		}
		return record(mod.part)
	case "22F188":
		if !present || mod.version == "" {
			return noData, nil
		}
		return record(mod.version)
	case "22F18A":
		if !present || !mod.programmable {
			return noData, nil
		}
		return record("BOOT-1")
	}
	return noData, nil
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		modules: map[string]fakeModule{
			"7E0": {part: "89661-02K50", version: "1.4.2", programmable: true},
			"7E4": {part: "44510-47060", version: "2.0.0", programmable: false},
		},
		flaky:     map[string]bool{},
		attempted: map[string]int{},
	}
}

func TestScan_FindsRespondingModules(t *testing.T) {
	bus := newFakeBus()
	s := NewScanner(bus, logger.Get(logger.InfoLevel))

	found, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found %d modules, want 2: %+v", len(found), found)
	}

	engine, ok := s.Lookup("7e0")
	if !ok {
		t.Fatal("engine module missing from inventory")
	}
	if engine.PartNumber != "89661-02K50" || engine.SoftwareVersion != "1.4.2" {
		t.Fatalf("identifiers wrong: %+v", engine)
	}
	if engine.Category != models.EcuEngine {
		t.Fatalf("category = %s", engine.Category)
	}
	if !engine.ProgrammingSupported || !engine.SupportsMode(models.ModeBootloader) {
		t.Fatalf("engine module should be flashable incl. bootloader: %+v", engine)
	}

	abs, ok := s.Lookup("7E4")
	if !ok {
		t.Fatal("abs module missing (lookup must be case-insensitive)")
	}
	if abs.ProgrammingSupported {
		t.Fatalf("module without boot identifier must not be flashable: %+v", abs)
	}
}

func TestScan_RetriesFlakyIdentityRead(t *testing.T) {
	bus := newFakeBus()
	bus.flaky["7E0"] = true
	s := NewScanner(bus, logger.Get(logger.InfoLevel))

	found, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, ok := s.Lookup("7e0"); !ok {
		t.Fatalf("flaky module should be found on retry, got %+v", found)
	}
}

func TestScan_ReplacesInventory(t *testing.T) {
	bus := newFakeBus()
	s := NewScanner(bus, logger.Get(logger.InfoLevel))

	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if s.ScannedAt().IsZero() {
		t.Fatal("ScannedAt not recorded")
	}

	// The ABS module disappears from the bus; the next scan must drop it.
	bus.mu.Lock()
	delete(bus.modules, "7E4")
	bus.mu.Unlock()

	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if _, ok := s.Lookup("7e4"); ok {
		t.Fatal("stale module survived a rescan")
	}
	if got := len(s.List()); got != 1 {
		t.Fatalf("inventory size = %d, want 1", got)
	}
}

func TestScan_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScanner(newFakeBus(), logger.Get(logger.InfoLevel))
	if _, err := s.Scan(ctx); err == nil {
		t.Fatal("cancelled context must abort the sweep")
	}
}
