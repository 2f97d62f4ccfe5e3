// Package ecu discovers control units on the vehicle bus and keeps the
// inventory the programming engine validates against.
package ecu

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/models"
)

// CommandRunner is the dispatcher surface discovery needs.
type CommandRunner interface {
	Send(ctx context.Context, command string) (models.OBDResponse, error)
	SendWithTimeout(ctx context.Context, command string, timeout time.Duration) (models.OBDResponse, error)
}

const probeTimeout = 2 * time.Second

// probeTargets are the 11-bit functional request addresses scanned in
// order. The offset from 7E0 conventionally hints at the module type.
var probeTargets = []struct {
	address  string
	name     string
	category models.EcuCategory
}{
	{"7E0", "Engine Control Module", models.EcuEngine},
	{"7E1", "Transmission Control Module", models.EcuTransmission},
	{"7E2", "Hybrid Control Module", models.EcuHybrid},
	{"7E3", "Body Control Module", models.EcuBody},
	{"7E4", "ABS Control Module", models.EcuABS},
	{"7E5", "Airbag Control Module", models.EcuAirbag},
	{"7E6", "Climate Control Module", models.EcuClimate},
	{"7E7", "Infotainment Module", models.EcuInfotainment},
	{"7E8", "Auxiliary Module A", models.EcuOther},
	{"7E9", "Auxiliary Module B", models.EcuOther},
	{"7EA", "Auxiliary Module C", models.EcuOther},
	{"7EB", "Auxiliary Module D", models.EcuOther},
}

// Scanner probes the bus and maintains the discovered inventory. Lookup
// and List serve the last completed scan until the next one replaces it.
type Scanner struct {
	runner CommandRunner
	log    *logger.Logger

	mu        sync.RWMutex
	inventory map[string]models.EcuInfo
	scannedAt time.Time
}

// NewScanner returns a scanner with an empty inventory.
func NewScanner(runner CommandRunner, log *logger.Logger) *Scanner {
	return &Scanner{
		runner:    runner,
		log:       log.Named("discovery"),
		inventory: make(map[string]models.EcuInfo),
	}
}

// Scan probes every candidate address and atomically replaces the
// inventory with what responded. Silent addresses are simply absent; a
// scan error only aborts the sweep on context cancellation.
func (s *Scanner) Scan(ctx context.Context) ([]models.EcuInfo, error) {
	found := make(map[string]models.EcuInfo)

	for _, target := range probeTargets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, ok := s.probe(ctx, target.address, target.name, target.category)
		if !ok {
			continue
		}
		found[info.ID] = info
		s.log.Infow("ecu_found", "address", info.BusAddress, "name", info.Name, "part", info.PartNumber)
	}

	s.mu.Lock()
	s.inventory = found
	s.scannedAt = time.Now().UTC()
	s.mu.Unlock()

	s.log.Infof("discovery scan complete: %d modules", len(found))
	return s.List(), nil
}

// probe addresses one candidate and reads its identifiers. A module that
// answers the part-number read is considered present; version and mode
// capabilities are best effort on top.
func (s *Scanner) probe(ctx context.Context, address, name string, category models.EcuCategory) (models.EcuInfo, bool) {
	if _, err := s.runner.SendWithTimeout(ctx, "ATSH"+address, probeTimeout); err != nil {
		return models.EcuInfo{}, false
	}

	// Bus arbitration can eat the first request after a header change, so
	// the identity read gets one retry before the address is declared
	// silent.
	part, err := retry.DoWithData(
		func() (string, error) {
			return s.readIdentifier(ctx, 0xF187)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return models.EcuInfo{}, false
	}

	info := models.EcuInfo{
		ID:         strings.ToLower(address),
		Name:       name,
		Category:   category,
		BusAddress: address,
		PartNumber: part,
	}

	if version, err := s.readIdentifier(ctx, 0xF188); err == nil {
		info.SoftwareVersion = version
	}

	// A module that exposes its boot software identifier accepts
	// reprogramming requests.
	if _, err := s.readIdentifier(ctx, 0xF18A); err == nil {
		info.ProgrammingSupported = true
		info.ProgrammingModes = []models.ProgrammingMode{
			models.ModeNormal,
			models.ModeProgramming,
		}
		if category == models.EcuEngine || category == models.EcuTransmission {
			info.ProgrammingModes = append(info.ProgrammingModes, models.ModeBootloader)
		}
	}

	return info, true
}

// readIdentifier issues a UDS ReadDataByIdentifier (service 22) and
// returns the ASCII portion of the record.
func (s *Scanner) readIdentifier(ctx context.Context, id uint16) (string, error) {
	cmd := fmt.Sprintf("22%04X", id)
	resp, err := s.runner.SendWithTimeout(ctx, cmd, probeTimeout)
	if err != nil {
		return "", err
	}
	if !resp.Success || resp.Payload == nil {
		return "", fmt.Errorf("identifier %04X: %s", id, resp.Error)
	}
	b := resp.Payload.Bytes
	if len(b) < 4 || b[0] != 0x62 {
		return "", fmt.Errorf("identifier %04X: unexpected reply %q", id, resp.Raw)
	}
	var ascii []byte
	for _, c := range b[3:] {
		if c >= 0x20 && c < 0x7f {
			ascii = append(ascii, c)
		}
	}
	text := strings.TrimSpace(string(ascii))
	if text == "" {
		return "", fmt.Errorf("identifier %04X: empty record", id)
	}
	return text, nil
}

// Lookup resolves one ECU id against the current inventory.
func (s *Scanner) Lookup(id string) (models.EcuInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.inventory[strings.ToLower(strings.TrimSpace(id))]
	return info, ok
}

// List returns the current inventory sorted by bus address.
func (s *Scanner) List() []models.EcuInfo {
	s.mu.RLock()
	out := make([]models.EcuInfo, 0, len(s.inventory))
	for _, info := range s.inventory {
		out = append(out, info)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].BusAddress < out[j].BusAddress })
	return out
}

// ScannedAt reports when the inventory was last refreshed; zero means no
// scan has run yet.
func (s *Scanner) ScannedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scannedAt
}
