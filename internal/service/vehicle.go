package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/repository"
)

// MakeScoper re-scopes manufacturer PID decoding on the dispatcher.
type MakeScoper interface {
	SetVehicleMake(vehicleMake string)
}

// EcuInventory is the discovery scanner surface the vehicle service fronts.
type EcuInventory interface {
	Scan(ctx context.Context) ([]models.EcuInfo, error)
	List() []models.EcuInfo
}

// VehicleService owns the active vehicle context and fronts ECU discovery.
// Setting the context re-scopes manufacturer PID decoding on the dispatcher.
type VehicleService struct {
	dispatcher MakeScoper
	scanner    EcuInventory
	registry   CommandLister
	events     repository.EventRepo
	log        *logger.Logger

	mu      sync.RWMutex
	context models.VehicleContext
}

func NewVehicleService(d MakeScoper, scanner EcuInventory, registry CommandLister, events repository.EventRepo, log *logger.Logger) *VehicleService {
	return &VehicleService{
		dispatcher: d,
		scanner:    scanner,
		registry:   registry,
		events:     events,
		log:        log.Named("vehicle"),
	}
}

var _ Vehicle = (*VehicleService)(nil)

// SetContext installs the active vehicle and scopes decoding to its make.
func (s *VehicleService) SetContext(v models.VehicleContext) {
	v.Make = strings.TrimSpace(v.Make)
	s.mu.Lock()
	s.context = v
	s.mu.Unlock()
	s.dispatcher.SetVehicleMake(v.Make)
	s.log.Infow("vehicle_context_set", "make", v.Make, "model", v.Model, "year", v.Year)
}

func (s *VehicleService) Context() models.VehicleContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.context
}

// DiscoverEcus runs a bus scan and records the result in the event log.
func (s *VehicleService) DiscoverEcus(ctx context.Context) ([]models.EcuInfo, error) {
	found, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	addresses := make([]string, 0, len(found))
	for _, info := range found {
		addresses = append(addresses, info.BusAddress)
	}
	if err := s.events.Append(ctx, models.DiagEvent{
		Type:        models.EventDiscovery,
		Description: fmt.Sprintf("discovery found %d modules", len(found)),
		Metadata:    map[string]any{"addresses": addresses},
	}); err != nil {
		s.log.Warnw("event_append_failed", "type", models.EventDiscovery, "err", err)
	}
	return found, nil
}

// ListEcus returns the inventory from the last completed scan.
func (s *VehicleService) ListEcus() []models.EcuInfo {
	return s.scanner.List()
}

// ExtendedCommands lists the manufacturer PID commands the current vehicle
// context unlocks, sorted for stable output.
func (s *VehicleService) ExtendedCommands() []string {
	s.mu.RLock()
	mk := s.context.Make
	s.mu.RUnlock()
	if mk == "" {
		return nil
	}
	cmds := s.registry.Commands(mk)
	sort.Strings(cmds)
	return cmds
}
