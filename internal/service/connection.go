package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"obd_diagnostics/internal/dispatcher"
	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/repository"
)

var (
	ErrAddressRequired  = errors.New("connection address is required")
	ErrUnknownTransport = errors.New("unknown transport kind")
)

// LinkController is the dispatcher surface the connection service fronts.
type LinkController interface {
	Connect(ctx context.Context, cfg models.ConnectionConfig) error
	Disconnect()
	ResetAdapterAndReinit(ctx context.Context) error
	Status() models.ConnectionStatus
	StatusStream() (<-chan models.StatusUpdate, func())
	Adapter() dispatcher.AdapterInfo
}

// ConnectionService validates connect requests and fronts the dispatcher's
// link control, recording each transition in the event log.
type ConnectionService struct {
	dispatcher LinkController
	events     repository.EventRepo
	log        *logger.Logger
}

func NewConnectionService(d LinkController, events repository.EventRepo, log *logger.Logger) *ConnectionService {
	return &ConnectionService{dispatcher: d, events: events, log: log.Named("connection")}
}

var _ Connection = (*ConnectionService)(nil)

func validateConfig(cfg models.ConnectionConfig) error {
	switch cfg.Transport {
	case models.TransportBluetooth, models.TransportWifi, models.TransportUSB, models.TransportSerial:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
	if strings.TrimSpace(cfg.Address) == "" {
		return ErrAddressRequired
	}
	return nil
}

func (s *ConnectionService) Connect(ctx context.Context, cfg models.ConnectionConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if err := s.dispatcher.Connect(ctx, cfg); err != nil {
		s.appendEvent(ctx, models.EventError, fmt.Sprintf("connect to %s failed: %v", cfg.Address, err), nil)
		return err
	}
	s.appendEvent(ctx, models.EventConnect, fmt.Sprintf("connected via %s to %s", cfg.Transport, cfg.Address), map[string]any{
		"transport": string(cfg.Transport),
		"address":   cfg.Address,
	})
	return nil
}

func (s *ConnectionService) Disconnect(ctx context.Context) error {
	s.dispatcher.Disconnect()
	s.appendEvent(ctx, models.EventDisconnect, "link closed by request", nil)
	return nil
}

// ResetAdapter re-runs the init sequence without dropping the link.
func (s *ConnectionService) ResetAdapter(ctx context.Context) error {
	return s.dispatcher.ResetAdapterAndReinit(ctx)
}

func (s *ConnectionService) Status() models.ConnectionStatus {
	return s.dispatcher.Status()
}

func (s *ConnectionService) StatusStream() (<-chan models.StatusUpdate, func()) {
	return s.dispatcher.StatusStream()
}

func (s *ConnectionService) Adapter() dispatcher.AdapterInfo {
	return s.dispatcher.Adapter()
}

// appendEvent is best effort; a full event log never blocks link control.
func (s *ConnectionService) appendEvent(ctx context.Context, typ, msg string, meta map[string]any) {
	if err := s.events.Append(ctx, models.DiagEvent{Type: typ, Description: msg, Metadata: meta}); err != nil {
		s.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}
