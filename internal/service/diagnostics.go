package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/repository"
)

const defaultLiveTTL = 2 * time.Second

var (
	ErrEmptyCommand = errors.New("command is empty")
	ErrNoLiveValue  = errors.New("reply carried no live value")
)

// CommandBus is the single dispatcher method diagnostics traffic needs.
type CommandBus interface {
	Send(ctx context.Context, command string) (models.OBDResponse, error)
}

// DiagnosticsService runs the standard diagnostic operations through the
// dispatcher. Recent Mode 01 readings are cached briefly so polling UIs do
// not hammer the bus for the same PID.
type DiagnosticsService struct {
	dispatcher CommandBus
	events     repository.EventRepo
	cache      *ttlcache.Cache[string, models.LiveValue]
	log        *logger.Logger
}

func NewDiagnosticsService(d CommandBus, events repository.EventRepo, liveTTL time.Duration, log *logger.Logger) *DiagnosticsService {
	if liveTTL <= 0 {
		liveTTL = defaultLiveTTL
	}
	cache := ttlcache.New[string, models.LiveValue](
		ttlcache.WithTTL[string, models.LiveValue](liveTTL),
		ttlcache.WithDisableTouchOnHit[string, models.LiveValue](),
	)
	go cache.Start()

	return &DiagnosticsService{
		dispatcher: d,
		events:     events,
		cache:      cache,
		log:        log.Named("diagnostics"),
	}
}

var _ Diagnostics = (*DiagnosticsService)(nil)

// SendCommand issues a raw command string and returns the decoded response.
func (s *DiagnosticsService) SendCommand(ctx context.Context, command string) (models.OBDResponse, error) {
	command = strings.ToUpper(strings.TrimSpace(command))
	if command == "" {
		return models.OBDResponse{}, ErrEmptyCommand
	}
	resp, err := s.dispatcher.Send(ctx, command)
	if err != nil {
		return resp, err
	}
	s.appendEvent(ctx, models.EventCommand, "command "+command, map[string]any{
		"command": command,
		"success": resp.Success,
	})
	return resp, nil
}

// ReadLiveData polls the given Mode 01 PID commands (e.g. "010C"). Fresh
// cached readings are served without touching the bus; unsupported PIDs are
// skipped. Only a fail-fast dispatcher error aborts the sweep.
func (s *DiagnosticsService) ReadLiveData(ctx context.Context, pids []string) ([]models.LiveValue, error) {
	out := make([]models.LiveValue, 0, len(pids))
	for _, pid := range pids {
		cmd := strings.ToUpper(strings.TrimSpace(pid))
		if cmd == "" {
			continue
		}
		if item := s.cache.Get(cmd); item != nil {
			out = append(out, item.Value())
			continue
		}

		resp, err := s.dispatcher.Send(ctx, cmd)
		if err != nil {
			return out, err
		}
		if resp.Unsupported {
			continue
		}
		if !resp.Success || resp.Payload == nil || resp.Payload.Live == nil {
			s.log.Warnw("live_read_failed", "command", cmd, "err", resp.Error)
			continue
		}

		value := *resp.Payload.Live
		s.cache.Set(cmd, value, ttlcache.DefaultTTL)
		out = append(out, value)
	}
	return out, nil
}

// ReadDTCs requests stored trouble codes (Mode 03).
func (s *DiagnosticsService) ReadDTCs(ctx context.Context) ([]models.DiagnosticTroubleCode, error) {
	resp, err := s.dispatcher.Send(ctx, "03")
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("read DTCs: %s", resp.Error)
	}
	var codes []models.DiagnosticTroubleCode
	if resp.Payload != nil {
		codes = resp.Payload.DTCs
	}

	names := make([]string, 0, len(codes))
	for _, c := range codes {
		names = append(names, c.Code)
	}
	s.appendEvent(ctx, models.EventDTCRead, fmt.Sprintf("read %d trouble codes", len(codes)), map[string]any{
		"codes": names,
	})
	return codes, nil
}

// ClearDTCs issues Mode 04 and reports whether the ECU acknowledged.
func (s *DiagnosticsService) ClearDTCs(ctx context.Context) (bool, error) {
	resp, err := s.dispatcher.Send(ctx, "04")
	if err != nil {
		return false, err
	}
	cleared := resp.Success && resp.Payload != nil && resp.Payload.Cleared
	if cleared {
		s.appendEvent(ctx, models.EventDTCClear, "trouble codes cleared", nil)
	} else {
		s.appendEvent(ctx, models.EventError, "clear trouble codes refused: "+resp.Error, nil)
	}
	return cleared, nil
}

// ReadVIN requests the vehicle identification number (Mode 09 PID 02).
func (s *DiagnosticsService) ReadVIN(ctx context.Context) (string, error) {
	resp, err := s.dispatcher.Send(ctx, "0902")
	if err != nil {
		return "", err
	}
	if !resp.Success || resp.Payload == nil || resp.Payload.VIN == "" {
		return "", fmt.Errorf("read VIN: %s", resp.Error)
	}
	return resp.Payload.VIN, nil
}

// ReadCalibrationID requests the ECU calibration identifier (Mode 09 PID 04).
func (s *DiagnosticsService) ReadCalibrationID(ctx context.Context) (string, error) {
	resp, err := s.dispatcher.Send(ctx, "0904")
	if err != nil {
		return "", err
	}
	if !resp.Success || resp.Payload == nil || resp.Payload.CalibrationID == "" {
		return "", fmt.Errorf("read calibration ID: %s", resp.Error)
	}
	return resp.Payload.CalibrationID, nil
}

// Close stops the cache janitor.
func (s *DiagnosticsService) Close() {
	s.cache.Stop()
}

func (s *DiagnosticsService) appendEvent(ctx context.Context, typ, msg string, meta map[string]any) {
	if err := s.events.Append(ctx, models.DiagEvent{Type: typ, Description: msg, Metadata: meta}); err != nil {
		s.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}
