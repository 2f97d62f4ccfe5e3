package service

import (
	"context"
	"time"

	"obd_diagnostics/internal/dispatcher"
	"obd_diagnostics/internal/ecu"
	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/repository"
	"obd_diagnostics/internal/session"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Connection exposes adapter link control and the status stream.
type Connection interface {
	Connect(ctx context.Context, cfg models.ConnectionConfig) error
	Disconnect(ctx context.Context) error
	ResetAdapter(ctx context.Context) error
	Status() models.ConnectionStatus
	StatusStream() (<-chan models.StatusUpdate, func())
	Adapter() dispatcher.AdapterInfo
}

// Diagnostics exposes the Mode 01/03/04/09 operations and raw commands.
type Diagnostics interface {
	SendCommand(ctx context.Context, command string) (models.OBDResponse, error)
	ReadLiveData(ctx context.Context, pids []string) ([]models.LiveValue, error)
	ReadDTCs(ctx context.Context) ([]models.DiagnosticTroubleCode, error)
	ClearDTCs(ctx context.Context) (bool, error)
	ReadVIN(ctx context.Context) (string, error)
	ReadCalibrationID(ctx context.Context) (string, error)
}

// Vehicle exposes the vehicle context, ECU discovery and the manufacturer
// PID commands the context unlocks.
type Vehicle interface {
	SetContext(v models.VehicleContext)
	Context() models.VehicleContext
	DiscoverEcus(ctx context.Context) ([]models.EcuInfo, error)
	ListEcus() []models.EcuInfo
	ExtendedCommands() []string
}

// Programming exposes ECU flash sessions and their backup artifacts.
type Programming interface {
	StartSession(ecuID string, mode models.ProgrammingMode, filePath string) (models.ProgrammingSession, error)
	CancelSession(id string) error
	GetSession(id string) (models.ProgrammingSession, error)
	ListSessions() []models.ProgrammingSession
	SessionStream() (<-chan models.ProgrammingSession, func())
	ListBackups(ctx context.Context, ecuID string) ([]models.BackupArtifact, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DiagEvent, error)
}

// Deps carries everything the sub-services are wired from.
type Deps struct {
	Dispatcher *dispatcher.Dispatcher
	Scanner    *ecu.Scanner
	Engine     *session.Engine
	Registry   CommandLister
	Repos      *repository.Repository
	Log        *logger.Logger
	SigningKey string
	LiveTTL    time.Duration
}

// CommandLister is the slice of the decode registry Vehicle needs.
type CommandLister interface {
	Commands(vehicleMake string) []string
}

type Service struct {
	Connection
	Diagnostics
	Vehicle
	Programming
	EventLog
	Authorization
}

// NewService wires the dispatcher, discovery scanner, session engine and
// repository layer into concrete services.
func NewService(d Deps) *Service {
	vehicle := NewVehicleService(d.Dispatcher, d.Scanner, d.Registry, d.Repos.EventRepo, d.Log)
	return &Service{
		Connection:    NewConnectionService(d.Dispatcher, d.Repos.EventRepo, d.Log),
		Diagnostics:   NewDiagnosticsService(d.Dispatcher, d.Repos.EventRepo, d.LiveTTL, d.Log),
		Vehicle:       vehicle,
		Programming:   NewProgrammingService(d.Engine, d.Repos.BackupRepo),
		EventLog:      NewEventLogService(d.Repos.EventRepo),
		Authorization: NewAuthService(d.Repos.Auth, d.SigningKey),
	}
}
