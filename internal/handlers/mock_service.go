package handlers

import (
	"context"
	"net/http"
	"time"

	"obd_diagnostics/internal/dispatcher"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockConnection struct {
	connectErr error
	status     models.ConnectionStatus
	adapter    dispatcher.AdapterInfo

	lastConfig  models.ConnectionConfig
	disconnects int
	resets      int
}

func (m *mockConnection) Connect(ctx context.Context, cfg models.ConnectionConfig) error {
	m.lastConfig = cfg
	return m.connectErr
}
func (m *mockConnection) Disconnect(ctx context.Context) error {
	m.disconnects++
	return nil
}
func (m *mockConnection) ResetAdapter(ctx context.Context) error {
	m.resets++
	return nil
}
func (m *mockConnection) Status() models.ConnectionStatus { return m.status }
func (m *mockConnection) StatusStream() (<-chan models.StatusUpdate, func()) {
	ch := make(chan models.StatusUpdate)
	return ch, func() {}
}
func (m *mockConnection) Adapter() dispatcher.AdapterInfo { return m.adapter }

type mockDiagnostics struct {
	resp     models.OBDResponse
	live     []models.LiveValue
	dtcs     []models.DiagnosticTroubleCode
	cleared  bool
	vin      string
	calID    string
	err      error
	lastCmd  string
	lastPIDs []string
}

func (m *mockDiagnostics) SendCommand(ctx context.Context, command string) (models.OBDResponse, error) {
	m.lastCmd = command
	return m.resp, m.err
}
func (m *mockDiagnostics) ReadLiveData(ctx context.Context, pids []string) ([]models.LiveValue, error) {
	m.lastPIDs = pids
	return m.live, m.err
}
func (m *mockDiagnostics) ReadDTCs(ctx context.Context) ([]models.DiagnosticTroubleCode, error) {
	return m.dtcs, m.err
}
func (m *mockDiagnostics) ClearDTCs(ctx context.Context) (bool, error) {
	return m.cleared, m.err
}
func (m *mockDiagnostics) ReadVIN(ctx context.Context) (string, error) {
	return m.vin, m.err
}
func (m *mockDiagnostics) ReadCalibrationID(ctx context.Context) (string, error) {
	return m.calID, m.err
}

type mockVehicle struct {
	context  models.VehicleContext
	ecus     []models.EcuInfo
	scanErr  error
	commands []string
}

func (m *mockVehicle) SetContext(v models.VehicleContext) { m.context = v }
func (m *mockVehicle) Context() models.VehicleContext     { return m.context }
func (m *mockVehicle) DiscoverEcus(ctx context.Context) ([]models.EcuInfo, error) {
	return m.ecus, m.scanErr
}
func (m *mockVehicle) ListEcus() []models.EcuInfo { return m.ecus }
func (m *mockVehicle) ExtendedCommands() []string { return m.commands }

type mockProgramming struct {
	session   models.ProgrammingSession
	startErr  error
	cancelErr error
	getErr    error
	sessions  []models.ProgrammingSession
	backups   []models.BackupArtifact
	listErr   error

	lastStartEcu  string
	lastStartMode models.ProgrammingMode
	lastStartPath string
	lastCancelID  string
}

func (m *mockProgramming) StartSession(ecuID string, mode models.ProgrammingMode, filePath string) (models.ProgrammingSession, error) {
	m.lastStartEcu = ecuID
	m.lastStartMode = mode
	m.lastStartPath = filePath
	return m.session, m.startErr
}
func (m *mockProgramming) CancelSession(id string) error {
	m.lastCancelID = id
	return m.cancelErr
}
func (m *mockProgramming) GetSession(id string) (models.ProgrammingSession, error) {
	return m.session, m.getErr
}
func (m *mockProgramming) ListSessions() []models.ProgrammingSession { return m.sessions }
func (m *mockProgramming) SessionStream() (<-chan models.ProgrammingSession, func()) {
	ch := make(chan models.ProgrammingSession)
	return ch, func() {}
}
func (m *mockProgramming) ListBackups(ctx context.Context, ecuID string) ([]models.BackupArtifact, error) {
	return m.backups, m.listErr
}

type mockEventLog struct {
	resp     []models.DiagEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DiagEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
