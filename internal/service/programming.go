package service

import (
	"context"

	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/repository"
	"obd_diagnostics/internal/session"
)

// ProgrammingService fronts the session engine and the backup archive. The
// engine does its own request validation; this layer only adds backup
// queries over the repository.
type ProgrammingService struct {
	engine  *session.Engine
	backups repository.BackupRepo
}

func NewProgrammingService(engine *session.Engine, backups repository.BackupRepo) *ProgrammingService {
	return &ProgrammingService{engine: engine, backups: backups}
}

var _ Programming = (*ProgrammingService)(nil)

func (s *ProgrammingService) StartSession(ecuID string, mode models.ProgrammingMode, filePath string) (models.ProgrammingSession, error) {
	return s.engine.Start(ecuID, mode, filePath)
}

func (s *ProgrammingService) CancelSession(id string) error {
	return s.engine.Cancel(id)
}

func (s *ProgrammingService) GetSession(id string) (models.ProgrammingSession, error) {
	return s.engine.Get(id)
}

func (s *ProgrammingService) ListSessions() []models.ProgrammingSession {
	return s.engine.List()
}

func (s *ProgrammingService) SessionStream() (<-chan models.ProgrammingSession, func()) {
	return s.engine.Stream()
}

func (s *ProgrammingService) ListBackups(ctx context.Context, ecuID string) ([]models.BackupArtifact, error) {
	return s.backups.ListByEcu(ctx, ecuID)
}
