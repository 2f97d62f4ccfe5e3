package repository

import (
	"context"
	"database/sql"
	"time"

	"obd_diagnostics/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.DiagEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.DiagEvent, error)
}

type BackupRepo interface {
	Save(ctx context.Context, artifact models.BackupArtifact, data []byte) (models.BackupArtifact, error)
	ListByEcu(ctx context.Context, ecuID string) ([]models.BackupArtifact, error)
	Get(ctx context.Context, sessionID string) (*models.BackupArtifact, error)
}

type Repository struct {
	EventRepo  EventRepo
	BackupRepo BackupRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB, backupDir string) *Repository {
	return &Repository{
		EventRepo:  NewEventSQLite(db),
		BackupRepo: NewBackupSQLite(db, backupDir),
		Auth:       NewUserRepository(db),
	}
}
