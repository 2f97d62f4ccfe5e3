package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"obd_diagnostics/internal/models"
)

// BackupSQLite stores backup images on disk and their metadata in SQLite.
// The row is only written after the file is safely on disk.
type BackupSQLite struct {
	db  *sql.DB
	dir string
}

func NewBackupSQLite(db *sql.DB, dir string) *BackupSQLite {
	return &BackupSQLite{db: db, dir: dir}
}

var _ BackupRepo = (*BackupSQLite)(nil)

const (
	insertBackupSQL = `
		INSERT INTO ecu_backups (session_id, ecu_id, path, sha256, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	selectBackupsByEcuSQL = `
		SELECT session_id, ecu_id, path, sha256, size_bytes, created_at
		FROM ecu_backups WHERE ecu_id = ? ORDER BY created_at DESC`
	selectBackupBySessionSQL = `
		SELECT session_id, ecu_id, path, sha256, size_bytes, created_at
		FROM ecu_backups WHERE session_id = ?`
)

// Save writes the image to <dir>/<ecu>_<session>.bin and records its
// metadata. The returned artifact carries the final path.
func (r *BackupSQLite) Save(ctx context.Context, artifact models.BackupArtifact, data []byte) (models.BackupArtifact, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return artifact, fmt.Errorf("create backup dir %q: %w", r.dir, err)
	}

	artifact.Path = filepath.Join(r.dir, fmt.Sprintf("%s_%s.bin", artifact.EcuID, artifact.SessionID))
	if err := os.WriteFile(artifact.Path, data, 0o644); err != nil {
		return artifact, fmt.Errorf("write backup %q: %w", artifact.Path, err)
	}

	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	artifact.SizeBytes = int64(len(data))

	_, err := r.db.ExecContext(ctx, insertBackupSQL,
		artifact.SessionID,
		artifact.EcuID,
		artifact.Path,
		artifact.SHA256,
		artifact.SizeBytes,
		artifact.CreatedAt.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return artifact, fmt.Errorf("insert backup for session %q: %w", artifact.SessionID, err)
	}
	return artifact, nil
}

// ListByEcu returns all backups recorded for one ECU, newest first.
func (r *BackupSQLite) ListByEcu(ctx context.Context, ecuID string) ([]models.BackupArtifact, error) {
	rows, err := r.db.QueryContext(ctx, selectBackupsByEcuSQL, ecuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BackupArtifact
	for rows.Next() {
		var a models.BackupArtifact
		if err := rows.Scan(&a.SessionID, &a.EcuID, &a.Path, &a.SHA256, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get fetches the backup written during one session. Returns (nil, nil) if
// the session never reached the backup stage.
func (r *BackupSQLite) Get(ctx context.Context, sessionID string) (*models.BackupArtifact, error) {
	var a models.BackupArtifact
	err := r.db.QueryRowContext(ctx, selectBackupBySessionSQL, sessionID).
		Scan(&a.SessionID, &a.EcuID, &a.Path, &a.SHA256, &a.SizeBytes, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select backup for session %q: %w", sessionID, err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
