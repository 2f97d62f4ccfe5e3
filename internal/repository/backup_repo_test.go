package repository

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"obd_diagnostics/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockBackupRepo(t *testing.T, dir string) (*BackupSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	repo := NewBackupSQLite(db, dir)
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	}
	return repo, mock, cleanup
}

func TestBackupSave_WritesFileThenRow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, mock, cleanup := newMockBackupRepo(t, dir)
	defer cleanup()

	data := []byte{0x00, 0x07, 0x0E, 0x15}
	wantPath := filepath.Join(dir, "7e0_sess-1.bin")

	mock.ExpectExec(regexp.QuoteMeta(insertBackupSQL)).
		WithArgs("sess-1", "7e0", wantPath, "abc123", int64(len(data)), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	got, err := repo.Save(ctx(t), models.BackupArtifact{
		SessionID: "sess-1",
		EcuID:     "7e0",
		SHA256:    "abc123",
	}, data)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got.Path != wantPath {
		t.Fatalf("path = %q, want %q", got.Path, wantPath)
	}
	if got.SizeBytes != int64(len(data)) {
		t.Fatalf("size = %d, want %d", got.SizeBytes, len(data))
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not set")
	}

	onDisk, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if !bytes.Equal(onDisk, data) {
		t.Fatalf("image on disk differs: %x", onDisk)
	}
}

func TestBackupSave_InsertError(t *testing.T) {
	t.Parallel()

	repo, mock, cleanup := newMockBackupRepo(t, t.TempDir())
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(insertBackupSQL)).
		WillReturnError(errors.New("db locked"))

	_, err := repo.Save(ctx(t), models.BackupArtifact{SessionID: "s", EcuID: "7e0"}, []byte{1})
	if err == nil || !contains(err.Error(), "insert backup") {
		t.Fatalf("expected insert error, got %v", err)
	}
}

func TestBackupListByEcu_NewestFirst(t *testing.T) {
	t.Parallel()

	repo, mock, cleanup := newMockBackupRepo(t, t.TempDir())
	defer cleanup()

	newer := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)

	rows := sqlmock.NewRows([]string{"session_id", "ecu_id", "path", "sha256", "size_bytes", "created_at"}).
		AddRow("s2", "7e0", "/b/7e0_s2.bin", "h2", int64(4096), newer).
		AddRow("s1", "7e0", "/b/7e0_s1.bin", "h1", int64(4096), older)

	mock.ExpectQuery(regexp.QuoteMeta(selectBackupsByEcuSQL)).
		WithArgs("7e0").
		WillReturnRows(rows)

	got, err := repo.ListByEcu(ctx(t), "7e0")
	if err != nil {
		t.Fatalf("ListByEcu: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "s2" || got[1].SessionID != "s1" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestBackupGet_NotFoundIsNilNil(t *testing.T) {
	t.Parallel()

	repo, mock, cleanup := newMockBackupRepo(t, t.TempDir())
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(selectBackupBySessionSQL)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Get(ctx(t), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil artifact, got %+v", got)
	}
}

func TestBackupGet_Found(t *testing.T) {
	t.Parallel()

	repo, mock, cleanup := newMockBackupRepo(t, t.TempDir())
	defer cleanup()

	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"session_id", "ecu_id", "path", "sha256", "size_bytes", "created_at"}).
		AddRow("s1", "7e0", "/b/7e0_s1.bin", "h1", int64(4096), created)

	mock.ExpectQuery(regexp.QuoteMeta(selectBackupBySessionSQL)).
		WithArgs("s1").
		WillReturnRows(rows)

	got, err := repo.Get(ctx(t), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.EcuID != "7e0" || got.SHA256 != "h1" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected artifact: %+v", got)
	}
}
