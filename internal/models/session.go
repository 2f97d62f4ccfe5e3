package models

import "time"

// SessionStatus is a programming session state-machine state.
type SessionStatus string

const (
	SessionIdle           SessionStatus = "idle"
	SessionConnecting     SessionStatus = "connecting"
	SessionAuthenticating SessionStatus = "authenticating"
	SessionReading        SessionStatus = "reading"
	SessionErasing        SessionStatus = "erasing"
	SessionProgramming    SessionStatus = "programming"
	SessionVerifying      SessionStatus = "verifying"
	SessionCompleted      SessionStatus = "completed"
	SessionError          SessionStatus = "error"
	SessionCancelled      SessionStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the state.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionError || s == SessionCancelled
}

// ProgrammingSession is a snapshot published on the session stream. Owned and
// mutated only by the session engine's driver; observers get copies.
type ProgrammingSession struct {
	ID           string          `json:"id"`
	EcuID        string          `json:"ecu_id"`
	Mode         ProgrammingMode `json:"mode"`
	Status       SessionStatus   `json:"status"`
	Progress     int             `json:"progress"` // whole percent, non-decreasing
	Log          []string        `json:"log"`
	BackupPath   string          `json:"backup_path,omitempty"`
	BackupSHA256 string          `json:"backup_sha256,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      time.Time       `json:"ended_at,omitzero"`
}

// BackupArtifact is the metadata row for one backup file written before a
// destructive operation.
type BackupArtifact struct {
	SessionID string    `json:"session_id"`
	EcuID     string    `json:"ecu_id"`
	Path      string    `json:"path"`
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
