package models

import "time"

// Diagnostic event types recorded in the event log.
const (
	EventConnect    = "CONNECT"
	EventDisconnect = "DISCONNECT"
	EventCommand    = "COMMAND"
	EventDTCRead    = "DTC_READ"
	EventDTCClear   = "DTC_CLEAR"
	EventDiscovery  = "DISCOVERY"
	EventSession    = "SESSION"
	EventError      = "ERROR"
)

// DiagEvent is a single event-log entry.
type DiagEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
