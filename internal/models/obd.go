package models

import "time"

// RawReply is one logical adapter reply: everything received up to the '>'
// prompt, control characters stripped. Multi-line replies keep their
// embedded newlines; splitting them is the decoder's job.
type RawReply struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// PayloadKind tags the decoded variant carried by an OBDResponse.
type PayloadKind string

const (
	PayloadLiveData      PayloadKind = "live_data"
	PayloadDTCList       PayloadKind = "dtc_list"
	PayloadClearDTC      PayloadKind = "clear_dtc"
	PayloadVIN           PayloadKind = "vin"
	PayloadCalibrationID PayloadKind = "calibration_id"
	PayloadPIDMask       PayloadKind = "pid_mask"
	PayloadRawHex        PayloadKind = "raw_hex"
)

// LiveValue is a scaled Mode 01 reading.
type LiveValue struct {
	PID   byte    `json:"pid"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Payload is the tagged decode result. Exactly one of the variant fields is
// set, selected by Kind.
type Payload struct {
	Kind          PayloadKind             `json:"kind"`
	Live          *LiveValue              `json:"live,omitempty"`
	DTCs          []DiagnosticTroubleCode `json:"dtcs,omitempty"`
	Cleared       bool                    `json:"cleared,omitempty"`
	VIN           string                  `json:"vin,omitempty"`
	CalibrationID string                  `json:"calibration_id,omitempty"`
	PIDs          []byte                  `json:"pids,omitempty"`
	Bytes         []byte                  `json:"bytes,omitempty"`
}

// OBDResponse pairs a command with its decoded reply. Immutable once built.
// Success=false covers timeouts, transport loss, sentinel replies and decode
// failures; Error holds the description and Raw keeps the adapter text for
// diagnostics.
type OBDResponse struct {
	Command     string    `json:"command"`
	Raw         string    `json:"raw"`
	ReceivedAt  time.Time `json:"received_at"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Unsupported bool      `json:"unsupported,omitempty"` // NO DATA / '?' reply
	Payload     *Payload  `json:"payload,omitempty"`
}

// DTCSystem is the first character of a trouble code.
type DTCSystem string

const (
	DTCPowertrain DTCSystem = "P"
	DTCChassis    DTCSystem = "C"
	DTCBody       DTCSystem = "B"
	DTCNetwork    DTCSystem = "U"
)

// DiagnosticTroubleCode is a decoded Mode 03 entry, e.g. P0144.
type DiagnosticTroubleCode struct {
	Code   string    `json:"code"`
	System DTCSystem `json:"system"`
	// Manufacturer is true for manufacturer-defined ranges (second
	// character 1 or 3), false for generic SAE codes.
	Manufacturer bool   `json:"manufacturer"`
	Description  string `json:"description,omitempty"`
}
