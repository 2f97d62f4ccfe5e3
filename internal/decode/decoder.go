// Package decode turns raw adapter replies into typed OBD responses. All
// functions are pure: malformed input yields an error-flagged response with
// the raw text preserved, never a panic.
package decode

import (
	"encoding/hex"
	"fmt"
	"strings"

	"obd_diagnostics/internal/elm"
	"obd_diagnostics/internal/models"
)

// Decoder interprets replies for standard modes and dispatches registered
// manufacturer extensions first.
type Decoder struct {
	registry *Registry
}

// NewDecoder wires a decoder to an extension registry. A nil registry is
// treated as empty.
func NewDecoder(registry *Registry) *Decoder {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Decoder{registry: registry}
}

// Registry exposes the extension registry for manufacturer packages.
func (d *Decoder) Registry() *Registry { return d.registry }

// Decode produces the OBDResponse for a command/reply pair. vehicleMake
// scopes which manufacturer extensions apply; empty means standard only.
func (d *Decoder) Decode(vehicleMake, command string, reply models.RawReply) models.OBDResponse {
	command = strings.ToUpper(strings.TrimSpace(command))

	if fn, ok := d.registry.Lookup(vehicleMake, command); ok {
		return fn(command, reply)
	}

	resp := models.OBDResponse{
		Command:    command,
		Raw:        reply.Text,
		ReceivedAt: reply.ReceivedAt,
	}

	if elm.IsUnsupported(reply.Text) {
		resp.Unsupported = true
		resp.Error = "PID not supported or no data available"
		return resp
	}
	if elm.IsErrorSentinel(reply.Text) {
		resp.Error = fmt.Sprintf("adapter error: %s", strings.TrimSpace(reply.Text))
		return resp
	}

	if strings.HasPrefix(command, "AT") {
		resp.Success = true
		return resp
	}

	payload, err := hexPayload(reply.Text)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	if len(payload) == 0 {
		resp.Error = "empty reply"
		return resp
	}

	if payload[0] == 0x7F {
		return d.decodeNegative(resp, payload)
	}

	switch {
	case strings.HasPrefix(command, "01"):
		return d.decodeMode01(resp, command, payload)
	case command == "03":
		return d.decodeMode03(resp, reply.Text)
	case command == "04":
		return d.decodeMode04(resp, payload)
	case command == "0902" || command == "0904":
		return d.decodeMode09ASCII(resp, command, reply.Text)
	default:
		resp.Success = true
		resp.Payload = &models.Payload{Kind: models.PayloadRawHex, Bytes: payload}
		return resp
	}
}

// decodeNegative handles ISO negative responses (0x7F, service, NRC).
func (d *Decoder) decodeNegative(resp models.OBDResponse, payload []byte) models.OBDResponse {
	if len(payload) >= 3 {
		resp.Error = fmt.Sprintf("negative response: service %02X rejected with code %02X", payload[1], payload[2])
	} else {
		resp.Error = "negative response"
	}
	if len(payload) >= 2 && payload[1] == 0x04 {
		resp.Payload = &models.Payload{Kind: models.PayloadClearDTC, Cleared: false}
	}
	return resp
}

func (d *Decoder) decodeMode01(resp models.OBDResponse, command string, payload []byte) models.OBDResponse {
	if len(command) < 4 {
		resp.Error = fmt.Sprintf("command %q too short for mode 01", command)
		return resp
	}
	pidBytes, err := hex.DecodeString(command[2:4])
	if err != nil {
		resp.Error = fmt.Sprintf("invalid PID in command %q", command)
		return resp
	}
	pid := pidBytes[0]

	if len(payload) < 2 || payload[0] != 0x41 || payload[1] != pid {
		resp.Error = fmt.Sprintf("reply header %X does not match command %s", payload, command)
		return resp
	}
	data := payload[2:]

	// Supported-PID bitmaps (0100, 0120, 0140, ...).
	if pid%0x20 == 0 {
		return d.decodePIDMask(resp, pid, data)
	}

	spec, known := mode01PIDs[pid]
	if !known {
		resp.Success = true
		resp.Payload = &models.Payload{Kind: models.PayloadRawHex, Bytes: data}
		return resp
	}
	if len(data) < spec.Width {
		resp.Error = fmt.Sprintf("PID %02X: got %d data bytes, want %d", pid, len(data), spec.Width)
		return resp
	}

	value := spec.Scale(data[:spec.Width])
	if value < spec.Min || value > spec.Max {
		resp.Error = fmt.Sprintf("PID %02X: value %.2f outside range [%.2f, %.2f]", pid, value, spec.Min, spec.Max)
		return resp
	}

	resp.Success = true
	resp.Payload = &models.Payload{
		Kind: models.PayloadLiveData,
		Live: &models.LiveValue{PID: pid, Name: spec.Name, Value: value, Unit: spec.Unit},
	}
	return resp
}

func (d *Decoder) decodePIDMask(resp models.OBDResponse, basePID byte, data []byte) models.OBDResponse {
	if len(data) < 4 {
		resp.Error = fmt.Sprintf("PID %02X: bitmap needs 4 bytes, got %d", basePID, len(data))
		return resp
	}
	var pids []byte
	for byteIdx := 0; byteIdx < 4; byteIdx++ {
		for bit := 0; bit < 8; bit++ {
			if data[byteIdx]&(0x80>>bit) != 0 {
				pids = append(pids, basePID+byte(byteIdx*8+bit)+1)
			}
		}
	}
	resp.Success = true
	resp.Payload = &models.Payload{Kind: models.PayloadPIDMask, PIDs: pids}
	return resp
}

// decodeMode03 walks every physical line of a (possibly multi-frame) DTC
// dump. Each line carries its own 0x43 header; CAN replies insert a count
// byte before the two-byte groups, K-line replies do not — an odd byte
// count after the header tells them apart.
func (d *Decoder) decodeMode03(resp models.OBDResponse, text string) models.OBDResponse {
	var codes []models.DiagnosticTroubleCode

	for _, line := range strings.Split(text, "\n") {
		payload, err := hexPayload(line)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		if len(payload) == 0 {
			continue
		}
		if payload[0] != 0x43 {
			resp.Error = fmt.Sprintf("mode 03 line %q: missing 43 header", strings.TrimSpace(line))
			return resp
		}
		groups := payload[1:]
		if len(groups)%2 == 1 {
			// leading count byte (ISO 15765 format)
			groups = groups[1:]
		}
		for i := 0; i+1 < len(groups); i += 2 {
			if dtc, ok := DecodeDTC(groups[i], groups[i+1]); ok {
				codes = append(codes, dtc)
			}
		}
	}

	resp.Success = true
	resp.Payload = &models.Payload{Kind: models.PayloadDTCList, DTCs: codes}
	return resp
}

func (d *Decoder) decodeMode04(resp models.OBDResponse, payload []byte) models.OBDResponse {
	if payload[0] != 0x44 {
		resp.Error = fmt.Sprintf("clear DTC reply %X: expected 44 echo", payload)
		resp.Payload = &models.Payload{Kind: models.PayloadClearDTC, Cleared: false}
		return resp
	}
	resp.Success = true
	resp.Payload = &models.Payload{Kind: models.PayloadClearDTC, Cleared: true}
	return resp
}

// decodeMode09ASCII reassembles multi-line Mode 09 text replies: PID 02 is
// the 17-character VIN, PID 04 the calibration ID.
func (d *Decoder) decodeMode09ASCII(resp models.OBDResponse, command, text string) models.OBDResponse {
	pid := byte(0x02)
	if command == "0904" {
		pid = 0x04
	}

	var ascii []byte
	for _, line := range strings.Split(text, "\n") {
		payload, err := hexPayload(line)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		if len(payload) >= 3 && payload[0] == 0x49 && payload[1] == pid {
			payload = payload[3:] // header + sequence counter
		}
		for _, b := range payload {
			if b >= 0x20 && b < 0x7f {
				ascii = append(ascii, b)
			}
		}
	}
	value := strings.TrimSpace(string(ascii))
	if value == "" {
		resp.Error = "no printable characters in reply"
		return resp
	}
	resp.Success = true
	if pid == 0x04 {
		resp.Payload = &models.Payload{Kind: models.PayloadCalibrationID, CalibrationID: value}
	} else {
		resp.Payload = &models.Payload{Kind: models.PayloadVIN, VIN: value}
	}
	return resp
}

// hexPayload flattens a reply into bytes, rejecting odd digit counts and
// non-hex characters.
func hexPayload(text string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\t' {
			return -1
		}
		return r
	}, text)
	if compact == "" {
		return nil, nil
	}
	if len(compact)%2 == 1 {
		return nil, fmt.Errorf("malformed hex reply %q: odd digit count", strings.TrimSpace(text))
	}
	payload, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("malformed hex reply %q: %v", strings.TrimSpace(text), err)
	}
	return payload, nil
}
