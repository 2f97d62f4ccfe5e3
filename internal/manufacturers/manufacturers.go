// Package manufacturers ships sample extension PID decoders. Each make
// registers decode functions for its Mode 21/22 commands; the active
// vehicle context decides which set applies.
package manufacturers

import (
	"encoding/hex"
	"fmt"
	"strings"

	"obd_diagnostics/internal/decode"
	"obd_diagnostics/internal/elm"
	"obd_diagnostics/internal/models"
)

// RegisterAll installs every bundled manufacturer set.
func RegisterAll(r *decode.Registry) {
	registerToyota(r)
	registerHonda(r)
}

// extensionPID describes one proprietary reading: the reply must echo the
// request with 0x40 added to the mode byte, then carry width data bytes.
type extensionPID struct {
	name  string
	unit  string
	width int
	scale func(data []byte) float64
}

// decodeFunc builds a decode.Func that validates the echoed header and
// scales the data bytes. Sentinel and malformed replies come back
// error-flagged, matching the standard decoder's contract.
func (p extensionPID) decodeFunc() decode.Func {
	return func(command string, reply models.RawReply) models.OBDResponse {
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
			resp.Error = "adapter error: " + strings.TrimSpace(reply.Text)
			return resp
		}

		payload, err := hex.DecodeString(strings.Map(dropSpace, reply.Text))
		if err != nil || len(payload) == 0 {
			resp.Error = fmt.Sprintf("malformed reply %q", strings.TrimSpace(reply.Text))
			return resp
		}

		want, err := hex.DecodeString(command)
		if err != nil || len(want) == 0 {
			resp.Error = fmt.Sprintf("invalid extension command %q", command)
			return resp
		}
		want[0] += 0x40

		if len(payload) < len(want)+p.width {
			resp.Error = fmt.Sprintf("reply %X too short for %s", payload, p.name)
			return resp
		}
		for i, b := range want {
			if payload[i] != b {
				resp.Error = fmt.Sprintf("reply header %X does not match command %s", payload[:len(want)], command)
				return resp
			}
		}

		data := payload[len(want) : len(want)+p.width]
		resp.Success = true
		resp.Payload = &models.Payload{
			Kind: models.PayloadLiveData,
			Live: &models.LiveValue{PID: want[len(want)-1], Name: p.name, Value: p.scale(data), Unit: p.unit},
		}
		return resp
	}
}

func dropSpace(r rune) rune {
	if r == ' ' || r == '\n' || r == '\t' {
		return -1
	}
	return r
}

func wordAB(data []byte) float64 { return float64(int(data[0])<<8 | int(data[1])) }
