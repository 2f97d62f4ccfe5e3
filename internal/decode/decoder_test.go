package decode

import (
	"strings"
	"testing"
	"time"

	"obd_diagnostics/internal/models"
)

func reply(text string) models.RawReply {
	return models.RawReply{Text: text, ReceivedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func decodeStd(t *testing.T, command, text string) models.OBDResponse {
	t.Helper()
	return NewDecoder(nil).Decode("", command, reply(text))
}

func TestDecode_Mode01_RPM(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "010C", "41 0C 1A F8")
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	live := resp.Payload.Live
	if live == nil {
		t.Fatal("expected live payload")
	}
	if live.Value != 1726.0 {
		t.Fatalf("RPM = %v, want 1726.0", live.Value)
	}
	if live.Unit != "rpm" || live.PID != 0x0C {
		t.Fatalf("unexpected live value %+v", live)
	}
}

func TestDecode_Mode01_CoolantTemp(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "0105", "41 05 7B")
	if !resp.Success || resp.Payload.Live == nil {
		t.Fatalf("decode failed: %+v", resp)
	}
	if got := resp.Payload.Live.Value; got != 83 {
		t.Fatalf("coolant = %v, want 83", got)
	}
}

func TestDecode_Mode01_HeaderMismatch(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "010C", "41 0D 3C")
	if resp.Success {
		t.Fatal("mismatched PID echo must fail")
	}
	if resp.Raw != "41 0D 3C" {
		t.Fatalf("raw text must be preserved, got %q", resp.Raw)
	}
}

func TestDecode_Mode01_ValueOutOfRange(t *testing.T) {
	t.Parallel()

	// Vehicle speed max is 255 by width, so use engine load: one byte scaled
	// to 0..100; any byte is in range, so probe the RPM upper bound instead.
	resp := decodeStd(t, "010C", "41 0C FF FF")
	if resp.Success {
		t.Fatal("16383.75 rpm is outside the plausible range and must fail")
	}
}

func TestDecode_Mode01_SupportedBitmap(t *testing.T) {
	t.Parallel()

	// BE 1F A8 13: bits name PIDs 01,02,03,04,06,07,08,0B..10,13,15,18,1C,1F,20.
	resp := decodeStd(t, "0100", "41 00 BE 1F A8 13")
	if !resp.Success || resp.Payload.Kind != models.PayloadPIDMask {
		t.Fatalf("bitmap decode failed: %+v", resp)
	}
	pids := resp.Payload.PIDs
	if len(pids) == 0 || pids[0] != 0x01 {
		t.Fatalf("first supported PID should be 01, got %v", pids)
	}
	// 0x20 (bit 32) is set in 0x13, signalling the next bitmap page.
	if pids[len(pids)-1] != 0x20 {
		t.Fatalf("last supported PID should be 20, got %v", pids)
	}
}

func TestDecode_Mode03_CANCountByte(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "03", "43 02 01 44 04 71")
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	codes := resp.Payload.DTCs
	if len(codes) != 2 {
		t.Fatalf("expected 2 codes, got %+v", codes)
	}
	if codes[0].Code != "P0144" || codes[1].Code != "P0471" {
		t.Fatalf("got %s, %s; want P0144, P0471", codes[0].Code, codes[1].Code)
	}
	if codes[0].Description == "" {
		t.Fatalf("P0144 should carry a generic description")
	}
}

func TestDecode_Mode03_ZeroPairsSkipped(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "03", "43 01 44 00 00 00 00")
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	codes := resp.Payload.DTCs
	if len(codes) != 1 || codes[0].Code != "P0144" {
		t.Fatalf("padding pairs must be skipped, got %+v", codes)
	}
}

func TestDecode_Mode03_MultiLine(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "03", "43 04 01 44 04 71 03 00\n43 01 35 00 00 00 00")
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	var got []string
	for _, c := range resp.Payload.DTCs {
		got = append(got, c.Code)
	}
	want := "P0144 P0471 P0300 P0135"
	if strings.Join(got, " ") != want {
		t.Fatalf("got %v, want %s", got, want)
	}
}

func TestDecode_Mode03_NoCodes(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "03", "43 00 00 00 00 00 00")
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	if len(resp.Payload.DTCs) != 0 {
		t.Fatalf("expected empty code list, got %+v", resp.Payload.DTCs)
	}
}

func TestDecode_Mode04_Success(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "04", "44")
	if !resp.Success || !resp.Payload.Cleared {
		t.Fatalf("clear ack not recognized: %+v", resp)
	}
}

func TestDecode_Mode04_NegativeResponse(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "04", "7F 04 12")
	if resp.Success {
		t.Fatal("negative response must not be success")
	}
	if resp.Payload == nil || resp.Payload.Cleared {
		t.Fatalf("refused clear must report cleared=false: %+v", resp.Payload)
	}
	if !strings.Contains(resp.Error, "12") {
		t.Fatalf("error should carry the NRC, got %q", resp.Error)
	}
}

func TestDecode_NoData(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "015C", "NO DATA")
	if resp.Success || !resp.Unsupported {
		t.Fatalf("NO DATA must flag unsupported: %+v", resp)
	}
}

func TestDecode_ErrorSentinel(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "0100", "UNABLE TO CONNECT")
	if resp.Success || resp.Unsupported {
		t.Fatalf("bus error must be an error, not unsupported: %+v", resp)
	}
}

func TestDecode_MalformedHex(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"41 0C 1", "41 0G 00"} {
		resp := decodeStd(t, "010C", text)
		if resp.Success {
			t.Fatalf("%q must fail decoding", text)
		}
		if resp.Raw != text {
			t.Fatalf("raw text must be preserved, got %q", resp.Raw)
		}
	}
}

func TestDecode_ATPassthrough(t *testing.T) {
	t.Parallel()

	resp := decodeStd(t, "ATRV", "12.3V")
	if !resp.Success || resp.Raw != "12.3V" {
		t.Fatalf("AT replies pass through raw: %+v", resp)
	}
}

func TestDecode_VIN(t *testing.T) {
	t.Parallel()

	text := "49 02 01 31 47 31 4A 43\n49 02 02 35 34 34 34 52\n49 02 03 37 32 35 32 33 36 37"
	resp := decodeStd(t, "0902", text)
	if !resp.Success {
		t.Fatalf("VIN decode failed: %q", resp.Error)
	}
	if got := resp.Payload.VIN; got != "1G1JC5444R7252367" {
		t.Fatalf("VIN = %q", got)
	}
}

func TestDecode_CalibrationID(t *testing.T) {
	t.Parallel()

	text := "49 04 01 33 39 38 39 36 38 33 32"
	resp := decodeStd(t, "0904", text)
	if !resp.Success {
		t.Fatalf("calibration decode failed: %q", resp.Error)
	}
	if resp.Payload.Kind != models.PayloadCalibrationID {
		t.Fatalf("kind = %q", resp.Payload.Kind)
	}
	if got := resp.Payload.CalibrationID; got != "39896832" {
		t.Fatalf("calibration ID = %q", got)
	}
}

func TestDecode_RegistryDispatch(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("Toyota", "2101", func(command string, rep models.RawReply) models.OBDResponse {
		return models.OBDResponse{Command: command, Raw: rep.Text, Success: true}
	})
	d := NewDecoder(r)

	if resp := d.Decode("toyota", "2101", reply("61 01 80")); !resp.Success {
		t.Fatalf("registered make/command must use the extension: %+v", resp)
	}
	// Other makes fall through to standard decoding, which treats 2101 as raw hex.
	resp := d.Decode("honda", "2101", reply("61 01 80"))
	if !resp.Success || resp.Payload == nil || resp.Payload.Kind != models.PayloadRawHex {
		t.Fatalf("unregistered make must fall through: %+v", resp)
	}
}
