package decode

import (
	"testing"

	"obd_diagnostics/internal/models"
)

func TestDecodeDTC_KnownVectors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b         byte
		code         string
		system       models.DTCSystem
		manufacturer bool
	}{
		{0x01, 0x44, "P0144", models.DTCPowertrain, false},
		{0x04, 0x71, "P0471", models.DTCPowertrain, false},
		{0x13, 0x01, "P1301", models.DTCPowertrain, true},
		{0x41, 0x23, "C0123", models.DTCChassis, false},
		{0x81, 0x23, "B0123", models.DTCBody, false},
		{0xC1, 0x23, "U0123", models.DTCNetwork, false},
	}
	for _, tc := range cases {
		dtc, ok := DecodeDTC(tc.a, tc.b)
		if !ok {
			t.Fatalf("%02X%02X: unexpected end-of-list", tc.a, tc.b)
		}
		if dtc.Code != tc.code || dtc.System != tc.system || dtc.Manufacturer != tc.manufacturer {
			t.Fatalf("%02X%02X: got %+v, want %s/%s/manufacturer=%v",
				tc.a, tc.b, dtc, tc.code, tc.system, tc.manufacturer)
		}
	}
}

func TestDecodeDTC_Terminator(t *testing.T) {
	t.Parallel()

	if _, ok := DecodeDTC(0x00, 0x00); ok {
		t.Fatal("0x0000 is the end-of-list marker, not a code")
	}
}

func TestEncodeDTC_Roundtrip(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"P0144", "P0471", "P1301", "C0123", "B2AA9", "U3FFF"} {
		a, b, err := EncodeDTC(code)
		if err != nil {
			t.Fatalf("encode %s: %v", code, err)
		}
		dtc, ok := DecodeDTC(a, b)
		if !ok || dtc.Code != code {
			t.Fatalf("roundtrip %s -> %02X %02X -> %+v", code, a, b, dtc)
		}
	}
}

func TestEncodeDTC_Invalid(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"", "P014", "X0144", "P4144", "P01G4"} {
		if _, _, err := EncodeDTC(code); err == nil {
			t.Fatalf("expected error for %q", code)
		}
	}
}
