package decode

import (
	"fmt"
	"strings"

	"obd_diagnostics/internal/models"
)

var dtcSystems = [4]models.DTCSystem{
	models.DTCPowertrain,
	models.DTCChassis,
	models.DTCBody,
	models.DTCNetwork,
}

const hexDigits = "0123456789ABCDEF"

// DecodeDTC turns a two-byte Mode 03 group into a trouble code. The top two
// bits of a pick the system letter, the next two bits the second digit
// (0-3, where 1 and 3 mark manufacturer-defined ranges), and the remaining
// twelve bits format as three hex digits. 0x0000 is the end-of-list marker,
// not a code.
func DecodeDTC(a, b byte) (models.DiagnosticTroubleCode, bool) {
	if a == 0 && b == 0 {
		return models.DiagnosticTroubleCode{}, false
	}

	system := dtcSystems[(a>>6)&0x03]
	second := (a >> 4) & 0x03

	code := fmt.Sprintf("%s%d%c%c%c",
		system, second, hexDigits[a&0x0F], hexDigits[(b>>4)&0x0F], hexDigits[b&0x0F])

	return models.DiagnosticTroubleCode{
		Code:         code,
		System:       system,
		Manufacturer: second == 1 || second == 3,
		Description:  genericDTCDescriptions[code],
	}, true
}

// EncodeDTC is the inverse of DecodeDTC, used by tests and by tooling that
// replays stored codes onto the wire.
func EncodeDTC(code string) (a, b byte, err error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 5 {
		return 0, 0, fmt.Errorf("dtc %q: want 5 characters", code)
	}

	sysBits := -1
	for i, s := range dtcSystems {
		if string(s) == code[:1] {
			sysBits = i
		}
	}
	if sysBits < 0 {
		return 0, 0, fmt.Errorf("dtc %q: unknown system letter", code)
	}
	if code[1] < '0' || code[1] > '3' {
		return 0, 0, fmt.Errorf("dtc %q: second digit must be 0-3", code)
	}

	var digits [3]byte
	for i := 0; i < 3; i++ {
		idx := strings.IndexByte(hexDigits, code[2+i])
		if idx < 0 {
			return 0, 0, fmt.Errorf("dtc %q: invalid hex digit %q", code, code[2+i])
		}
		digits[i] = byte(idx)
	}

	a = byte(sysBits)<<6 | (code[1]-'0')<<4 | digits[0]
	b = digits[1]<<4 | digits[2]
	return a, b, nil
}

// genericDTCDescriptions covers the common SAE P-codes. Manufacturer codes
// get their descriptions through the extension registry instead.
var genericDTCDescriptions = map[string]string{
	"P0100": "Mass or Volume Air Flow Circuit Malfunction",
	"P0101": "Mass or Volume Air Flow Circuit Range/Performance Problem",
	"P0102": "Mass or Volume Air Flow Circuit Low Input",
	"P0103": "Mass or Volume Air Flow Circuit High Input",
	"P0105": "Manifold Absolute Pressure/Barometric Pressure Circuit Malfunction",
	"P0107": "Manifold Absolute Pressure/Barometric Pressure Circuit Low Input",
	"P0108": "Manifold Absolute Pressure/Barometric Pressure Circuit High Input",
	"P0110": "Intake Air Temperature Circuit Malfunction",
	"P0112": "Intake Air Temperature Circuit Low Input",
	"P0113": "Intake Air Temperature Circuit High Input",
	"P0115": "Engine Coolant Temperature Circuit Malfunction",
	"P0117": "Engine Coolant Temperature Circuit Low Input",
	"P0118": "Engine Coolant Temperature Circuit High Input",
	"P0120": "Throttle/Pedal Position Sensor/Switch A Circuit Malfunction",
	"P0130": "O2 Sensor Circuit Malfunction (Bank 1, Sensor 1)",
	"P0131": "O2 Sensor Circuit Low Voltage (Bank 1, Sensor 1)",
	"P0133": "O2 Sensor Circuit Slow Response (Bank 1, Sensor 1)",
	"P0135": "O2 Sensor Heater Circuit Malfunction (Bank 1, Sensor 1)",
	"P0144": "O2 Sensor Circuit High Voltage (Bank 1, Sensor 3)",
	"P0171": "System Too Lean (Bank 1)",
	"P0172": "System Too Rich (Bank 1)",
	"P0300": "Random/Multiple Cylinder Misfire Detected",
	"P0301": "Cylinder 1 Misfire Detected",
	"P0302": "Cylinder 2 Misfire Detected",
	"P0303": "Cylinder 3 Misfire Detected",
	"P0304": "Cylinder 4 Misfire Detected",
	"P0420": "Catalyst System Efficiency Below Threshold (Bank 1)",
	"P0430": "Catalyst System Efficiency Below Threshold (Bank 2)",
	"P0440": "Evaporative Emission Control System Malfunction",
	"P0442": "Evaporative Emission Control System Leak Detected (Small Leak)",
	"P0455": "Evaporative Emission Control System Leak Detected (Gross Leak)",
	"P0471": "Exhaust Pressure Sensor Range/Performance",
	"P0500": "Vehicle Speed Sensor Malfunction",
	"P0505": "Idle Control System Malfunction",
	"P0700": "Transmission Control System Malfunction",
}
