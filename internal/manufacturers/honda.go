package manufacturers

import "obd_diagnostics/internal/decode"

// Honda extension PIDs (Mode 22 data identifiers).
func registerHonda(r *decode.Registry) {
	for cmd, pid := range map[string]extensionPID{
		"221940": {
			name:  "IMA Battery State of Charge",
			unit:  "%",
			width: 1,
			scale: func(d []byte) float64 { return float64(d[0]) * 100.0 / 255.0 },
		},
		"221945": {
			name:  "IMA Battery Current",
			unit:  "A",
			width: 2,
			scale: func(d []byte) float64 { return wordAB(d)/10.0 - 3276.8 },
		},
		"22F40C": {
			name:  "High-Resolution Engine Speed",
			unit:  "rpm",
			width: 2,
			scale: func(d []byte) float64 { return wordAB(d) / 4.0 },
		},
	} {
		r.Register("honda", cmd, pid.decodeFunc())
	}
}
