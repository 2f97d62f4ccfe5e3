package manufacturers

import "obd_diagnostics/internal/decode"

// Toyota extension PIDs (Mode 21). Coverage is a representative sample of
// the hybrid-system readings, not the full proprietary list.
func registerToyota(r *decode.Registry) {
	for cmd, pid := range map[string]extensionPID{
		"2101": {
			name:  "Hybrid Battery Pack Remaining",
			unit:  "%",
			width: 1,
			scale: func(d []byte) float64 { return float64(d[0]) * 100.0 / 255.0 },
		},
		"2105": {
			name:  "Hybrid Battery Temperature",
			unit:  "°C",
			width: 1,
			scale: func(d []byte) float64 { return float64(d[0]) - 40 },
		},
		"2161": {
			name:  "Inverter Coolant Temperature",
			unit:  "°C",
			width: 1,
			scale: func(d []byte) float64 { return float64(d[0]) - 40 },
		},
		"2174": {
			name:  "MG1 Motor Speed",
			unit:  "rpm",
			width: 2,
			scale: wordAB,
		},
	} {
		r.Register("toyota", cmd, pid.decodeFunc())
	}
}
