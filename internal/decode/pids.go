package decode

// pidSpec describes how to interpret one Mode 01 parameter: payload width,
// scaling formula, unit and the plausible value range.
type pidSpec struct {
	Name  string
	Width int
	Unit  string
	Scale func(data []byte) float64
	Min   float64
	Max   float64
}

func byteA(d []byte) float64 { return float64(d[0]) }

func wordAB(d []byte) float64 { return float64(d[0])*256 + float64(d[1]) }

// mode01PIDs is the standard PID table. Unknown PIDs fall through to a raw
// hex payload.
var mode01PIDs = map[byte]pidSpec{
	0x04: {Name: "Engine Load", Width: 1, Unit: "%",
		Scale: func(d []byte) float64 { return byteA(d) * 100 / 255 }, Min: 0, Max: 100},
	0x05: {Name: "Coolant Temp", Width: 1, Unit: "°C",
		Scale: func(d []byte) float64 { return byteA(d) - 40 }, Min: -40, Max: 215},
	0x06: {Name: "Short Fuel Trim Bank 1", Width: 1, Unit: "%",
		Scale: func(d []byte) float64 { return (byteA(d) - 128) * 100 / 128 }, Min: -100, Max: 99.2},
	0x07: {Name: "Long Fuel Trim Bank 1", Width: 1, Unit: "%",
		Scale: func(d []byte) float64 { return (byteA(d) - 128) * 100 / 128 }, Min: -100, Max: 99.2},
	0x0A: {Name: "Fuel Pressure", Width: 1, Unit: "kPa",
		Scale: func(d []byte) float64 { return byteA(d) * 3 }, Min: 0, Max: 765},
	0x0B: {Name: "Intake Pressure", Width: 1, Unit: "kPa",
		Scale: byteA, Min: 0, Max: 255},
	// Formula ceiling is 16383.75 but nothing road-going revs past 10k.
	0x0C: {Name: "Engine RPM", Width: 2, Unit: "rpm",
		Scale: func(d []byte) float64 { return wordAB(d) / 4 }, Min: 0, Max: 10000},
	0x0D: {Name: "Vehicle Speed", Width: 1, Unit: "km/h",
		Scale: byteA, Min: 0, Max: 255},
	0x0F: {Name: "Intake Air Temp", Width: 1, Unit: "°C",
		Scale: func(d []byte) float64 { return byteA(d) - 40 }, Min: -40, Max: 215},
	0x10: {Name: "MAF Rate", Width: 2, Unit: "g/s",
		Scale: func(d []byte) float64 { return wordAB(d) / 100 }, Min: 0, Max: 655.35},
	0x11: {Name: "Throttle Position", Width: 1, Unit: "%",
		Scale: func(d []byte) float64 { return byteA(d) * 100 / 255 }, Min: 0, Max: 100},
	0x1F: {Name: "Runtime Since Start", Width: 2, Unit: "s",
		Scale: wordAB, Min: 0, Max: 65535},
	0x21: {Name: "Distance With MIL", Width: 2, Unit: "km",
		Scale: wordAB, Min: 0, Max: 65535},
	0x2F: {Name: "Fuel Level", Width: 1, Unit: "%",
		Scale: func(d []byte) float64 { return byteA(d) * 100 / 255 }, Min: 0, Max: 100},
	0x33: {Name: "Barometric Pressure", Width: 1, Unit: "kPa",
		Scale: byteA, Min: 0, Max: 255},
	0x42: {Name: "Control Module Voltage", Width: 2, Unit: "V",
		Scale: func(d []byte) float64 { return wordAB(d) / 1000 }, Min: 0, Max: 65.535},
	0x51: {Name: "Fuel Type", Width: 1, Unit: "enum",
		Scale: byteA, Min: 0, Max: 255},
}
