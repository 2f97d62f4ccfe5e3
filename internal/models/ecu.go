package models

// EcuCategory classifies a control unit by function.
type EcuCategory string

const (
	EcuEngine       EcuCategory = "engine"
	EcuTransmission EcuCategory = "transmission"
	EcuABS          EcuCategory = "abs"
	EcuAirbag       EcuCategory = "airbag"
	EcuBody         EcuCategory = "body"
	EcuClimate      EcuCategory = "climate"
	EcuInfotainment EcuCategory = "infotainment"
	EcuHybrid       EcuCategory = "hybrid"
	EcuOther        EcuCategory = "other"
)

// ProgrammingMode names a supported flash mode for an ECU.
type ProgrammingMode string

const (
	ModeNormal      ProgrammingMode = "normal"
	ModeProgramming ProgrammingMode = "programming"
	ModeDiagnostic  ProgrammingMode = "diagnostic"
	ModeBootloader  ProgrammingMode = "bootloader"
)

// EcuInfo describes one discovered control unit. The inventory is valid
// until the next discovery scan replaces it.
type EcuInfo struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Category             EcuCategory       `json:"category"`
	BusAddress           string            `json:"bus_address"`
	PartNumber           string            `json:"part_number,omitempty"`
	SoftwareVersion      string            `json:"software_version,omitempty"`
	ProgrammingSupported bool              `json:"programming_supported"`
	ProgrammingModes     []ProgrammingMode `json:"programming_modes,omitempty"`
}

// SupportsMode reports whether the ECU advertises the given mode.
func (e EcuInfo) SupportsMode(m ProgrammingMode) bool {
	for _, have := range e.ProgrammingModes {
		if have == m {
			return true
		}
	}
	return false
}

// VehicleContext scopes manufacturer PID registry entries; the registry
// contents themselves come from the manufacturer packages.
type VehicleContext struct {
	Make  string `json:"make"`
	Model string `json:"model,omitempty"`
	Year  int    `json:"year,omitempty"`
}
