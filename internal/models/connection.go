package models

// TransportKind selects the physical link to the OBD-II adapter.
type TransportKind string

const (
	TransportBluetooth TransportKind = "bluetooth"
	TransportWifi      TransportKind = "wifi"
	TransportUSB       TransportKind = "usb"
	TransportSerial    TransportKind = "serial"
)

// ConnectionConfig describes one connect attempt. Immutable; built by the
// caller and consumed once.
type ConnectionConfig struct {
	Transport TransportKind `json:"transport"`
	// Address is a host:port for wifi, a device node for serial/usb and
	// for bluetooth adapters bound to an RFCOMM device (e.g. /dev/rfcomm0).
	Address  string `json:"address"`
	BaudRate int    `json:"baud_rate,omitempty"`
}

// ConnectionStatus is the dispatcher-owned link state.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// StatusUpdate is one connectionStatus stream element.
type StatusUpdate struct {
	Status ConnectionStatus `json:"status"`
	// Detail carries the error description when Status is error.
	Detail string `json:"detail,omitempty"`
}
