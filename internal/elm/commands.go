// Package elm holds the ELM327 wire conventions: adapter command strings,
// reply sentinels and the prompt-terminated frame codec.
package elm

import "strings"

// Adapter control commands.
const (
	CmdReset        = "ATZ"   // full adapter reset
	CmdEchoOff      = "ATE0"  // stop echoing commands back
	CmdAutoProtocol = "ATSP0" // automatic protocol selection
	CmdLinefeedOff  = "ATL0"
	CmdSpacesOff    = "ATS0"
	CmdHeadersOff   = "ATH0"
	CmdVersion      = "ATI"
	CmdVoltage      = "ATRV"
	CmdProtocolDesc = "ATDP"

	// CmdSetHeaderPrefix selects the target bus address, e.g. ATSH7E0.
	CmdSetHeaderPrefix = "ATSH"
)

// Prompt terminates every adapter reply.
const Prompt = '>'

// Terminator ends every outbound command line.
const Terminator = "\r"

// Non-hex replies the adapter can produce instead of data.
const (
	ReplyNoData          = "NO DATA"
	ReplyUnknown         = "?"
	ReplyError           = "ERROR"
	ReplyCANError        = "CAN ERROR"
	ReplyBusInit         = "BUS INIT"
	ReplySearching       = "SEARCHING..."
	ReplyStopped         = "STOPPED"
	ReplyUnableToConnect = "UNABLE TO CONNECT"
)

// IsUnsupported reports the "valid reply, unsupported PID" sentinels. These
// are a distinguishable outcome, not a transport failure.
func IsUnsupported(text string) bool {
	t := strings.TrimSpace(text)
	return t == ReplyNoData || t == ReplyUnknown
}

// IsErrorSentinel reports adapter/bus level error replies.
func IsErrorSentinel(text string) bool {
	t := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, ReplyError),
		strings.Contains(t, ReplyBusInit),
		strings.Contains(t, ReplyStopped),
		strings.Contains(t, ReplyUnableToConnect):
		return true
	}
	return false
}
