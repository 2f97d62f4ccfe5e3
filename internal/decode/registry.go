package decode

import (
	"strings"
	"sync"

	"obd_diagnostics/internal/models"
)

// Func decodes one manufacturer-specific reply. Implementations live in the
// manufacturer packages; the decoder only dispatches by command string.
type Func func(command string, reply models.RawReply) models.OBDResponse

// Registry maps (make, PID command) to a decode function. The active
// vehicle context decides which make's entries apply; the decoder falls
// through to standard decoding when no entry matches.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]map[string]Func
}

// NewRegistry returns an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]map[string]Func)}
}

// Register binds a decode function to a manufacturer PID command. Later
// registrations for the same key win.
func (r *Registry) Register(vehicleMake, command string, fn Func) {
	mk := normalizeKey(vehicleMake)
	cmd := normalizeKey(command)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[mk] == nil {
		r.entries[mk] = make(map[string]Func)
	}
	r.entries[mk][cmd] = fn
}

// Lookup returns the decode function for the command under the given make.
func (r *Registry) Lookup(vehicleMake, command string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byCmd, ok := r.entries[normalizeKey(vehicleMake)]
	if !ok {
		return nil, false
	}
	fn, ok := byCmd[normalizeKey(command)]
	return fn, ok
}

// Commands lists the registered PID commands for a make, for discovery UIs.
func (r *Registry) Commands(vehicleMake string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for cmd := range r.entries[normalizeKey(vehicleMake)] {
		out = append(out, cmd)
	}
	return out
}

func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
