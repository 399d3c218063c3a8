package types

import "time"

type SupervisorState string

const (
	StateDiscovering SupervisorState = "discovering"
	StateConnected   SupervisorState = "connected"
	StateClosing     SupervisorState = "closing"
	StateStopped     SupervisorState = "stopped"
)

// Status is a point-in-time copy of the supervisor's externally visible state.
type Status struct {
	State          SupervisorState     `json:"state"`
	Connected      bool                `json:"connected"`
	ControllerName string              `json:"controller_name"`
	DevicePath     string              `json:"device_path,omitempty"`
	Address        string              `json:"address,omitempty"`
	Kind           string              `json:"kind,omitempty"`
	Capabilities   map[string][]string `json:"capabilities,omitempty"`
	Relays         []bool              `json:"relays"`
	LastError      string              `json:"last_error,omitempty"`
	Since          time.Time           `json:"since"`
}

// Controller formats the device identity the way operators see it on the
// status page: "name (path) [address]", or "Not found" without a device.
func (s Status) Controller() string {
	if !s.Connected || s.ControllerName == "" {
		return "Not found"
	}
	out := s.ControllerName
	if s.DevicePath != "" {
		out += " (" + s.DevicePath + ")"
	}
	if s.Address != "" {
		out += " [" + s.Address + "]"
	}
	return out
}

// Clone returns a deep copy so callers never share slices or maps with the
// supervisor.
func (s Status) Clone() Status {
	c := s
	if s.Relays != nil {
		c.Relays = append([]bool(nil), s.Relays...)
	}
	if s.Capabilities != nil {
		c.Capabilities = make(map[string][]string, len(s.Capabilities))
		for k, v := range s.Capabilities {
			c.Capabilities[k] = append([]string(nil), v...)
		}
	}
	return c
}
