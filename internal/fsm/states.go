package fsm

import "github.com/librescoot/librefsm"

// Supervisor states
const (
	StateDiscovering librefsm.StateID = "discovering"
	StateConnected   librefsm.StateID = "connected"
	StateClosing     librefsm.StateID = "closing"

	// Only reached through an external shutdown.
	StateStopped librefsm.StateID = "stopped"
)

// Supervisor events
const (
	EvDeviceFound    librefsm.EventID = "device-found"
	EvTransportFault librefsm.EventID = "transport-fault"
	EvSetupFailed    librefsm.EventID = "setup-failed"
	EvRetry          librefsm.EventID = "retry"
	EvShutdown       librefsm.EventID = "shutdown"
)
