package fsm

import (
	"github.com/librescoot/librefsm"
)

// NewDefinition creates the supervisor FSM definition.
// Every state accepts shutdown, so an external stop is honoured whatever
// the loop was doing.
func NewDefinition(actions Actions) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateDiscovering,
			librefsm.WithOnEnter(actions.EnterDiscovering),
		).
		State(StateConnected,
			librefsm.WithOnEnter(actions.EnterConnected),
		).
		State(StateClosing,
			librefsm.WithOnEnter(actions.EnterClosing),
		).
		State(StateStopped,
			librefsm.WithOnEnter(actions.EnterStopped),
		).

		// === Transitions ===

		// From Discovering
		Transition(StateDiscovering, EvDeviceFound, StateConnected).
		Transition(StateDiscovering, EvShutdown, StateStopped).

		// From Connected: a fault or a session that could not be built
		// both tear down through Closing
		Transition(StateConnected, EvTransportFault, StateClosing).
		Transition(StateConnected, EvSetupFailed, StateClosing).
		Transition(StateConnected, EvShutdown, StateStopped).

		// From Closing, after the retry backoff
		Transition(StateClosing, EvRetry, StateDiscovering).
		Transition(StateClosing, EvShutdown, StateStopped).
		Initial(StateDiscovering)
}
