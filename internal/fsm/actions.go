package fsm

import "github.com/librescoot/librefsm"

// Actions defines the interface for supervisor state machine actions.
// The supervisor implements it to keep its status snapshot in step with
// the machine. The work itself (discovery, draining, backoff) runs in the
// supervisor loop, which drives the machine with events.
type Actions interface {
	EnterDiscovering(c *librefsm.Context) error
	EnterConnected(c *librefsm.Context) error
	EnterClosing(c *librefsm.Context) error
	EnterStopped(c *librefsm.Context) error
}
