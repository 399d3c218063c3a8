package core

import (
	"time"

	"github.com/librescoot/librefsm"

	"relay-service/internal/fsm"
	"relay-service/internal/types"
)

// Ensure Supervisor implements fsm.Actions
var _ fsm.Actions = (*Supervisor)(nil)

// stateIDToSupervisorState converts librefsm StateID to types.SupervisorState
func stateIDToSupervisorState(id librefsm.StateID) types.SupervisorState {
	switch id {
	case fsm.StateDiscovering:
		return types.StateDiscovering
	case fsm.StateConnected:
		return types.StateConnected
	case fsm.StateClosing:
		return types.StateClosing
	case fsm.StateStopped:
		return types.StateStopped
	default:
		return types.SupervisorState(string(id))
	}
}

// enter records the new state. The callbacks run inside the machine, so
// they only touch the status snapshot and never call back into it.
func (s *Supervisor) enter(id librefsm.StateID, update func(st *types.Status)) {
	s.mu.Lock()
	s.status.State = stateIDToSupervisorState(id)
	s.status.Since = time.Now()
	if update != nil {
		update(&s.status)
	}
	s.mu.Unlock()
	s.publish()
}

// === State Entry Actions ===

func (s *Supervisor) EnterDiscovering(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterDiscovering")
	s.enter(fsm.StateDiscovering, nil)
	return nil
}

func (s *Supervisor) EnterConnected(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterConnected")
	m := s.match
	s.enter(fsm.StateConnected, func(st *types.Status) {
		st.Connected = true
		st.LastError = ""
		if m == nil {
			return
		}
		st.ControllerName = m.Name
		st.DevicePath = m.Device.Path()
		st.Address = m.Address
		st.Capabilities = m.Device.Capabilities()
	})
	if m != nil {
		s.logger.Infof("Connected to %s", s.Status().Controller())
	}
	return nil
}

func (s *Supervisor) EnterClosing(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterClosing")
	s.enter(fsm.StateClosing, clearIdentity)
	s.logger.Infof("Session closed, retrying in %s", s.retryInterval)
	return nil
}

func (s *Supervisor) EnterStopped(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterStopped")
	s.enter(fsm.StateStopped, clearIdentity)
	return nil
}

func clearIdentity(st *types.Status) {
	st.Connected = false
	st.ControllerName = ""
	st.DevicePath = ""
	st.Address = ""
	st.Kind = ""
	st.Capabilities = nil
}
