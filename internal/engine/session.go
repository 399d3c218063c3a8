// Package engine turns classified input into relay writes.
//
// A Session owns the button state table and the cache of what was last
// written to each relay. It is single-threaded by construction: the
// supervisor's drain loop is its only caller.
package engine

import (
	"fmt"

	"relay-service/internal/keymap"
	"relay-service/internal/logger"
)

// RelayWriter is the subset of a relay port a session needs.
type RelayWriter interface {
	Set(channel int, on bool) error
}

// Observer is told about every relay write that succeeded.
type Observer interface {
	RelayChanged(channel int, on bool)
}

// WriteError is a failed relay write. The session cache keeps the previous
// value, so the next resolution retries the write.
type WriteError struct {
	Channel int
	On      bool
	Err     error
}

func (e *WriteError) Error() string {
	state := "off"
	if e.On {
		state = "on"
	}
	return fmt.Sprintf("relay %d %s: %v", e.Channel, state, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

type Session struct {
	index    *keymap.Index
	port     RelayWriter
	observer Observer
	logger   *logger.Logger

	buttons map[keymap.Button]bool
	applied []bool
	hats    map[uint16]int32
	touch   touchState
}

// NewSession forces every relay off with one explicit write each, then
// starts with every watched button released.
func NewSession(index *keymap.Index, port RelayWriter, observer Observer, l *logger.Logger) (*Session, error) {
	s := &Session{
		index:    index,
		port:     port,
		observer: observer,
		logger:   l,
		buttons:  make(map[keymap.Button]bool, len(index.Watched)),
		applied:  make([]bool, index.Channels),
		hats:     make(map[uint16]int32),
	}
	for b := range index.Watched {
		s.buttons[b] = false
	}
	for ch := 1; ch <= index.Channels; ch++ {
		if err := s.write(ch, false); err != nil {
			return nil, err
		}
	}
	l.Infof("Session ready: %s mapping, %d relays forced off", index.Kind, index.Channels)
	return s, nil
}

// Applied returns a copy of the last successfully written relay levels.
func (s *Session) Applied() []bool {
	return append([]bool(nil), s.applied...)
}

// Pressed reports the tracked state of a button.
func (s *Session) Pressed(b keymap.Button) bool {
	return s.buttons[b]
}

func (s *Session) write(channel int, on bool) error {
	if err := s.port.Set(channel, on); err != nil {
		return &WriteError{Channel: channel, On: on, Err: err}
	}
	s.applied[channel-1] = on
	if s.observer != nil {
		s.observer.RelayChanged(channel, on)
	}
	return nil
}

// Apply records a button level and re-resolves the relays. Unwatched
// buttons are ignored without touching the relays.
func (s *Session) Apply(b keymap.Button, pressed bool) error {
	if _, ok := s.buttons[b]; !ok {
		return nil
	}
	s.buttons[b] = pressed
	return s.resolve()
}

// resolve writes every level-mapped relay whose OR over its buttons differs
// from the cache. It stops at the first failed write.
func (s *Session) resolve() error {
	for _, ch := range s.index.LevelRelays() {
		desired := false
		for _, b := range s.index.Relays[ch] {
			if s.buttons[b] {
				desired = true
				break
			}
		}
		if desired == s.applied[ch-1] {
			continue
		}
		if err := s.write(ch, desired); err != nil {
			return err
		}
		s.logger.Debugf("Relay %d %s", ch, onOff(desired))
	}
	return nil
}

// Toggle inverts a relay relative to the cache.
func (s *Session) Toggle(channel int) error {
	on := !s.applied[channel-1]
	if err := s.write(channel, on); err != nil {
		return err
	}
	s.logger.Debugf("Relay %d toggled %s", channel, onOff(on))
	return nil
}

// ForceOff writes off unconditionally, without consulting button state.
func (s *Session) ForceOff(channel int) error {
	if err := s.write(channel, false); err != nil {
		return err
	}
	s.logger.Debugf("Relay %d forced off", channel)
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
