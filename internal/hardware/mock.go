package hardware

import (
	"fmt"
	"io"
	"sync"
)

// Write records one relay write on a MockBoard. Channel 0 means SetAll.
type Write struct {
	Channel int
	On      bool
}

// MockBoard keeps relay state in memory. It backs --dry-run and the tests.
type MockBoard struct {
	mu       sync.Mutex
	states   []bool
	writes   []Write
	failures map[int]error
	writeTo  io.Writer
	closed   bool
}

func NewMockBoard(channels int) *MockBoard {
	return &MockBoard{
		states:   make([]bool, channels),
		failures: make(map[int]error),
	}
}

// MonitorStateChanges echoes every state change to w.
func (m *MockBoard) MonitorStateChanges(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeTo = w
}

// FailChannel makes writes to channel return err until cleared with nil.
func (m *MockBoard) FailChannel(channel int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, channel)
		return
	}
	m.failures[channel] = err
}

func (m *MockBoard) Channels() int { return len(m.states) }

func (m *MockBoard) Set(channel int, on bool) error {
	if err := checkChannel(channel, len(m.states)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[channel]; err != nil {
		return err
	}
	m.writes = append(m.writes, Write{Channel: channel, On: on})
	if m.writeTo != nil && m.states[channel-1] != on {
		fmt.Fprintf(m.writeTo, "[relay %d] state changed to %v\n", channel, on)
	}
	m.states[channel-1] = on
	return nil
}

func (m *MockBoard) SetAll(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[0]; err != nil {
		return err
	}
	m.writes = append(m.writes, Write{Channel: 0, On: on})
	for i := range m.states {
		if m.writeTo != nil && m.states[i] != on {
			fmt.Fprintf(m.writeTo, "[relay %d] state changed to %v\n", i+1, on)
		}
		m.states[i] = on
	}
	return nil
}

func (m *MockBoard) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.SetAll(false)
}

// States returns a copy of the current relay levels, index 0 being relay 1.
func (m *MockBoard) States() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.states...)
}

// Writes returns a copy of every write so far.
func (m *MockBoard) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}

func (m *MockBoard) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

func (m *MockBoard) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
