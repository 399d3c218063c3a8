package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/librescoot/librefsm"

	"relay-service/internal/config"
	"relay-service/internal/engine"
	"relay-service/internal/fsm"
	"relay-service/internal/input"
	"relay-service/internal/keymap"
	"relay-service/internal/logger"
	"relay-service/internal/types"
)

// Supervisor owns the reconnect loop: discover a device, run a session on
// it until it fails, back off, and start over. It only stops on Shutdown
// or when the context given to Start is cancelled.
type Supervisor struct {
	discoverer Discoverer
	port       RelayPort
	watcher    ChangeNotifier
	sink       StatusSink
	logger     *logger.Logger

	discoveryInterval time.Duration
	retryInterval     time.Duration
	channels          int

	mu     sync.RWMutex
	status types.Status

	// Owned by the loop goroutine.
	match *input.Match

	cancel       context.CancelFunc
	done         chan struct{}
	shutdownOnce sync.Once
}

// NewSupervisor wires a supervisor. watcher and sink may be nil.
func NewSupervisor(cfg *config.Config, discoverer Discoverer, port RelayPort, watcher ChangeNotifier, sink StatusSink, l *logger.Logger) *Supervisor {
	channels := port.Channels()
	if cfg.Relay.Channels > 0 && cfg.Relay.Channels < channels {
		channels = cfg.Relay.Channels
	}
	return &Supervisor{
		discoverer:        discoverer,
		port:              port,
		watcher:           watcher,
		sink:              sink,
		logger:            l,
		discoveryInterval: cfg.DiscoveryInterval,
		retryInterval:     cfg.RetryInterval,
		channels:          channels,
		status: types.Status{
			State:  types.StateDiscovering,
			Relays: make([]bool, channels),
			Since:  time.Now(),
		},
	}
}

// Status returns a copy of the current status. Safe from any goroutine.
func (s *Supervisor) Status() types.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Clone()
}

// Start runs the loop in the background.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.Run(ctx); err != nil {
			s.logger.Errorf("Supervisor stopped: %v", err)
		}
	}()
}

// Shutdown stops the loop, releases the device and forces every relay off.
// It can be called more than once.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		if s.cancel == nil {
			s.allOff()
			return
		}
		s.cancel()
		<-s.done
	})
}

// Run drives the state machine until ctx is cancelled. Whatever state it
// was in, every relay is off when Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.allOff()

	machine, err := fsm.NewDefinition(s).Build()
	if err != nil {
		return fmt.Errorf("failed to build state machine: %w", err)
	}
	machine.OnStateChange(func(from, to librefsm.StateID) {
		s.logger.Infof("State transition: %s -> %s", from, to)
	})

	// The machine outlives ctx long enough to take the shutdown event.
	machineCtx, stopMachine := context.WithCancel(context.Background())
	defer stopMachine()
	if err := machine.Start(machineCtx); err != nil {
		return fmt.Errorf("failed to start state machine: %w", err)
	}
	s.logger.Infof("librefsm state machine started")

	send := func(ev librefsm.EventID) {
		if err := machine.SendSync(librefsm.Event{ID: ev}); err != nil {
			s.logger.Errorf("Failed to send %s: %v", ev, err)
		}
	}

	for {
		if ctx.Err() != nil {
			if machine.CurrentState() != fsm.StateStopped {
				send(fsm.EvShutdown)
			}
			if state := machine.CurrentState(); state != fsm.StateStopped {
				return fmt.Errorf("shutdown refused in state %s", state)
			}
			return nil
		}

		switch machine.CurrentState() {
		case fsm.StateDiscovering:
			if m := s.discover(ctx); m != nil {
				s.match = m
				send(fsm.EvDeviceFound)
				continue
			}
			s.wait(ctx, s.discoveryInterval, true)

		case fsm.StateConnected:
			send(s.runSession(ctx))

		case fsm.StateClosing:
			s.wait(ctx, s.retryInterval, false)
			if ctx.Err() == nil {
				send(fsm.EvRetry)
			}

		case fsm.StateStopped:
			return nil

		default:
			return fmt.Errorf("unexpected state %s", machine.CurrentState())
		}
	}
}

func (s *Supervisor) discover(ctx context.Context) *input.Match {
	m, err := s.discoverer.Discover(ctx)
	if err != nil {
		s.logger.Warnf("Discovery failed: %v", err)
		return nil
	}
	if m == nil {
		s.logger.Debugf("No allowed input device found, retrying in %s", s.discoveryInterval)
	}
	return m
}

// wait sleeps for d. It returns early on cancellation and, during
// discovery, when a new input node shows up.
func (s *Supervisor) wait(ctx context.Context, d time.Duration, discovering bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var changes <-chan struct{}
	if discovering && s.watcher != nil {
		changes = s.watcher.Changes()
	}
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-changes:
		s.logger.Debugf("Input devices changed, rescanning")
	}
}

// runSession builds a session on the matched device and drains it. The
// returned event says how the session ended.
func (s *Supervisor) runSession(ctx context.Context) librefsm.EventID {
	m := s.match
	defer s.release()

	index, err := keymap.Compile(m.Config, s.channels, s.logger)
	if err != nil {
		s.logger.Errorf("Cannot set up %s: %v", m.Name, err)
		s.setError(err)
		return fsm.EvSetupFailed
	}
	s.mu.Lock()
	s.status.Kind = index.Kind.String()
	s.mu.Unlock()

	session, err := engine.NewSession(index, s.port, s, s.logger)
	if err != nil {
		s.logger.Errorf("Failed to initialise relays: %v", err)
		s.setError(err)
		return fsm.EvTransportFault
	}

	for {
		ev, err := m.Device.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fsm.EvShutdown
			}
			if errors.Is(err, input.ErrDeviceLost) {
				s.logger.Warnf("Device %s disconnected: %v", m.Name, err)
			} else {
				s.logger.Errorf("Read from %s failed: %v", m.Name, err)
			}
			s.setError(err)
			return fsm.EvTransportFault
		}
		if err := session.Handle(ev); err != nil {
			s.logger.Errorf("Relay write failed: %v", err)
			s.setError(err)
			return fsm.EvTransportFault
		}
	}
}

// release closes the device and forgets the match, so the next discovery
// starts from scratch.
func (s *Supervisor) release() {
	if s.match == nil {
		return
	}
	if err := s.match.Device.Close(); err != nil {
		s.logger.Debugf("Closing %s: %v", s.match.Device.Path(), err)
	}
	s.match = nil
}

func (s *Supervisor) allOff() {
	s.release()
	if err := s.port.SetAll(false); err != nil {
		s.logger.Errorf("Failed to switch relays off: %v", err)
		return
	}
	s.mu.Lock()
	for i := range s.status.Relays {
		s.status.Relays[i] = false
	}
	s.mu.Unlock()
	s.logger.Infof("All relays off")
	s.publish()
}

func (s *Supervisor) setError(err error) {
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()
}

// RelayChanged keeps the status relays in step with the session cache.
func (s *Supervisor) RelayChanged(channel int, on bool) {
	s.mu.Lock()
	if channel >= 1 && channel <= len(s.status.Relays) {
		s.status.Relays[channel-1] = on
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Supervisor) publish() {
	if s.sink == nil {
		return
	}
	s.sink.Publish(s.Status())
}

var _ engine.Observer = (*Supervisor)(nil)
