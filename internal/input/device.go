package input

import (
	"context"
	"errors"
)

// Event is one raw input event as read from the kernel.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// ErrDeviceLost is returned by Device.Next once the device node is gone.
var ErrDeviceLost = errors.New("input device lost")

// Device is an opened input device. Next blocks until an event arrives, the
// context is done, or the device fails.
type Device interface {
	Name() string
	Path() string
	Capabilities() map[string][]string
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Candidate is a device node seen during a scan.
type Candidate struct {
	Path    string
	Name    string
	HasKeys bool
}

// Source enumerates and opens input devices.
type Source interface {
	Scan() ([]Candidate, error)
	Open(path string, grab bool) (Device, error)
}
