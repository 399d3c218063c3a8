// Package evdevice reads Linux evdev nodes through golang-evdev.
package evdevice

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"

	"relay-service/internal/input"
)

// pollInterval bounds how long Next waits before rechecking its context.
const pollInterval = 250 * time.Millisecond

type Source struct {
	dir string
}

func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

func (s *Source) Scan() ([]input.Candidate, error) {
	devices, err := evdev.ListInputDevices(filepath.Join(s.dir, "event*"))
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	out := make([]input.Candidate, 0, len(devices))
	for _, d := range devices {
		out = append(out, input.Candidate{
			Path:    d.Fn,
			Name:    d.Name,
			HasKeys: hasType(d, evdev.EV_KEY),
		})
		d.File.Close()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Source) Open(path string, grab bool) (input.Device, error) {
	d, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	dev := &Device{dev: d}
	if grab {
		if err := d.Grab(); err != nil {
			d.File.Close()
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
		dev.grabbed = true
	}
	return dev, nil
}

func hasType(d *evdev.InputDevice, evType int) bool {
	for ct := range d.Capabilities {
		if ct.Type == evType {
			return true
		}
	}
	return false
}

type Device struct {
	dev     *evdev.InputDevice
	grabbed bool
	pending []evdev.InputEvent
}

func (d *Device) Name() string { return d.dev.Name }
func (d *Device) Path() string { return d.dev.Fn }

// Capabilities lists supported codes by event type name.
func (d *Device) Capabilities() map[string][]string {
	out := make(map[string][]string, len(d.dev.Capabilities))
	for ct, codes := range d.dev.Capabilities {
		names := make([]string, 0, len(codes))
		for _, c := range codes {
			names = append(names, c.Name)
		}
		sort.Strings(names)
		out[ct.Name] = names
	}
	return out
}

func (d *Device) Next(ctx context.Context) (input.Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return input.Event{Type: ev.Type, Code: ev.Code, Value: ev.Value}, nil
		}
		if err := ctx.Err(); err != nil {
			return input.Event{}, err
		}

		fds := []unix.PollFd{{Fd: int32(d.dev.File.Fd()), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(pollInterval/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return input.Event{}, fmt.Errorf("%w: poll %s: %v", input.ErrDeviceLost, d.dev.Fn, err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			return input.Event{}, fmt.Errorf("%w: %s hung up", input.ErrDeviceLost, d.dev.Fn)
		}

		events, err := d.dev.Read()
		if err != nil {
			return input.Event{}, fmt.Errorf("%w: read %s: %v", input.ErrDeviceLost, d.dev.Fn, err)
		}
		d.pending = events
	}
}

func (d *Device) Close() error {
	if d.grabbed {
		d.dev.Release()
		d.grabbed = false
	}
	return d.dev.File.Close()
}
