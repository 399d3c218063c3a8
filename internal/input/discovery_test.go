package input

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"relay-service/internal/config"
	"relay-service/internal/logger"
)

type fakeDevice struct {
	name, path string
	caps       map[string][]string
	closed     bool
}

func (d *fakeDevice) Name() string { return d.name }
func (d *fakeDevice) Path() string { return d.path }
func (d *fakeDevice) Capabilities() map[string][]string { return d.caps }
func (d *fakeDevice) Next(ctx context.Context) (Event, error) { <-ctx.Done(); return Event{}, ctx.Err() }
func (d *fakeDevice) Close() error { d.closed = true; return nil }

type fakeSource struct {
	candidates []Candidate
	openErr    map[string]error
	caps       map[string]map[string][]string
	opened     []string
	devices    []*fakeDevice
	scans      int
}

func (s *fakeSource) Scan() ([]Candidate, error) {
	s.scans++
	return s.candidates, nil
}

func (s *fakeSource) Open(path string, grab bool) (Device, error) {
	if err := s.openErr[path]; err != nil {
		return nil, err
	}
	for _, c := range s.candidates {
		if c.Path == path {
			s.opened = append(s.opened, path)
			dev := &fakeDevice{name: c.Name, path: path, caps: s.caps[path]}
			s.devices = append(s.devices, dev)
			return dev, nil
		}
	}
	return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
}

type fakeBluetooth struct {
	devices []BluetoothDevice
	err     error
}

func (b *fakeBluetooth) ConnectedDevices(ctx context.Context) ([]BluetoothDevice, error) {
	return b.devices, b.err
}

func quietLogger() *logger.Logger {
	return logger.NewLogger(nil, logger.LogLevelDebug)
}

func TestDiscoverByInterface(t *testing.T) {
	src := &fakeSource{candidates: []Candidate{{Path: "/dev/input/event3", Name: "Touch Panel", HasKeys: true}}}
	d := NewDiscoverer(src, nil, []config.DeviceConfig{
		{Interface: "/dev/input/event9"},
		{Interface: "/dev/input/event3"},
	}, quietLogger())

	m, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if m == nil || m.Device.Path() != "/dev/input/event3" {
		t.Fatalf("unexpected match %+v", m)
	}
	if m.Name != "Touch Panel" {
		t.Errorf("name = %q", m.Name)
	}
}

func TestDiscoverPrefersBluetoothIdentity(t *testing.T) {
	src := &fakeSource{candidates: []Candidate{
		{Path: "/dev/input/event1", Name: "Wireless Controller Motion Sensors", HasKeys: false},
		{Path: "/dev/input/event2", Name: "Wireless Controller Touchpad", HasKeys: true},
		{Path: "/dev/input/event4", Name: "Wireless Controller", HasKeys: true},
	}}
	bt := &fakeBluetooth{devices: []BluetoothDevice{{Name: "Wireless Controller", Address: "AA:BB:CC:DD:EE:FF"}}}
	d := NewDiscoverer(src, bt, []config.DeviceConfig{{DeviceNamePattern: "wireless controller"}}, quietLogger())

	m, err := d.Discover(context.Background())
	if err != nil || m == nil {
		t.Fatalf("Discover = %+v, %v", m, err)
	}
	if m.Address != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("address = %q", m.Address)
	}
	if m.Device.Path() != "/dev/input/event2" {
		t.Errorf("path = %q, want first keyed node containing the name", m.Device.Path())
	}
}

func TestDiscoverFallsBackWithoutBluetooth(t *testing.T) {
	src := &fakeSource{candidates: []Candidate{
		{Path: "/dev/input/event0", Name: "gpio-keys", HasKeys: true},
		{Path: "/dev/input/event5", Name: "JX-05 Remote", HasKeys: true},
	}}
	bt := &fakeBluetooth{err: errors.New("no system bus")}
	d := NewDiscoverer(src, bt, []config.DeviceConfig{{DeviceNamePattern: "^JX-05"}}, quietLogger())

	m, err := d.Discover(context.Background())
	if err != nil || m == nil {
		t.Fatalf("Discover = %+v, %v", m, err)
	}
	if m.Device.Path() != "/dev/input/event5" || m.Address != "" {
		t.Errorf("match = %+v", m)
	}
}

func TestDiscoverNothingFound(t *testing.T) {
	src := &fakeSource{
		candidates: []Candidate{{Path: "/dev/input/event7", Name: "Locked Pad", HasKeys: true}},
		openErr:    map[string]error{"/dev/input/event7": fmt.Errorf("open: %w", fs.ErrPermission)},
	}
	d := NewDiscoverer(src, nil, []config.DeviceConfig{
		{Name: "Locked Pad"},
		{DeviceNamePattern: "(unclosed"},
	}, quietLogger())

	m, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected no match, got %+v", m)
	}
	if src.scans != 1 {
		t.Errorf("scanned %d times, want once per discovery", src.scans)
	}
}

func TestDiscoverHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDiscoverer(&fakeSource{}, nil, []config.DeviceConfig{{Name: "pad"}}, quietLogger())
	if _, err := d.Discover(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDiscoverMatchesBluetoothNameIgnoringCase(t *testing.T) {
	src := &fakeSource{candidates: []Candidate{
		{Path: "/dev/input/event0", Name: "gpio-keys", HasKeys: true},
		{Path: "/dev/input/event6", Name: "JX-05 REMOTE Keyboard", HasKeys: true},
	}}
	bt := &fakeBluetooth{devices: []BluetoothDevice{{Name: "jx-05 remote", Address: "11:22:33:44:55:66"}}}
	d := NewDiscoverer(src, bt, []config.DeviceConfig{{DeviceNamePattern: "jx-05"}}, quietLogger())

	m, err := d.Discover(context.Background())
	if err != nil || m == nil {
		t.Fatalf("Discover = %+v, %v", m, err)
	}
	if m.Device.Path() != "/dev/input/event6" || m.Address != "11:22:33:44:55:66" {
		t.Errorf("match = %+v", m)
	}
}

func TestInventory(t *testing.T) {
	src := &fakeSource{
		candidates: []Candidate{
			{Path: "/dev/input/event1", Name: "Wireless Controller Motion Sensors", HasKeys: false},
			{Path: "/dev/input/event2", Name: "Wireless Controller", HasKeys: true},
			{Path: "/dev/input/event3", Name: "gpio-keys", HasKeys: true},
		},
		caps: map[string]map[string][]string{
			"/dev/input/event2": {"EV_KEY": {"BTN_SOUTH", "BTN_EAST"}},
		},
	}
	bt := &fakeBluetooth{devices: []BluetoothDevice{
		{Name: "Wireless Controller", Address: "AA:BB:CC:DD:EE:FF"},
		{Name: "Headphones", Address: "00:11:22:33:44:55"},
	}}
	d := NewDiscoverer(src, bt, []config.DeviceConfig{{DeviceNamePattern: "Wireless"}}, quietLogger())

	reports, err := d.Inventory(context.Background())
	if err != nil {
		t.Fatalf("Inventory failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 bluetooth devices, got %d", len(reports))
	}

	pad := reports[0]
	if pad.Device.Address != "AA:BB:CC:DD:EE:FF" || len(pad.Nodes) != 2 {
		t.Fatalf("controller report = %+v", pad)
	}
	if pad.Nodes[0].Selected || !pad.Nodes[1].Selected {
		t.Errorf("selected flags = %v/%v, want only event2", pad.Nodes[0].Selected, pad.Nodes[1].Selected)
	}
	if got := pad.Nodes[1].Capabilities["EV_KEY"]; len(got) != 2 {
		t.Errorf("capabilities = %v", pad.Nodes[1].Capabilities)
	}
	if len(reports[1].Nodes) != 0 {
		t.Errorf("headphones matched nodes %+v", reports[1].Nodes)
	}

	for _, dev := range src.devices {
		if !dev.closed {
			t.Errorf("%s left open", dev.path)
		}
	}
}

func TestInventoryWithoutBluetooth(t *testing.T) {
	d := NewDiscoverer(&fakeSource{}, &fakeBluetooth{err: errors.New("no system bus")}, nil, quietLogger())
	if _, err := d.Inventory(context.Background()); err == nil {
		t.Error("expected error when bluetooth is unavailable")
	}
	d = NewDiscoverer(&fakeSource{}, nil, nil, quietLogger())
	if _, err := d.Inventory(context.Background()); err == nil {
		t.Error("expected error without a bluetooth lister")
	}
}
