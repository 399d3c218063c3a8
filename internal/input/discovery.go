package input

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
	"strings"

	"relay-service/internal/config"
	"relay-service/internal/logger"
)

type BluetoothDevice struct {
	Name    string
	Address string
}

// BluetoothLister reports currently connected Bluetooth devices.
type BluetoothLister interface {
	ConnectedDevices(ctx context.Context) ([]BluetoothDevice, error)
}

// Match is the result of a successful discovery.
type Match struct {
	Device  Device
	Config  config.DeviceConfig
	Name    string
	Address string
}

type Discoverer struct {
	source  Source
	bt      BluetoothLister
	devices []config.DeviceConfig
	logger  *logger.Logger
}

// NewDiscoverer walks devices in order on every Discover call. bt may be nil.
func NewDiscoverer(source Source, bt BluetoothLister, devices []config.DeviceConfig, l *logger.Logger) *Discoverer {
	return &Discoverer{
		source:  source,
		bt:      bt,
		devices: devices,
		logger:  l,
	}
}

// Discover returns the first configured device that is present and opens.
// It returns nil without error when nothing matched.
func (d *Discoverer) Discover(ctx context.Context) (*Match, error) {
	var candidates []Candidate
	scanned := false
	scan := func() []Candidate {
		if scanned {
			return candidates
		}
		scanned = true
		var err error
		candidates, err = d.source.Scan()
		if err != nil {
			d.logger.Warnf("Failed to scan input devices: %v", err)
		}
		return candidates
	}

	var connected []BluetoothDevice
	btQueried := false
	bluetooth := func() []BluetoothDevice {
		if btQueried || d.bt == nil {
			return connected
		}
		btQueried = true
		var err error
		connected, err = d.bt.ConnectedDevices(ctx)
		if err != nil {
			d.logger.Debugf("Bluetooth lookup unavailable: %v", err)
		}
		return connected
	}

	for _, dev := range d.devices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if dev.Interface != "" {
			if m := d.openPath(dev, dev.Interface, ""); m != nil {
				m.Address = addressFor(m.Name, bluetooth())
				return m, nil
			}
			continue
		}

		re, err := namePattern(dev)
		if err != nil {
			d.logger.Warnf("Device %s: invalid name pattern: %v", dev.Label(), err)
			continue
		}

		if re != nil {
			for _, bt := range bluetooth() {
				if !re.MatchString(bt.Name) {
					continue
				}
				for _, c := range scan() {
					if c.HasKeys && nameMatches(c.Name, bt.Name) {
						if m := d.openPath(dev, c.Path, bt.Address); m != nil {
							return m, nil
						}
					}
				}
			}
		}

		for _, c := range scan() {
			if !c.HasKeys {
				continue
			}
			if re != nil && !re.MatchString(c.Name) {
				continue
			}
			if m := d.openPath(dev, c.Path, ""); m != nil {
				m.Address = addressFor(m.Name, bluetooth())
				return m, nil
			}
		}
	}
	return nil, nil
}

func (d *Discoverer) openPath(dev config.DeviceConfig, path, address string) *Match {
	opened, err := d.source.Open(path, dev.Grab)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			d.logger.Debugf("Device %s not present at %s", dev.Label(), path)
		case errors.Is(err, fs.ErrPermission):
			d.logger.Warnf("Permission denied opening %s: %v", path, err)
		default:
			d.logger.Warnf("Failed to open %s: %v", path, err)
		}
		return nil
	}
	name := opened.Name()
	if name == "" {
		name = dev.Name
	}
	d.logger.Infof("Found device %s at %s", name, path)
	return &Match{Device: opened, Config: dev, Name: name, Address: address}
}

// namePattern compiles the entry's matcher. A nil pattern matches any device
// with keys.
func namePattern(dev config.DeviceConfig) (*regexp.Regexp, error) {
	switch {
	case dev.DeviceNamePattern != "":
		return regexp.Compile("(?i)" + dev.DeviceNamePattern)
	case dev.Name != "":
		return regexp.Compile("(?i)" + regexp.QuoteMeta(dev.Name))
	}
	return nil, nil
}

func addressFor(name string, connected []BluetoothDevice) string {
	for _, bt := range connected {
		if nameMatches(name, bt.Name) {
			return bt.Address
		}
	}
	return ""
}

// nameMatches reports whether an evdev node name carries the Bluetooth
// device name, ignoring case.
func nameMatches(nodeName, btName string) bool {
	return btName != "" && strings.Contains(strings.ToLower(nodeName), strings.ToLower(btName))
}
