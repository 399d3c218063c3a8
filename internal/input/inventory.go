package input

import (
	"context"
	"errors"
	"fmt"
)

// NodeReport describes one evdev node whose name carries a connected
// Bluetooth device's name.
type NodeReport struct {
	Path         string
	Name         string
	Capabilities map[string][]string
	// Selected marks the node discovery would pick right now.
	Selected bool
	Err      error
}

type BluetoothReport struct {
	Device BluetoothDevice
	Nodes  []NodeReport
}

// Inventory lists connected Bluetooth devices together with the evdev nodes
// that belong to them. It runs one discovery pass to mark the node the
// service would use, and releases it again.
func (d *Discoverer) Inventory(ctx context.Context) ([]BluetoothReport, error) {
	if d.bt == nil {
		return nil, errors.New("bluetooth lookup unavailable")
	}
	connected, err := d.bt.ConnectedDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bluetooth devices: %w", err)
	}

	selected := ""
	m, err := d.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if m != nil {
		selected = m.Device.Path()
		m.Device.Close()
	}

	candidates, err := d.source.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan input devices: %w", err)
	}

	reports := make([]BluetoothReport, 0, len(connected))
	for _, bt := range connected {
		r := BluetoothReport{Device: bt}
		for _, c := range candidates {
			if !nameMatches(c.Name, bt.Name) {
				continue
			}
			node := NodeReport{Path: c.Path, Name: c.Name, Selected: c.Path == selected}
			dev, err := d.source.Open(c.Path, false)
			if err != nil {
				node.Err = err
			} else {
				node.Capabilities = dev.Capabilities()
				dev.Close()
			}
			r.Nodes = append(r.Nodes, node)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
