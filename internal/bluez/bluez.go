// Package bluez looks up connected Bluetooth devices through BlueZ on the
// system D-Bus.
package bluez

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/godbus/dbus/v5"

	"relay-service/internal/input"
)

const (
	busName         = "org.bluez"
	deviceInterface = "org.bluez.Device1"
	managedObjects  = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

type Client struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func New() *Client {
	return &Client{}
}

func (c *Client) connection() (*dbus.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.conn.Connected() {
		return c.conn, nil
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// ConnectedDevices lists devices BlueZ reports as connected, sorted by
// object path.
func (c *Client) ConnectedDevices(ctx context.Context) ([]input.BluetoothDevice, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := conn.Object(busName, "/").CallWithContext(ctx, managedObjects, 0)
	if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("bluez managed objects: %w", err)
	}
	return connectedDevices(objects), nil
}

func connectedDevices(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) []input.BluetoothDevice {
	paths := make([]string, 0, len(objects))
	for p := range objects {
		paths = append(paths, string(p))
	}
	sort.Strings(paths)

	var out []input.BluetoothDevice
	for _, p := range paths {
		props, ok := objects[dbus.ObjectPath(p)][deviceInterface]
		if !ok {
			continue
		}
		if connected, _ := props["Connected"].Value().(bool); !connected {
			continue
		}
		name, _ := props["Name"].Value().(string)
		if name == "" {
			name, _ = props["Alias"].Value().(string)
		}
		addr, _ := props["Address"].Value().(string)
		out = append(out, input.BluetoothDevice{Name: name, Address: addr})
	}
	return out
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
