package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSingleDeviceDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"device_name_pattern": "Wireless Controller",
		"keymap": {"relay_1": ["BTN_SOUTH", "DPAD_UP"], "relay_2": ["l2"]}
	}`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Relay.Driver != DriverSequent {
		t.Errorf("driver = %q, want %q", cfg.Relay.Driver, DriverSequent)
	}
	if cfg.Relay.Channels != DefaultChannels {
		t.Errorf("channels = %d, want %d", cfg.Relay.Channels, DefaultChannels)
	}
	if cfg.DiscoveryInterval != 10*time.Second || cfg.RetryInterval != 5*time.Second {
		t.Errorf("intervals = %v/%v", cfg.DiscoveryInterval, cfg.RetryInterval)
	}
	if cfg.Web.Address != ":8000" || !cfg.Web.Enabled {
		t.Errorf("web = %+v", cfg.Web)
	}

	devices := cfg.Devices()
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	d := devices[0]
	if d.DeviceNamePattern != "Wireless Controller" {
		t.Errorf("pattern = %q", d.DeviceNamePattern)
	}
	if got := d.Keymap["relay_1"]; len(got) != 2 || got[0] != "BTN_SOUTH" || got[1] != "DPAD_UP" {
		t.Errorf("relay_1 buttons = %v", got)
	}
	if d.SwipeThreshold != DefaultSwipeThreshold {
		t.Errorf("swipe threshold = %d", d.SwipeThreshold)
	}
}

func TestLoadAllowedDevices(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"relay": {"driver": "mock", "channels": 2},
		"discovery_interval": "2s",
		"allowed_devices": [
			{"name": "JX-05", "type": "swipe", "swipe_map": {"relay_1": ["UP"], "relay_2": ["TAP"]}},
			{"interface": "/dev/input/event3",
			 "virtual_buttons": {"relay_1": [{"x_min": 0, "x_max": 100, "y_min": 0, "y_max": 50}]}}
		]
	}`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DiscoveryInterval != 2*time.Second {
		t.Errorf("discovery interval = %v", cfg.DiscoveryInterval)
	}

	devices := cfg.Devices()
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].Type != "swipe" || devices[0].SwipeMap["relay_2"][0] != "TAP" {
		t.Errorf("swipe device = %+v", devices[0])
	}
	regions := devices[1].VirtualButtons["relay_1"]
	if len(regions) != 1 || regions[0].XMax != 100 || regions[0].YMax != 50 {
		t.Errorf("regions = %+v", regions)
	}
}

func TestLoadFlagOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"keymap": {"relay_1": ["x"]}}`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("driver", DriverSequent, "")
	flags.String("listen", DefaultWebAddress, "")
	if err := flags.Parse([]string{"--driver", "mock", "--listen", "127.0.0.1:9000"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Relay.Driver != DriverMock {
		t.Errorf("driver = %q, want mock", cfg.Relay.Driver)
	}
	if cfg.Web.Address != "127.0.0.1:9000" {
		t.Errorf("web address = %q", cfg.Web.Address)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown driver", `{"relay": {"driver": "telepathy"}, "keymap": {"relay_1": ["x"]}}`},
		{"too many channels", `{"relay": {"channels": 9}, "keymap": {"relay_1": ["x"]}}`},
		{"bad stack", `{"relay": {"stack": 8}, "keymap": {"relay_1": ["x"]}}`},
		{"gpio without lines", `{"relay": {"driver": "gpio"}, "keymap": {"relay_1": ["x"]}}`},
		{"no devices", `{"relay": {"driver": "mock"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "config.json", tc.body)
			if _, err := Load(path, nil); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json"), nil); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadDeviceWithoutMapping(t *testing.T) {
	path := writeConfig(t, "config.json", `{"device_name_pattern": "Wireless Controller", "keymap": {}}`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("a device without mapping must load, got %v", err)
	}
	devices := cfg.Devices()
	if len(devices) != 1 || devices[0].DeviceNamePattern != "Wireless Controller" {
		t.Fatalf("devices = %+v", devices)
	}
	if len(devices[0].Keymap) != 0 {
		t.Errorf("keymap = %v, want empty", devices[0].Keymap)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", `{"keymap": {"relay_1": ["x"]}}`)
	t.Setenv("RELAY_SERVICE_REDIS_ADDRESS", "127.0.0.1:6379")
	t.Setenv("RELAY_SERVICE_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("RELAY_SERVICE_RELAY_DRIVER", "gpio")
	t.Setenv("RELAY_SERVICE_RELAY_GPIO_LINES", "17,27,22,23")
	t.Setenv("RELAY_SERVICE_RETRY_INTERVAL", "7s")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Address != "127.0.0.1:6379" {
		t.Errorf("redis address = %q", cfg.Redis.Address)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("mqtt broker = %q", cfg.MQTT.Broker)
	}
	if cfg.Relay.Driver != DriverGPIO {
		t.Errorf("driver = %q", cfg.Relay.Driver)
	}
	if got := cfg.Relay.GPIOLines; len(got) != 4 || got[0] != 17 || got[3] != 23 {
		t.Errorf("gpio lines = %v", got)
	}
	if cfg.RetryInterval != 7*time.Second {
		t.Errorf("retry interval = %v", cfg.RetryInterval)
	}
}
