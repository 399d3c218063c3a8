package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "RELAY_SERVICE"

	DefaultDiscoveryInterval = 10 * time.Second
	DefaultRetryInterval     = 5 * time.Second
	DefaultChannels          = 4
	DefaultSwipeThreshold    = 50
	DefaultWebAddress        = ":8000"
	DefaultInputDir          = "/dev/input"
)

// Relay drivers understood by hardware.Open.
const (
	DriverSequent  = "sequent"
	DriverGPIO     = "gpio"
	DriverMCP23017 = "mcp23017"
	DriverMock     = "mock"
)

type Region struct {
	XMin int32 `mapstructure:"x_min" json:"x_min"`
	XMax int32 `mapstructure:"x_max" json:"x_max"`
	YMin int32 `mapstructure:"y_min" json:"y_min"`
	YMax int32 `mapstructure:"y_max" json:"y_max"`
}

// DeviceConfig describes one acceptable input device and how its events map
// onto relays. Exactly one of Keymap, VirtualButtons or SwipeMap is expected
// to be set; Type may force the choice.
type DeviceConfig struct {
	Name              string              `mapstructure:"name"`
	DeviceNamePattern string              `mapstructure:"device_name_pattern"`
	Interface         string              `mapstructure:"interface"`
	Type              string              `mapstructure:"type"`
	Grab              bool                `mapstructure:"grab"`
	Keymap            map[string][]string `mapstructure:"keymap"`
	VirtualButtons    map[string][]Region `mapstructure:"virtual_buttons"`
	SwipeMap          map[string][]string `mapstructure:"swipe_map"`
	TouchTrigger      string              `mapstructure:"touch_trigger"`
	SwipeThreshold    int32               `mapstructure:"swipe_threshold"`
	TriggerThreshold  int32               `mapstructure:"trigger_threshold"`
}

// Label is a human readable name for log lines.
func (d DeviceConfig) Label() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.DeviceNamePattern != "":
		return d.DeviceNamePattern
	case d.Interface != "":
		return d.Interface
	}
	return "device"
}

func (d DeviceConfig) hasMapping() bool {
	return len(d.Keymap) > 0 || len(d.VirtualButtons) > 0 || len(d.SwipeMap) > 0
}

func (d DeviceConfig) hasIdentity() bool {
	return d.Name != "" || d.DeviceNamePattern != "" || d.Interface != ""
}

type RelayConfig struct {
	Driver    string `mapstructure:"driver"`
	Stack     int    `mapstructure:"stack"`
	Bus       string `mapstructure:"bus"`
	Channels  int    `mapstructure:"channels"`
	GPIOChip  string `mapstructure:"gpio_chip"`
	GPIOLines []int  `mapstructure:"gpio_lines"`
	ActiveLow bool   `mapstructure:"active_low"`
	MCPBus    uint8  `mapstructure:"mcp_bus"`
	MCPDevice uint8  `mapstructure:"mcp_device"`
	MCPPins   []int  `mapstructure:"mcp_pins"`
}

type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type Config struct {
	Relay             RelayConfig    `mapstructure:"relay"`
	DiscoveryInterval time.Duration  `mapstructure:"discovery_interval"`
	RetryInterval     time.Duration  `mapstructure:"retry_interval"`
	InputDir          string         `mapstructure:"input_dir"`
	Web               WebConfig      `mapstructure:"web"`
	Redis             RedisConfig    `mapstructure:"redis"`
	MQTT              MQTTConfig     `mapstructure:"mqtt"`
	AllowedDevices    []DeviceConfig `mapstructure:"allowed_devices"`

	// Single-device form: mapping keys at the top level of the file.
	DeviceConfig `mapstructure:",squash"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// Devices returns the configured device entries in priority order. A
// top-level entry is kept even without a mapping when it names a device;
// the missing mapping then fails at session setup, not at startup.
func (c *Config) Devices() []DeviceConfig {
	if len(c.AllowedDevices) > 0 {
		return c.AllowedDevices
	}
	if c.DeviceConfig.hasMapping() || c.DeviceConfig.hasIdentity() {
		return []DeviceConfig{c.DeviceConfig}
	}
	return nil
}

// flagKeys binds command line flags onto config keys.
var flagKeys = map[string]string{
	"driver": "relay.driver",
	"stack":  "relay.stack",
	"listen": "web.address",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relay.driver", DriverSequent)
	v.SetDefault("relay.stack", 0)
	v.SetDefault("relay.bus", "")
	v.SetDefault("relay.channels", DefaultChannels)
	v.SetDefault("relay.gpio_chip", "gpiochip0")
	v.SetDefault("relay.mcp_bus", 1)
	v.SetDefault("relay.mcp_device", 0)
	v.SetDefault("discovery_interval", DefaultDiscoveryInterval)
	v.SetDefault("retry_interval", DefaultRetryInterval)
	v.SetDefault("input_dir", DefaultInputDir)
	v.SetDefault("web.enabled", true)
	v.SetDefault("web.address", DefaultWebAddress)
	v.SetDefault("mqtt.client_id", "relay-service")
	v.SetDefault("mqtt.topic_prefix", "relay-service")
}

// envKeys lists the keys without a default. AutomaticEnv only consults the
// environment for keys viper already knows, so these are bound explicitly.
var envKeys = []string{
	"relay.gpio_lines",
	"relay.active_low",
	"relay.mcp_pins",
	"redis.address",
	"redis.password",
	"redis.db",
	"mqtt.broker",
	"name",
	"device_name_pattern",
	"interface",
	"type",
	"grab",
	"touch_trigger",
	"swipe_threshold",
	"trigger_threshold",
}

// Load reads the configuration file at path. With an empty path the usual
// locations are searched and a missing file is not an error. Flags that were
// set explicitly override file values; RELAY_SERVICE_* environment variables
// override both.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("/etc/relay-service")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	applyDeviceDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDeviceDefaults(cfg *Config) {
	fill := func(d *DeviceConfig) {
		if d.SwipeThreshold <= 0 {
			d.SwipeThreshold = DefaultSwipeThreshold
		}
	}
	fill(&cfg.DeviceConfig)
	for i := range cfg.AllowedDevices {
		fill(&cfg.AllowedDevices[i])
	}
}

// Validate checks process-level settings only. Per-device mappings are
// checked when a session is set up so one bad entry cannot stop the service.
func (c *Config) Validate() error {
	switch c.Relay.Driver {
	case DriverSequent, DriverGPIO, DriverMCP23017, DriverMock:
	default:
		return fmt.Errorf("unknown relay driver %q", c.Relay.Driver)
	}
	if c.Relay.Channels < 1 || c.Relay.Channels > 8 {
		return fmt.Errorf("relay channels must be 1..8, got %d", c.Relay.Channels)
	}
	if c.Relay.Stack < 0 || c.Relay.Stack > 7 {
		return fmt.Errorf("relay stack must be 0..7, got %d", c.Relay.Stack)
	}
	if c.Relay.Driver == DriverSequent && c.Relay.Channels > 4 {
		return fmt.Errorf("sequent board has 4 relays, got %d channels", c.Relay.Channels)
	}
	if c.Relay.Driver == DriverGPIO && len(c.Relay.GPIOLines) < c.Relay.Channels {
		return fmt.Errorf("gpio driver needs %d lines, got %d", c.Relay.Channels, len(c.Relay.GPIOLines))
	}
	if c.DiscoveryInterval <= 0 || c.RetryInterval <= 0 {
		return fmt.Errorf("discovery and retry intervals must be positive")
	}
	if len(c.Devices()) == 0 {
		return fmt.Errorf("no input device configured: set a device name, pattern, interface or mapping, or allowed_devices")
	}
	return nil
}
