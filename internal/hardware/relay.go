package hardware

import (
	"fmt"

	"relay-service/internal/config"
	"relay-service/internal/logger"
)

// RelayPort drives a bank of relays numbered 1..Channels(). The board
// address (stack level, bus, chip) is fixed when the port is opened.
type RelayPort interface {
	Set(channel int, on bool) error
	SetAll(on bool) error
	Channels() int
	Close() error
}

// Open builds the relay port selected by cfg.Driver.
func Open(cfg config.RelayConfig, l *logger.Logger) (RelayPort, error) {
	switch cfg.Driver {
	case config.DriverSequent:
		return OpenSequent(cfg.Bus, cfg.Stack, cfg.Channels, l)
	case config.DriverGPIO:
		return OpenGPIO(cfg.GPIOChip, cfg.GPIOLines[:cfg.Channels], cfg.ActiveLow, l)
	case config.DriverMCP23017:
		return OpenMCP23017(cfg.MCPBus, cfg.MCPDevice, cfg.MCPPins, cfg.Channels, l)
	case config.DriverMock:
		return NewMockBoard(cfg.Channels), nil
	}
	return nil, fmt.Errorf("unknown relay driver %q", cfg.Driver)
}

func checkChannel(channel, channels int) error {
	if channel < 1 || channel > channels {
		return fmt.Errorf("relay %d out of range 1..%d", channel, channels)
	}
	return nil
}
