package hardware

import (
	"errors"
	"fmt"
	"sync"

	"github.com/racerxdl/go-mcp23017"

	"relay-service/internal/logger"
)

const mcpPins = 16

// MCPBoard drives relays wired to MCP23017 expander pins.
type MCPBoard struct {
	mu     sync.Mutex
	device *mcp23017.Device
	pins   []uint8
	logger *logger.Logger
}

// OpenMCP23017 configures the given pins as outputs. Without explicit pins,
// relays 1..channels use pins 0..channels-1.
func OpenMCP23017(busNo, devNo uint8, pins []int, channels int, l *logger.Logger) (*MCPBoard, error) {
	if channels < 1 || channels > mcpPins {
		return nil, fmt.Errorf("mcp23017 supports 1..%d channels, got %d", mcpPins, channels)
	}
	if len(pins) == 0 {
		for i := 0; i < channels; i++ {
			pins = append(pins, i)
		}
	}
	if len(pins) < channels {
		return nil, fmt.Errorf("mcp23017 needs %d pins, got %d", channels, len(pins))
	}
	for _, p := range pins[:channels] {
		if p < 0 || p >= mcpPins {
			return nil, fmt.Errorf("mcp23017 pin %d out of range 0..%d", p, mcpPins-1)
		}
	}

	device, err := mcp23017.Open(busNo, devNo)
	if err != nil {
		return nil, fmt.Errorf("failed to open mcp23017 %d/%d: %w", busNo, devNo, err)
	}

	b := &MCPBoard{device: device, logger: l}
	for _, p := range pins[:channels] {
		pin := uint8(p)
		if err := device.PinMode(pin, mcp23017.OUTPUT); err != nil {
			device.Close()
			return nil, fmt.Errorf("failed to configure pin %d: %w", pin, err)
		}
		if err := device.DigitalWrite(pin, mcp23017.PinLevel(false)); err != nil {
			device.Close()
			return nil, fmt.Errorf("failed to clear pin %d: %w", pin, err)
		}
		b.pins = append(b.pins, pin)
	}
	l.Infof("MCP23017 relay board ready on bus %d device %d", busNo, devNo)
	return b, nil
}

func (b *MCPBoard) Channels() int { return len(b.pins) }

func (b *MCPBoard) Set(channel int, on bool) error {
	if err := checkChannel(channel, len(b.pins)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device.DigitalWrite(b.pins[channel-1], mcp23017.PinLevel(on))
}

func (b *MCPBoard) SetAll(on bool) error {
	var errs []error
	for ch := 1; ch <= len(b.pins); ch++ {
		if err := b.Set(ch, on); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *MCPBoard) Close() error {
	err := b.SetAll(false)
	return errors.Join(err, b.device.Close())
}
