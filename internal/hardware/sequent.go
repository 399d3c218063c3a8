package hardware

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"relay-service/internal/logger"
)

// SequentBoard drives a Sequent Microsystems 4-relay HAT over I2C.
type SequentBoard struct {
	mu       sync.Mutex
	dev      *i2c.Dev
	closer   i2c.BusCloser
	stack    int
	channels int
	logger   *logger.Logger
}

// OpenSequent initialises the host drivers and opens the named I2C bus (the
// first available bus when empty).
func OpenSequent(busName string, stack, channels int, l *logger.Logger) (*SequentBoard, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}
	b, err := NewSequentBoard(bus, stack, channels, l)
	if err != nil {
		bus.Close()
		return nil, err
	}
	b.closer = bus
	return b, nil
}

// NewSequentBoard probes the board at the given stack level on bus. The
// primary address block is tried first, then the alternate one used by older
// expander chips.
func NewSequentBoard(bus i2c.Bus, stack, channels int, l *logger.Logger) (*SequentBoard, error) {
	if stack < 0 || stack > 7 {
		return nil, fmt.Errorf("stack level %d out of range 0..7", stack)
	}
	if channels < 1 || channels > SequentChannels {
		return nil, fmt.Errorf("sequent board supports 1..%d channels, got %d", SequentChannels, channels)
	}

	offset := uint16(0x07 ^ stack)
	var errs []error
	for _, base := range []uint16{SequentBaseAddress, SequentAlternateAddress} {
		dev := &i2c.Dev{Bus: bus, Addr: base + offset}
		if err := probeSequent(dev); err != nil {
			errs = append(errs, fmt.Errorf("address 0x%02x: %w", dev.Addr, err))
			continue
		}
		l.Infof("Relay board found at stack %d, address 0x%02x", stack, dev.Addr)
		return &SequentBoard{dev: dev, stack: stack, channels: channels, logger: l}, nil
	}
	return nil, fmt.Errorf("relay board not detected at stack %d: %w", stack, errors.Join(errs...))
}

// probeSequent makes sure the relay pins are configured as outputs. A board
// that was just powered up has every pin as input; configuring it also
// clears the output latch so no relay closes unexpectedly.
func probeSequent(dev *i2c.Dev) error {
	cfg, err := readReg(dev, sequentConfigReg)
	if err != nil {
		return err
	}
	if cfg != sequentConfigValue {
		if err := writeReg(dev, sequentConfigReg, sequentConfigValue); err != nil {
			return err
		}
		if err := writeReg(dev, sequentOutputReg, 0); err != nil {
			return err
		}
	}
	_, err = readReg(dev, sequentInputReg)
	return err
}

func readReg(dev *i2c.Dev, reg byte) (byte, error) {
	r := make([]byte, 1)
	if err := dev.Tx([]byte{reg}, r); err != nil {
		return 0, fmt.Errorf("read register 0x%02x: %w", reg, err)
	}
	return r[0], nil
}

func writeReg(dev *i2c.Dev, reg, value byte) error {
	if err := dev.Tx([]byte{reg, value}, nil); err != nil {
		return fmt.Errorf("write register 0x%02x: %w", reg, err)
	}
	return nil
}

func (b *SequentBoard) Channels() int { return b.channels }

func (b *SequentBoard) allMask() byte {
	var m byte
	for i := 0; i < b.channels; i++ {
		m |= sequentRelayMasks[i]
	}
	return m
}

// Set reads back the pin levels and rewrites the output latch with one relay
// bit changed.
func (b *SequentBoard) Set(channel int, on bool) error {
	if err := checkChannel(channel, b.channels); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, err := readReg(b.dev, sequentInputReg)
	if err != nil {
		return err
	}
	cur &= sequentAllOn
	mask := sequentRelayMasks[channel-1]
	if on {
		cur |= mask
	} else {
		cur &^= mask
	}
	return writeReg(b.dev, sequentOutputReg, cur)
}

func (b *SequentBoard) SetAll(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var v byte
	if on {
		v = b.allMask()
	}
	return writeReg(b.dev, sequentOutputReg, v)
}

// Close switches every relay off and releases the bus when this board owns it.
func (b *SequentBoard) Close() error {
	err := b.SetAll(false)
	if b.closer != nil {
		err = errors.Join(err, b.closer.Close())
		b.closer = nil
	}
	return err
}
