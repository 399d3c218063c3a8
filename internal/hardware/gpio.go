package hardware

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"relay-service/internal/logger"
)

// GPIOBoard drives one relay per GPIO line on a single chip.
type GPIOBoard struct {
	mu     sync.Mutex
	chip   *gpiocdev.Chip
	lines  []*gpiocdev.Line
	logger *logger.Logger
}

// OpenGPIO requests every line as an output driven low, so all relays start
// off. With activeLow a logical on drives the pin low.
func OpenGPIO(chipName string, offsets []int, activeLow bool, l *logger.Logger) (*GPIOBoard, error) {
	if len(offsets) == 0 {
		return nil, errors.New("no GPIO lines configured")
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipName, err)
	}

	b := &GPIOBoard{chip: chip, logger: l}
	for i, offset := range offsets {
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer(GpioConsumer),
		}
		if activeLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to request GPIO line %d: %w", offset, err)
		}
		b.lines = append(b.lines, line)
		l.Infof("Configured relay %d: chip=%s, line=%d", i+1, chipName, offset)
	}
	return b, nil
}

func (b *GPIOBoard) Channels() int { return len(b.lines) }

func (b *GPIOBoard) Set(channel int, on bool) error {
	if err := checkChannel(channel, len(b.lines)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	val := 0
	if on {
		val = 1
	}
	if err := b.lines[channel-1].SetValue(val); err != nil {
		return fmt.Errorf("failed to set relay %d: %w", channel, err)
	}
	return nil
}

func (b *GPIOBoard) SetAll(on bool) error {
	var errs []error
	for ch := 1; ch <= len(b.lines); ch++ {
		if err := b.Set(ch, on); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *GPIOBoard) Close() error {
	var errs []error
	for i, line := range b.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("relay %d: %w", i+1, err))
		}
		line.Close()
	}
	b.lines = nil
	if b.chip != nil {
		errs = append(errs, b.chip.Close())
		b.chip = nil
	}
	return errors.Join(errs...)
}
