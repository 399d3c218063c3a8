package hardware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relay-service/internal/logger"
)

// CycleRelays switches each relay on and then off in turn, pausing interval
// after every write, until ctx is done. Every relay is switched off before
// it returns.
func CycleRelays(ctx context.Context, port RelayPort, interval time.Duration, l *logger.Logger) (err error) {
	defer func() {
		l.Infof("Turning all relays OFF")
		if offErr := port.SetAll(false); offErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to switch relays off: %w", offErr))
		}
	}()

	pause := func() bool {
		t := time.NewTimer(interval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}

	for {
		for ch := 1; ch <= port.Channels(); ch++ {
			for _, on := range []bool{true, false} {
				if ctx.Err() != nil {
					return nil
				}
				l.Infof("Turning relay %d %s", ch, onOff(on))
				if err := port.Set(ch, on); err != nil {
					return fmt.Errorf("relay %d: %w", ch, err)
				}
				if !pause() {
					return nil
				}
			}
		}
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
