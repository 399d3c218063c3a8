package hardware

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"relay-service/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(nil, logger.LogLevelDebug)
}

func TestSequentRegisterProtocol(t *testing.T) {
	const addr = 0x3F // stack 0: 0x38 + (7 ^ 0)
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		// probe: unconfigured expander gets configured and cleared
		{Addr: addr, W: []byte{0x03}, R: []byte{0x00}},
		{Addr: addr, W: []byte{0x03, 0x0F}},
		{Addr: addr, W: []byte{0x01, 0x00}},
		{Addr: addr, W: []byte{0x00}, R: []byte{0x00}},
		// relay 2 on, input noise in the low nibble is dropped
		{Addr: addr, W: []byte{0x00}, R: []byte{0x0F}},
		{Addr: addr, W: []byte{0x01, 0x40}},
		// relay 1 on, relay 2 stays on
		{Addr: addr, W: []byte{0x00}, R: []byte{0x4A}},
		{Addr: addr, W: []byte{0x01, 0xC0}},
		// relay 2 off
		{Addr: addr, W: []byte{0x00}, R: []byte{0xC0}},
		{Addr: addr, W: []byte{0x01, 0x80}},
		// all off
		{Addr: addr, W: []byte{0x01, 0x00}},
	}}

	b, err := NewSequentBoard(bus, 0, 4, testLogger())
	if err != nil {
		t.Fatalf("NewSequentBoard failed: %v", err)
	}
	if err := b.Set(2, true); err != nil {
		t.Fatalf("Set(2, true) failed: %v", err)
	}
	if err := b.Set(1, true); err != nil {
		t.Fatalf("Set(1, true) failed: %v", err)
	}
	if err := b.Set(2, false); err != nil {
		t.Fatalf("Set(2, false) failed: %v", err)
	}
	if err := b.SetAll(false); err != nil {
		t.Fatalf("SetAll failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("not every expected transaction happened: %v", err)
	}
}

func TestSequentConfiguredBoardIsNotReset(t *testing.T) {
	const addr = 0x3C // stack 3: 0x38 + (7 ^ 3)
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: addr, W: []byte{0x03}, R: []byte{0x0F}},
		{Addr: addr, W: []byte{0x00}, R: []byte{0x80}},
		{Addr: addr, W: []byte{0x01, 0xF0}},
	}}

	b, err := NewSequentBoard(bus, 3, 4, testLogger())
	if err != nil {
		t.Fatalf("NewSequentBoard failed: %v", err)
	}
	if err := b.SetAll(true); err != nil {
		t.Fatalf("SetAll failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("unexpected transactions: %v", err)
	}
}

// registerBus models expander chips at fixed addresses. The input port
// reflects the output latch.
type registerBus struct {
	chips map[uint16]*[4]byte
}

func (b *registerBus) String() string { return "registerBus" }
func (b *registerBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *registerBus) Tx(addr uint16, w, r []byte) error {
	regs, ok := b.chips[addr]
	if !ok {
		return errors.New("nack")
	}
	switch {
	case len(w) == 1 && len(r) == 1:
		if w[0] == sequentInputReg {
			r[0] = regs[sequentOutputReg]
		} else {
			r[0] = regs[w[0]]
		}
	case len(w) == 2:
		regs[w[0]] = w[1]
	default:
		return errors.New("unsupported transaction")
	}
	return nil
}

func TestSequentAlternateAddress(t *testing.T) {
	regs := &[4]byte{}
	bus := &registerBus{chips: map[uint16]*[4]byte{0x27: regs}}

	b, err := NewSequentBoard(bus, 0, 4, testLogger())
	if err != nil {
		t.Fatalf("NewSequentBoard failed: %v", err)
	}
	if b.dev.Addr != 0x27 {
		t.Errorf("address = 0x%02x, want 0x27", b.dev.Addr)
	}
	if regs[sequentConfigReg] != 0x0F {
		t.Errorf("config register = 0x%02x", regs[sequentConfigReg])
	}

	if err := b.Set(4, true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if regs[sequentOutputReg] != 0x10 {
		t.Errorf("output = 0x%02x, want 0x10", regs[sequentOutputReg])
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if regs[sequentOutputReg] != 0 {
		t.Errorf("Close left output at 0x%02x", regs[sequentOutputReg])
	}
}

func TestSequentBoardMissing(t *testing.T) {
	bus := &registerBus{chips: map[uint16]*[4]byte{}}
	if _, err := NewSequentBoard(bus, 1, 4, testLogger()); err == nil {
		t.Error("expected error without a board on the bus")
	}
}

func TestSequentChannelRange(t *testing.T) {
	bus := &registerBus{chips: map[uint16]*[4]byte{0x3F: {}}}
	b, err := NewSequentBoard(bus, 0, 2, testLogger())
	if err != nil {
		t.Fatalf("NewSequentBoard failed: %v", err)
	}
	if err := b.Set(3, true); err == nil {
		t.Error("expected error for relay outside configured channels")
	}
	if err := b.SetAll(true); err != nil {
		t.Fatalf("SetAll failed: %v", err)
	}
	if got := bus.chips[0x3F][sequentOutputReg]; got != 0xC0 {
		t.Errorf("SetAll with 2 channels wrote 0x%02x, want 0xC0", got)
	}
}
