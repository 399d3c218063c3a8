package hardware

import (
	"testing"
)

func TestOpenMCP23017RejectsBadPins(t *testing.T) {
	cases := []struct {
		name     string
		pins     []int
		channels int
	}{
		{"too few pins", []int{0, 1}, 4},
		{"pin above 15", []int{0, 16}, 2},
		{"negative pin", []int{-1}, 1},
		{"no channels", nil, 0},
		{"too many channels", nil, 17},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := OpenMCP23017(1, 0, tc.pins, tc.channels, testLogger()); err == nil {
				t.Error("expected error before touching the bus")
			}
		})
	}
}

func TestMCPBoardChannelRange(t *testing.T) {
	b := &MCPBoard{pins: []uint8{4, 5}, logger: testLogger()}
	if b.Channels() != 2 {
		t.Errorf("channels = %d", b.Channels())
	}
	for _, ch := range []int{0, 3} {
		if err := b.Set(ch, true); err == nil {
			t.Errorf("expected range error for relay %d", ch)
		}
	}
}

func TestOpenGPIOArguments(t *testing.T) {
	if _, err := OpenGPIO("gpiochip0", nil, false, testLogger()); err == nil {
		t.Error("expected error without lines")
	}
	if _, err := OpenGPIO("relay-service-no-such-chip", []int{17}, false, testLogger()); err == nil {
		t.Error("expected error for a missing chip")
	}
}

func TestGPIOBoardChannelRange(t *testing.T) {
	b := &GPIOBoard{logger: testLogger()}
	if b.Channels() != 0 {
		t.Errorf("channels = %d", b.Channels())
	}
	if err := b.Set(1, true); err == nil {
		t.Error("expected range error on a board without lines")
	}
	if err := b.SetAll(true); err != nil {
		t.Errorf("SetAll on an empty board failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
