package keymap

import (
	"fmt"
	"sort"
	"strings"

	"relay-service/internal/input"
)

// Button identifies one logical input by its event type and code. Key codes
// and axis codes overlap numerically, so the type is part of the identity.
type Button struct {
	Type uint16
	Code uint16
}

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("%d:%d", b.Type, b.Code)
}

// IsAxis reports whether the button is an analog axis read as a boolean.
func (b Button) IsAxis() bool {
	return b.Type == input.EV_ABS
}

func key(code int) Button  { return Button{Type: input.EV_KEY, Code: uint16(code)} }
func axis(code int) Button { return Button{Type: input.EV_ABS, Code: uint16(code)} }

// Axis direction keys for the d-pad hat.
type AxisDirection struct {
	Code uint16
	Sign int32
}

var dpadSymbols = map[string]AxisDirection{
	"dpad_up":    {Code: input.ABS_HAT0Y, Sign: -1},
	"dpad_down":  {Code: input.ABS_HAT0Y, Sign: 1},
	"dpad_left":  {Code: input.ABS_HAT0X, Sign: -1},
	"dpad_right": {Code: input.ABS_HAT0X, Sign: 1},
}

// symbols is the closed set of button names a keymap may use. Names are
// matched case-insensitively.
var symbols = map[string]Button{
	// gamepad buttons, both the positional and the legacy letter names
	"btn_south":  key(input.BTN_SOUTH),
	"btn_a":      key(input.BTN_SOUTH),
	"btn_east":   key(input.BTN_EAST),
	"btn_b":      key(input.BTN_EAST),
	"btn_c":      key(input.BTN_C),
	"btn_north":  key(input.BTN_NORTH),
	"btn_x":      key(input.BTN_NORTH),
	"btn_west":   key(input.BTN_WEST),
	"btn_y":      key(input.BTN_WEST),
	"btn_z":      key(input.BTN_Z),
	"btn_tl":     key(input.BTN_TL),
	"btn_tr":     key(input.BTN_TR),
	"btn_tl2":    key(input.BTN_TL2),
	"btn_tr2":    key(input.BTN_TR2),
	"btn_select": key(input.BTN_SELECT),
	"btn_start":  key(input.BTN_START),
	"btn_mode":   key(input.BTN_MODE),
	"btn_thumbl": key(input.BTN_THUMBL),
	"btn_thumbr": key(input.BTN_THUMBR),

	// joystick buttons
	"btn_trigger": key(input.BTN_TRIGGER),
	"btn_thumb":   key(input.BTN_THUMB),
	"btn_thumb2":  key(input.BTN_THUMB2),
	"btn_top":     key(input.BTN_TOP),
	"btn_top2":    key(input.BTN_TOP2),
	"btn_pinkie":  key(input.BTN_PINKIE),
	"btn_base":    key(input.BTN_BASE),

	// mouse and touch
	"btn_left":   key(input.BTN_LEFT),
	"btn_right":  key(input.BTN_RIGHT),
	"btn_middle": key(input.BTN_MIDDLE),
	"btn_touch":  key(input.BTN_TOUCH),

	// media remotes and keyboards
	"key_enter":        key(input.KEY_ENTER),
	"key_space":        key(input.KEY_SPACE),
	"key_esc":          key(input.KEY_ESC),
	"key_up":           key(input.KEY_UP),
	"key_down":         key(input.KEY_DOWN),
	"key_left":         key(input.KEY_LEFT),
	"key_right":        key(input.KEY_RIGHT),
	"key_volumeup":     key(input.KEY_VOLUMEUP),
	"key_volumedown":   key(input.KEY_VOLUMEDOWN),
	"key_mute":         key(input.KEY_MUTE),
	"key_playpause":    key(input.KEY_PLAYPAUSE),
	"key_nextsong":     key(input.KEY_NEXTSONG),
	"key_previoussong": key(input.KEY_PREVIOUSSONG),
	"key_power":        key(input.KEY_POWER),
	"key_1":            key(input.KEY_1),
	"key_2":            key(input.KEY_2),
	"key_3":            key(input.KEY_3),
	"key_4":            key(input.KEY_4),
	"key_a":            key(input.KEY_A),
	"key_b":            key(input.KEY_B),
	"key_c":            key(input.KEY_C),
	"key_d":            key(input.KEY_D),

	// analog triggers, pressed when above the trigger threshold
	"abs_z":     axis(input.ABS_Z),
	"abs_rz":    axis(input.ABS_RZ),
	"abs_gas":   axis(input.ABS_GAS),
	"abs_brake": axis(input.ABS_BRAKE),

	// PlayStation layout aliases
	"x":        key(input.BTN_SOUTH),
	"cross":    key(input.BTN_SOUTH),
	"circle":   key(input.BTN_EAST),
	"triangle": key(input.BTN_NORTH),
	"square":   key(input.BTN_WEST),
	"l1":       key(input.BTN_TL),
	"r1":       key(input.BTN_TR),
	"l2":       axis(input.ABS_Z),
	"r2":       axis(input.ABS_RZ),
	"l3":       key(input.BTN_THUMBL),
	"r3":       key(input.BTN_THUMBR),
	"share":    key(input.BTN_SELECT),
	"options":  key(input.BTN_START),
	"ps":       key(input.BTN_MODE),
}

// buttonNames maps a button back to its canonical name for log lines.
var buttonNames = canonicalNames()

// canonicalNames prefers evdev style names, and among those the longest, so
// log lines read BTN_SOUTH rather than BTN_A or x.
func canonicalNames() map[Button]string {
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ei, ej := strings.Contains(names[i], "_"), strings.Contains(names[j], "_")
		if ei != ej {
			return ei
		}
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	out := make(map[Button]string, len(symbols))
	for _, name := range names {
		b := symbols[name]
		if _, ok := out[b]; !ok {
			out[b] = strings.ToUpper(name)
		}
	}
	return out
}

// UnknownSymbolError reports a button name outside the symbol table.
type UnknownSymbolError struct {
	Name string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown button name %q", e.Name)
}

// Lookup resolves a configured button name. D-pad names are not buttons and
// are resolved with LookupDPad.
func Lookup(name string) (Button, error) {
	b, ok := symbols[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Button{}, &UnknownSymbolError{Name: name}
	}
	return b, nil
}

func LookupDPad(name string) (AxisDirection, bool) {
	d, ok := dpadSymbols[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}
