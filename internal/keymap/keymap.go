package keymap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"relay-service/internal/config"
	"relay-service/internal/logger"
)

// Kind selects how a device's events are classified. It is fixed when the
// keymap is compiled.
type Kind int

const (
	Gamepad Kind = iota
	Touch
	Swipe
)

func (k Kind) String() string {
	switch k {
	case Gamepad:
		return "gamepad"
	case Touch:
		return "touch"
	case Swipe:
		return "swipe"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Direction string

const (
	Up    Direction = "UP"
	Down  Direction = "DOWN"
	Left  Direction = "LEFT"
	Right Direction = "RIGHT"
	Tap   Direction = "TAP"
)

func parseDirection(s string) (Direction, bool) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case Up, Down, Left, Right, Tap:
		return d, true
	}
	return "", false
}

// Region is an inclusive rectangle that toggles Relay when touched.
type Region struct {
	XMin, XMax, YMin, YMax int32
	Relay                  int
}

func (r Region) Contains(x, y int32) bool {
	return x >= r.XMin && x <= r.XMax && y >= r.YMin && y <= r.YMax
}

// ConfigError means a device entry cannot produce a usable mapping. It ends
// the session setup, never the process.
type ConfigError struct {
	Device string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("keymap for %s: %s", e.Device, e.Reason)
}

// Index is the compiled, immutable mapping for one session.
type Index struct {
	Kind     Kind
	Channels int

	// Relays maps a relay to the buttons whose OR drives it.
	Relays map[int][]Button
	// Watched holds every button that has a state entry.
	Watched map[Button]struct{}
	// DPad maps a hat direction to the relays it toggles.
	DPad map[AxisDirection][]int
	// Regions are hit-tested in order; the first match wins.
	Regions []Region
	// Swipes maps a gesture to the relays it toggles, ascending.
	Swipes map[Direction][]int

	SwipeThreshold   int32
	TriggerThreshold int32
	// TriggerOnPress hit-tests regions on touch down instead of release.
	TriggerOnPress bool
}

// LevelRelays returns, ascending, the relays driven by button state.
func (ix *Index) LevelRelays() []int {
	out := make([]int, 0, len(ix.Relays))
	for r, buttons := range ix.Relays {
		if len(buttons) > 0 {
			out = append(out, r)
		}
	}
	sort.Ints(out)
	return out
}

// AxisRelays returns, ascending, every relay mapped on either direction of a
// hat axis.
func (ix *Index) AxisRelays(code uint16) []int {
	seen := map[int]bool{}
	var out []int
	for dir, relays := range ix.DPad {
		if dir.Code != code {
			continue
		}
		for _, r := range relays {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Ints(out)
	return out
}

// HasAxis reports whether any d-pad mapping uses the hat axis.
func (ix *Index) HasAxis(code uint16) bool {
	for dir := range ix.DPad {
		if dir.Code == code {
			return true
		}
	}
	return false
}

func (ix *Index) IsWatched(b Button) bool {
	_, ok := ix.Watched[b]
	return ok
}

// parseRelayKey accepts "relay_<n>" with n in 1..channels.
func parseRelayKey(key string, channels int) (int, error) {
	rest, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(key)), "relay_")
	if !ok {
		return 0, fmt.Errorf("invalid relay key format %q", key)
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid relay key format %q", key)
	}
	if n < 1 || n > channels {
		return 0, fmt.Errorf("relay number %d out of range 1..%d", n, channels)
	}
	return n, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func kindOf(dev config.DeviceConfig) (Kind, error) {
	switch strings.ToLower(dev.Type) {
	case "gamepad", "controller":
		return Gamepad, nil
	case "touch", "touchscreen":
		return Touch, nil
	case "swipe", "jx05":
		return Swipe, nil
	case "":
	default:
		return 0, &ConfigError{Device: dev.Label(), Reason: fmt.Sprintf("unknown device type %q", dev.Type)}
	}
	switch {
	case len(dev.SwipeMap) > 0:
		return Swipe, nil
	case len(dev.VirtualButtons) > 0:
		return Touch, nil
	case len(dev.Keymap) > 0:
		return Gamepad, nil
	}
	return 0, &ConfigError{Device: dev.Label(), Reason: "no keymap, virtual_buttons or swipe_map configured"}
}

// Compile validates a device entry and builds its Index. Malformed relay
// keys, out of range relays, unknown button names, bad regions and unknown
// swipe directions are logged and skipped. A mapping left with no valid
// relay at all is a *ConfigError.
func Compile(dev config.DeviceConfig, channels int, l *logger.Logger) (*Index, error) {
	kind, err := kindOf(dev)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		Kind:             kind,
		Channels:         channels,
		Relays:           make(map[int][]Button),
		Watched:          make(map[Button]struct{}),
		DPad:             make(map[AxisDirection][]int),
		Swipes:           make(map[Direction][]int),
		SwipeThreshold:   dev.SwipeThreshold,
		TriggerThreshold: dev.TriggerThreshold,
		TriggerOnPress:   strings.EqualFold(dev.TouchTrigger, "press"),
	}
	if ix.SwipeThreshold <= 0 {
		ix.SwipeThreshold = config.DefaultSwipeThreshold
	}

	var valid int
	switch kind {
	case Gamepad:
		valid = compileButtons(ix, dev, l)
	case Touch:
		valid = compileRegions(ix, dev, l)
	case Swipe:
		valid = compileSwipes(ix, dev, l)
	}
	if valid == 0 {
		return nil, &ConfigError{Device: dev.Label(), Reason: "no valid relay mappings found"}
	}
	return ix, nil
}

func compileButtons(ix *Index, dev config.DeviceConfig, l *logger.Logger) int {
	if len(dev.Keymap) == 0 {
		return 0
	}
	valid := 0
	for _, k := range sortedKeys(dev.Keymap) {
		relay, err := parseRelayKey(k, ix.Channels)
		if err != nil {
			l.Warnf("%v, skipping", err)
			continue
		}
		valid++

		var unknown []string
		buttons := []Button{}
		for _, name := range dev.Keymap[k] {
			if dir, ok := LookupDPad(name); ok {
				ix.DPad[dir] = appendUnique(ix.DPad[dir], relay)
				continue
			}
			b, err := Lookup(name)
			if err != nil {
				unknown = append(unknown, name)
				continue
			}
			buttons = append(buttons, b)
			ix.Watched[b] = struct{}{}
		}
		if len(unknown) > 0 {
			l.Warnf("relay %d: ignoring unknown button names %s", relay, strings.Join(unknown, ", "))
		}
		ix.Relays[relay] = buttons
	}
	for dir := range ix.DPad {
		sort.Ints(ix.DPad[dir])
	}
	return valid
}

func compileRegions(ix *Index, dev config.DeviceConfig, l *logger.Logger) int {
	valid := 0
	relays := map[int][]config.Region{}
	for _, k := range sortedKeys(dev.VirtualButtons) {
		relay, err := parseRelayKey(k, ix.Channels)
		if err != nil {
			l.Warnf("%v, skipping", err)
			continue
		}
		relays[relay] = dev.VirtualButtons[k]
		valid++
	}
	order := make([]int, 0, len(relays))
	for r := range relays {
		order = append(order, r)
	}
	sort.Ints(order)

	for _, relay := range order {
		ix.Relays[relay] = nil
		for i, reg := range relays[relay] {
			if reg.XMin > reg.XMax || reg.YMin > reg.YMax {
				l.Warnf("relay %d: region %d has inverted bounds, skipping", relay, i)
				continue
			}
			ix.Regions = append(ix.Regions, Region{
				XMin: reg.XMin, XMax: reg.XMax,
				YMin: reg.YMin, YMax: reg.YMax,
				Relay: relay,
			})
		}
	}
	return valid
}

func compileSwipes(ix *Index, dev config.DeviceConfig, l *logger.Logger) int {
	valid := 0
	for _, k := range sortedKeys(dev.SwipeMap) {
		relay, err := parseRelayKey(k, ix.Channels)
		if err != nil {
			l.Warnf("%v, skipping", err)
			continue
		}
		valid++
		ix.Relays[relay] = nil
		for _, name := range dev.SwipeMap[k] {
			dir, ok := parseDirection(name)
			if !ok {
				l.Warnf("relay %d: unknown swipe direction %q, skipping", relay, name)
				continue
			}
			ix.Swipes[dir] = appendUnique(ix.Swipes[dir], relay)
		}
	}
	for dir := range ix.Swipes {
		sort.Ints(ix.Swipes[dir])
	}
	return valid
}

func appendUnique(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
