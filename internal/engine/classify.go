package engine

import (
	"relay-service/internal/input"
	"relay-service/internal/keymap"
)

type touchState struct {
	x, y           int32
	startX, startY int32
	haveX, haveY   bool
	down           bool
	// pressPending defers a touch-down hit test to the end of the frame,
	// when both coordinates of the new contact have arrived.
	pressPending bool
}

func (t *touchState) setX(v int32) {
	t.x = v
	if !t.haveX {
		t.startX, t.haveX = v, true
	}
}

func (t *touchState) setY(v int32) {
	t.y = v
	if !t.haveY {
		t.startY, t.haveY = v, true
	}
}

func (t *touchState) reset() {
	t.haveX, t.haveY = false, false
	t.down, t.pressPending = false, false
}

// Handle classifies one raw event for the session's device kind and applies
// it. Events the mapping does not use are ignored.
func (s *Session) Handle(ev input.Event) error {
	switch s.index.Kind {
	case keymap.Touch:
		return s.handleTouch(ev)
	case keymap.Swipe:
		return s.handleSwipe(ev)
	default:
		return s.handleGamepad(ev)
	}
}

func (s *Session) handleGamepad(ev input.Event) error {
	switch ev.Type {
	case input.EV_KEY:
		// Auto-repeat (2) counts as held.
		return s.Apply(keymap.Button{Type: ev.Type, Code: ev.Code}, ev.Value != 0)
	case input.EV_ABS:
		if (ev.Code == input.ABS_HAT0X || ev.Code == input.ABS_HAT0Y) && s.index.HasAxis(ev.Code) {
			return s.handleHat(ev.Code, ev.Value)
		}
		return s.Apply(keymap.Button{Type: ev.Type, Code: ev.Code}, ev.Value > s.index.TriggerThreshold)
	}
	return nil
}

// handleHat toggles on entering a direction and forces the axis's relays
// off when the hat returns to centre. Repeated values are not edges.
func (s *Session) handleHat(code uint16, value int32) error {
	if prev, ok := s.hats[code]; ok && prev == value {
		return nil
	}
	s.hats[code] = value

	if value == 0 {
		for _, ch := range s.index.AxisRelays(code) {
			if err := s.ForceOff(ch); err != nil {
				return err
			}
		}
		return nil
	}

	sign := int32(1)
	if value < 0 {
		sign = -1
	}
	for _, ch := range s.index.DPad[keymap.AxisDirection{Code: code, Sign: sign}] {
		if err := s.Toggle(ch); err != nil {
			return err
		}
	}
	return nil
}

// trackCoordinates updates the touch position; it reports whether ev was a
// coordinate.
func (s *Session) trackCoordinates(ev input.Event) bool {
	if ev.Type != input.EV_ABS {
		return false
	}
	switch ev.Code {
	case input.ABS_X, input.ABS_MT_POSITION_X:
		s.touch.setX(ev.Value)
	case input.ABS_Y, input.ABS_MT_POSITION_Y:
		s.touch.setY(ev.Value)
	default:
		return false
	}
	return true
}

func isTouchButton(ev input.Event) bool {
	return ev.Type == input.EV_KEY && ev.Code == input.BTN_TOUCH
}

func isFrameEnd(ev input.Event) bool {
	return ev.Type == input.EV_SYN && ev.Code == input.SYN_REPORT
}

func (s *Session) handleTouch(ev input.Event) error {
	if s.trackCoordinates(ev) {
		return nil
	}
	switch {
	case isTouchButton(ev) && ev.Value != 0:
		if s.touch.down {
			return nil
		}
		s.touch.down = true
		if s.index.TriggerOnPress {
			s.touch.pressPending = true
		}
	case isTouchButton(ev) && ev.Value == 0:
		if !s.touch.down {
			return nil
		}
		x, y := s.touch.x, s.touch.y
		trigger := !s.index.TriggerOnPress
		s.touch.reset()
		if trigger {
			return s.hitTest(x, y)
		}
	case isFrameEnd(ev) && s.touch.pressPending:
		s.touch.pressPending = false
		return s.hitTest(s.touch.x, s.touch.y)
	}
	return nil
}

// hitTest toggles the relay of the first region containing the point.
func (s *Session) hitTest(x, y int32) error {
	for _, r := range s.index.Regions {
		if r.Contains(x, y) {
			s.logger.Debugf("Touch at (%d, %d) hit relay %d", x, y, r.Relay)
			return s.Toggle(r.Relay)
		}
	}
	s.logger.Debugf("Touch at (%d, %d) outside every region", x, y)
	return nil
}

func (s *Session) handleSwipe(ev input.Event) error {
	if s.trackCoordinates(ev) {
		return nil
	}
	if !isTouchButton(ev) {
		return nil
	}
	if ev.Value != 0 {
		s.touch.down = true
		return nil
	}
	if !s.touch.down {
		return nil
	}

	// An axis that never moved during the contact has no displacement.
	var dx, dy int32
	if s.touch.haveX {
		dx = s.touch.x - s.touch.startX
	}
	if s.touch.haveY {
		dy = s.touch.y - s.touch.startY
	}
	s.touch.reset()

	dir := ClassifySwipe(dx, dy, s.index.SwipeThreshold)
	relays := s.index.Swipes[dir]
	s.logger.Debugf("Swipe %s (dx=%d, dy=%d) toggles %v", dir, dx, dy, relays)
	for _, ch := range relays {
		if err := s.Toggle(ch); err != nil {
			return err
		}
	}
	return nil
}

// ClassifySwipe names the gesture for a displacement. Movement under the
// threshold on both axes is a tap; otherwise the dominant axis wins, and a
// tie goes to the vertical axis.
func ClassifySwipe(dx, dy, threshold int32) keymap.Direction {
	ax, ay := abs(dx), abs(dy)
	if ax < threshold && ay < threshold {
		return keymap.Tap
	}
	if ax > ay {
		if dx > 0 {
			return keymap.Right
		}
		return keymap.Left
	}
	if dy > 0 {
		return keymap.Down
	}
	return keymap.Up
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
