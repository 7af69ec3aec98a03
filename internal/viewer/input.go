// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import "math"

// swipeThreshold is the minimum horizontal travel recognised as a swipe.
const swipeThreshold = 50.0

// Key is a navigation key understood by the controller.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyPageUp
	KeyPageDown
	KeyHome
	KeyEnd
	KeyPlus
	KeyEquals
	KeyMinus
	KeyEscape
	KeyFullscreen
)

// Control is a host widget that triggers one action, such as a button.
type Control interface {
	// Bind attaches action and returns the function that detaches it.
	Bind(action func()) (release func())

	// SetEnabled greys the control in or out.
	SetEnabled(enabled bool)
}

// KeySource delivers key presses to a handler until released.
type KeySource interface {
	BindKeys(handler func(Key)) (release func())
}

// Controls are the optional widgets of a viewer. Nil entries are skipped.
type Controls struct {
	First      Control
	Prev       Control
	Next       Control
	Last       Control
	ZoomIn     Control
	ZoomOut    Control
	Fullscreen Control
	Retry      Control
}

// HandleKey maps a key press to a viewer action.
func (controller *Controller) HandleKey(key Key) {
	switch key {
	case KeyLeft, KeyPageUp:
		controller.Prev()
	case KeyRight, KeyPageDown:
		controller.Next()
	case KeyHome:
		controller.First()
	case KeyEnd:
		controller.Last()
	case KeyPlus, KeyEquals:
		controller.ZoomIn()
	case KeyMinus:
		controller.ZoomOut()
	case KeyFullscreen:
		controller.ToggleFullscreen()
	case KeyEscape:
		if controller.State().Fullscreen {
			controller.ToggleFullscreen()
		}
	}
}

// HandleSwipe turns a mostly horizontal gesture of dx, dy units into
// navigation: travelling left shows the next page, right the previous one.
func (controller *Controller) HandleSwipe(dx, dy float64) {
	if math.Abs(dx) <= swipeThreshold || math.Abs(dx) < math.Abs(dy) {
		return
	}

	if dx < 0 {
		controller.Next()
	} else {
		controller.Prev()
	}
}
