// Package viewport interprets raw pointer and wheel input into the pan and
// zoom state of the board view and tells a click apart from a drag.
package viewport

import (
	"math"
	"sync"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/geometry"
)

// Set of limits applied to the viewport.
const (
	MinZoom       = 0.1
	MaxZoom       = 10.0
	ZoomStep      = 0.1
	DragThreshold = 5.0
)

// Button identifies the pointer button that produced an event.
type Button int

// Set of pointer buttons. Only the primary button starts a drag.
const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// State is a copy of the viewport state at a point in time.
type State struct {
	Zoom       float64        `json:"zoom"`
	Pan        geometry.Point `json:"pan"`
	IsDragging bool           `json:"is_dragging"`
	DragOrigin geometry.Point `json:"drag_origin"`
	HasDragged bool           `json:"has_dragged"`
}

// Config represents the configuration required to construct a viewport.
type Config struct {
	Size   int
	Width  float64
	Height float64
}

// Controller owns the viewport state. Input events are serialized by the
// controller so it can be driven from more than one goroutine.
type Controller struct {
	mu     sync.Mutex
	size   int
	width  float64
	height float64
	state  State
	press  geometry.Point
}

// New constructs a viewport controller for a board of the configured size.
func New(cfg Config) *Controller {
	return &Controller{
		size:   cfg.Size,
		width:  cfg.Width,
		height: cfg.Height,
		state:  State{Zoom: 1},
	}
}

// =============================================================================

// PointerDown starts a potential drag when the primary button is pressed.
func (c *Controller) PointerDown(p geometry.Point, button Button) {
	if button != ButtonPrimary {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.IsDragging = true
	c.state.HasDragged = false
	c.state.DragOrigin = p
	c.press = p
}

// PointerMove pans the view by the distance moved since the last event. Once
// the pointer has travelled past the drag threshold from where it was pressed,
// the gesture is latched as a drag until the next press.
func (c *Controller) PointerMove(p geometry.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsDragging {
		return
	}

	if p.Sub(c.press).Len() > DragThreshold {
		c.state.HasDragged = true
	}

	c.state.Pan = c.state.Pan.Add(p.Sub(c.state.DragOrigin))
	c.state.DragOrigin = p
}

// PointerUp ends the drag. The drag latch is left for Click to consume.
func (c *Controller) PointerUp() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.IsDragging = false
}

// Wheel zooms out for a positive delta and in for a negative delta.
func (c *Controller) Wheel(deltaY float64) {
	if deltaY == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	step := ZoomStep
	if deltaY > 0 {
		step = -ZoomStep
	}

	c.state.Zoom = math.Max(MinZoom, math.Min(MaxZoom, c.state.Zoom+step))
}

// Click resolves the point to a cell. A click that ends a drag is suppressed
// and consumes the drag latch.
func (c *Controller) Click(p geometry.Point) (geometry.Coords, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.HasDragged {
		c.state.HasDragged = false
		return geometry.Coords{}, false
	}

	return c.geometry().ScreenToCell(p)
}

// =============================================================================

// Resize records new canvas dimensions.
func (c *Controller) Resize(width float64, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.width = width
	c.height = height
}

// Reset restores the state of a freshly mounted view.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = State{Zoom: 1}
	c.press = geometry.Point{}
}

// State returns a copy of the current viewport state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Geometry returns the transform for the current viewport state.
func (c *Controller) Geometry() geometry.Geometry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.geometry()
}

func (c *Controller) geometry() geometry.Geometry {
	return geometry.Geometry{
		Width:  c.width,
		Height: c.height,
		Size:   c.size,
		Zoom:   c.state.Zoom,
		Pan:    c.state.Pan,
	}
}
