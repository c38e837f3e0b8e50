// Package viewport resolves the pixel size of the preview surface.
package viewport

import (
	"fmt"
	"math"
)

// Fallback is the edge length used when nothing else gives a size.
const Fallback = 500

// Size is a surface size in logical (unscaled) pixels.
type Size struct {
	Width, Height int
}

// Empty reports whether either dimension is below one pixel.
func (s Size) Empty() bool {
	return s.Width < 1 || s.Height < 1
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Controller picks the surface size from, in order: an explicit size set by
// an interactive resize, the container's measured size, the configured
// default, and Fallback. Changing the size never recompiles anything; the
// caller only refreshes its resolution uniforms.
type Controller struct {
	// DefaultSize caps the container size and is used on its own when the
	// container has no size. Zero disables it.
	DefaultSize int
	// ConstrainToSquare forces width == height, using the smaller side.
	ConstrainToSquare bool

	explicit    Size
	hasExplicit bool
}

// SetExplicit pins the size. An empty size clears the pin.
func (c *Controller) SetExplicit(s Size) {
	if s.Empty() {
		c.ClearExplicit()
		return
	}
	c.explicit, c.hasExplicit = s, true
}

// ClearExplicit drops a size set with SetExplicit.
func (c *Controller) ClearExplicit() {
	c.explicit, c.hasExplicit = Size{}, false
}

// Explicit returns the pinned size, if any.
func (c *Controller) Explicit() (Size, bool) {
	return c.explicit, c.hasExplicit
}

// Resolve returns the surface size for the given container size.
func (c *Controller) Resolve(container Size) Size {
	var s Size
	switch {
	case c.hasExplicit:
		s = c.explicit
	case !container.Empty():
		s = container
		if c.DefaultSize > 0 {
			s.Width = min(s.Width, c.DefaultSize)
			s.Height = min(s.Height, c.DefaultSize)
		}
	case c.DefaultSize > 0:
		s = Size{c.DefaultSize, c.DefaultSize}
	default:
		s = Size{Fallback, Fallback}
	}
	if c.ConstrainToSquare {
		edge := min(s.Width, s.Height)
		s = Size{edge, edge}
	}
	return s
}

// Pixels scales a logical size by the device pixel ratio, rounded to whole
// framebuffer pixels. Ratios that are not positive count as 1.
func Pixels(s Size, dpr float64) Size {
	if dpr <= 0 || math.IsNaN(dpr) || math.IsInf(dpr, 0) {
		dpr = 1
	}
	return Size{int(math.Round(float64(s.Width) * dpr)), int(math.Round(float64(s.Height) * dpr))}
}

// Resolution is the resolution uniform value for a logical size: the
// framebuffer size Pixels allocates, as floats.
func Resolution(s Size, dpr float64) [2]float32 {
	px := Pixels(s, dpr)
	return [2]float32{float32(px.Width), float32(px.Height)}
}
