package graphics

// Context defines the interface for the window hosting the preview's OpenGL
// context.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	// GetWindowSize returns the size in screen coordinates, which is what
	// cursor positions are reported in.
	GetWindowSize() (int, int)
	// ContentScale is the ratio of framebuffer pixels to screen coordinates.
	ContentScale() float64
	IsGLES() bool
}
