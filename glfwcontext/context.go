package glfwcontext

import (
	"log/slog"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
)

// Options configures the preview window.
type Options struct {
	Width, Height int
	Title         string
	Visible       bool
}

// Context is a GLFW window with an OpenGL 4.1 core context. It forwards
// resize and cursor events to the registered handlers.
type Context struct {
	window *glfw.Window
	// A map to store functions to be called on key presses.
	keyCallbacks map[glfw.Key]func()
	onResize     func(width, height int, scale float64)
	onCursor     func(x, y float64)
}

// New creates and initializes a new GLFW window and returns a Context object.
func New(opts Options) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ScaleToMonitor, glfw.True)

	if opts.Visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	title := opts.Title
	if title == "" {
		title = "glslpreview"
	}
	win, err := glfw.CreateWindow(opts.Width, opts.Height, title, nil, nil)
	if err != nil {
		return nil, err
	}

	c := &Context{
		window:       win,
		keyCallbacks: make(map[glfw.Key]func()),
	}
	win.SetKeyCallback(c.glfwKeyCallback)
	win.SetSizeCallback(func(_ *glfw.Window, width, height int) {
		if c.onResize != nil {
			c.onResize(width, height, c.ContentScale())
		}
	})
	win.SetFramebufferSizeCallback(func(w *glfw.Window, _, _ int) {
		if c.onResize != nil {
			width, height := w.GetSize()
			c.onResize(width, height, c.ContentScale())
		}
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if c.onCursor != nil {
			c.onCursor(x, y)
		}
	})
	return c, nil
}

// OnResize registers f to receive the window size in screen coordinates and
// the content scale whenever either changes.
func (c *Context) OnResize(f func(width, height int, scale float64)) {
	c.onResize = f
}

// OnCursor registers f to receive cursor positions in screen coordinates
// relative to the top-left corner of the window.
func (c *Context) OnCursor(f func(x, y float64)) {
	c.onCursor = f
}

// RegisterKeyCallback allows the main application to register a function to be
// called when a specific key is pressed.
func (c *Context) RegisterKeyCallback(key glfw.Key, f func()) {
	c.keyCallbacks[key] = f
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
	if action == glfw.Press {
		if callback, ok := c.keyCallbacks[key]; ok {
			callback()
		}
	}
}

// SetTitle updates the window title.
func (c *Context) SetTitle(title string) {
	c.window.SetTitle(title)
}

func (c *Context) IsGLES() bool {
	// GLFW does not provide a direct way to check if the context is GLES.
	return false
}

// MakeCurrent makes the context current for the calling goroutine.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

// Shutdown destroys the window.
func (c *Context) Shutdown() {
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) GetWindowSize() (int, int) {
	return c.window.GetSize()
}

func (c *Context) ContentScale() float64 {
	fbWidth, _ := c.window.GetFramebufferSize()
	winWidth, _ := c.window.GetSize()
	if winWidth <= 0 || fbWidth <= 0 {
		return 1
	}
	return float64(fbWidth) / float64(winWidth)
}


// InitGraphics initializes the main graphics subsystem (GLFW). Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	slog.Debug("GLFW initialized")
	return nil
}

// TerminateGraphics shuts down the graphics subsystem. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	slog.Debug("GLFW terminated")
}
