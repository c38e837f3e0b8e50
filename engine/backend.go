package engine

import (
	"image"

	"github.com/richinsley/glslpreview/diagnostics"
)

// Value is a uniform value: one float for a scalar, two for a vec2, and so on.
type Value []float32

// Backend is the GPU side of the preview. A single implementation is bound
// to a concrete graphics API; every method is called from the goroutine
// that drives the engine.
type Backend interface {
	// SetSize resizes the render target, in framebuffer pixels.
	SetSize(width, height int)
	// NewProgram builds a program from compiled fragment source. Compile
	// failures are reported through the program's Diagnostics; an error is
	// returned only when no program object could be produced at all.
	NewProgram(fragment string) (Program, error)
	NewTexture(img image.Image) (Texture, error)
	// Render draws one frame with p.
	Render(p Program)
	// Snapshot reads back the last rendered frame.
	Snapshot() (*image.RGBA, error)
}

// Program is a render object: one compiled fragment program.
type Program interface {
	Diagnostics() Diagnostics
	SetUniform(name string, v Value)
	// SetTexture binds t to the sampler name on unit. A nil t leaves the
	// sampler reading transparent black.
	SetTexture(name string, unit int, t Texture)
	Dispose()
}

// Texture is a GPU texture created from a decoded image.
type Texture interface {
	Size() (width, height int)
	Dispose()
}

// Diagnostics is the compile and link outcome of a program.
type Diagnostics struct {
	Runnable bool
	// Log is the raw info log.
	Log string
	// Errors, when set, are already in compiled-source coordinates and
	// take precedence over parsing Log.
	Errors []diagnostics.CompilerError
	// Source, when set, is the text Errors refer to in place of the
	// compiled source, such as a translator's output. Its lines are matched
	// back to the editor source by content.
	Source string
}
