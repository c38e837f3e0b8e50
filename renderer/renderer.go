// Package renderer is the OpenGL implementation of engine.Backend. Frames are
// drawn into an offscreen target, then blitted to the top-left corner of the
// window.
package renderer

import (
	"fmt"
	"image"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/glslpreview/engine"
	"github.com/richinsley/glslpreview/graphics"
	"github.com/richinsley/glslpreview/shader"
	"github.com/richinsley/glslpreview/translator"
)

var glInitOnce sync.Once

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

// Renderer owns the GL resources shared by every program. All methods must
// be called on the goroutine the context is current on.
type Renderer struct {
	context     graphics.Context
	translator  *translator.Translator
	quadVAO     uint32
	quadVBO     uint32
	blitProgram uint32
	blitTexLoc  int32
	offscreen   *offscreen
	emptyTex    uint32 // transparent placeholder for samplers without an image
}

// New makes ctx current and prepares the quad, the blit program and the
// offscreen target.
func New(ctx graphics.Context, tr *translator.Translator) (*Renderer, error) {
	r := &Renderer{context: ctx, translator: tr}
	r.context.MakeCurrent()

	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}

	gl.GenVertexArrays(1, &r.quadVAO)
	gl.GenBuffers(1, &r.quadVBO)
	gl.BindVertexArray(r.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	gles := r.context.IsGLES()
	var log string
	r.blitProgram, log = newProgram(shader.GenerateVertexShader(gles), shader.GetBlitFragmentShader(gles))
	if r.blitProgram == 0 {
		r.Shutdown()
		return nil, fmt.Errorf("failed to create blit program: %s", log)
	}
	r.blitTexLoc = gl.GetUniformLocation(r.blitProgram, gl.Str("u_texture\x00"))

	r.emptyTex = newEmptyTexture()

	width, height := r.context.GetFramebufferSize()
	var err error
	r.offscreen, err = newOffscreen(width, height)
	if err != nil {
		r.Shutdown()
		return nil, fmt.Errorf("failed to create offscreen renderer: %w", err)
	}
	return r, nil
}

// SetSize implements engine.Backend.
func (r *Renderer) SetSize(width, height int) {
	r.offscreen.resize(width, height)
}

// Render implements engine.Backend.
func (r *Renderer) Render(p engine.Program) {
	prog, ok := p.(*program)
	if !ok || prog.id == 0 {
		return
	}
	w, h := int32(r.offscreen.width), int32(r.offscreen.height)

	gl.BindFramebuffer(gl.FRAMEBUFFER, r.offscreen.fbo)
	gl.Viewport(0, 0, w, h)
	gl.UseProgram(prog.id)
	gl.BindVertexArray(r.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)

	_, fbHeight := r.context.GetFramebufferSize()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.Viewport(0, int32(fbHeight)-h, w, h)
	gl.UseProgram(r.blitProgram)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.offscreen.textureID)
	gl.Uniform1i(r.blitTexLoc, 0)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)

	// Unit 0 must not keep the render target bound into the next frame.
	gl.BindTexture(gl.TEXTURE_2D, r.emptyTex)
}

// Snapshot implements engine.Backend.
func (r *Renderer) Snapshot() (*image.RGBA, error) {
	if r.offscreen == nil {
		return nil, fmt.Errorf("renderer is shut down")
	}
	return r.offscreen.read(), nil
}

// Shutdown releases the shared GL resources. Programs and textures are
// released by their owners.
func (r *Renderer) Shutdown() {
	if r.blitProgram != 0 {
		gl.DeleteProgram(r.blitProgram)
		r.blitProgram = 0
	}
	if r.offscreen != nil {
		r.offscreen.destroy()
		r.offscreen = nil
	}
	if r.emptyTex != 0 {
		gl.DeleteTextures(1, &r.emptyTex)
		r.emptyTex = 0
	}
	gl.DeleteBuffers(1, &r.quadVBO)
	gl.DeleteVertexArrays(1, &r.quadVAO)
}
