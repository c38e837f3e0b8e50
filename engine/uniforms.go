package engine

import "github.com/richinsley/glslpreview/viewport"

func (e *Engine) setTime(t float64) {
	v := Value{float32(t)}
	e.builtins["iGlobalTime"] = v
	e.builtins["u_time"] = v
}

func (e *Engine) setMouse(x, y float32) {
	v := Value{x, y}
	e.builtins["iMouse"] = v
	e.builtins["u_mouse"] = v
}

// applySize resolves the surface size and refreshes the resolution
// uniforms. The compiled program is untouched.
func (e *Engine) applySize() {
	e.size = e.view.Resolve(e.container)
	px := viewport.Pixels(e.size, e.dpr)
	e.backend.SetSize(px.Width, px.Height)
	v := Value{float32(px.Width), float32(px.Height)}
	e.builtins["iResolution"] = v
	e.builtins["u_resolution"] = v
}

// Resize sets the container size in logical pixels and the device pixel
// ratio.
func (e *Engine) Resize(container viewport.Size, dpr float64) {
	e.post(func() {
		e.container = container
		if dpr > 0 {
			e.dpr = dpr
		}
		e.applySize()
	})
}

// SetExplicitSize pins the surface size, as an interactive resize does. An
// empty size unpins it.
func (e *Engine) SetExplicitSize(s viewport.Size) {
	e.post(func() {
		e.view.SetExplicit(s)
		e.applySize()
	})
}

// MouseMove records the cursor position in logical pixels from the top-left
// corner of the surface.
func (e *Engine) MouseMove(x, y float64) {
	e.post(func() {
		if e.size.Empty() {
			return
		}
		e.setMouse(float32(x/float64(e.size.Width)), float32(1-y/float64(e.size.Height)))
	})
}

// Size returns the resolved surface size in logical pixels.
func (e *Engine) Size() viewport.Size {
	return e.size
}

// Uniforms returns the built-in uniform table of the current program. Only
// built-ins its source references are present.
func (e *Engine) Uniforms() map[string]Value {
	obj := e.objects[e.current]
	if obj == nil {
		return nil
	}
	table := make(map[string]Value, len(obj.result.Uniforms))
	for _, name := range obj.result.Uniforms {
		table[name] = e.builtins[name]
	}
	return table
}

// renderAt draws the current program at time t. Nothing is drawn before the
// first successful compile.
func (e *Engine) renderAt(t float64) {
	e.setTime(t)
	obj := e.objects[e.current]
	if obj == nil {
		return
	}
	for _, name := range obj.result.Uniforms {
		obj.program.SetUniform(name, e.builtins[name])
	}
	// Every directive keeps its unit; bindings without a loaded texture get
	// a nil one so the sampler reads as transparent black.
	for unit, d := range e.directives {
		var tex Texture
		if b := e.bindings[d.ID]; b != nil && b.state == Loaded {
			tex = b.tex
		}
		obj.program.SetTexture(d.ID, unit, tex)
	}
	e.backend.Render(obj.program)
}
