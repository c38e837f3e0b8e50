package renderer

import (
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/glslpreview/diagnostics"
	"github.com/richinsley/glslpreview/engine"
	"github.com/richinsley/glslpreview/shader"
)

// program is a linked fragment program. A program that failed to translate
// or link has id 0 and only carries its diagnostics.
type program struct {
	id     uint32
	empty  uint32
	diag   engine.Diagnostics
	mapped map[string]string
	locs   map[string]int32
}

// NewProgram implements engine.Backend. WebGL1 sources get the
// compatibility header, then go through the translator and the driver.
func (r *Renderer) NewProgram(fragment string) (engine.Program, error) {
	src, header := shader.Compat(fragment)
	res, err := r.translator.Fragment(src)
	if err != nil {
		log := err.Error()
		return &program{diag: engine.Diagnostics{
			Log:    log,
			Errors: diagnostics.Shift(diagnostics.ParseLog(log), -header),
		}}, nil
	}

	id, log := newProgram(shader.GenerateVertexShader(r.context.IsGLES()), res.Code)
	if id == 0 {
		// Driver errors refer to the translated code.
		return &program{diag: engine.Diagnostics{
			Log:    log,
			Errors: diagnostics.ParseLog(log),
			Source: res.Code,
		}}, nil
	}
	return &program{
		id:     id,
		empty:  r.emptyTex,
		diag:   engine.Diagnostics{Runnable: true, Log: log},
		mapped: res.Mapped,
		locs:   make(map[string]int32),
	}, nil
}

func (p *program) Diagnostics() engine.Diagnostics { return p.diag }

// location returns the uniform location of name, or -1 when the shader does
// not use it.
func (p *program) location(name string) int32 {
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	loc := int32(-1)
	if mapped, ok := p.mapped[name]; ok {
		loc = gl.GetUniformLocation(p.id, gl.Str(mapped+"\x00"))
	}
	p.locs[name] = loc
	return loc
}

func (p *program) SetUniform(name string, v engine.Value) {
	if p.id == 0 {
		return
	}
	loc := p.location(name)
	if loc < 0 {
		return
	}
	gl.UseProgram(p.id)
	switch len(v) {
	case 1:
		gl.Uniform1f(loc, v[0])
	case 2:
		gl.Uniform2f(loc, v[0], v[1])
	case 3:
		gl.Uniform3f(loc, v[0], v[1], v[2])
	case 4:
		gl.Uniform4f(loc, v[0], v[1], v[2], v[3])
	}
}

// SetTexture binds t, or the transparent placeholder when t is nil, to the
// sampler name.
func (p *program) SetTexture(name string, unit int, t engine.Texture) {
	if p.id == 0 {
		return
	}
	loc := p.location(name)
	if loc < 0 {
		return
	}
	id := p.empty
	if tex, ok := t.(*texture); ok && tex.id != 0 {
		id = tex.id
	}
	gl.UseProgram(p.id)
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.Uniform1i(loc, int32(unit))
}

func (p *program) Dispose() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

// newProgram compiles and links a program. On failure it returns 0 and the
// info log of the failing stage.
func newProgram(vertexShaderSource, fragmentShaderSource string) (uint32, string) {
	vertexShader, log := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if vertexShader == 0 {
		return 0, log
	}
	defer gl.DeleteShader(vertexShader)
	fragmentShader, log := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if fragmentShader == 0 {
		return 0, log
	}
	defer gl.DeleteShader(fragmentShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, strings.TrimRight(log, "\x00")
	}
	return program, ""
}

func compileShader(source string, shaderType uint32) (uint32, string) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, strings.TrimRight(logText, "\x00")
	}
	return shader, ""
}
