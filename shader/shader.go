package shader

import "regexp"

// ────────────────────────────────── Desktop GL ──────────────────────────────────

const vertexShaderSourceGL = `#version 410 core
layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

const blitFragmentShaderSourceGL = `#version 410 core
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, frag_uv); }
`

// ──────────────────────────────────── GLES ──────────────────────────────────────

const vertexShaderSourceGLES = `#version 300 es
layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

const blitFragmentShaderSourceGLES = `#version 300 es
precision mediump float;
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, frag_uv); }
`

// ─────────────────────────── WebGL1 compatibility layer ─────────────────────────

// compatHeader lets classic WebGL1 fragment shaders (gl_FragColor,
// texture2D, varying) run through the WebGL2 translator. It is prepended by
// the renderer and is never visible to the preprocessor's line map.
const compatHeader = `#version 300 es
#define varying in
#define texture2D texture
#define textureCube texture
out highp vec4 pc_fragColor;
`

// gl_* names cannot be macros, so gl_FragColor is renamed in place.
var fragColorRE = regexp.MustCompile(`\bgl_FragColor\b`)

// ────────────────────────────────── Public API ─────────────────────────────────

func GenerateVertexShader(isGLES bool) string {
	if isGLES {
		return vertexShaderSourceGLES
	}
	return vertexShaderSourceGL
}

func GetBlitFragmentShader(isGLES bool) string {
	if isGLES {
		return blitFragmentShaderSourceGLES
	}
	return blitFragmentShaderSourceGL
}

// CompatHeader returns the header to prepend to a compiled fragment source
// before translation, and the number of lines it occupies. Sources that
// already carry their own #version directive get no header.
func CompatHeader(compiled string) (header string, lines int) {
	if HasVersion(compiled) {
		return "", 0
	}
	return compatHeader, countLines(compatHeader)
}

// Compat rewrites a WebGL1 fragment source for the WebGL2 translator. It
// returns the source unchanged when it declares its own #version, and
// otherwise the number of header lines placed before it.
func Compat(compiled string) (src string, lines int) {
	header, lines := CompatHeader(compiled)
	if header == "" {
		return compiled, 0
	}
	return header + fragColorRE.ReplaceAllString(compiled, "pc_fragColor"), lines
}
