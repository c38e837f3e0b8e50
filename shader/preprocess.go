// Package shader turns editor source into the fragment source handed to the
// renderer: it adds a default float precision, flattens #include directives
// and declares the built-in uniforms the source uses but does not declare.
package shader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/richinsley/glslpreview/diagnostics"
)

// DefaultPrecision is prepended when the source declares no float precision.
const DefaultPrecision = "precision highp float;"

// Builtin is a uniform the preview supplies without user declaration.
type Builtin struct {
	Name string
	Type string
}

// Builtins lists the default uniforms in both naming conventions.
var Builtins = []Builtin{
	{Name: "iResolution", Type: "vec2"},
	{Name: "iMouse", Type: "vec2"},
	{Name: "iGlobalTime", Type: "float"},
	{Name: "u_resolution", Type: "vec2"},
	{Name: "u_mouse", Type: "vec2"},
	{Name: "u_time", Type: "float"},
}

var (
	precisionRE = regexp.MustCompile(`(?m)^\s*precision\s+(lowp|mediump|highp)\s+float\s*;`)
	versionRE   = regexp.MustCompile(`^\s*#version\b`)

	referenceRE   = map[string]*regexp.Regexp{}
	declarationRE = map[string]*regexp.Regexp{}
)

func init() {
	for _, b := range Builtins {
		name := regexp.QuoteMeta(b.Name)
		referenceRE[b.Name] = regexp.MustCompile(`\b` + name + `\b`)
		declarationRE[b.Name] = regexp.MustCompile(`(?m)^\s*uniform\s+(?:\w+\s+)?\w+\s+` + name + `\s*(?:\[[^\]]*\])?\s*;`)
	}
}

// Expander flattens source-level include directives. It must be a pure
// function of its input.
type Expander interface {
	Expand(source string) (string, error)
}

// Options controls Preprocess.
type Options struct {
	// DefaultUniforms declares referenced built-ins the source leaves
	// undeclared.
	DefaultUniforms bool

	// Expander resolves includes. Nil leaves include directives untouched.
	Expander Expander
}

// Result is a compiled source plus what the error translator needs to map
// its lines back to the editor source.
type Result struct {
	// Source is the compiled fragment source.
	Source string

	// Lines maps compiled lines back to original lines when the only change
	// was a fixed prologue insertion. It is nil when include expansion
	// reshaped the text and lines must be matched by content.
	Lines *diagnostics.LineMap

	// Uniforms lists the built-ins the shader references, in Builtins order.
	Uniforms []string

	// Injected lists the built-ins declared by the prologue.
	Injected []string
}

// Preprocess compiles source for the renderer.
func Preprocess(source string, opts Options) (*Result, error) {
	source = normalize(source)

	expanded := source
	if opts.Expander != nil {
		var err error
		expanded, err = opts.Expander.Expand(source)
		if err != nil {
			return nil, err
		}
		expanded = normalize(expanded)
	}

	lines := strings.Split(expanded, "\n")
	insertAt := versionLine(lines) + 1

	var prologue []string
	if !precisionRE.MatchString(expanded) {
		prologue = append(prologue, DefaultPrecision)
	}

	res := &Result{Uniforms: ReferencedUniforms(expanded)}
	if opts.DefaultUniforms {
		for _, b := range Builtins {
			if !referenceRE[b.Name].MatchString(expanded) || declarationRE[b.Name].MatchString(expanded) {
				continue
			}
			prologue = append(prologue, fmt.Sprintf("uniform %s %s;", b.Type, b.Name))
			res.Injected = append(res.Injected, b.Name)
		}
	}

	out := make([]string, 0, len(lines)+len(prologue))
	out = append(out, lines[:insertAt]...)
	out = append(out, prologue...)
	out = append(out, lines[insertAt:]...)
	res.Source = strings.Join(out, "\n")

	if expanded == source {
		res.Lines = &diagnostics.LineMap{InsertAt: insertAt, Count: len(prologue)}
	}
	return res, nil
}

// ReferencedUniforms returns the built-in names that appear in source.
func ReferencedUniforms(source string) []string {
	var names []string
	for _, b := range Builtins {
		if referenceRE[b.Name].MatchString(source) {
			names = append(names, b.Name)
		}
	}
	return names
}

// HasVersion reports whether source starts with a #version directive,
// ignoring leading blank and line-comment lines.
func HasVersion(source string) bool {
	return versionLine(strings.Split(normalize(source), "\n")) >= 0
}

// versionLine returns the index of a leading #version line, or -1.
func versionLine(lines []string) int {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "//"):
			continue
		case versionRE.MatchString(line):
			return i
		default:
			return -1
		}
	}
	return -1
}

func normalize(source string) string {
	return strings.ReplaceAll(source, "\r\n", "\n")
}

func countLines(s string) int {
	return strings.Count(s, "\n")
}
