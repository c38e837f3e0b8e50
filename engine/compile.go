package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/richinsley/glslpreview/diagnostics"
	"github.com/richinsley/glslpreview/shader"
)

// renderObject is one compile attempt. Objects live in Engine.objects keyed
// by generation; Engine.current names the one on screen.
type renderObject struct {
	gen     uint64
	source  string
	result  *shader.Result
	program Program
	checked bool
}

// UpdateSource schedules a compile of src once the source has been quiet
// for the debounce window. Later updates replace earlier ones.
func (e *Engine) UpdateSource(src string) {
	e.post(func() {
		e.pendingSrc, e.hasPending = src, true
		if e.stopDebounce != nil {
			e.stopDebounce()
		}
		e.debounceSeq++
		seq := e.debounceSeq
		e.stopDebounce = e.clock.AfterFunc(e.opts.Debounce, func() {
			e.post(func() {
				if seq != e.debounceSeq || !e.hasPending {
					return
				}
				e.hasPending = false
				e.compile(e.pendingSrc)
			})
		})
	})
}

// Compile starts compiling src without waiting for the debounce window. A
// debounced update still pending is dropped.
func (e *Engine) Compile(src string) {
	e.post(func() {
		if e.stopDebounce != nil {
			e.stopDebounce()
		}
		e.debounceSeq++
		e.hasPending = false
		e.compile(src)
	})
}

// compile builds a tentative render object for src and schedules its
// diagnostic check. The current object keeps rendering meanwhile.
func (e *Engine) compile(src string) {
	e.gen++
	gen := e.gen
	e.state = Compiling

	res, err := shader.Preprocess(src, e.preprocessOptions())
	if err != nil {
		line := 1
		var ie *shader.IncludeError
		if errors.As(err, &ie) && ie.Line > 0 {
			line = ie.Line
		}
		e.fail([]diagnostics.Marker{{Line: line, Message: err.Error()}}, err.Error())
		e.log.Debug("preprocess failed", "gen", gen, "error", err)
		return
	}

	prog, err := e.backend.NewProgram(res.Source)
	if err != nil {
		msg := fmt.Sprintf("create program: %v", err)
		e.fail([]diagnostics.Marker{{Line: 1, Message: msg}}, msg)
		return
	}

	e.objects[gen] = &renderObject{gen: gen, source: src, result: res, program: prog}
	e.checks++
	e.clock.AfterFunc(e.opts.DiagnosticDelay, func() {
		e.post(func() { e.checkDiagnostics(gen) })
	})
}

func (e *Engine) preprocessOptions() shader.Options {
	opts := shader.Options{DefaultUniforms: e.opts.DefaultUniforms}
	if e.includeFS != nil {
		opts.Expander = &shader.IncludeExpander{FS: e.includeFS}
	}
	return opts
}

// checkDiagnostics resolves the compile attempt gen. Attempts superseded by
// a newer one dispose themselves without reporting anything.
func (e *Engine) checkDiagnostics(gen uint64) {
	obj, ok := e.objects[gen]
	if !ok || obj.checked {
		return
	}
	obj.checked = true
	e.checks--

	if gen != e.gen || gen < e.current {
		e.log.Debug("discarding stale compile", "gen", gen, "latest", e.gen)
		e.disposeObject(gen)
		return
	}

	d := obj.program.Diagnostics()
	if !d.Runnable {
		e.disposeObject(gen)
		errs := d.Errors
		if len(errs) == 0 {
			errs = diagnostics.ParseLog(d.Log)
		}
		if len(errs) == 0 {
			errs = []diagnostics.CompilerError{{Message: "shader compilation failed"}}
		}
		compiled, lines := obj.result.Source, obj.result.Lines
		if d.Source != "" {
			compiled, lines = d.Source, nil
		}
		markers := e.translator.Translate(errs, obj.source, compiled, lines)
		log := d.Log
		if log == "" {
			log = markers[0].Message
		}
		e.fail(markers, log)
		return
	}

	if prev := e.current; prev != 0 {
		e.disposeObject(prev)
	}
	e.current = gen
	e.state = Valid
	e.markers = nil
	e.sink.SetMarkers(nil)
	e.log.Info("shader compiled", "gen", gen, "uniforms", obj.result.Uniforms)
	e.syncTextures(obj.source)
}

// fail reports a failed attempt. The current object is left untouched.
func (e *Engine) fail(markers []diagnostics.Marker, message string) {
	e.state = Invalid
	e.markers = markers
	e.sink.SetMarkers(markers)
	e.sink.ShaderError(message)
}

func (e *Engine) disposeObject(gen uint64) {
	obj, ok := e.objects[gen]
	if !ok {
		return
	}
	delete(e.objects, gen)
	obj.program.Dispose()
	if e.current == gen {
		e.current = 0
	}
}

// Generations lists the live render objects, oldest first.
func (e *Engine) Generations() []uint64 {
	gens := make([]uint64, 0, len(e.objects))
	for gen := range e.objects {
		gens = append(gens, gen)
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens
}

// Current returns the generation on screen, or 0 when nothing compiled yet.
func (e *Engine) Current() uint64 {
	return e.current
}
