package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/richinsley/glslpreview/directive"
	"github.com/richinsley/glslpreview/loader"
)

// BindingState is the load state of a texture binding.
type BindingState int

const (
	Pending BindingState = iota
	Loaded
	Failed
)

func (s BindingState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Binding describes one texture directive of the current session.
type Binding struct {
	directive.Directive
	URI           string
	State         BindingState
	Err           error
	Width, Height int
}

type binding struct {
	directive.Directive
	uri    string
	state  BindingState
	tex    Texture
	err    error
	seq    uint64
	cancel context.CancelFunc
}

// syncTextures binds the texture directives of src. Directives already
// bound with the same path are left alone.
func (e *Engine) syncTextures(src string) {
	next := directive.Dedupe(directive.Parse(src))
	unbind, bind := directive.Diff(e.directives, next)
	e.directives = next
	for _, d := range unbind {
		e.unbind(d.ID)
	}
	for _, d := range bind {
		e.bind(d)
	}
}

func (e *Engine) bind(d directive.Directive) {
	e.loadSeq++
	b := &binding{
		Directive: d,
		uri:       loader.Resolve(e.baseDir, d.Path),
		state:     Pending,
		seq:       e.loadSeq,
	}
	e.bindings[d.ID] = b
	if e.loader == nil {
		e.finishLoad(b, b.seq, nil, ErrNoLoader)
		return
	}

	ctx, cancel := context.WithCancel(e.ctx)
	b.cancel = cancel
	e.inflight++
	seq := b.seq
	go func() {
		img, err := e.loader.Load(ctx, b.uri)
		e.post(func() {
			e.inflight--
			e.finishLoad(b, seq, img, err)
		})
	}()
}

// finishLoad applies a load result unless the binding was dropped or
// rebound since the load started.
func (e *Engine) finishLoad(b *binding, seq uint64, img image.Image, err error) {
	if e.bindings[b.ID] != b || b.seq != seq {
		e.log.Debug("discarding stale texture load", "uniform", b.ID, "uri", b.uri)
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if err == nil {
		b.tex, err = e.backend.NewTexture(img)
		if err != nil {
			err = fmt.Errorf("upload %s: %w", b.uri, err)
		}
	}
	if err != nil {
		b.state, b.err = Failed, err
		e.sink.TextureError(b.Directive, err)
		return
	}
	b.state = Loaded
	w, h := b.tex.Size()
	e.sink.TextureLoaded(b.Directive, w, h)
}

func (e *Engine) unbind(id string) {
	b, ok := e.bindings[id]
	if !ok {
		return
	}
	delete(e.bindings, id)
	if b.cancel != nil {
		b.cancel()
	}
	if b.tex != nil {
		b.tex.Dispose()
		b.tex = nil
	}
	e.log.Debug("texture unbound", "uniform", id)
}

// Bindings lists the texture bindings of the current session in directive
// order.
func (e *Engine) Bindings() []Binding {
	out := make([]Binding, 0, len(e.directives))
	for _, d := range e.directives {
		b, ok := e.bindings[d.ID]
		if !ok {
			continue
		}
		info := Binding{Directive: b.Directive, URI: b.uri, State: b.state, Err: b.err}
		if b.tex != nil {
			info.Width, info.Height = b.tex.Size()
		}
		out = append(out, info)
	}
	return out
}
