package engine

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/richinsley/glslpreview/diagnostics"
	"github.com/richinsley/glslpreview/directive"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if t.fired || t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// Advance moves time forward and runs the timers that came due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type fakeProgram struct {
	id       int
	source   string
	log      string
	errText  string
	disposed int
	uniforms map[string]Value
	textures map[string]int
	empty    []string
}

func (p *fakeProgram) Diagnostics() Diagnostics {
	return Diagnostics{Runnable: p.log == "", Log: p.log, Source: p.errText}
}

func (p *fakeProgram) SetUniform(name string, v Value) { p.uniforms[name] = v }

func (p *fakeProgram) SetTexture(name string, unit int, t Texture) {
	if t == nil {
		p.empty = append(p.empty, name)
		return
	}
	p.textures[name] = unit
}

func (p *fakeProgram) Dispose() { p.disposed++ }

type fakeTexture struct {
	w, h     int
	disposed int
}

func (t *fakeTexture) Size() (int, int) { return t.w, t.h }

func (t *fakeTexture) Dispose() { t.disposed++ }

// fakeBackend compiles any source; a line containing BROKEN fails with an
// ANGLE-style log pointing at that line. With a translation header set, the
// log refers to the header plus the source, as a translating backend's does.
type fakeBackend struct {
	header        string
	programs      []*fakeProgram
	textures      []*fakeTexture
	rendered      []*fakeProgram
	width, height int
}

func (b *fakeBackend) SetSize(w, h int) { b.width, b.height = w, h }

func (b *fakeBackend) NewProgram(src string) (Program, error) {
	p := &fakeProgram{
		id:       len(b.programs) + 1,
		source:   src,
		uniforms: map[string]Value{},
		textures: map[string]int{},
	}
	text := src
	if b.header != "" {
		text = b.header + src
	}
	for i, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "BROKEN") {
			p.log = fmt.Sprintf("ERROR: 0:%d: 'BROKEN' : undeclared identifier\n", i+1)
			if b.header != "" {
				p.errText = text
			}
			break
		}
	}
	b.programs = append(b.programs, p)
	return p, nil
}

func (b *fakeBackend) NewTexture(img image.Image) (Texture, error) {
	t := &fakeTexture{w: img.Bounds().Dx(), h: img.Bounds().Dy()}
	b.textures = append(b.textures, t)
	return t, nil
}

func (b *fakeBackend) Render(p Program) { b.rendered = append(b.rendered, p.(*fakeProgram)) }

func (b *fakeBackend) Snapshot() (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, b.width, b.height)), nil
}

func (b *fakeBackend) last() *fakeProgram {
	if len(b.rendered) == 0 {
		return nil
	}
	return b.rendered[len(b.rendered)-1]
}

type fakeLoader struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}
	fail  map[string]error
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{gates: map[string]chan struct{}{}, fail: map[string]error{}}
}

func (l *fakeLoader) gate(uri string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan struct{})
	l.gates[uri] = ch
	return ch
}

func (l *fakeLoader) Load(ctx context.Context, uri string) (image.Image, error) {
	l.mu.Lock()
	l.calls = append(l.calls, uri)
	gate, err := l.gates[uri], l.fail[uri]
	l.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (l *fakeLoader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeSink struct {
	markers      []diagnostics.Marker
	markerCalls  int
	shaderErrors []string
	texErrors    []directive.Directive
	loaded       []directive.Directive
}

func (s *fakeSink) SetMarkers(m []diagnostics.Marker) {
	s.markers = m
	s.markerCalls++
}

func (s *fakeSink) ShaderError(msg string) { s.shaderErrors = append(s.shaderErrors, msg) }

func (s *fakeSink) TextureError(d directive.Directive, _ error) { s.texErrors = append(s.texErrors, d) }

func (s *fakeSink) TextureLoaded(d directive.Directive, _, _ int) { s.loaded = append(s.loaded, d) }

type fakeProvider struct {
	mu      sync.Mutex
	path    string
	text    string
	changes chan struct{}
}

func (p *fakeProvider) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text
}

func (p *fakeProvider) Path() string { return p.path }

func (p *fakeProvider) Changes() <-chan struct{} { return p.changes }

func (p *fakeProvider) set(text string) {
	p.mu.Lock()
	p.text = text
	p.mu.Unlock()
	p.changes <- struct{}{}
}

type fakeHost struct {
	frames, limit int
}

func (h *fakeHost) ShouldClose() bool { return h.frames >= h.limit }

func (h *fakeHost) EndFrame() { h.frames++ }

type harness struct {
	e       *Engine
	backend *fakeBackend
	clock   *fakeClock
	loader  *fakeLoader
	sink    *fakeSink
}

func newHarness(t *testing.T, mod ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{},
		clock:   newFakeClock(),
		loader:  newFakeLoader(),
		sink:    &fakeSink{},
	}
	opts := Options{
		Loader:          h.loader,
		Sink:            h.sink,
		Clock:           h.clock,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		DefaultUniforms: true,
		BaseDir:         "/shaders",
	}
	for _, m := range mod {
		m(&opts)
	}
	h.e = New(h.backend, opts)
	t.Cleanup(h.e.Dispose)
	return h
}

// step runs every timer and task until the engine is quiet. Texture loads
// still in flight are not waited for.
func (h *harness) step() {
	for i := 0; i < 4; i++ {
		h.e.drain()
		h.clock.Advance(time.Second)
	}
	h.e.drain()
}

func (h *harness) awaitTextures(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.e.AwaitTextures(ctx); err != nil {
		t.Fatalf("await textures: %v", err)
	}
}
