// Package engine runs a live shader preview session.
//
// An Engine owns every render object and texture of the session. Work that
// completes asynchronously (debounce timers, diagnostic checks, texture
// loads) is posted back as a task and applied the next time the owner
// drains the queue, so session state is only ever touched by one goroutine.
//
// UpdateSource, Compile, Resize, SetExplicitSize and MouseMove may be called
// from any goroutine. Every other method must be called from the goroutine
// that owns the Backend.
package engine

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/richinsley/glslpreview/diagnostics"
	"github.com/richinsley/glslpreview/directive"
	"github.com/richinsley/glslpreview/viewport"
)

const (
	DefaultDebounce        = 250 * time.Millisecond
	DefaultDiagnosticDelay = 100 * time.Millisecond
)

var (
	// ErrDisposed is returned by blocking calls once the engine is disposed.
	ErrDisposed = errors.New("engine disposed")
	// ErrNoLoader fails texture bindings when no loader is configured.
	ErrNoLoader = errors.New("no texture loader configured")
)

// State is the compile state of the session.
type State int

const (
	Idle State = iota
	Compiling
	Valid
	Invalid
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Compiling:
		return "compiling"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Loader TextureLoader
	Sink   ErrorSink
	Clock  Clock
	Logger *slog.Logger

	Debounce        time.Duration
	DiagnosticDelay time.Duration

	// DefaultUniforms declares referenced built-in uniforms the source
	// leaves undeclared.
	DefaultUniforms bool
	// Threshold is the fuzzy error-line similarity floor.
	Threshold float64

	DefaultSize       int
	ConstrainToSquare bool

	// BaseDir resolves relative texture paths. Watch overrides it.
	BaseDir string
	// IncludeFS resolves #include directives. Nil disables includes.
	IncludeFS fs.FS
}

// Engine is one preview session.
type Engine struct {
	backend    Backend
	loader     TextureLoader
	sink       ErrorSink
	clock      Clock
	log        *slog.Logger
	translator *diagnostics.Translator
	opts       Options

	qmu   sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}

	ctx         context.Context
	cancel      context.CancelFunc
	disposeOnce sync.Once

	start time.Time

	// compile state
	state        State
	gen          uint64
	current      uint64
	objects      map[uint64]*renderObject
	checks       int
	markers      []diagnostics.Marker
	pendingSrc   string
	hasPending   bool
	debounceSeq  uint64
	stopDebounce func() bool
	baseDir      string
	includeFS    fs.FS

	// textures
	directives []directive.Directive
	bindings   map[string]*binding
	loadSeq    uint64
	inflight   int

	// uniforms and size
	view      viewport.Controller
	container viewport.Size
	dpr       float64
	size      viewport.Size
	builtins  map[string]Value
}

// New creates an idle engine drawing through backend.
func New(backend Backend, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Sink == nil {
		opts.Sink = discardSink{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.DiagnosticDelay <= 0 {
		opts.DiagnosticDelay = DefaultDiagnosticDelay
	}
	tr := diagnostics.NewTranslator()
	if opts.Threshold > 0 {
		tr.Threshold = opts.Threshold
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		backend:    backend,
		loader:     opts.Loader,
		sink:       opts.Sink,
		clock:      opts.Clock,
		log:        opts.Logger,
		translator: tr,
		opts:       opts,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		start:      opts.Clock.Now(),
		objects:    map[uint64]*renderObject{},
		bindings:   map[string]*binding{},
		baseDir:    opts.BaseDir,
		includeFS:  opts.IncludeFS,
		view: viewport.Controller{
			DefaultSize:       opts.DefaultSize,
			ConstrainToSquare: opts.ConstrainToSquare,
		},
		dpr:      1,
		builtins: map[string]Value{},
	}
	e.applySize()
	e.setMouse(0, 0)
	e.setTime(0)
	return e
}

// post queues f for the owner goroutine. Tasks posted after Dispose are
// dropped.
func (e *Engine) post(f func()) {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	if e.disposed() {
		return
	}
	e.queue = append(e.queue, f)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// drain runs queued tasks, including those queued while draining.
func (e *Engine) drain() {
	for {
		e.qmu.Lock()
		q := e.queue
		e.queue = nil
		e.qmu.Unlock()
		if len(q) == 0 {
			return
		}
		for _, f := range q {
			if e.disposed() {
				return
			}
			f()
		}
	}
}

func (e *Engine) disposed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// wait drains until busy reports false.
func (e *Engine) wait(ctx context.Context, busy func() bool) error {
	for {
		e.drain()
		if e.disposed() {
			return ErrDisposed
		}
		if !busy() {
			return nil
		}
		select {
		case <-e.wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return ErrDisposed
		}
	}
}

// Watch compiles the provider's text now and recompiles it on every change
// until ctx is done or the engine is disposed. Texture and include paths
// become relative to the provider's directory.
func (e *Engine) Watch(ctx context.Context, src SourceProvider) {
	dir := filepath.Dir(src.Path())
	e.post(func() {
		e.baseDir = dir
		e.includeFS = os.DirFS(dir)
	})
	e.Compile(src.Text())
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.done:
				return
			case _, ok := <-src.Changes():
				if !ok {
					return
				}
				e.UpdateSource(src.Text())
			}
		}
	}()
}

// Frame applies pending work and renders the current program. It reports
// false once the engine is disposed.
func (e *Engine) Frame() bool {
	e.drain()
	if e.disposed() {
		return false
	}
	e.renderAt(e.clock.Now().Sub(e.start).Seconds())
	return true
}

// Host is the window driving the render loop.
type Host interface {
	ShouldClose() bool
	EndFrame()
}

// Run renders a frame per host frame until the host closes, ctx is done or
// the engine is disposed.
func (e *Engine) Run(ctx context.Context, host Host) error {
	for !host.ShouldClose() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.Frame() {
			return ErrDisposed
		}
		host.EndFrame()
	}
	return nil
}

// Settle waits until no debounced source or diagnostic check is pending.
func (e *Engine) Settle(ctx context.Context) error {
	return e.wait(ctx, func() bool { return e.hasPending || e.checks > 0 })
}

// AwaitTextures waits until every texture load in flight has completed.
func (e *Engine) AwaitTextures(ctx context.Context) error {
	return e.wait(ctx, func() bool { return e.inflight > 0 })
}

// RenderFrameAt renders the current program with the time uniforms set to
// t seconds.
func (e *Engine) RenderFrameAt(t float64) {
	e.drain()
	if e.disposed() {
		return
	}
	e.renderAt(t)
}

// Snapshot waits for pending compiles and texture loads, renders at t and
// reads the frame back.
func (e *Engine) Snapshot(ctx context.Context, t float64) (*image.RGBA, error) {
	if err := e.Settle(ctx); err != nil {
		return nil, err
	}
	if err := e.AwaitTextures(ctx); err != nil {
		return nil, err
	}
	e.renderAt(t)
	return e.backend.Snapshot()
}

// State returns the compile state.
func (e *Engine) State() State {
	return e.state
}

// Markers returns the error markers of the last failed compile.
func (e *Engine) Markers() []diagnostics.Marker {
	return e.markers
}

// Dispose stops the session and frees every render object and texture.
// Completions arriving afterwards have no effect. Calling it again is a
// no-op.
func (e *Engine) Dispose() {
	e.disposeOnce.Do(func() {
		e.qmu.Lock()
		close(e.done)
		e.queue = nil
		e.qmu.Unlock()
		e.cancel()

		if e.stopDebounce != nil {
			e.stopDebounce()
		}
		for gen := range e.objects {
			e.disposeObject(gen)
		}
		for id := range e.bindings {
			e.unbind(id)
		}
		e.current = 0
		e.hasPending = false
		e.checks = 0
		e.inflight = 0
		e.state = Idle
		e.log.Info("preview disposed")
	})
}
