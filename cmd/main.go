package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/glslpreview/encoder"
	"github.com/richinsley/glslpreview/engine"
	"github.com/richinsley/glslpreview/glfwcontext"
	"github.com/richinsley/glslpreview/loader"
	"github.com/richinsley/glslpreview/options"
	"github.com/richinsley/glslpreview/renderer"
	"github.com/richinsley/glslpreview/source"
	"github.com/richinsley/glslpreview/translator"
	"github.com/richinsley/glslpreview/viewport"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	var file = flag.String("file", "", "Fragment shader to preview")
	var configPath = flag.String("config", options.DefaultPath, "Path to the TOML settings file")
	var writeConfig = flag.Bool("write-config", false, "Write the effective settings to -config and exit")
	var verbose = flag.Bool("v", false, "Enable debug logging")
	var help = flag.Bool("help", false, "Show help message")

	var width = flag.Int("width", 0, "Window width (overrides config)")
	var height = flag.Int("height", 0, "Window height (overrides config)")
	var snapshot = flag.String("snapshot", "", "Render one frame to this PNG file and exit")
	var at = flag.Float64("time", 0, "Shader time in seconds for -snapshot")

	// Recording flags
	var record = flag.Bool("record", false, "Render to a video file and exit")
	var duration = flag.Float64("duration", 0, "Duration to record in seconds (overrides config)")
	var fps = flag.Int("fps", 0, "Frames per second for recording (overrides config)")
	var outputFile = flag.String("output", "", "Output file name for recording (overrides config)")
	var ffmpegPath = flag.String("ffmpeg", "", "Path to ffmpeg executable (overrides config)")
	var codec = flag.String("codec", "", "Video codec: h264 or hevc (overrides config)")

	flag.Parse()

	if *help {
		fmt.Println("GLSL Fragment Shader Previewer")
		flag.PrintDefaults()
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	opts, err := options.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading settings: %v", err)
	}
	applyFlags(&opts, *width, *height, *duration, *fps, *outputFile, *ffmpegPath, *codec)
	if err := opts.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}
	if *writeConfig {
		if err := opts.Save(*configPath); err != nil {
			log.Fatalf("Error writing settings: %v", err)
		}
		log.Printf("Wrote settings to %s", *configPath)
		return
	}
	if *file == "" {
		log.Fatal("A shader file is required (-file)")
	}

	src, err := source.Open(*file, source.DefaultSettle)
	if err != nil {
		log.Fatalf("Error opening shader: %v", err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	headless := *record || *snapshot != ""
	if err := run(ctx, opts, src, headless, *snapshot, *at, *record); err != nil {
		log.Fatalf("%v", err)
	}
}

// applyFlags overlays the non-zero command-line values on the settings.
func applyFlags(opts *options.Options, width, height int, duration float64, fps int, output, ffmpegPath, codec string) {
	if width > 0 {
		opts.Width = width
	}
	if height > 0 {
		opts.Height = height
	}
	if duration > 0 {
		opts.Record.Duration = duration
	}
	if fps > 0 {
		opts.Record.FPS = fps
	}
	if output != "" {
		opts.Record.Output = output
	}
	if ffmpegPath != "" {
		opts.Record.FFmpegPath = ffmpegPath
	}
	if codec != "" {
		opts.Record.Codec = codec
	}
}

func run(ctx context.Context, opts options.Options, src *source.File, headless bool, snapshot string, at float64, record bool) error {
	if err := glfwcontext.InitGraphics(); err != nil {
		return fmt.Errorf("failed to initialize graphics: %w", err)
	}
	defer glfwcontext.TerminateGraphics()

	win, err := glfwcontext.New(glfwcontext.Options{
		Width:   opts.Width,
		Height:  opts.Height,
		Title:   windowTitle(filepath.Base(src.Path()), engine.Idle),
		Visible: !headless,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize glfw context: %w", err)
	}
	defer win.Shutdown()

	tr, err := translator.New(ctx, win.IsGLES())
	if err != nil {
		return err
	}

	r, err := renderer.New(win, tr)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	defer r.Shutdown()

	eng := engine.New(r, engine.Options{
		Loader:            &loader.Loader{},
		Sink:              &engine.LogSink{ShowErrorMessage: opts.ShowErrorMessage},
		Debounce:          opts.Debounce(),
		DiagnosticDelay:   opts.DiagnosticDelay(),
		DefaultUniforms:   opts.IncludeDefaultUniforms,
		Threshold:         opts.FuzzyThreshold,
		DefaultSize:       opts.DefaultSize,
		ConstrainToSquare: opts.ConstrainToSquare,
	})
	defer eng.Dispose()

	if headless {
		// Offline output is rendered at exactly the configured size.
		size := viewport.Size{Width: opts.Width, Height: opts.Height}
		eng.SetExplicitSize(size)
		eng.Resize(size, 1)
		eng.Watch(ctx, src)
		if snapshot != "" {
			return saveSnapshot(ctx, eng, snapshot, at)
		}
		if record {
			return recordVideo(ctx, eng, opts)
		}
		return nil
	}

	w, h := win.GetWindowSize()
	eng.Resize(viewport.Size{Width: w, Height: h}, win.ContentScale())
	win.OnResize(func(width, height int, scale float64) {
		eng.Resize(viewport.Size{Width: width, Height: height}, scale)
	})
	win.OnCursor(eng.MouseMove)
	win.RegisterKeyCallback(glfw.KeyR, func() {
		log.Printf("Reloading %s", src.Path())
		if _, err := src.Reload(); err != nil {
			log.Printf("Reload failed: %v", err)
			return
		}
		eng.Compile(src.Text())
	})
	win.RegisterKeyCallback(glfw.KeyS, func() {
		path := snapshotPath(src.Path(), time.Now())
		if err := saveSnapshot(ctx, eng, path, 0); err != nil {
			log.Printf("Snapshot failed: %v", err)
		}
	})

	eng.Watch(ctx, src)
	log.Printf("Previewing %s (R reloads, S saves a snapshot, Esc quits)", src.Path())
	host := &titleHost{Context: win, eng: eng, name: filepath.Base(src.Path()), state: -1}
	if err := eng.Run(ctx, host); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// titleHost shows the compile state in the window title.
type titleHost struct {
	*glfwcontext.Context
	eng   *engine.Engine
	name  string
	state engine.State
}

func (h *titleHost) EndFrame() {
	if s := h.eng.State(); s != h.state {
		h.state = s
		h.SetTitle(windowTitle(h.name, s))
	}
	h.Context.EndFrame()
}

func windowTitle(name string, state engine.State) string {
	return fmt.Sprintf("glslpreview - %s [%s]", name, state)
}

// snapshotPath names a snapshot of shader taken at t, next to the shader.
func snapshotPath(shader string, t time.Time) string {
	base := strings.TrimSuffix(filepath.Base(shader), filepath.Ext(shader))
	return filepath.Join(filepath.Dir(shader), base+"-"+t.Format("20060102-150405")+".png")
}

func saveSnapshot(ctx context.Context, eng *engine.Engine, path string, at float64) error {
	img, err := eng.Snapshot(ctx, at)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	if eng.State() == engine.Invalid {
		return fmt.Errorf("shader has errors, not writing %s", path)
	}
	if err := encoder.SavePNG(path, img); err != nil {
		return err
	}
	log.Printf("Successfully rendered to %s", path)
	return nil
}

func recordVideo(ctx context.Context, eng *engine.Engine, opts options.Options) error {
	if err := eng.Settle(ctx); err != nil {
		return err
	}
	if eng.State() != engine.Valid {
		return fmt.Errorf("shader has errors, not recording")
	}
	size := eng.Size()
	enc, err := encoder.New(encoder.Options{
		Width:      size.Width,
		Height:     size.Height,
		FPS:        opts.Record.FPS,
		Duration:   opts.Record.Duration,
		Output:     opts.Record.Output,
		FFmpegPath: opts.Record.FFmpegPath,
		Codec:      opts.Record.Codec,
		HWAccel:    opts.Record.HWAccel,
	})
	if err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	log.Println("Starting offscreen render loop...")
	n, err := encoder.Record(ctx, eng, enc, opts.Record.FPS, opts.Record.Duration)
	if err != nil {
		return fmt.Errorf("offscreen rendering failed after %d frames: %w", n, err)
	}
	log.Printf("Successfully rendered %d frames to %s", n, opts.Record.Output)
	return nil
}
