// Package encoder exports rendered frames: single PNG snapshots and
// fixed-rate frame sequences piped into ffmpeg.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const numBuffers = 4

// Options describes a recording.
type Options struct {
	Width, Height int
	FPS           int
	Duration      float64
	Output        string
	FFmpegPath    string
	// Codec is "h264" or "hevc".
	Codec string
	// HWAccel selects the platform hardware encoder.
	HWAccel bool
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Args returns the ffmpeg input and output arguments for a raw RGBA frame
// stream on stdin.
func Args(opts Options) (inputArgs ffmpeg.KwArgs, outputArgs ffmpeg.KwArgs) {
	inputArgs = ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"r":       opts.FPS,
	}

	outputArgs = ffmpeg.KwArgs{"pix_fmt": "yuv420p"}
	hevc := opts.Codec == "hevc"
	switch {
	case opts.HWAccel && runtime.GOOS == "darwin":
		if hevc {
			outputArgs["c:v"] = "hevc_videotoolbox"
		} else {
			outputArgs["c:v"] = "h264_videotoolbox"
		}
	case opts.HWAccel && (runtime.GOOS == "linux" || runtime.GOOS == "windows"):
		if hevc {
			outputArgs["c:v"] = "hevc_nvenc"
		} else {
			outputArgs["c:v"] = "h264_nvenc"
		}
		outputArgs["preset"] = "p2"
	default:
		if hevc {
			outputArgs["c:v"] = "libx265"
		} else {
			outputArgs["c:v"] = "libx264"
		}
	}
	outputArgs["b:v"] = "25M"
	if hevc && strings.HasSuffix(opts.Output, ".mp4") {
		outputArgs["tag:v"] = "hvc1"
	}
	return
}

// Encoder streams frames to an ffmpeg process.
type Encoder struct {
	opts   Options
	w      io.WriteCloser
	errc   chan error
	frames int64
	closed bool
}

// New starts ffmpeg writing to opts.Output.
func New(opts Options) (*Encoder, error) {
	if opts.Width < 1 || opts.Height < 1 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS < 1 {
		return nil, fmt.Errorf("invalid frame rate %d", opts.FPS)
	}
	pipeReader, pipeWriter := io.Pipe()
	inputArgs, outputArgs := Args(opts)

	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(opts.Output, outputArgs).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if opts.FFmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(opts.FFmpegPath)
	}

	errc := make(chan error, 1)
	go func() {
		err := ffmpegCmd.Run()
		// Unblock writers if ffmpeg exits early.
		pipeReader.CloseWithError(errors.Join(errors.New("ffmpeg exited"), err))
		errc <- err
	}()
	opts.logger().Info("encoder started", "output", opts.Output, "codec", outputArgs["c:v"], "size", fmt.Sprintf("%dx%d", opts.Width, opts.Height))
	return newEncoder(opts, pipeWriter, errc), nil
}

func newEncoder(opts Options, w io.WriteCloser, errc chan error) *Encoder {
	return &Encoder{opts: opts, w: w, errc: errc}
}

// WriteFrame sends one frame. Its size must match the encoder's.
func (e *Encoder) WriteFrame(img *image.RGBA) error {
	if e.closed {
		return errors.New("encoder closed")
	}
	b := img.Bounds()
	if b.Dx() != e.opts.Width || b.Dy() != e.opts.Height {
		return fmt.Errorf("frame %d is %dx%d, want %dx%d", e.frames, b.Dx(), b.Dy(), e.opts.Width, e.opts.Height)
	}
	row := 4 * b.Dx()
	if img.Stride == row {
		off := img.PixOffset(b.Min.X, b.Min.Y)
		if _, err := e.w.Write(img.Pix[off : off+row*b.Dy()]); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", e.frames, err)
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := img.PixOffset(b.Min.X, y)
			if _, err := e.w.Write(img.Pix[off : off+row]); err != nil {
				return fmt.Errorf("failed to write frame %d: %w", e.frames, err)
			}
		}
	}
	e.frames++
	return nil
}

// Frames returns the number of frames written.
func (e *Encoder) Frames() int64 {
	return e.frames
}

// Close ends the stream and waits for ffmpeg to finish.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.w.Close(); err != nil {
		return err
	}
	if err := <-e.errc; err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	e.opts.logger().Info("encoder finished", "output", e.opts.Output, "frames", e.frames)
	return nil
}

// FrameSource renders the frame at time t seconds.
type FrameSource interface {
	Snapshot(ctx context.Context, t float64) (*image.RGBA, error)
}

// FrameWriter consumes rendered frames.
type FrameWriter interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

// Record renders duration seconds at a fixed logical frame rate, frame n at
// time n/fps, and hands the frames to w on a separate goroutine. Rendering
// stays on the calling goroutine. w is closed before Record returns. The
// count is the number of frames handed to w.
func Record(ctx context.Context, src FrameSource, w FrameWriter, fps int, duration float64) (int, error) {
	if fps < 1 {
		return 0, fmt.Errorf("invalid frame rate %d", fps)
	}
	frames := make(chan *image.RGBA, numBuffers)
	failed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		var err error
		for img := range frames {
			if err != nil {
				continue
			}
			if err = w.WriteFrame(img); err != nil {
				close(failed)
			}
		}
		done <- err
	}()

	total := int(duration * float64(fps))
	step := 1.0 / float64(fps)
	var (
		sent int
		err  error
	)
loop:
	for i := 0; i < total; i++ {
		var img *image.RGBA
		img, err = src.Snapshot(ctx, float64(i)*step)
		if err != nil {
			err = fmt.Errorf("render frame %d: %w", i, err)
			break
		}
		select {
		case frames <- img:
			sent++
		case <-failed:
			break loop
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		}
	}
	close(frames)

	werr := <-done
	cerr := w.Close()
	switch {
	case err != nil:
		return sent, err
	case werr != nil:
		return sent, werr
	default:
		return sent, cerr
	}
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
