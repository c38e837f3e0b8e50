package encoder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	in, out := Args(Options{Width: 320, Height: 200, FPS: 30, Output: "out.mp4"})
	assert.Equal(t, "rawvideo", in["f"])
	assert.Equal(t, "rgba", in["pix_fmt"])
	assert.Equal(t, "320x200", in["s"])
	assert.Equal(t, 30, in["r"])
	assert.Equal(t, "libx264", out["c:v"])
	assert.NotContains(t, out, "tag:v")

	_, out = Args(Options{Width: 1, Height: 1, FPS: 1, Codec: "hevc", Output: "out.mp4"})
	assert.Equal(t, "libx265", out["c:v"])
	assert.Equal(t, "hvc1", out["tag:v"])
}

type nopCloser struct {
	bytes.Buffer
	closed bool
}

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

func TestWriteFrame(t *testing.T) {
	var buf nopCloser
	errc := make(chan error, 1)
	errc <- nil
	e := newEncoder(Options{Width: 2, Height: 2}, &buf, errc)

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 1, G: 2, B: 3, A: 4})
	require.NoError(t, e.WriteFrame(img))
	assert.Equal(t, 16, buf.Len())
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes()[12:16])

	// A sub-image has a wider stride and is written row by row.
	big := image.NewRGBA(image.Rect(0, 0, 4, 4))
	big.Set(2, 2, color.RGBA{R: 9, A: 255})
	require.NoError(t, e.WriteFrame(big.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)))
	assert.Equal(t, 32, buf.Len())
	assert.Equal(t, []byte{9, 0, 0, 255}, buf.Bytes()[28:32])

	assert.Error(t, e.WriteFrame(image.NewRGBA(image.Rect(0, 0, 3, 2))))
	assert.Equal(t, int64(2), e.Frames())

	require.NoError(t, e.Close())
	assert.True(t, buf.closed)
	require.NoError(t, e.Close())
	assert.Error(t, e.WriteFrame(img))
}

func TestClosePropagatesFFmpegError(t *testing.T) {
	errc := make(chan error, 1)
	errc <- errors.New("exit status 1")
	e := newEncoder(Options{Width: 1, Height: 1}, &nopCloser{}, errc)
	assert.ErrorContains(t, e.Close(), "exit status 1")
}

type fakeSource struct {
	times []float64
	fail  int
}

func (s *fakeSource) Snapshot(_ context.Context, t float64) (*image.RGBA, error) {
	if s.fail > 0 && len(s.times) == s.fail {
		return nil, errors.New("lost context")
	}
	s.times = append(s.times, t)
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

type fakeWriter struct {
	mu      sync.Mutex
	written int
	failAt  int
	closed  bool
}

func (w *fakeWriter) WriteFrame(*image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAt > 0 && w.written == w.failAt {
		return io.ErrClosedPipe
	}
	w.written++
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestRecordFixedFrameRate(t *testing.T) {
	src := &fakeSource{}
	w := &fakeWriter{}
	n, err := Record(context.Background(), src, w, 10, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, w.written)
	assert.True(t, w.closed)
	require.Len(t, src.times, 5)
	for i, got := range src.times {
		assert.InDelta(t, float64(i)/10, got, 1e-9)
	}
}

func TestRecordStopsOnErrors(t *testing.T) {
	w := &fakeWriter{}
	n, err := Record(context.Background(), &fakeSource{fail: 3}, w, 10, 1)
	assert.ErrorContains(t, err, "render frame 3")
	assert.Equal(t, 3, n)
	assert.True(t, w.closed)

	w = &fakeWriter{failAt: 2}
	_, err = Record(context.Background(), &fakeSource{}, w, 10, 100)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.True(t, w.closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Record(ctx, &fakeSource{}, &fakeWriter{}, 0, 1)
	assert.Error(t, err)
}

func TestSavePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(2, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	path := filepath.Join(t.TempDir(), "snap.png")
	require.NoError(t, SavePNG(path, img))

	got, err := imgio.Open(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())
	r, g, b, _ := got.At(2, 1).RGBA()
	assert.Equal(t, []uint32{200, 100, 50}, []uint32{r >> 8, g >> 8, b >> 8})
}
