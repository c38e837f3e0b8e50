package renderer

import (
	"image"

	"github.com/anthonynsimon/bild/transform"
	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/glslpreview/engine"
)

type texture struct {
	id            uint32
	width, height int
}

// NewTexture uploads img with its top row at t = 1, as WebGL does with
// UNPACK_FLIP_Y. Power-of-two images repeat and are mipmapped; others are
// clamped to the edge.
func (r *Renderer) NewTexture(img image.Image) (engine.Texture, error) {
	rgba := transform.FlipV(img)
	width, height := rgba.Rect.Dx(), rgba.Rect.Dy()

	wrap, filter := "clamp", "linear"
	if isPowerOfTwo(width) && isPowerOfTwo(height) {
		wrap, filter = "repeat", "mipmap"
	}

	t := &texture{width: width, height: height}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, getWrapMode(wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, getWrapMode(wrap))

	minFilter, magFilter := getFilterMode(filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	if filter == "mipmap" {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return t, nil
}

// newEmptyTexture creates the 1x1 transparent black placeholder.
func newEmptyTexture() uint32 {
	var id uint32
	pixel := []uint8{0, 0, 0, 0}
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, 1, 1, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixel))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id
}

func (t *texture) Size() (int, int) { return t.width, t.height }

func (t *texture) Dispose() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func getWrapMode(wrap string) int32 {
	switch wrap {
	case "clamp":
		return gl.CLAMP_TO_EDGE
	default:
		return gl.REPEAT
	}
}

func getFilterMode(filter string) (minFilter, magFilter int32) {
	switch filter {
	case "mipmap":
		return gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR
	case "nearest":
		return gl.NEAREST, gl.NEAREST
	default:
		return gl.LINEAR, gl.LINEAR
	}
}
