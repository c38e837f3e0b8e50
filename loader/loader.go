// Package loader fetches and decodes texture images from local files and
// http(s) URLs.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/mitchellh/go-homedir"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotImage          = errors.New("not an image")
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
)

// DefaultMaxBytes bounds the size of a texture file.
const DefaultMaxBytes = 64 << 20

const userAgent = "glslpreview (+https://github.com/richinsley/glslpreview)"

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.Transport.RoundTrip(req)
}

var httpClient = &http.Client{
	Transport: &headerTransport{Transport: http.DefaultTransport},
}

// Loader loads texture images. The zero value is ready to use. Nothing is
// cached between calls.
type Loader struct {
	// Client fetches http(s) URIs. Nil uses a shared client.
	Client   *http.Client
	MaxBytes int64
}

// Load reads and decodes the image at uri, which is either a file path, a
// file:// URL or an http(s) URL.
func (l *Loader) Load(ctx context.Context, uri string) (image.Image, error) {
	data, err := l.read(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	return img, nil
}

func (l *Loader) read(ctx context.Context, uri string) ([]byte, error) {
	if !strings.Contains(uri, "://") {
		return l.readFile(ctx, uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return l.readFile(ctx, filepath.FromSlash(u.Path))
	case "http", "https":
		return l.fetch(ctx, u.String())
	default:
		return nil, fmt.Errorf("%s: %w", uri, ErrUnsupportedScheme)
	}
}

func (l *Loader) readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture: %w", err)
	}
	defer f.Close()
	return l.readAll(f, path)
}

func (l *Loader) fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := l.Client
	if client == nil {
		client = httpClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download texture %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to load texture %s, status code: %d", uri, resp.StatusCode)
	}
	return l.readAll(resp.Body, uri)
}

func (l *Loader) readAll(r io.Reader, name string) ([]byte, error) {
	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read texture data from %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("texture %s exceeds %d bytes", name, limit)
	}
	return data, nil
}

// Decode sniffs data and decodes it as an image.
func Decode(data []byte) (image.Image, error) {
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		if kind != filetype.Unknown {
			return nil, fmt.Errorf("%w: %s", ErrNotImage, kind.MIME.Value)
		}
		return nil, ErrNotImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Resolve turns a texture path from a directive into a URI for Load. URLs
// pass through, a leading ~ is expanded, and relative paths are joined to
// baseDir.
func Resolve(baseDir, path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}
	if filepath.IsAbs(path) || baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}
