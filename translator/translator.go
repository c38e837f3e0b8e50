// Package translator converts WebGL2 fragment shaders into desktop GLSL with
// the ANGLE-based goshadertranslator.
package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

// Result is a translated fragment shader.
type Result struct {
	Code string
	// Mapped maps each active variable to its name in Code.
	Mapped map[string]string
}

// Translator wraps one translator instance. It is safe for concurrent use.
type Translator struct {
	mu   sync.Mutex
	gst  *gst.ShaderTranslator
	gles bool
}

// New starts a translator producing GLSL 4.10, or ESSL when gles is set.
func New(ctx context.Context, gles bool) (*Translator, error) {
	t, err := gst.NewShaderTranslator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start shader translator: %w", err)
	}
	return &Translator{gst: t, gles: gles}, nil
}

// Fragment translates a WebGL2 fragment source. The error text is the
// translator's info log, whose lines refer to src.
func (t *Translator) Fragment(src string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	outputFormat := gst.OutputFormatGLSL410
	if t.gles {
		outputFormat = gst.OutputFormatESSL
	}
	fs, err := t.gst.TranslateShader(src, "fragment", gst.ShaderSpecWebGL2, outputFormat)
	if err != nil {
		return nil, err
	}
	mapped := make(map[string]string, len(fs.Variables))
	for name, v := range fs.Variables {
		mapped[name] = v.MappedName
	}
	return &Result{Code: fs.Code, Mapped: mapped}, nil
}
