package engine

import (
	"context"
	"image"
	"log/slog"

	"github.com/richinsley/glslpreview/diagnostics"
	"github.com/richinsley/glslpreview/directive"
)

// TextureLoader fetches and decodes the image behind a resolved URI.
// Load is called on its own goroutine and must honor ctx.
type TextureLoader interface {
	Load(ctx context.Context, uri string) (image.Image, error)
}

// SourceProvider supplies the shader text being edited.
type SourceProvider interface {
	Text() string
	// Path locates the source on disk; texture and include paths are
	// relative to its directory.
	Path() string
	// Changes fires after edits settle, on save and on reload.
	Changes() <-chan struct{}
}

// ErrorSink receives everything the user should see about a session.
type ErrorSink interface {
	// SetMarkers replaces the error decorations. An empty list clears them.
	SetMarkers(markers []diagnostics.Marker)
	ShaderError(message string)
	TextureError(d directive.Directive, err error)
	TextureLoaded(d directive.Directive, width, height int)
}

// LogSink is an ErrorSink that writes to a structured logger.
type LogSink struct {
	Logger *slog.Logger
	// ShowErrorMessage logs the full shader error text. When false only the
	// marker lines are logged.
	ShowErrorMessage bool
}

func (s *LogSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *LogSink) SetMarkers(markers []diagnostics.Marker) {
	if len(markers) == 0 {
		s.logger().Info("errors cleared")
		return
	}
	for _, m := range markers {
		s.logger().Warn("shader error", "line", m.Line, "message", m.Message)
	}
}

func (s *LogSink) ShaderError(message string) {
	if !s.ShowErrorMessage {
		return
	}
	s.logger().Error("shader failed to compile", "log", message)
}

func (s *LogSink) TextureError(d directive.Directive, err error) {
	s.logger().Error("texture failed to load", "uniform", d.ID, "path", d.Path, "error", err)
}

func (s *LogSink) TextureLoaded(d directive.Directive, width, height int) {
	s.logger().Info("texture loaded", "uniform", d.ID, "path", d.Path, "width", width, "height", height)
}

type discardSink struct{}

func (discardSink) SetMarkers([]diagnostics.Marker) {}
func (discardSink) ShaderError(string) {}
func (discardSink) TextureError(directive.Directive, error) {}
func (discardSink) TextureLoaded(directive.Directive, int, int) {}
