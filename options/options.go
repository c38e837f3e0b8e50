// Package options loads the preview settings from a TOML file.
package options

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is where the config file lives unless overridden.
const DefaultPath = "~/.config/glslpreview/config.toml"

// RecordOptions configures video export.
type RecordOptions struct {
	FPS        int     `toml:"fps"`
	Duration   float64 `toml:"duration"`
	Output     string  `toml:"output"`
	FFmpegPath string  `toml:"ffmpeg_path"`
	Codec      string  `toml:"codec"`
	HWAccel    bool    `toml:"hw_accel"`
}

// Options holds every user setting.
type Options struct {
	// ShowErrorMessage shows the compiler log next to the error markers.
	ShowErrorMessage bool `toml:"show_error_message"`
	// DefaultSize caps the preview size in pixels. Zero fills the window.
	DefaultSize       int  `toml:"default_size"`
	ConstrainToSquare bool `toml:"constrain_to_square"`
	// IncludeDefaultUniforms declares iResolution, u_time and friends when
	// the shader uses them without declaring them.
	IncludeDefaultUniforms bool    `toml:"include_default_uniforms"`
	DebounceMS             int     `toml:"debounce_ms"`
	DiagnosticDelayMS      int     `toml:"diagnostic_delay_ms"`
	FuzzyThreshold         float64 `toml:"fuzzy_threshold"`

	Width  int `toml:"width"`
	Height int `toml:"height"`

	Record RecordOptions `toml:"record"`
}

// Defaults returns the built-in settings.
func Defaults() Options {
	return Options{
		ShowErrorMessage:       true,
		ConstrainToSquare:      true,
		IncludeDefaultUniforms: true,
		DebounceMS:             250,
		DiagnosticDelayMS:      100,
		FuzzyThreshold:         0.5,
		Width:                  800,
		Height:                 800,
		Record: RecordOptions{
			FPS:      60,
			Duration: 10,
			Output:   "output.mp4",
			Codec:    "h264",
		},
	}
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults; unknown keys are an error.
func Load(path string) (Options, error) {
	opts := Defaults()
	path, err := homedir.Expand(path)
	if err != nil {
		return opts, fmt.Errorf("expand %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return opts, nil
	}
	if err != nil {
		return opts, fmt.Errorf("failed to read config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			keys := make([]string, 0, len(serr.Errors))
			for _, e := range serr.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			return opts, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return opts, fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
		}
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Save writes opts to path, creating its directory.
func (o Options) Save(path string) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand %s: %w", path, err)
	}
	data, err := toml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the preview cannot use.
func (o Options) Validate() error {
	switch {
	case o.DefaultSize < 0:
		return fmt.Errorf("default_size must not be negative, got %d", o.DefaultSize)
	case o.DebounceMS < 0 || o.DiagnosticDelayMS < 0:
		return errors.New("debounce_ms and diagnostic_delay_ms must not be negative")
	case o.FuzzyThreshold < 0 || o.FuzzyThreshold > 1:
		return fmt.Errorf("fuzzy_threshold must be within [0, 1], got %g", o.FuzzyThreshold)
	case o.Width < 1 || o.Height < 1:
		return fmt.Errorf("invalid window size %dx%d", o.Width, o.Height)
	case o.Record.FPS < 1:
		return fmt.Errorf("record.fps must be positive, got %d", o.Record.FPS)
	case o.Record.Codec != "h264" && o.Record.Codec != "hevc":
		return fmt.Errorf("record.codec must be h264 or hevc, got %q", o.Record.Codec)
	}
	return nil
}

func (o Options) Debounce() time.Duration {
	return time.Duration(o.DebounceMS) * time.Millisecond
}

func (o Options) DiagnosticDelay() time.Duration {
	return time.Duration(o.DiagnosticDelayMS) * time.Millisecond
}
