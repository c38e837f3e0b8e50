package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), opts)
	assert.Equal(t, 250*time.Millisecond, opts.Debounce())
	assert.Equal(t, 100*time.Millisecond, opts.DiagnosticDelay())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
show_error_message = false
default_size = 512
constrain_to_square = false

[record]
fps = 30
codec = "hevc"
`), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.False(t, opts.ShowErrorMessage)
	assert.Equal(t, 512, opts.DefaultSize)
	assert.False(t, opts.ConstrainToSquare)
	assert.True(t, opts.IncludeDefaultUniforms)
	assert.Equal(t, 30, opts.Record.FPS)
	assert.Equal(t, "hevc", opts.Record.Codec)
	assert.Equal(t, 10.0, opts.Record.Duration)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "syntax", content: "default_size = = 3", want: "config.toml:1"},
		{name: "unknown key", content: "colour = 1", want: "colour"},
		{name: "invalid value", content: "fuzzy_threshold = 2.0", want: "fuzzy_threshold"},
		{name: "invalid codec", content: "[record]\ncodec = \"vp9\"", want: "record.codec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	opts := Defaults()
	opts.DefaultSize = 300
	opts.Record.Output = "clip.mp4"
	require.NoError(t, opts.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, opts, got)
}
