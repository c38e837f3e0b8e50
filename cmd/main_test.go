package main

import (
	"testing"
	"time"

	"github.com/richinsley/glslpreview/engine"
	"github.com/richinsley/glslpreview/options"
	"github.com/stretchr/testify/assert"
)

func TestWindowTitle(t *testing.T) {
	assert.Equal(t, "glslpreview - wave.frag [valid]", windowTitle("wave.frag", engine.Valid))
	assert.Equal(t, "glslpreview - wave.frag [invalid]", windowTitle("wave.frag", engine.Invalid))
}

func TestSnapshotPath(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "/work/shaders/wave-20240309-140507.png", snapshotPath("/work/shaders/wave.frag", at))
	assert.Equal(t, "noext-20240309-140507.png", snapshotPath("noext", at))
}

func TestApplyFlags(t *testing.T) {
	opts := options.Defaults()
	applyFlags(&opts, 640, 0, 0, 30, "", "", "hevc")
	assert.Equal(t, 640, opts.Width)
	assert.Equal(t, options.Defaults().Height, opts.Height)
	assert.Equal(t, 30, opts.Record.FPS)
	assert.Equal(t, options.Defaults().Record.Output, opts.Record.Output)
	assert.Equal(t, "hevc", opts.Record.Codec)
}
