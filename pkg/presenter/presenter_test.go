package presenter

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	presenter := New()
	assert.NotNil(t, presenter)
	assert.Equal(t, os.Stdout, presenter.output)
	assert.Equal(t, os.Stderr, presenter.errorOutput)
	assert.False(t, presenter.quiet)
}

func TestNewWithOptions(t *testing.T) {
	var output, errorOutput bytes.Buffer
	presenter := NewWithOptions(&output, &errorOutput, ColorNever)

	assert.Equal(t, &output, presenter.output)
	assert.Equal(t, &errorOutput, presenter.errorOutput)
	assert.Equal(t, ColorNever, presenter.colorMode)
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		skillkitColor string
		expected      ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"SKILLKIT_COLOR always", "", "always", ColorAlways},
		{"SKILLKIT_COLOR force", "", "force", ColorAlways},
		{"SKILLKIT_COLOR never", "", "never", ColorNever},
		{"SKILLKIT_COLOR off", "", "off", ColorNever},
		{"SKILLKIT_COLOR auto", "", "auto", ColorAuto},
		{"default", "", "", ColorAuto},
		{"invalid color value", "", "invalid", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("SKILLKIT_COLOR", tt.skillkitColor)
			if tt.noColor == "" {
				os.Unsetenv("NO_COLOR")
			}
			if tt.skillkitColor == "" {
				os.Unsetenv("SKILLKIT_COLOR")
			}

			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestErrorOutput(t *testing.T) {
	var output, errorOutput bytes.Buffer
	p := NewWithOptions(&output, &errorOutput, ColorNever)

	p.Error(errors.New("boom"), "loading skill")
	assert.Contains(t, errorOutput.String(), "[ERROR] loading skill: boom")
	assert.Empty(t, output.String())

	errorOutput.Reset()
	p.Error(nil, "ignored")
	assert.Empty(t, errorOutput.String())
}

func TestErrorWithoutContext(t *testing.T) {
	var output, errorOutput bytes.Buffer
	p := NewWithOptions(&output, &errorOutput, ColorNever)

	p.Error(errors.New("boom"), "")
	assert.Contains(t, errorOutput.String(), "[ERROR] boom")
}

func TestQuietModeSuppressesOutput(t *testing.T) {
	var output, errorOutput bytes.Buffer
	p := NewWithOptions(&output, &errorOutput, ColorNever)
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("done")
	p.Warning("careful")
	p.Info("fyi")
	p.Section("header")
	p.Separator()
	assert.Empty(t, output.String())

	// errors always print
	p.Error(errors.New("boom"), "")
	assert.Contains(t, errorOutput.String(), "boom")
}

func TestMessageFormats(t *testing.T) {
	var output, errorOutput bytes.Buffer
	p := NewWithOptions(&output, &errorOutput, ColorNever)

	p.Success("installed")
	p.Warning("stale index")
	p.Info("12 skills")
	p.Section("Skills")

	out := output.String()
	assert.Contains(t, out, "✓ installed")
	assert.Contains(t, out, "⚠ stale index")
	assert.Contains(t, out, "12 skills")
	assert.Contains(t, out, "Skills\n------")
}
