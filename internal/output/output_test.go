package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("*", "Opening index...")

	// Then: output contains icon and message
	assert.Equal(t, "* Opening index...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message without an icon
	w.Status("", "detail")

	// Then: the message is indented
	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Levels_PlainWithoutColor(t *testing.T) {
	// Given: a writer on a non-terminal buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing success, warning and error messages
	w.Successf("indexed %d entries", 9)
	w.Warning("tika unavailable")
	w.Errorf("rebuild failed: %s", "boom")

	// Then: icons are present and no ANSI codes are emitted
	out := buf.String()
	assert.Contains(t, out, "✓ indexed 9 entries")
	assert.Contains(t, out, "! tika unavailable")
	assert.Contains(t, out, "✗ rebuild failed: boom")
	assert.NotContains(t, out, "\x1b[")
	assert.False(t, w.Color())
}

func TestWriter_ForcedColor_EmitsANSI(t *testing.T) {
	// Given: a writer with colour forced on
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, true)

	// When: printing a heading and a success line
	w.Heading("Index")
	w.Success("ok")

	// Then: ANSI sequences wrap the styled parts
	out := buf.String()
	assert.Contains(t, out, ansiBold+"Index"+ansiReset)
	assert.Contains(t, out, ansiGreen+"✓"+ansiReset)
	assert.Equal(t, "", w.Dim(""), "empty strings stay unstyled")
}

func TestWriter_Field_PadsLabel(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing two fields with the same width
	w.Field("documents", 10, 42)
	w.Field("generation", 10, 3)

	// Then: values line up
	assert.Equal(t, "  documents:  42\n  generation: 3\n", buf.String())
}

func TestIsTTY_NonFileWriter(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestDetectNoColor(t *testing.T) {
	// Given: NO_COLOR set in the environment
	t.Setenv("NO_COLOR", "1")

	// Then: detection reports it
	assert.True(t, DetectNoColor())
}

func TestWriter_Progress_PrintsProgressBar(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing progress at 50%
	w.Progress(50, 100, "namespaces")

	// Then: output contains progress indicator and message
	output := buf.String()
	assert.Contains(t, output, "50%")
	assert.Contains(t, output, "namespaces")
	assert.False(t, strings.HasSuffix(output, "\n"))
}

func TestWriter_Progress_ZeroTotal_NoOutput(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing progress with zero total
	w.Progress(0, 0, "Processing")

	// Then: nothing is written
	assert.Empty(t, buf.String())
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int
	}{
		{name: "0 percent", current: 0, total: 100, width: 10, wantFull: 0},
		{name: "50 percent", current: 50, total: 100, width: 10, wantFull: 5},
		{name: "100 percent", current: 100, total: 100, width: 10, wantFull: 10},
		{name: "over 100 percent", current: 150, total: 100, width: 10, wantFull: 10},
		{name: "25 percent", current: 25, total: 100, width: 20, wantFull: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)

			assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a newline
	w.Newline()

	// Then: output is just a newline
	assert.Equal(t, "\n", buf.String())
}
