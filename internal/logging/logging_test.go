package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixes(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Info.Print("hello")
	l.Warn.Print("careful")
	l.Debug.Print("hidden")

	out := buf.String()
	assert.Contains(t, out, "[info] ")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "[warn] ")
	assert.NotContains(t, out, "hidden")
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Debug.Print("shown")
	assert.Contains(t, buf.String(), "[debug] ")
	assert.Contains(t, buf.String(), "logging_test.go")
}
