package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, lvl)

	lvl, err = ParseLevel("CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, LevelCrit, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestTerminalHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(NewTerminalHandler(&buf, false))
	l.Info(Compile, "installed", "method", "Foo.bar", "size", 12)
	l.Debug(Compile, "hidden")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "INFO "), out)
	assert.Contains(t, out, "installed")
	assert.Contains(t, out, "module=compile")
	assert.Contains(t, out, "method=Foo.bar")
	assert.Contains(t, out, "size=12")
	assert.NotContains(t, out, "hidden")
}

func TestModuleFilter(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(&buf, LevelTrace, false)))
	defer SetDefault(prev)

	DisableModule(Disasm)
	Debug(Disasm, "filtered")
	assert.Empty(t, buf.String())

	EnableModules("disasm, asm")
	defer DisableModule(Disasm)
	defer DisableModule(Assembler)
	Debug(Disasm, "visible")
	Trace(Assembler, "also visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "also visible")

	Info(JIT, "always")
	assert.Contains(t, buf.String(), "always")
}
