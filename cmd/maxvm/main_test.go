package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseHex(t *testing.T) {
	for _, in := range []string{"488b0418", "48 8B 04 18", "0x48, 0x8b, 0x04, 0x18", "48 8b\n04 18\n"} {
		code, err := parseHex(in)
		require.NoError(t, err, in)
		assert.Equal(t, []byte{0x48, 0x8B, 0x04, 0x18}, code, in)
	}
	_, err := parseHex("48 8")
	assert.Error(t, err)
}

func TestDisasmCommand(t *testing.T) {
	first := writeFile(t, "code.hex", "48 8b 04 18\nc3\n")
	out, err := run(t, "disasm", "--hex", first)
	require.NoError(t, err)
	assert.Equal(t, "0x0000: 488b0418         mov rax, rax[rbx]\n0x0004: c3               ret\n", out)

	second := writeFile(t, "ret.hex", "c3")
	out, err = run(t, "disasm", "--hex", "--start", "4096", "--crosscheck", first, second)
	require.NoError(t, err)
	assert.Equal(t, "==> "+first+" <==\n"+
		"0x1000: 488b0418         mov rax, rax[rbx]\n"+
		"0x1004: c3               ret\n"+
		"==> "+second+" <==\n"+
		"0x1000: c3               ret\n", out)
}

func TestDisasmCommandRawAndJSON(t *testing.T) {
	path := writeFile(t, "code.bin", string([]byte{0x41, 0x54, 0x06, 0xC3}))
	out, err := run(t, "disasm", "--json", path)
	require.NoError(t, err)

	var entries []struct {
		Address string `json:"address"`
		Kind    string `json:"kind"`
		Text    string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "push r12", entries[0].Text)
	assert.Equal(t, ".byte 0x06", entries[1].Text)
	assert.Equal(t, "0x3", entries[2].Address)
	assert.Equal(t, "instruction", entries[2].Kind)

	_, err = run(t, "disasm", "--strict", path)
	assert.Error(t, err)
	_, err = run(t, "disasm", filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestTemplatesCommand(t *testing.T) {
	out, err := run(t, "templates", "ret", "push")
	require.NoError(t, err)
	assert.Contains(t, out, "amd64 templates:")
	assert.Contains(t, out, "ret (")
	assert.Contains(t, out, "push (")
	assert.NotContains(t, out, "mov (")

	_, err = run(t, "templates", "frobnicate")
	assert.Error(t, err)
}

func TestScheduleCommand(t *testing.T) {
	chart := filepath.Join(t.TempDir(), "history.html")
	out, err := run(t, "schedule", "--vm=-XX:RCT=2", "--invocations", "2", "--callers", "3", "--chart", chart, "A.b()")
	require.NoError(t, err)
	assert.Contains(t, out, "A.b() (invocations 2, backedges 0)")
	assert.Contains(t, out, "#1 t1x baseline")
	assert.Contains(t, out, "-> default#2")
	assert.Contains(t, out, "#2 c1x optimized")
	assert.Contains(t, out, "code cache: 2 target methods")

	html, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")

	_, err = run(t, "schedule", "--vm=-Xbogus", "A.b()")
	assert.ErrorContains(t, err, "unrecognized VM options")
	_, err = run(t, "schedule", "--vm=-XX:RCT=abc", "A.b()")
	assert.Error(t, err)
}

func TestScheduleFailover(t *testing.T) {
	out, err := run(t, "schedule", "--fail", "Broken.m()", "--callers", "1", "Broken.m()", "Fine.m()")
	require.NoError(t, err)
	var first []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "#1 ") {
			first = append(first, line)
		}
	}
	require.Len(t, first, 2)
	assert.Contains(t, first[0], "c1x optimized")
	assert.Contains(t, first[1], "t1x baseline")
}

func TestConsole(t *testing.T) {
	ctx := context.Background()
	var fatals []error
	s, err := (&sessionFlags{}).open(ctx, func(err error) { fatals = append(fatals, err) })
	require.NoError(t, err)
	defer s.Close(ctx)
	c, err := newConsole(ctx, s)
	require.NoError(t, err)

	eval := func(line string) string {
		t.Helper()
		out, err := c.eval(line)
		require.NoError(t, err, line)
		return out
	}

	assert.Equal(t, "0x0000: c3               ret\n", eval(`disasm("c3")`))
	assert.Equal(t, "t1x", eval(`compile("A.b()", "default").compiler`))
	assert.Equal(t, "3", eval(`invoke("A.b()", 3)`))
	assert.Contains(t, eval(`listing("A.b()", "default")`), "push rbp")
	assert.Equal(t, "optimized", eval(`reoptimize("A.b()", "default").tier`))
	assert.Equal(t, "2", eval(`history("A.b()").length`))
	assert.Contains(t, eval(`templates("ret")`), "ret (")
	assert.Equal(t, "", eval(`var x = 1`))

	_, err = c.eval(`compile("A.b()", "bogus")`)
	assert.ErrorContains(t, err, "unknown directive")
	_, err = c.eval(`listing("Missing.m()", "jit")`)
	assert.ErrorContains(t, err, "has no jit code")
	assert.Empty(t, fatals)
}
