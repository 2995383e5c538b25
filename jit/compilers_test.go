package jit

import (
	"context"
	"fmt"
	"testing"

	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/beehive-lab/Maxine-VM-sub091/disasm"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func disassemble(t *testing.T, tm *compilation.TargetMethod) []string {
	t.Helper()
	l, err := disasm.New(disasm.Options{Strict: true, InlineData: InlineData(tm)}).Scan(tm.Code)
	require.NoError(t, err)
	assert.Empty(t, disasm.CrossCheck(l))
	var out []string
	for _, obj := range l.Objects {
		out = append(out, obj.Text(l.Labels))
	}
	return out
}

func TestCompiledCodeDisassembles(t *testing.T) {
	b, err := compilation.NewBroker(compilation.DefaultConfig(), &Baseline{}, &Optimizing{})
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()
	m := compilation.NewMethod("java.util.HashMap.get(Object)", false)
	ret := fmt.Sprintf("mov eax, 0x%x", uint32(result(m)))

	cases := []struct {
		directive compilation.Directive
		reopt     bool
		want      []string
	}{
		{compilation.Default, false, []string{"push rbp", "mov rbp, rsp", ret, "pop rbp", "ret"}},
		{compilation.TraceJIT, false, []string{"push rbp", "mov rbp, rsp", "inc dword [rip + 7]", ret, "pop rbp", "ret", ".byte 0x00, 0x00, 0x00, 0x00"}},
		{compilation.Default, true, []string{ret, "ret"}},
	}
	for _, tc := range cases {
		var tm *compilation.TargetMethod
		if tc.reopt {
			c, err := b.Reoptimize(ctx, m, tc.directive, true)
			require.NoError(t, err)
			tm, err = c.Wait(ctx)
			require.NoError(t, err)
		} else {
			tm, err = b.Compile(ctx, m, tc.directive)
			require.NoError(t, err)
		}
		if diff := cmp.Diff(tc.want, disassemble(t, tm)); diff != "" {
			t.Errorf("%s (reoptimized %v) mismatch (-want +got):\n%s", tc.directive, tc.reopt, diff)
		}
	}
}

func TestBaselineFailureFailsOver(t *testing.T) {
	baseline := &Baseline{Fail: func(m *compilation.Method) bool { return m.Name == "Broken.method()" }}
	b, err := compilation.NewBroker(compilation.DefaultConfig(), baseline, &Optimizing{})
	require.NoError(t, err)
	defer b.Close()

	tm, err := b.Compile(context.Background(), compilation.NewMethod("Broken.method()", false), compilation.Default)
	require.NoError(t, err)
	assert.Equal(t, "c1x", tm.Compiler)
	assert.Len(t, tm.Code, 6)
}

func TestCompileHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := compilation.NewMethod("Foo.bar()", false)
	_, err := (&Baseline{}).Compile(ctx, m, compilation.Default)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = (&Optimizing{}).Compile(ctx, m, compilation.Default)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInlineDataOnlyForTraceCode(t *testing.T) {
	m := compilation.NewMethod("Foo.bar()", false)
	code, err := (&Baseline{}).Compile(context.Background(), m, compilation.TraceJIT)
	require.NoError(t, err)
	assert.Len(t, code, 21)

	tm := &compilation.TargetMethod{Method: m, Directive: compilation.TraceJIT, Code: code}
	require.Len(t, InlineData(tm).Descriptors(), 1)
	assert.Equal(t, 17, InlineData(tm).Descriptors()[0].Start)

	tm = &compilation.TargetMethod{Method: m, Directive: compilation.Default, Code: code}
	assert.Empty(t, InlineData(tm).Descriptors())
}
