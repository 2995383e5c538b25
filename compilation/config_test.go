package compilation

import (
	"testing"

	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	cfg, rest, err := ParseOptions([]string{
		"-Xopt",
		"-XX:RCT=200",
		"-XX:-FailOverCompilation",
		"-XX:GCOnCompilation",
		"-XX:GCOnRecompilation",
		"-XX:BackgroundCompilation",
		"-XX:CompileCommand=test.output:T1X,com.acme.util.Strings:C1X",
		"-XX:CompileCommand=*:t1x",
		"Main",
		"arg",
	})
	require.NoError(t, err)

	want := Config{
		Mode:                   ModeOptimized,
		RecompilationThreshold: 200,
		FailOver:               false,
		GCOnCompilation:        true,
		GCOnRecompilation:      true,
		BackgroundCompilation:  true,
		CompileCommands: []CompileCommand{
			{Pattern: "test.output", Compiler: "T1X"},
			{Pattern: "com.acme.util.Strings", Compiler: "C1X"},
			{Pattern: "*", Compiler: "t1x"},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Main", "arg"}, rest)

	name, ok := cfg.compilerFor("com.acme.util.Strings.trim()")
	assert.True(t, ok)
	assert.Equal(t, "C1X", name)
	name, _ = cfg.compilerFor("Other.method()")
	assert.Equal(t, "t1x", name)
}

func TestParseOptionsDefaults(t *testing.T) {
	cfg, rest, err := ParseOptions(nil)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, ModeMixed, cfg.Mode)
	assert.Equal(t, DefaultRecompilationThreshold, cfg.RecompilationThreshold)
	assert.True(t, cfg.FailOver)

	cfg, _, err = ParseOptions([]string{"-XX:RCT=-1", "-Xjit"})
	require.NoError(t, err)
	assert.Equal(t, RecompilationDisabled, cfg.RecompilationThreshold)
	assert.Equal(t, ModeBaseline, cfg.Mode)
	assert.False(t, cfg.recompiles())
}

func TestParseOptionsErrors(t *testing.T) {
	for _, arg := range []string{
		"-XX:RCT=many",
		"-XX:RCT=-5",
		"-XX:CompileCommand=nocolon",
		"-XX:CompileCommand=:T1X",
		"-XX:CompileCommand=pattern:",
		"-Xjitter",
	} {
		_, _, err := ParseOptions([]string{arg})
		assert.ErrorIs(t, err, vmerrors.ErrInvalidOption, arg)
	}
}

func TestDirectiveNames(t *testing.T) {
	for d := Default; d < numDirectives; d++ {
		got, ok := ParseDirective(d.String())
		require.True(t, ok)
		assert.Equal(t, d, got)
	}
	_, ok := ParseDirective("native")
	assert.False(t, ok)
	assert.Equal(t, []Directive{Default, JIT}, Default.promotableFrom())
	assert.Empty(t, TraceJIT.promotableFrom())
	assert.Equal(t, "mixed", ModeMixed.String())
}
