// Package compilation schedules method compilations between a baseline and an
// optimizing compiler and serializes concurrent requests for the same method.
package compilation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
)

// Mode selects which compilers the broker uses.
type Mode uint8

const (
	// ModeBaseline compiles with the baseline compiler only and never recompiles.
	ModeBaseline Mode = iota
	// ModeOptimized compiles with the optimizing compiler from the start.
	ModeOptimized
	// ModeMixed compiles with the baseline compiler and reoptimizes hot methods.
	ModeMixed
)

func (m Mode) String() string {
	switch m {
	case ModeBaseline:
		return "jit"
	case ModeOptimized:
		return "opt"
	case ModeMixed:
		return "mixed"
	}
	return fmt.Sprintf("Mode(%d)", m)
}

const (
	// DefaultRecompilationThreshold is the invocation count that triggers reoptimization in mixed mode.
	DefaultRecompilationThreshold = 1500
	// RecompilationDisabled turns off counter triggered recompilation.
	RecompilationDisabled = -1
)

// CompileCommand is one "-XX:CompileCommand" entry: methods whose name
// contains Pattern (or every method for "*") use the compiler named Compiler.
type CompileCommand struct {
	Pattern  string
	Compiler string
}

// Config holds the broker knobs.
type Config struct {
	Mode                   Mode
	RecompilationThreshold int
	FailOver               bool
	GCOnCompilation        bool
	GCOnRecompilation      bool
	BackgroundCompilation  bool
	CompileCommands        []CompileCommand
}

// DefaultConfig is mixed mode with failover on.
func DefaultConfig() Config {
	return Config{
		Mode:                   ModeMixed,
		RecompilationThreshold: DefaultRecompilationThreshold,
		FailOver:               true,
	}
}

// ParseOptions applies VM style options to DefaultConfig. Arguments that are
// not compilation options are returned in order.
func ParseOptions(args []string) (Config, []string, error) {
	cfg := DefaultConfig()
	var rest []string
	for _, arg := range args {
		switch {
		case arg == "-Xjit":
			cfg.Mode = ModeBaseline
		case arg == "-Xopt":
			cfg.Mode = ModeOptimized
		case arg == "-Xmixed":
			cfg.Mode = ModeMixed
		case strings.HasPrefix(arg, "-XX:RCT="):
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "-XX:RCT="))
			if err != nil || (n < 0 && n != RecompilationDisabled) {
				return cfg, nil, fmt.Errorf("%w: %s", vmerrors.ErrInvalidOption, arg)
			}
			cfg.RecompilationThreshold = n
		case arg == "-XX:+FailOverCompilation":
			cfg.FailOver = true
		case arg == "-XX:-FailOverCompilation":
			cfg.FailOver = false
		case arg == "-XX:GCOnCompilation":
			cfg.GCOnCompilation = true
		case arg == "-XX:GCOnRecompilation":
			cfg.GCOnRecompilation = true
		case arg == "-XX:BackgroundCompilation":
			cfg.BackgroundCompilation = true
		case strings.HasPrefix(arg, "-XX:CompileCommand="):
			cmds, err := parseCompileCommands(strings.TrimPrefix(arg, "-XX:CompileCommand="))
			if err != nil {
				return cfg, nil, err
			}
			cfg.CompileCommands = append(cfg.CompileCommands, cmds...)
		case strings.HasPrefix(arg, "-Xjit") || strings.HasPrefix(arg, "-Xopt") || strings.HasPrefix(arg, "-Xmixed"):
			return cfg, nil, fmt.Errorf("%w: %s", vmerrors.ErrInvalidOption, arg)
		default:
			rest = append(rest, arg)
		}
	}
	return cfg, rest, nil
}

// parseCompileCommands splits "pattern:compiler,pattern:compiler".
func parseCompileCommands(value string) ([]CompileCommand, error) {
	var cmds []CompileCommand
	for _, part := range strings.Split(value, ",") {
		colon := strings.IndexByte(part, ':')
		if colon <= 0 || colon == len(part)-1 {
			return nil, fmt.Errorf("%w: CompileCommand part %q is not <pattern>:<compiler>", vmerrors.ErrInvalidOption, part)
		}
		cmds = append(cmds, CompileCommand{Pattern: part[:colon], Compiler: part[colon+1:]})
	}
	return cmds, nil
}

// compilerFor returns the compiler name the first matching command selects.
func (c Config) compilerFor(method string) (string, bool) {
	for _, cmd := range c.CompileCommands {
		if cmd.Pattern == "*" || strings.Contains(method, cmd.Pattern) {
			return cmd.Compiler, true
		}
	}
	return "", false
}

// recompiles reports whether counters can trigger reoptimization.
func (c Config) recompiles() bool {
	return c.Mode == ModeMixed && c.RecompilationThreshold > 0
}
