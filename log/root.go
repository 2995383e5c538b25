package log

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Modules gate Trace and Debug output.
const (
	Disasm    = "disasm"    // instruction decoding and stream scanning
	Assembler = "asm"       // assembler oracle and template table
	Compile   = "compile"   // compilation scheduler
	CodeCache = "codecache" // installed code persistence
	JIT       = "jit"       // demonstration compilers
)

var root atomic.Pointer[Logger]

func init() {
	SetDefault(NewLogger(DiscardHandler()))
}

func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "MAX", "MAXVERBOSITY":
		return levelMaxVerbosity, nil
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "CRIT", "CRITICAL":
		return LevelCrit, nil
	}
	return 0, fmt.Errorf("invalid level: %s", lvl)
}

// InitLogger installs a colored terminal logger on stderr. An unknown level
// exits the process.
func InitLogger(logLevel string) {
	lvl, err := ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}

// SetDefault replaces the root logger and routes log/slog through it.
func SetDefault(l Logger) {
	root.Store(&l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

func Root() Logger {
	return *root.Load()
}

var (
	moduleMu      sync.RWMutex
	moduleEnabled = map[string]bool{}
)

func EnableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = true
	moduleMu.Unlock()
}

// EnableModules takes a comma separated list; "all" enables every module.
func EnableModules(list string) {
	for _, m := range strings.Split(list, ",") {
		switch m = strings.TrimSpace(m); m {
		case "":
		case "all":
			for _, all := range []string{Disasm, Assembler, Compile, CodeCache, JIT} {
				EnableModule(all)
			}
		default:
			EnableModule(m)
		}
	}
}

func DisableModule(module string) {
	moduleMu.Lock()
	delete(moduleEnabled, module)
	moduleMu.Unlock()
}

func moduleOn(module string) bool {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	return moduleEnabled[module]
}

// Trace and Debug only write for enabled modules.
func Trace(module, msg string, kv ...any) {
	if moduleOn(module) {
		Root().Write(LevelTrace, module, msg, kv...)
	}
}

func Debug(module, msg string, kv ...any) {
	if moduleOn(module) {
		Root().Write(LevelDebug, module, msg, kv...)
	}
}

func Info(module, msg string, kv ...any)  { Root().Write(LevelInfo, module, msg, kv...) }
func Warn(module, msg string, kv ...any)  { Root().Write(LevelWarn, module, msg, kv...) }
func Error(module, msg string, kv ...any) { Root().Write(LevelError, module, msg, kv...) }

// Crit logs and exits the process.
func Crit(module, msg string, kv ...any) {
	Root().Write(LevelCrit, module, msg, kv...)
	os.Exit(1)
}

func New(kv ...any) Logger {
	return Root().With(kv...)
}
