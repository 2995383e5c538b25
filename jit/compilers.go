package jit

import (
	"context"
	"fmt"

	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/beehive-lab/Maxine-VM-sub091/x86"
)

// Baseline emits a framed body. TraceJIT code also bumps a counter slot
// placed after the return.
type Baseline struct {
	// Fail, when set, makes compilation of matching methods fail.
	Fail func(m *compilation.Method) bool
}

func (*Baseline) Name() string           { return "t1x" }
func (*Baseline) Tier() compilation.Tier { return compilation.TierBaseline }

func (b *Baseline) Compile(ctx context.Context, m *compilation.Method, d compilation.Directive) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Fail != nil && b.Fail(m) {
		return nil, fmt.Errorf("t1x: cannot compile %s", m)
	}
	code, incEnd, err := b.body(m, d, 0)
	if err != nil {
		return nil, err
	}
	if d == compilation.TraceJIT {
		// the counter slot follows the body; lengths do not depend on the displacement
		if code, _, err = b.body(m, d, int64(len(code)-incEnd)); err != nil {
			return nil, err
		}
		code = append(code, make([]byte, counterSize)...)
	}
	log.Debug(log.JIT, "baseline compiled", "method", m, "directive", d, "size", len(code))
	return code, nil
}

// body emits the method and returns the offset just past the counter increment.
func (b *Baseline) body(m *compilation.Method, d compilation.Directive, counterDisp int64) ([]byte, int, error) {
	e := newEmitter()
	e.emit("push", x86.W64, x86.FormNone, x86.RBP)
	e.emit("mov", x86.W64, x86.FormRegister, x86.RBP, x86.RSP)
	incEnd := 0
	if d == compilation.TraceJIT {
		e.emit("inc", x86.W32, x86.FormRIP, x86.Disp32(counterDisp))
		incEnd = len(e.code)
	}
	e.emit("mov", x86.W32, x86.FormNone, eax, x86.Imm(result(m), x86.W32))
	e.emit("pop", x86.W64, x86.FormNone, x86.RBP)
	e.emit("ret", 0, x86.FormNone)
	return e.code, incEnd, e.err
}

// Optimizing emits a leaf body without a frame.
type Optimizing struct {
	Fail func(m *compilation.Method) bool
}

func (*Optimizing) Name() string           { return "c1x" }
func (*Optimizing) Tier() compilation.Tier { return compilation.TierOptimized }

func (o *Optimizing) Compile(ctx context.Context, m *compilation.Method, d compilation.Directive) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.Fail != nil && o.Fail(m) {
		return nil, fmt.Errorf("c1x: cannot compile %s", m)
	}
	e := newEmitter()
	e.emit("mov", x86.W32, x86.FormNone, eax, x86.Imm(result(m), x86.W32))
	e.emit("ret", 0, x86.FormNone)
	if e.err != nil {
		return nil, e.err
	}
	log.Debug(log.JIT, "optimizing compiled", "method", m, "directive", d, "size", len(e.code))
	return e.code, nil
}

var eax, _ = x86.RegisterByName("eax")
