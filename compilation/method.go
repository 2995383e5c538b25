package compilation

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Directive selects an independent slot of compiled code for a method.
type Directive uint8

const (
	// Default is code chosen by the compilation policy.
	Default Directive = iota
	// JIT is code from the baseline compiler only.
	JIT
	// TraceJIT is baseline code with trace instrumentation.
	TraceJIT

	numDirectives
)

func (d Directive) String() string {
	switch d {
	case Default:
		return "default"
	case JIT:
		return "jit"
	case TraceJIT:
		return "tracejit"
	}
	return fmt.Sprintf("Directive(%d)", d)
}

// baselineOnly reports whether the directive forces the baseline compiler.
func (d Directive) baselineOnly() bool { return d == JIT || d == TraceJIT }

// promotableFrom lists the directives whose code is forwarded to new code
// installed for d.
func (d Directive) promotableFrom() []Directive {
	switch d {
	case Default:
		return []Directive{Default, JIT}
	case JIT:
		return []Directive{JIT}
	}
	return nil
}

// ParseDirective accepts the names printed by Directive.String.
func ParseDirective(s string) (Directive, bool) {
	for d := Default; d < numDirectives; d++ {
		if d.String() == s {
			return d, true
		}
	}
	return 0, false
}

// Tier is the optimization level of compiled code.
type Tier uint8

const (
	TierBaseline Tier = iota
	TierOptimized
)

func (t Tier) String() string {
	if t == TierOptimized {
		return "optimized"
	}
	return "baseline"
}

// TargetMethod is installed machine code for a method.
type TargetMethod struct {
	Method    *Method
	Directive Directive
	Compiler  string
	Tier      Tier
	Code      []byte
	// FailedOver marks code installed by the retry after the first compiler
	// failed. Only a counter overflow reoptimizes it.
	FailedOver bool
	// Serial is the 1-based position in the directive's history.
	Serial int

	forwardedTo atomic.Pointer[TargetMethod]
}

// ForwardedTo returns the newer code calls to tm are redirected to, or nil.
func (tm *TargetMethod) ForwardedTo() *TargetMethod { return tm.forwardedTo.Load() }

// Live follows forwarding to the code that currently runs in place of tm.
func (tm *TargetMethod) Live() *TargetMethod {
	cur := tm
	for next := cur.ForwardedTo(); next != nil; next = cur.ForwardedTo() {
		cur = next
	}
	return cur
}

func (tm *TargetMethod) String() string {
	return fmt.Sprintf("%s/%s#%d(%s, %d bytes)", tm.Method.Name, tm.Directive, tm.Serial, tm.Compiler, len(tm.Code))
}

// directiveState is one directive slot of a method.
type directiveState struct {
	history []*TargetMethod
	pending *Compilation
}

func (s *directiveState) current() *TargetMethod {
	if len(s.history) == 0 {
		return nil
	}
	return s.history[len(s.history)-1]
}

// Method is a compilable unit. All compilation state is guarded by mu.
type Method struct {
	Name string
	// Unsafe methods can only be compiled by the optimizing compiler.
	Unsafe bool

	mu     sync.Mutex
	states [numDirectives]directiveState

	invocations atomic.Int64
	backEdges   atomic.Int64
}

func NewMethod(name string, unsafe bool) *Method {
	return &Method{Name: name, Unsafe: unsafe}
}

func (m *Method) String() string { return m.Name }

// Current returns the latest installed code for d, or nil.
func (m *Method) Current(d Directive) *TargetMethod {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[d].current()
}

// History returns the installed code for d, oldest first.
func (m *Method) History(d Directive) []*TargetMethod {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*TargetMethod(nil), m.states[d].history...)
}

// Pending returns the in-flight compilation for d, or nil.
func (m *Method) Pending(d Directive) *Compilation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[d].pending
}

// Invocations returns the invocation counter.
func (m *Method) Invocations() int64 { return m.invocations.Load() }

// BackEdges returns the loop back-edge counter.
func (m *Method) BackEdges() int64 { return m.backEdges.Load() }

// install appends tm to d's history and forwards older code of the
// promotable directives to it. Caller holds mu.
func (m *Method) install(tm *TargetMethod) {
	st := &m.states[tm.Directive]
	if st.current() != nil {
		for _, pd := range tm.Directive.promotableFrom() {
			for _, old := range m.states[pd].history {
				old.forwardedTo.Store(tm)
			}
		}
	}
	tm.Serial = len(st.history) + 1
	st.history = append(st.history, tm)
}
