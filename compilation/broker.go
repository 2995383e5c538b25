package compilation

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/beehive-lab/Maxine-VM-sub091/compilation"

// InstallObserver is told about every target method the broker installs.
type InstallObserver interface {
	Installed(tm *TargetMethod) error
}

// Option configures a Broker.
type Option func(*Broker)

// WithTracerProvider records a span per compilation attempt on tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Broker) { b.tracer = tp.Tracer(tracerName) }
}

// WithFatalHandler replaces the handler for unrecoverable compilation
// failures. The default logs at critical level, which exits the process.
func WithFatalHandler(f func(error)) Option {
	return func(b *Broker) { b.fatal = f }
}

// WithInstallObserver adds an observer of installed code.
func WithInstallObserver(o InstallObserver) Option {
	return func(b *Broker) { b.observers = append(b.observers, o) }
}

// Broker decides which compiler produces code for a method and makes sure
// each (method, directive) has at most one compilation in flight. A method's
// lock is never held while a compiler runs.
type Broker struct {
	cfg        Config
	baseline   Compiler
	optimizing Compiler
	tracer     trace.Tracer
	fatal      func(error)
	observers  []InstallObserver

	submitted atomic.Int64
	completed atomic.Int64

	// background compilation queue
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Compilation
	closed bool
	wg     sync.WaitGroup
}

// NewBroker returns a broker over the given compilers; either may be nil but
// not both.
func NewBroker(cfg Config, baseline, optimizing Compiler, opts ...Option) (*Broker, error) {
	if baseline == nil && optimizing == nil {
		return nil, fmt.Errorf("%w: neither a baseline nor an optimizing compiler", vmerrors.ErrNoCompiler)
	}
	b := &Broker{
		cfg:        cfg,
		baseline:   baseline,
		optimizing: optimizing,
		tracer:     otel.Tracer(tracerName),
		fatal: func(err error) {
			log.Crit(log.Compile, "fatal compilation error", "err", err)
		},
	}
	b.cond = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	if cfg.BackgroundCompilation {
		b.wg.Add(1)
		go b.compileLoop()
	}
	log.Info(log.Compile, "compilation broker started", "mode", cfg.Mode, "threshold", cfg.RecompilationThreshold,
		"failover", cfg.FailOver, "background", cfg.BackgroundCompilation)
	return b, nil
}

func (b *Broker) Config() Config { return b.cfg }

// Compile returns code for m under directive d, compiling it if needed. When
// another caller is already compiling the same slot, Compile waits for that
// result instead of compiling again.
func (b *Broker) Compile(ctx context.Context, m *Method, d Directive) (*TargetMethod, error) {
	m.mu.Lock()
	st := &m.states[d]
	if p := st.pending; p != nil {
		m.mu.Unlock()
		if runningIn(ctx, p) {
			err := fmt.Errorf("%w: %s", vmerrors.ErrRecursiveCompilation, p)
			b.fatal(err)
			return nil, err
		}
		log.Debug(log.Compile, "waiting for pending compilation", "compilation", p)
		return p.Wait(ctx)
	}
	cur := st.current()
	if cur != nil && b.satisfied(m, cur) {
		m.mu.Unlock()
		return cur, nil
	}
	compiler, err := b.selectCompiler(m, d, cur)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	c := newCompilation(m, d, compiler)
	c.recompile = cur != nil
	st.pending = c
	m.mu.Unlock()

	b.submitted.Add(1)
	return b.perform(ctx, c)
}

// CompileAsync is Compile without waiting. The returned compilation may
// already be finished, or may be one another caller started.
func (b *Broker) CompileAsync(m *Method, d Directive) *Compilation {
	m.mu.Lock()
	st := &m.states[d]
	if p := st.pending; p != nil {
		m.mu.Unlock()
		return p
	}
	cur := st.current()
	if cur != nil && b.satisfied(m, cur) {
		m.mu.Unlock()
		return finished(cur)
	}
	compiler, err := b.selectCompiler(m, d, cur)
	if err != nil {
		m.mu.Unlock()
		c := newCompilation(m, d, nil)
		c.err = err
		close(c.done)
		return c
	}
	c := newCompilation(m, d, compiler)
	c.recompile = cur != nil
	st.pending = c
	m.mu.Unlock()

	b.submitted.Add(1)
	b.enqueue(c)
	return c
}

// Reoptimize compiles m with the optimizing compiler unless its code is
// already optimized or a compilation is pending. A synchronous request waits
// for the pending or new compilation.
func (b *Broker) Reoptimize(ctx context.Context, m *Method, d Directive, synchronous bool) (*Compilation, error) {
	if b.optimizing == nil {
		return nil, fmt.Errorf("%w: no optimizing compiler for %s", vmerrors.ErrNoCompiler, m)
	}
	if d.baselineOnly() {
		return nil, fmt.Errorf("%w: directive %s only uses the baseline compiler", vmerrors.ErrNoCompiler, d)
	}
	m.mu.Lock()
	st := &m.states[d]
	if p := st.pending; p != nil {
		m.mu.Unlock()
		if !synchronous {
			return p, nil
		}
		if runningIn(ctx, p) {
			err := fmt.Errorf("%w: %s", vmerrors.ErrRecursiveCompilation, p)
			b.fatal(err)
			return nil, err
		}
		_, err := p.Wait(ctx)
		return p, err
	}
	cur := st.current()
	if cur != nil && cur.Tier == TierOptimized {
		m.mu.Unlock()
		return finished(cur), nil
	}
	c := newCompilation(m, d, b.optimizing)
	c.recompile = cur != nil
	st.pending = c
	m.mu.Unlock()

	log.Debug(log.Compile, "reoptimizing", "method", m, "directive", d, "synchronous", synchronous)
	b.submitted.Add(1)
	if synchronous {
		_, err := b.perform(ctx, c)
		return c, err
	}
	b.enqueue(c)
	return c, nil
}

// CountInvocation bumps m's invocation counter and reoptimizes it when the
// counter reaches a multiple of the recompilation threshold.
func (b *Broker) CountInvocation(ctx context.Context, m *Method) {
	b.checkCounter(ctx, m, m.invocations.Add(1), "invocation")
}

// CountBackEdge is CountInvocation for loop back edges.
func (b *Broker) CountBackEdge(ctx context.Context, m *Method) {
	b.checkCounter(ctx, m, m.backEdges.Add(1), "backedge")
}

func (b *Broker) checkCounter(ctx context.Context, m *Method, n int64, counter string) {
	if !b.cfg.recompiles() || n%int64(b.cfg.RecompilationThreshold) != 0 {
		return
	}
	b.counterOverflow(ctx, m, counter, n)
}

func (b *Broker) counterOverflow(ctx context.Context, m *Method, counter string, n int64) {
	if CompilationRunning(ctx) {
		log.Debug(log.Compile, "stopped recompilation because compilation is running in this context", "method", m, "counter", counter)
		return
	}
	log.Debug(log.Compile, "counter overflow", "method", m, "counter", counter, "count", n)
	if _, err := b.Reoptimize(ctx, m, Default, !b.cfg.BackgroundCompilation); err != nil {
		log.Warn(log.Compile, "reoptimization failed", "method", m, "err", err)
	}
}

// IsCompiling reports whether a submitted compilation has not completed yet.
func (b *Broker) IsCompiling() bool {
	return b.submitted.Load() > b.completed.Load()
}

// Close stops the background compiler after it drains its queue and waits for
// asynchronous compilations. Later asynchronous requests fail with
// ErrBrokerClosed.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
	b.wg.Wait()
}

// satisfied reports whether installed code answers a request without
// recompiling. Caller holds m.mu.
func (b *Broker) satisfied(m *Method, cur *TargetMethod) bool {
	if cur.Tier == TierOptimized || cur.FailedOver || cur.Directive.baselineOnly() || b.optimizing == nil {
		return true
	}
	if b.cfg.recompiles() && m.invocations.Load() >= int64(b.cfg.RecompilationThreshold) {
		return false
	}
	return true
}

// selectCompiler picks the compiler for the next compilation of m. Caller
// holds m.mu.
func (b *Broker) selectCompiler(m *Method, d Directive, cur *TargetMethod) (Compiler, error) {
	var (
		c      Compiler
		reason string
	)
	switch {
	case m.Unsafe:
		c, reason = b.optimizing, "unsafe"
	case d.baselineOnly():
		c, reason = b.baseline, "directive:"+d.String()
	default:
		switch {
		case cur == nil && b.cfg.Mode == ModeOptimized:
			c, reason = b.optimizing, "mode:opt"
		case cur == nil:
			c = b.baseline
		case b.cfg.Mode == ModeBaseline:
			c = b.baseline
		default:
			c, reason = b.optimizing, "recompile"
		}
		if name, ok := b.cfg.compilerFor(m.Name); ok {
			switch {
			case b.optimizing != nil && strings.EqualFold(b.optimizing.Name(), name):
				c, reason = b.optimizing, "CompileCommand"
			case b.baseline != nil && strings.EqualFold(b.baseline.Name(), name):
				c, reason = b.baseline, "CompileCommand"
			}
		}
		if c == nil {
			c, reason = b.baseline, "fallback"
			if c == nil {
				c = b.optimizing
			}
		}
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s/%s", vmerrors.ErrNoCompiler, m, d)
	}
	if reason != "" {
		log.Debug(log.Compile, "compiler selected", "compiler", c.Name(), "method", m, "reason", reason)
	}
	return c, nil
}

func (b *Broker) alternate(c Compiler) Compiler {
	if c.Tier() == TierOptimized {
		return b.baseline
	}
	return b.optimizing
}

// perform runs c and its failover retry, then installs the code or reports
// the final failure.
func (b *Broker) perform(ctx context.Context, c *Compilation) (*TargetMethod, error) {
	defer b.completed.Add(1)
	if b.cfg.GCOnCompilation || (c.recompile && b.cfg.GCOnRecompilation) {
		runtime.GC()
	}
	for {
		code, err := b.attempt(ctx, c)
		if err == nil {
			return b.install(c, code), nil
		}
		log.Warn(log.Compile, "compilation failed", "compilation", c, "err", err)

		m := c.Method
		alt := b.alternate(c.compiler)
		m.mu.Lock()
		st := &m.states[c.Directive]
		if !b.cfg.FailOver || c.retry || alt == nil {
			st.pending = nil
			c.err = fmt.Errorf("%w: %s (final attempt): %w", vmerrors.ErrCompilationFailed, c, err)
			close(c.done)
			m.mu.Unlock()
			b.fatal(c.err)
			return nil, c.err
		}
		next := newCompilation(m, c.Directive, alt)
		next.retry = true
		next.recompile = c.recompile
		st.pending = next
		c.next = next
		close(c.done)
		m.mu.Unlock()

		log.Info(log.Compile, "retrying compilation", "compilation", next)
		c = next
	}
}

// attempt runs one compiler call inside a span. A panicking compiler counts
// as a failed attempt.
func (b *Broker) attempt(ctx context.Context, c *Compilation) (code []byte, err error) {
	ctx, span := b.tracer.Start(ctx, "compile "+c.Method.Name, trace.WithAttributes(
		attribute.String("method", c.Method.Name),
		attribute.String("directive", c.Directive.String()),
		attribute.String("compiler", c.compiler.Name()),
		attribute.Bool("retry", c.retry),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compiler %s panicked: %v", c.compiler.Name(), r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("code.size", len(code)))
		}
		span.End()
	}()

	log.Debug(log.Compile, "compiling", "compilation", c)
	return c.compiler.Compile(withCompilation(ctx, c), c.Method, c.Directive)
}

func (b *Broker) install(c *Compilation, code []byte) *TargetMethod {
	m := c.Method
	tm := &TargetMethod{
		Method:     m,
		Directive:  c.Directive,
		Compiler:   c.compiler.Name(),
		Tier:       c.compiler.Tier(),
		Code:       code,
		FailedOver: c.retry,
	}
	m.mu.Lock()
	m.install(tm)
	m.states[c.Directive].pending = nil
	c.result = tm
	close(c.done)
	m.mu.Unlock()

	log.Debug(log.Compile, "installed", "target", tm)
	for _, o := range b.observers {
		if err := o.Installed(tm); err != nil {
			log.Warn(log.Compile, "install observer failed", "target", tm, "err", err)
		}
	}
	return tm
}

func (b *Broker) enqueue(c *Compilation) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.abandon(c, vmerrors.ErrBrokerClosed)
		return
	}
	if !b.cfg.BackgroundCompilation {
		b.wg.Add(1)
		b.mu.Unlock()
		go func() {
			defer b.wg.Done()
			b.perform(context.Background(), c)
		}()
		return
	}
	b.queue = append(b.queue, c)
	b.cond.Signal()
	b.mu.Unlock()
}

// abandon completes a compilation that will never run.
func (b *Broker) abandon(c *Compilation, err error) {
	m := c.Method
	m.mu.Lock()
	m.states[c.Directive].pending = nil
	c.err = err
	close(c.done)
	m.mu.Unlock()
	b.completed.Add(1)
}

// compileLoop is the background compiler.
func (b *Broker) compileLoop() {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		c := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		if _, err := b.perform(context.Background(), c); err != nil {
			log.Error(log.Compile, "background compilation failed", "compilation", c, "err", err)
		}
	}
}
