package compilation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
)

// Compiler produces machine code for a method.
type Compiler interface {
	Name() string
	Tier() Tier
	Compile(ctx context.Context, m *Method, d Directive) ([]byte, error)
}

// Compilation is a pending or finished compile of one (method, directive).
// Waiters block on Done; a failed attempt that is retried with another
// compiler links to its successor, which Wait follows.
type Compilation struct {
	Method    *Method
	Directive Directive

	compiler  Compiler
	retry     bool
	recompile bool
	done      chan struct{}

	// set before done is closed
	result *TargetMethod
	err    error
	next   *Compilation
}

func newCompilation(m *Method, d Directive, c Compiler) *Compilation {
	return &Compilation{Method: m, Directive: d, compiler: c, done: make(chan struct{})}
}

// finished returns an already completed compilation holding tm.
func finished(tm *TargetMethod) *Compilation {
	c := newCompilation(tm.Method, tm.Directive, nil)
	c.result = tm
	close(c.done)
	return c
}

// Compiler returns the compiler chosen for this attempt.
func (c *Compilation) Compiler() Compiler { return c.compiler }

// Done is closed when this attempt finishes, successfully or not.
func (c *Compilation) Done() <-chan struct{} { return c.done }

// Wait blocks until the compilation, or the retry it was handed to, completes.
// An interrupted wait returns ctx.Err() and leaves the compilation running.
func (c *Compilation) Wait(ctx context.Context) (*TargetMethod, error) {
	cur := c
	for {
		select {
		case <-cur.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if cur.next == nil {
			return cur.result, cur.err
		}
		cur = cur.next
	}
}

// WaitTimeout is Wait bounded by d.
func (c *Compilation) WaitTimeout(d time.Duration) (*TargetMethod, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	tm, err := c.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s/%s after %s", vmerrors.ErrWaitTimeout, c.Method, c.Directive, d)
	}
	return tm, err
}

func (c *Compilation) String() string {
	name := "none"
	if c.compiler != nil {
		name = c.compiler.Name()
	}
	return fmt.Sprintf("%s/%s by %s", c.Method, c.Directive, name)
}

// running links the compilations active in one context, innermost first.
type running struct {
	c      *Compilation
	parent *running
}

type runningKey struct{}

func withCompilation(ctx context.Context, c *Compilation) context.Context {
	parent, _ := ctx.Value(runningKey{}).(*running)
	return context.WithValue(ctx, runningKey{}, &running{c: c, parent: parent})
}

// runningIn reports whether c is being compiled on behalf of ctx.
func runningIn(ctx context.Context, c *Compilation) bool {
	for r, _ := ctx.Value(runningKey{}).(*running); r != nil; r = r.parent {
		if r.c == c {
			return true
		}
	}
	return false
}

// CompilationRunning reports whether ctx was handed to a compiler by a broker.
func CompilationRunning(ctx context.Context) bool {
	r, _ := ctx.Value(runningKey{}).(*running)
	return r != nil
}
