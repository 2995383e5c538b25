package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/beehive-lab/Maxine-VM-sub091/codecache"
	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/beehive-lab/Maxine-VM-sub091/jit"
	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/exp/slices"
)

// sessionFlags configure a broker backed by the demonstration compilers.
type sessionFlags struct {
	vmOptions []string
	dbPath    string
	otlp      string
	unsafe    []string
	failing   []string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.vmOptions, "vm", nil, "VM option such as -Xopt, -XX:RCT=100 or -XX:CompileCommand=Foo:c1x (repeatable)")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "code cache directory (in memory when empty)")
	cmd.Flags().StringVar(&f.otlp, "otlp", "", "OTLP/HTTP endpoint receiving compilation spans, e.g. localhost:4318")
	cmd.Flags().StringSliceVar(&f.unsafe, "unsafe", nil, "methods marked unsafe")
	cmd.Flags().StringSliceVar(&f.failing, "fail", nil, "methods the baseline compiler refuses to compile")
}

type session struct {
	broker *compilation.Broker
	store  *codecache.Store
	tp     *sdktrace.TracerProvider
	unsafe []string

	mu      sync.Mutex
	methods map[string]*compilation.Method
	order   []string
}

// open builds the session. A nil fatal handler keeps the broker default,
// which exits the process.
func (f *sessionFlags) open(ctx context.Context, fatal func(error)) (*session, error) {
	cfg, rest, err := compilation.ParseOptions(f.vmOptions)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unrecognized VM options: %s", strings.Join(rest, " "))
	}
	store, err := codecache.Open(f.dbPath)
	if err != nil {
		return nil, err
	}
	s := &session{store: store, unsafe: f.unsafe, methods: make(map[string]*compilation.Method)}

	opts := []compilation.Option{compilation.WithInstallObserver(store)}
	if fatal != nil {
		opts = append(opts, compilation.WithFatalHandler(fatal))
	}
	if f.otlp != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(f.otlp), otlptracehttp.WithInsecure())
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		s.tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		opts = append(opts, compilation.WithTracerProvider(s.tp))
	}

	failing := f.failing
	baseline := &jit.Baseline{Fail: func(m *compilation.Method) bool { return slices.Contains(failing, m.Name) }}
	s.broker, err = compilation.NewBroker(cfg, baseline, &jit.Optimizing{}, opts...)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// method returns the method called name, creating it on first use.
func (s *session) method(name string) *compilation.Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.methods[name]
	if !ok {
		m = compilation.NewMethod(name, slices.Contains(s.unsafe, name))
		s.methods[name] = m
		s.order = append(s.order, name)
	}
	return m
}

// known returns the session's methods in creation order.
func (s *session) known() []*compilation.Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*compilation.Method, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.methods[name])
	}
	return out
}

func (s *session) compile(ctx context.Context, name, directive string) (*compilation.TargetMethod, error) {
	d, ok := compilation.ParseDirective(directive)
	if !ok {
		return nil, fmt.Errorf("unknown directive %q", directive)
	}
	return s.broker.Compile(ctx, s.method(name), d)
}

func (s *session) reoptimize(ctx context.Context, name, directive string) (*compilation.TargetMethod, error) {
	d, ok := compilation.ParseDirective(directive)
	if !ok {
		return nil, fmt.Errorf("unknown directive %q", directive)
	}
	c, err := s.broker.Reoptimize(ctx, s.method(name), d, true)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx)
}

// Close drains background compilations, then flushes spans and the store.
func (s *session) Close(ctx context.Context) error {
	if s.broker != nil {
		s.broker.Close()
	}
	if s.tp != nil {
		if err := s.tp.Shutdown(ctx); err != nil {
			log.Warn(log.Compile, "tracer shutdown failed", "err", err)
		}
	}
	return s.store.Close()
}
