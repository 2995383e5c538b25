package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beehive-lab/Maxine-VM-sub091/codecache"
	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/beehive-lab/Maxine-VM-sub091/disasm"
	"github.com/beehive-lab/Maxine-VM-sub091/jit"
	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/beehive-lab/Maxine-VM-sub091/x86"
	"github.com/chzyer/readline"
	"github.com/dop251/goja"
	"github.com/spf13/cobra"
)

const shellHelp = `functions:
  disasm(hex)                   disassemble hex encoded bytes
  compile(method, directive)    compile through the broker
  reoptimize(method, directive) force the optimizing compiler
  invoke(method, n)             count n invocations
  listing(method, directive)    disassemble the installed code
  history(method)               code cache records of method
  templates(mnemonic...)        template table tree
type 'exit' to quit.`

func newShellCmd() *cobra.Command {
	var (
		sf          sessionFlags
		historyFile string
	)
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive JavaScript console over the disassembler and the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			fatal := func(err error) {
				log.Error(log.Compile, "fatal compilation error", "err", err)
			}
			s, err := sf.open(ctx, fatal)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			c, err := newConsole(ctx, s)
			if err != nil {
				return err
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "maxvm> ",
				HistoryFile: historyFile,
			})
			if err != nil {
				return fmt.Errorf("failed to start readline: %w", err)
			}
			defer rl.Close()
			return c.repl(rl, cmd.OutOrStdout())
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&historyFile, "history", filepath.Join(os.TempDir(), "maxvm_history.txt"), "readline history file")
	return cmd
}

type console struct {
	ctx     context.Context
	session *session
	vm      *goja.Runtime
}

func newConsole(ctx context.Context, s *session) (*console, error) {
	c := &console{ctx: ctx, session: s, vm: goja.New()}
	c.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	for name, fn := range map[string]interface{}{
		"disasm":     c.disasm,
		"compile":    c.compile,
		"reoptimize": c.reoptimize,
		"invoke":     c.invoke,
		"listing":    c.listing,
		"history":    c.history,
		"templates":  c.templates,
	} {
		if err := c.vm.Set(name, fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return c, nil
}

func (c *console) repl(rl *readline.Instance, out io.Writer) error {
	fmt.Fprintln(out, shellHelp)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(out, shellHelp)
			continue
		}
		text, err := c.eval(line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		fmt.Fprintln(out, text)
	}
}

// eval runs one line of JavaScript. Strings print as is, everything else as
// indented JSON.
func (c *console) eval(line string) (string, error) {
	v, err := c.vm.RunString(line)
	if err != nil {
		return "", err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	if s, ok := v.Export().(string); ok {
		return s, nil
	}
	b, err := json.MarshalIndent(v.Export(), "", "  ")
	if err != nil {
		return v.String(), nil
	}
	return string(b), nil
}

func (c *console) disasm(text string) (string, error) {
	code, err := parseHex(text)
	if err != nil {
		return "", err
	}
	l, err := disasm.New(disasm.Options{}).Scan(code)
	if err != nil {
		return "", err
	}
	return l.String(), nil
}

func (c *console) compile(method, directive string) (codecache.Record, error) {
	tm, err := c.session.compile(c.ctx, method, directive)
	if err != nil {
		return codecache.Record{}, err
	}
	return codecache.NewRecord(tm), nil
}

func (c *console) reoptimize(method, directive string) (codecache.Record, error) {
	tm, err := c.session.reoptimize(c.ctx, method, directive)
	if err != nil {
		return codecache.Record{}, err
	}
	return codecache.NewRecord(tm), nil
}

func (c *console) invoke(method string, n int) int64 {
	m := c.session.method(method)
	for i := 0; i < n; i++ {
		c.session.broker.CountInvocation(c.ctx, m)
	}
	return m.Invocations()
}

func (c *console) listing(method, directive string) (string, error) {
	d, ok := compilation.ParseDirective(directive)
	if !ok {
		return "", fmt.Errorf("unknown directive %q", directive)
	}
	tm := c.session.method(method).Current(d)
	if tm == nil {
		return "", fmt.Errorf("%s has no %s code", method, d)
	}
	l, err := disasm.New(disasm.Options{InlineData: jit.InlineData(tm)}).Scan(tm.Code)
	if err != nil {
		return "", err
	}
	return l.String(), nil
}

func (c *console) history(method string) ([]codecache.Record, error) {
	return c.session.store.History(method)
}

func (c *console) templates(mnemonics ...string) string {
	return x86.DefaultTable().ToTree(mnemonics...).String()
}
