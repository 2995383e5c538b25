package main

import (
	"context"
	"fmt"

	"github.com/beehive-lab/Maxine-VM-sub091/codecache"
	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
	"golang.org/x/sync/errgroup"
)

var defaultMethods = []string{
	"java.lang.String.hashCode()",
	"java.util.HashMap.get(Object)",
	"java.util.ArrayList.add(Object)",
}

func newScheduleCmd() *cobra.Command {
	var (
		sf          sessionFlags
		directive   string
		callers     int
		invocations int
		backEdges   int
		chartPath   string
	)
	cmd := &cobra.Command{
		Use:   "schedule [method...]",
		Short: "Compile methods through the broker and print their compilation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = defaultMethods
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			s, err := sf.open(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			for _, name := range args {
				s.method(name)
			}
			g, gctx := errgroup.WithContext(ctx)
			for _, name := range args {
				name := name
				for i := 0; i < callers; i++ {
					g.Go(func() error {
						_, err := s.compile(gctx, name, directive)
						return err
					})
				}
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for _, m := range s.known() {
				for i := 0; i < invocations; i++ {
					s.broker.CountInvocation(ctx, m)
				}
				for i := 0; i < backEdges; i++ {
					s.broker.CountBackEdge(ctx, m)
				}
			}
			// drain background recompilations before reporting
			s.broker.Close()

			fmt.Fprintln(cmd.OutOrStdout(), historyTree(s.known()).String())
			all, err := s.store.All()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "code cache: %d target methods\n", len(all))
			if chartPath != "" {
				if err := renderHistoryGraph(chartPath, s.known()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "history graph written to %s\n", chartPath)
			}
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&directive, "directive", "default", "compilation directive (default, jit, tracejit)")
	cmd.Flags().IntVar(&callers, "callers", 4, "concurrent callers per method")
	cmd.Flags().IntVar(&invocations, "invocations", 0, "invocations counted per method after the first compile")
	cmd.Flags().IntVar(&backEdges, "backedges", 0, "loop back edges counted per method after the first compile")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write an HTML graph of target methods and their forwarding links")
	return cmd
}

// historyTree renders every directive's history, oldest first.
func historyTree(methods []*compilation.Method) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("methods: %d", len(methods)))
	for _, m := range methods {
		branch := tree.AddBranch(fmt.Sprintf("%s (invocations %d, backedges %d)", m, m.Invocations(), m.BackEdges()))
		for _, d := range []compilation.Directive{compilation.Default, compilation.JIT, compilation.TraceJIT} {
			history := m.History(d)
			if len(history) == 0 {
				continue
			}
			db := branch.AddBranch(d.String())
			for _, tm := range history {
				db.AddNode(targetLine(tm))
			}
		}
	}
	return tree
}

func targetLine(tm *compilation.TargetMethod) string {
	line := fmt.Sprintf("#%d %s %s %d bytes %s", tm.Serial, tm.Compiler, tm.Tier, len(tm.Code), codecache.Hash(tm.Code)[:12])
	if fwd := tm.ForwardedTo(); fwd != nil {
		line += fmt.Sprintf(" -> %s#%d", fwd.Directive, fwd.Serial)
	}
	return line
}
