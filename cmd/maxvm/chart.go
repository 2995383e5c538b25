package main

import (
	"fmt"
	"os"

	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

func nodeName(tm *compilation.TargetMethod) string {
	return fmt.Sprintf("%s %s#%d", tm.Method, tm.Directive, tm.Serial)
}

// historyGraph has one node per target method, colored by tier, and a link
// from each target method to the code it was forwarded to.
func historyGraph(methods []*compilation.Method) *charts.Graph {
	graph := charts.NewGraph()
	graph.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Compilation history",
			Subtitle: "Target methods and their forwarding links",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var (
		nodes []opts.GraphNode
		links []opts.GraphLink
	)
	for _, m := range methods {
		for _, d := range []compilation.Directive{compilation.Default, compilation.JIT, compilation.TraceJIT} {
			for _, tm := range m.History(d) {
				nodes = append(nodes, opts.GraphNode{
					Name:       nodeName(tm),
					Category:   int(tm.Tier),
					SymbolSize: 10 + len(tm.Code),
					Tooltip: &opts.Tooltip{
						Show:      opts.Bool(true),
						Formatter: types.FuncStr(fmt.Sprintf("%s: %s, %d bytes", nodeName(tm), tm.Compiler, len(tm.Code))),
					},
				})
				if fwd := tm.ForwardedTo(); fwd != nil {
					links = append(links, opts.GraphLink{Source: nodeName(tm), Target: nodeName(fwd)})
				}
			}
		}
	}

	graph.AddSeries("TargetMethods", nodes, links).SetSeriesOptions(
		charts.WithGraphChartOpts(opts.GraphChart{
			Force:      &opts.GraphForce{Repulsion: 800, Gravity: 0.2},
			Layout:     "force",
			Roam:       opts.Bool(true),
			EdgeSymbol: []string{"none", "arrow"},
			Categories: []*opts.GraphCategory{
				{Name: compilation.TierBaseline.String()},
				{Name: compilation.TierOptimized.String()},
			},
		}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right", Formatter: "{b}"}),
	)
	return graph
}

func renderHistoryGraph(path string, methods []*compilation.Method) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	page := components.NewPage()
	page.AddCharts(historyGraph(methods))
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}
