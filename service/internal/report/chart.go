// Package report renders persisted runs as HTML charts.
package report

import (
	"fmt"
	"io"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jason-s-yu/mazesim/service/internal/models"
)

// Chart writes an HTML page with two line charts of the run: each agent's
// distance to its goal after every step, and the lookahead value of each
// agent's chosen action. Agents that did not act in a step have no value
// point for it.
func Chart(w io.Writer, title string, steps []models.StepRecord) error {
	if len(steps) == 0 {
		return fmt.Errorf("chart %q: no steps", title)
	}

	xs := make([]string, len(steps))
	for i, rec := range steps {
		xs[i] = fmt.Sprintf("%d", rec.Step)
	}
	agents := agentNames(steps)

	dist := newLine(title+": distance to goal", xs)
	for _, a := range agents {
		items := make([]opts.LineData, len(steps))
		for i, rec := range steps {
			items[i] = opts.LineData{Value: rec.Distances[a]}
		}
		dist.AddSeries(a, items)
	}

	values := newLine(title+": chosen action value", xs)
	for _, a := range agents {
		items := make([]opts.LineData, len(steps))
		for i, rec := range steps {
			items[i] = opts.LineData{Value: "-"}
			for _, d := range rec.Decisions {
				if d.Agent == a {
					items[i] = opts.LineData{Value: d.Value}
				}
			}
		}
		values.AddSeries(a, items)
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(dist, values)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("chart %q: %w", title, err)
	}
	return nil
}

func newLine(title string, xs []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(xs)
	return line
}

// agentNames returns every agent seen in steps, sorted.
func agentNames(steps []models.StepRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range steps {
		for a := range rec.Distances {
			if !seen[a] {
				seen[a] = true
				names = append(names, a)
			}
		}
	}
	slices.Sort(names)
	return names
}
