package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/jason-s-yu/mazesim/engine"
	"github.com/jason-s-yu/mazesim/engine/maze"
	"github.com/jason-s-yu/mazesim/service/internal/models"
	"github.com/jason-s-yu/mazesim/service/internal/report"
	"github.com/jason-s-yu/mazesim/service/internal/sim"
	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
)

func (a *app) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a maze scenario and print each step",
		Long: `Run builds a scenario (the default maze, or a JSON file given with
--scenario), steps it until every agent stands on its goal, and prints the
decision trace. Flags override the matching scenario fields; --start and --goal
apply to the first agent, --horizon to all of them.`,
		Args: cobra.NoArgs,
		RunE: a.runScenario,
	}
	f := cmd.Flags()
	f.String("scenario", "", "path to a JSON scenario file")
	f.Int("width", 0, "grid width")
	f.Int("height", 0, "grid height")
	f.String("start", "", `first agent's start cell as "x,y"`)
	f.String("goal", "", `first agent's goal cell as "x,y"`)
	f.Int("horizon", 0, "lookahead horizon of every agent")
	f.StringArray("obstacle", nil, `obstacle cell as "x,y" (repeatable)`)
	f.Bool("parallel", false, "all agents move every step")
	f.Int("max-steps", 0, "step cap (0 uses the engine default)")
	f.IntP("verbosity", "v", 0, "0 actions, 1 candidate values, 2 committed state")
	f.Bool("grid", true, "draw the maze after every step")
	f.Bool("color", false, "colour the maze drawing")
	f.String("chart", "", "write an HTML chart of the run to this path")
	return cmd
}

func (a *app) runScenario(cmd *cobra.Command, _ []string) error {
	mcfg, err := scenarioFromFlags(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	maxSteps, _ := f.GetInt("max-steps")
	verbosity, _ := f.GetInt("verbosity")
	showGrid, _ := f.GetBool("grid")
	color, _ := f.GetBool("color")
	chartPath, _ := f.GetString("chart")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := sim.NewSession(mcfg, st, a.log)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	au := aurora.NewAurora(color)
	if showGrid {
		fmt.Fprint(out, colorGrid(au, sess.Maze.Render(sess.Maze.World.State())))
	}

	var records []models.StepRecord
	sess.OnStep = func(res engine.StepResult, rec models.StepRecord) {
		records = append(records, rec)
		fmt.Fprint(out, engine.Explain(res, engine.Verbosity(verbosity)))
		if showGrid {
			fmt.Fprint(out, colorGrid(au, sess.Maze.Render(res.State)))
		}
	}

	sum, err := sess.Run(ctx, maxSteps)
	if err != nil {
		return err
	}
	status := "stopped"
	if sum.Terminal {
		status = "all agents at goal"
	}
	fmt.Fprintf(out, "run %s: %d steps, %s\n", sum.RunID, sum.Steps, status)

	if chartPath != "" && len(records) > 0 {
		if err := writeChart(chartPath, sum.RunID.String(), records); err != nil {
			return err
		}
		fmt.Fprintf(out, "chart written to %s\n", chartPath)
	}
	return nil
}

// scenarioFromFlags loads --scenario (or the default maze) and applies the
// flags the user set on top of it.
func scenarioFromFlags(cmd *cobra.Command) (maze.Config, error) {
	f := cmd.Flags()
	cfg := maze.DefaultConfig()
	if path, _ := f.GetString("scenario"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read scenario: %w", err)
		}
		cfg = maze.Config{}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse scenario %s: %w", path, err)
		}
		cfg.Rules = engine.DefaultRules()
	}

	if f.Changed("width") {
		cfg.Width, _ = f.GetInt("width")
	}
	if f.Changed("height") {
		cfg.Height, _ = f.GetInt("height")
	}
	if f.Changed("parallel") {
		cfg.Parallel, _ = f.GetBool("parallel")
	}
	if f.Changed("horizon") {
		h, _ := f.GetInt("horizon")
		for i := range cfg.Agents {
			cfg.Agents[i].Horizon = h
		}
	}
	for _, name := range []string{"start", "goal"} {
		if !f.Changed(name) {
			continue
		}
		if len(cfg.Agents) == 0 {
			return cfg, fmt.Errorf("--%s: scenario has no agents", name)
		}
		raw, _ := f.GetString(name)
		p, err := parsePoint(raw)
		if err != nil {
			return cfg, fmt.Errorf("--%s: %w", name, err)
		}
		if name == "start" {
			cfg.Agents[0].Start = p
		} else {
			cfg.Agents[0].Goal = p
		}
	}
	if f.Changed("obstacle") {
		raws, _ := f.GetStringArray("obstacle")
		cfg.Obstacles = nil
		for _, raw := range raws {
			p, err := parsePoint(raw)
			if err != nil {
				return cfg, fmt.Errorf("--obstacle: %w", err)
			}
			cfg.Obstacles = append(cfg.Obstacles, p)
		}
	}
	return cfg, cfg.Validate()
}

// parsePoint reads a cell written as "x,y".
func parsePoint(s string) (maze.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return maze.Point{}, fmt.Errorf("cell %q is not x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return maze.Point{}, fmt.Errorf("cell %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return maze.Point{}, fmt.Errorf("cell %q: %w", s, err)
	}
	return maze.Point{X: x, Y: y}, nil
}

// colorGrid colours a rendered maze (agents green, goals yellow, obstacles
// red) and ends it with a blank line.
func colorGrid(au aurora.Aurora, grid string) string {
	var b strings.Builder
	for _, r := range grid {
		cell := string(r)
		switch r {
		case '\n':
			b.WriteString(cell)
		case maze.GlyphEmpty:
			b.WriteString(au.Faint(cell).String())
		case maze.GlyphObstacle:
			b.WriteString(au.Red(cell).String())
		case maze.GlyphGoal:
			b.WriteString(au.Yellow(cell).String())
		default:
			b.WriteString(au.Bold(au.Green(cell)).String())
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func writeChart(path, title string, records []models.StepRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := report.Chart(f, title, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
