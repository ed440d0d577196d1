package maze

import (
	"strings"

	"github.com/jason-s-yu/mazesim/engine"
)

// Cell glyphs used by Render.
const (
	GlyphEmpty    = '.'
	GlyphObstacle = '#'
	GlyphGoal     = '*'
)

// Render draws state as a grid, top row first. Agents are drawn with the
// first letter of their name over goals and empty cells; a cell holding
// several agents shows the last declared one. Variables that are not point
// values are skipped.
func (m *Maze) Render(state engine.State) string {
	grid := make([][]rune, m.cfg.Height)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(string(GlyphEmpty), m.cfg.Width))
	}
	put := func(p Point, r rune) {
		if m.cfg.inside(p) {
			grid[p.Y][p.X] = r
		}
	}
	for _, o := range m.cfg.Obstacles {
		put(o, GlyphObstacle)
	}
	for _, a := range m.cfg.Agents {
		put(a.Goal, GlyphGoal)
	}
	for _, wk := range m.walkers {
		p, err := m.PositionIn(state, wk.id)
		if err != nil {
			continue
		}
		put(p, []rune(string(wk.id))[0])
	}

	var b strings.Builder
	for y := m.cfg.Height - 1; y >= 0; y-- {
		b.WriteString(string(grid[y]))
		b.WriteByte('\n')
	}
	return b.String()
}
