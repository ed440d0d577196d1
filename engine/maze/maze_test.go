package maze

import (
	"context"
	"fmt"
	"testing"

	"github.com/jason-s-yu/mazesim/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultMazeEndToEnd walks the default scenario: (0,0) to (5,5) with a
// horizon of 5, one step per turn.
func TestDefaultMazeEndToEnd(t *testing.T) {
	m, err := Build(DefaultConfig())
	require.NoError(t, err)

	results, err := m.World.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, results, 10, "episode should end after exactly 10 steps")

	prev, err := m.DistanceIn(m.World.History()[0], "A")
	require.NoError(t, err)
	assert.Equal(t, 10, prev)

	var verbs []string
	for i, r := range results {
		require.Len(t, r.Decisions, 1)
		verb := r.Decisions[0].Action.Verb
		assert.Contains(t, []string{MoveRight, MoveUp}, verb, "step %d", r.Step)
		verbs = append(verbs, verb)

		d, err := m.DistanceIn(r.State, "A")
		require.NoError(t, err)
		assert.Less(t, d, prev, "distance must shrink at step %d", r.Step)
		prev = d
		assert.Equal(t, i == len(results)-1, r.Terminal)
	}
	assert.Equal(t, []string{
		MoveRight, MoveRight, MoveRight, MoveRight, MoveRight,
		MoveUp, MoveUp, MoveUp, MoveUp, MoveUp,
	}, verbs, "ties resolve to the earlier declared move")

	pos, err := m.Position("A")
	require.NoError(t, err)
	assert.Equal(t, Point{5, 5}, pos)
	assert.True(t, m.World.IsTerminated())
}

// TestManhattanOptimalFromEveryCell checks episode length against the
// Manhattan distance for a handful of starts and horizons.
func TestManhattanOptimalFromEveryCell(t *testing.T) {
	starts := []Point{{0, 0}, {5, 0}, {0, 5}, {2, 3}, {4, 4}, {5, 5}}
	for _, h := range []int{1, 2, 5} {
		for _, s := range starts {
			cfg := DefaultConfig()
			cfg.Agents[0].Start = s
			cfg.Agents[0].Horizon = h
			m, err := Build(cfg)
			require.NoError(t, err)

			want, err := m.Distance("A")
			require.NoError(t, err)
			results, err := m.World.Run(context.Background(), 50)
			require.NoError(t, err)
			assert.Len(t, results, want, "start %s horizon %d", s, h)
		}
	}
}

// TestBoundaryMoveIllegal verifies a move off the grid is excluded, not
// clamped.
func TestBoundaryMoveIllegal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agents[0].Start = Point{5, 3}
	m, err := Build(cfg)
	require.NoError(t, err)

	legal, err := m.World.LegalActions("A", m.World.State())
	require.NoError(t, err)
	right := engine.Action{Actor: "A", Verb: MoveRight}
	assert.NotContains(t, legal, right)

	ok, err := m.World.IsLegal(right, m.World.State())
	require.NoError(t, err)
	assert.False(t, ok)

	agent, ok := m.World.Agent("A")
	require.True(t, ok)
	dec, err := agent.SelectAction(m.World.State(), 3)
	require.NoError(t, err)
	assert.NotEqual(t, right, dec.Action)
}

// TestObstacleDetour verifies agents route around obstacles.
func TestObstacleDetour(t *testing.T) {
	cfg := Config{
		Width:     3,
		Height:    3,
		Agents:    []AgentSpec{{Name: "A", Start: Point{0, 0}, Goal: Point{2, 0}, Horizon: 4}},
		Obstacles: []Point{{1, 0}},
	}
	m, err := Build(cfg)
	require.NoError(t, err)

	legal, err := m.World.LegalActions("A", m.World.State())
	require.NoError(t, err)
	assert.Equal(t, []engine.Action{{Actor: "A", Verb: MoveUp}, {Actor: "A", Verb: Stay}}, legal)

	results, err := m.World.Run(context.Background(), 20)
	require.NoError(t, err)
	assert.Len(t, results, 4)
	for _, r := range results {
		p, err := m.PositionIn(r.State, "A")
		require.NoError(t, err)
		assert.NotEqual(t, Point{1, 0}, p, "step %d entered the obstacle", r.Step)
	}
	pos, err := m.Position("A")
	require.NoError(t, err)
	assert.Equal(t, Point{2, 0}, pos)
}

// TestParallelAgents runs two crossing agents in one parallel group.
func TestParallelAgents(t *testing.T) {
	cfg := Config{
		Width:  4,
		Height: 4,
		Agents: []AgentSpec{
			{Name: "A", Start: Point{0, 0}, Goal: Point{3, 3}, Horizon: 3},
			{Name: "B", Start: Point{3, 0}, Goal: Point{0, 3}, Horizon: 3},
		},
		Parallel: true,
	}
	m, err := Build(cfg)
	require.NoError(t, err)

	results, err := m.World.Run(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.Equal(t, "all", r.Group)
		assert.Len(t, r.Decisions, 2)
	}
	for id, want := range map[engine.AgentID]Point{"A": {3, 3}, "B": {0, 3}} {
		pos, err := m.Position(id)
		require.NoError(t, err)
		assert.Equal(t, want, pos, "agent %s", id)
	}
}

// TestParallelMismatchedParity runs two parallel agents whose distances to
// their goals differ in parity. The nearer one has to wait on its goal.
func TestParallelMismatchedParity(t *testing.T) {
	cfg := Config{
		Width:  6,
		Height: 2,
		Agents: []AgentSpec{
			{Name: "A", Start: Point{0, 0}, Goal: Point{2, 0}, Horizon: 3},
			{Name: "B", Start: Point{0, 1}, Goal: Point{3, 1}, Horizon: 3},
		},
		Parallel: true,
	}
	m, err := Build(cfg)
	require.NoError(t, err)

	results, err := m.World.Run(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, m.World.IsTerminated())

	last := results[2]
	require.Len(t, last.Decisions, 2)
	assert.Equal(t, engine.Action{Actor: "A", Verb: Stay}, last.Decisions[0].Action)
	assert.Equal(t, engine.Action{Actor: "B", Verb: MoveRight}, last.Decisions[1].Action)
}

// TestSharedGoalTerminates sends two sequential agents to the same cell from
// opposite ends of a corridor.
func TestSharedGoalTerminates(t *testing.T) {
	cfg := Config{
		Width:  4,
		Height: 1,
		Agents: []AgentSpec{
			{Name: "A", Start: Point{0, 0}, Goal: Point{1, 0}, Horizon: 2},
			{Name: "B", Start: Point{3, 0}, Goal: Point{1, 0}, Horizon: 2},
		},
	}
	m, err := Build(cfg)
	require.NoError(t, err)

	results, err := m.World.Run(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, Stay, results[2].Decisions[0].Action.Verb, "A waits on its goal")
	for _, id := range []engine.AgentID{"A", "B"} {
		pos, err := m.Position(id)
		require.NoError(t, err)
		assert.Equal(t, Point{1, 0}, pos, "agent %s", id)
	}
}

// TestStayWritesNothing verifies Stay is legal everywhere and leaves the
// state unchanged.
func TestStayWritesNothing(t *testing.T) {
	m, err := Build(DefaultConfig())
	require.NoError(t, err)
	stay := engine.Action{Actor: "A", Verb: Stay}

	assert.Empty(t, m.World.Writes(stay))
	legal, err := m.World.LegalActions("A", m.World.State())
	require.NoError(t, err)
	assert.Equal(t, stay, legal[len(legal)-1])
}

// TestConfigValidate covers scenario errors.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty grid", func(c *Config) { c.Width = 0 }},
		{"no agents", func(c *Config) { c.Agents = nil }},
		{"unnamed agent", func(c *Config) { c.Agents[0].Name = "" }},
		{"duplicate agent", func(c *Config) { c.Agents = append(c.Agents, c.Agents[0]) }},
		{"negative horizon", func(c *Config) { c.Agents[0].Horizon = -1 }},
		{"start outside", func(c *Config) { c.Agents[0].Start = Point{6, 0} }},
		{"goal outside", func(c *Config) { c.Agents[0].Goal = Point{0, -1} }},
		{"obstacle outside", func(c *Config) { c.Obstacles = []Point{{9, 9}} }},
		{"start on obstacle", func(c *Config) { c.Obstacles = []Point{{0, 0}} }},
		{"grid too wide", func(c *Config) { c.Width = MaxGridSide + 1 }},
		{"grid too tall", func(c *Config) { c.Height = MaxGridSide + 1 }},
		{"horizon too deep", func(c *Config) { c.Agents[0].Horizon = MaxHorizon + 1 }},
		{"too many agents", func(c *Config) {
			for i := 0; i < MaxAgents; i++ {
				c.Agents = append(c.Agents, AgentSpec{Name: fmt.Sprintf("B%d", i), Goal: Point{5, 5}})
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := Build(cfg)
			assert.Error(t, err)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

// TestRender draws a small grid.
func TestRender(t *testing.T) {
	cfg := Config{
		Width:     3,
		Height:    3,
		Agents:    []AgentSpec{{Name: "A", Start: Point{0, 0}, Goal: Point{2, 2}, Horizon: 1}},
		Obstacles: []Point{{1, 1}},
	}
	m, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, "..*\n.#.\nA..\n", m.Render(m.World.State()))

	_, err = m.World.Step()
	require.NoError(t, err)
	assert.Equal(t, "..*\n.#.\n.A.\n", m.Render(m.World.State()))
}

// TestUnknownAgent verifies lookups of undeclared agents fail.
func TestUnknownAgent(t *testing.T) {
	m, err := Build(DefaultConfig())
	require.NoError(t, err)
	_, err = m.Position("Z")
	assert.ErrorIs(t, err, engine.ErrUnknownAgent)
	_, err = m.Distance("Z")
	assert.ErrorIs(t, err, engine.ErrUnknownAgent)
}
