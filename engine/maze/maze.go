// Package maze builds grid-walking scenarios on top of the engine: each agent
// owns x/y position and goal variables bounded by the grid, moves one cell per
// step or stays put, is rewarded by its Manhattan distance to its goal, and the
// episode ends once every agent stands on its goal.
package maze

import (
	"fmt"
	"slices"

	"github.com/jason-s-yu/mazesim/engine"
)

// Move verbs, in declaration (tie-break) order. Stay comes last so ties go to
// a real move; it writes nothing and is always legal.
const (
	MoveRight = "MoveRight"
	MoveLeft  = "MoveLeft"
	MoveUp    = "MoveUp"
	MoveDown  = "MoveDown"
	Stay      = "Stay"
)

// Variable names declared per agent.
const (
	VarX     = "x"
	VarY     = "y"
	VarGoalX = "goal_x"
	VarGoalY = "goal_y"
)

var moves = []struct {
	verb   string
	dx, dy int
}{
	{MoveRight, 1, 0},
	{MoveLeft, -1, 0},
	{MoveUp, 0, 1},
	{MoveDown, 0, -1},
	{Stay, 0, 0},
}

// Point is a grid cell. Y grows upwards.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// AgentSpec describes one walker.
type AgentSpec struct {
	Name    string `json:"name"`
	Start   Point  `json:"start"`
	Goal    Point  `json:"goal"`
	Horizon int    `json:"horizon"`
}

// Config describes a maze scenario.
type Config struct {
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Agents    []AgentSpec  `json:"agents"`
	Obstacles []Point      `json:"obstacles,omitempty"`
	Parallel  bool         `json:"parallel"` // all agents move every step
	Rules     engine.Rules `json:"-"`
}

// DefaultConfig returns a 6x6 open grid with one agent walking from the
// origin to the far corner with a horizon of 5.
func DefaultConfig() Config {
	return Config{
		Width:  6,
		Height: 6,
		Agents: []AgentSpec{
			{Name: "A", Start: Point{0, 0}, Goal: Point{5, 5}, Horizon: 5},
		},
		Rules: engine.DefaultRules(),
	}
}

func (c Config) inside(p Point) bool {
	return p.X >= 0 && p.X < c.Width && p.Y >= 0 && p.Y < c.Height
}

// Limits on a scenario. Lookahead cost grows exponentially with the horizon.
const (
	MaxGridSide = 64
	MaxHorizon  = 8
	MaxAgents   = 16
)

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("maze: grid %dx%d must be non-empty", c.Width, c.Height)
	}
	if c.Width > MaxGridSide || c.Height > MaxGridSide {
		return fmt.Errorf("maze: grid %dx%d exceeds %dx%d", c.Width, c.Height, MaxGridSide, MaxGridSide)
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("maze: no agents")
	}
	if len(c.Agents) > MaxAgents {
		return fmt.Errorf("maze: %d agents exceeds %d", len(c.Agents), MaxAgents)
	}
	blocked := make(map[Point]bool, len(c.Obstacles))
	for _, o := range c.Obstacles {
		if !c.inside(o) {
			return fmt.Errorf("maze: obstacle %s outside the %dx%d grid", o, c.Width, c.Height)
		}
		blocked[o] = true
	}
	names := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		switch {
		case a.Name == "":
			return fmt.Errorf("maze: agent with empty name")
		case names[a.Name]:
			return fmt.Errorf("maze: duplicate agent %q", a.Name)
		case a.Horizon < 0:
			return fmt.Errorf("maze: agent %q has negative horizon %d", a.Name, a.Horizon)
		case a.Horizon > MaxHorizon:
			return fmt.Errorf("maze: agent %q horizon %d exceeds %d", a.Name, a.Horizon, MaxHorizon)
		case !c.inside(a.Start) || !c.inside(a.Goal):
			return fmt.Errorf("maze: agent %q start %s or goal %s outside the grid", a.Name, a.Start, a.Goal)
		case blocked[a.Start] || blocked[a.Goal]:
			return fmt.Errorf("maze: agent %q start %s or goal %s is an obstacle", a.Name, a.Start, a.Goal)
		}
		names[a.Name] = true
	}
	return nil
}

// walker holds the state keys of one agent.
type walker struct {
	id           engine.AgentID
	x, y         engine.StateKey
	goalX, goalY engine.StateKey
}

// Maze is a built scenario. The World is ready to Step.
type Maze struct {
	World   *engine.World
	cfg     Config
	walkers []walker
}

// Build declares the scenario described by cfg on a fresh World.
func Build(cfg Config) (*Maze, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rules == (engine.Rules{}) {
		cfg.Rules = engine.DefaultRules()
	}
	cfg.Agents = slices.Clone(cfg.Agents)
	cfg.Obstacles = slices.Clone(cfg.Obstacles)

	m := &Maze{World: engine.NewWorld(cfg.Rules), cfg: cfg}
	var atGoal []engine.Predicate
	for _, as := range cfg.Agents {
		wk, err := m.addWalker(as)
		if err != nil {
			return nil, err
		}
		m.walkers = append(m.walkers, wk)
		atGoal = append(atGoal, engine.EqualKeys(wk.x, wk.goalX), engine.EqualKeys(wk.y, wk.goalY))
	}

	if err := m.World.SetTermination(engine.If(engine.All(atGoal...), engine.True, engine.False)); err != nil {
		return nil, fmt.Errorf("maze: %w", err)
	}
	ids := m.Agents()
	order := engine.Sequential(ids...)
	if cfg.Parallel {
		order = engine.Parallel("all", ids...)
	}
	if err := m.World.SetTurnOrder(order); err != nil {
		return nil, fmt.Errorf("maze: %w", err)
	}
	return m, nil
}

func (m *Maze) addWalker(as AgentSpec) (walker, error) {
	w := m.World
	id := engine.AgentID(as.Name)
	agent, err := w.AddAgent(id, as.Horizon)
	if err != nil {
		return walker{}, fmt.Errorf("maze: %w", err)
	}
	wk := walker{
		id:    id,
		x:     engine.Key(id, VarX),
		y:     engine.Key(id, VarY),
		goalX: engine.Key(id, VarGoalX),
		goalY: engine.Key(id, VarGoalY),
	}
	xs := engine.Bounded(0, m.cfg.Width-1)
	ys := engine.Bounded(0, m.cfg.Height-1)
	decls := []struct {
		key engine.StateKey
		dom engine.Domain
		v   int
	}{
		{wk.x, xs, as.Start.X},
		{wk.y, ys, as.Start.Y},
		{wk.goalX, xs, as.Goal.X},
		{wk.goalY, ys, as.Goal.Y},
	}
	for _, d := range decls {
		if err := w.DeclareVariable(d.key, engine.TypeInt, d.dom, engine.PointMass(d.v)); err != nil {
			return walker{}, fmt.Errorf("maze: %w", err)
		}
	}

	for _, mv := range moves {
		act, err := agent.AddAction(mv.verb)
		if err != nil {
			return walker{}, fmt.Errorf("maze: %w", err)
		}
		if mv.dx == 0 && mv.dy == 0 {
			continue
		}
		key, step := wk.x, mv.dx
		if mv.dy != 0 {
			key, step = wk.y, mv.dy
		}
		if err := w.RegisterDynamics(key, act, engine.Increment(step)); err != nil {
			return walker{}, fmt.Errorf("maze: %w", err)
		}
		if gate := m.obstacleGate(wk, mv.dx, mv.dy); gate != nil {
			if err := w.RegisterLegality(act, gate); err != nil {
				return walker{}, fmt.Errorf("maze: %w", err)
			}
		}
	}

	for _, term := range []engine.RewardTerm{
		engine.Difference(wk.x, wk.goalX),
		engine.Difference(wk.y, wk.goalY),
	} {
		if err := w.RegisterRewardTerm(id, term, 1); err != nil {
			return walker{}, fmt.Errorf("maze: %w", err)
		}
	}
	return wk, nil
}

// obstacleGate returns a legality tree forbidding a move by (dx, dy) into an
// obstacle, or nil when no obstacle can be entered that way.
func (m *Maze) obstacleGate(wk walker, dx, dy int) *engine.Tree {
	var blocked []engine.Predicate
	for _, o := range m.cfg.Obstacles {
		from := Point{o.X - dx, o.Y - dy}
		if !m.cfg.inside(from) {
			continue
		}
		blocked = append(blocked, engine.All(engine.Equal(wk.x, from.X), engine.Equal(wk.y, from.Y)))
	}
	if len(blocked) == 0 {
		return nil
	}
	return engine.If(engine.Any(blocked...), engine.False, engine.True)
}

// Config returns the scenario the maze was built from.
func (m *Maze) Config() Config { return m.cfg }

// Agents returns the agent IDs in declaration order.
func (m *Maze) Agents() []engine.AgentID {
	ids := make([]engine.AgentID, len(m.walkers))
	for i, wk := range m.walkers {
		ids[i] = wk.id
	}
	return ids
}

func (m *Maze) lookup(id engine.AgentID) (walker, error) {
	for _, wk := range m.walkers {
		if wk.id == id {
			return wk, nil
		}
	}
	return walker{}, fmt.Errorf("maze: %w: %s", engine.ErrUnknownAgent, id)
}

// PositionIn returns the cell of agent id in state.
func (m *Maze) PositionIn(state engine.State, id engine.AgentID) (Point, error) {
	wk, err := m.lookup(id)
	if err != nil {
		return Point{}, err
	}
	x, err := state.Value(wk.x)
	if err != nil {
		return Point{}, err
	}
	y, err := state.Value(wk.y)
	if err != nil {
		return Point{}, err
	}
	return Point{x, y}, nil
}

// Position returns the current cell of agent id.
func (m *Maze) Position(id engine.AgentID) (Point, error) {
	return m.PositionIn(m.World.State(), id)
}

// Goal returns the goal cell of agent id.
func (m *Maze) Goal(id engine.AgentID) (Point, error) {
	wk, err := m.lookup(id)
	if err != nil {
		return Point{}, err
	}
	gx, err := m.World.Value(wk.goalX)
	if err != nil {
		return Point{}, err
	}
	gy, err := m.World.Value(wk.goalY)
	if err != nil {
		return Point{}, err
	}
	return Point{gx, gy}, nil
}

// DistanceIn returns the Manhattan distance from agent id to its goal in
// state.
func (m *Maze) DistanceIn(state engine.State, id engine.AgentID) (int, error) {
	p, err := m.PositionIn(state, id)
	if err != nil {
		return 0, err
	}
	g, err := m.Goal(id)
	if err != nil {
		return 0, err
	}
	return abs(p.X-g.X) + abs(p.Y-g.Y), nil
}

// Distance returns the current Manhattan distance from agent id to its goal.
func (m *Maze) Distance(id engine.AgentID) (int, error) {
	return m.DistanceIn(m.World.State(), id)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
