package rules

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/roster"
)

type locEnv struct {
	X int `expr:"x"`
	Y int `expr:"y"`
}

type actionEnv struct {
	Kind      string `expr:"kind"`
	HasTarget bool   `expr:"has_target"`
	Target    locEnv `expr:"target"`
}

type robotEnv struct {
	ID       int    `expr:"id"`
	HP       int    `expr:"hp"`
	PlayerID int    `expr:"player_id"`
	Location locEnv `expr:"location"`
}

// env is what constraint expressions see, e.g.
//
//	action.kind != "suicide" || robot.hp < 10
type env struct {
	Action actionEnv `expr:"action"`
	Robot  robotEnv  `expr:"robot"`
}

// Constrained layers configured expr-lang predicates on top of another rule
// set. An action is legal only if Base accepts it and every predicate
// evaluates to true.
type Constrained struct {
	Base     Rules
	programs []*vm.Program
	sources  []string
}

func NewConstrained(base Rules, constraints []string) (*Constrained, error) {
	c := &Constrained{Base: base}
	for i, src := range constraints {
		p, err := expr.Compile(src, expr.Env(env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("constraint %d %q: %w", i, src, err)
		}
		c.programs = append(c.programs, p)
		c.sources = append(c.sources, src)
	}
	return c, nil
}

func (c *Constrained) Len() int { return len(c.programs) }

func (c *Constrained) IsValidAction(e *roster.Entity, a action.Action) bool {
	if c.Base != nil && !c.Base.IsValidAction(e, a) {
		return false
	}
	if len(c.programs) == 0 {
		return true
	}
	in := envFor(e, a)
	for _, p := range c.programs {
		out, err := expr.Run(p, in)
		if err != nil {
			return false
		}
		if ok, _ := out.(bool); !ok {
			return false
		}
	}
	return true
}

func envFor(e *roster.Entity, a action.Action) env {
	v := env{Action: actionEnv{Kind: a.Kind}}
	if a.Target != nil {
		v.Action.HasTarget = true
		v.Action.Target = locEnv{X: a.Target.X, Y: a.Target.Y}
	}
	if e != nil {
		loc := e.Location()
		v.Robot = robotEnv{
			ID:       e.ID(),
			HP:       e.HP(),
			PlayerID: int(e.Owner()),
			Location: locEnv{X: loc.X, Y: loc.Y},
		}
	}
	return v
}
