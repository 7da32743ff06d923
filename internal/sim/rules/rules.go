package rules

import (
	"rgsim/internal/sim/action"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/roster"
)

// Rules decides whether an action is legal for a robot. Implementations must
// be pure and must terminate.
type Rules interface {
	IsValidAction(e *roster.Entity, a action.Action) bool
}

type Func func(e *roster.Entity, a action.Action) bool

func (f Func) IsValidAction(e *roster.Entity, a action.Action) bool { return f(e, a) }

// Basic is the robot-game rule set: guard and suicide are always legal, move
// and attack must target an adjacent, in-bounds, non-obstacle cell.
type Basic struct {
	Board board.Reader
}

func (r Basic) IsValidAction(e *roster.Entity, a action.Action) bool {
	switch a.Kind {
	case action.KindGuard, action.KindSuicide:
		return a.Target == nil
	case action.KindMove, action.KindAttack:
		if a.Target == nil || e == nil {
			return false
		}
		return r.walkable(*a.Target) && board.Manhattan(e.Location(), *a.Target) == 1
	}
	return false
}

func (r Basic) walkable(loc board.Loc) bool {
	if r.Board == nil || !r.Board.InBounds(loc) {
		return false
	}
	obstacle, err := r.Board.IsObstacle(loc)
	return err == nil && !obstacle
}
