package rules

import (
	"testing"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/roster"
)

func at(x, y int) *board.Loc { return &board.Loc{X: x, Y: y} }

func setup(t *testing.T) (*board.Board, *roster.Entity) {
	t.Helper()
	b, err := board.New(5, []board.Loc{{X: 2, Y: 2}})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	r := roster.New(b, roster.Options{})
	e, err := r.Add(board.Loc{X: 2, Y: 1}, roster.Friendly, 8)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return b, e
}

func TestBasic(t *testing.T) {
	b, e := setup(t)
	r := Basic{Board: b}

	cases := []struct {
		a    action.Action
		want bool
	}{
		{action.Guard(), true},
		{action.Action{Kind: action.KindSuicide}, true},
		{action.Action{Kind: action.KindMove, Target: at(2, 0)}, true},
		{action.Action{Kind: action.KindAttack, Target: at(1, 1)}, true},
		{action.Action{Kind: action.KindMove, Target: at(2, 2)}, false},  // obstacle
		{action.Action{Kind: action.KindMove, Target: at(4, 1)}, false},  // not adjacent
		{action.Action{Kind: action.KindMove, Target: at(3, 0)}, false},  // diagonal
		{action.Action{Kind: action.KindMove, Target: at(2, -1)}, false}, // off board
		{action.Action{Kind: action.KindMove}, false},
		{action.Action{Kind: action.KindGuard, Target: at(2, 0)}, false},
		{action.Action{Kind: "teleport", Target: at(2, 0)}, false},
	}
	for _, tc := range cases {
		if got := r.IsValidAction(e, tc.a); got != tc.want {
			t.Fatalf("IsValidAction(%s) = %v, want %v", tc.a, got, tc.want)
		}
	}
}

func TestConstrained(t *testing.T) {
	b, e := setup(t)
	c, err := NewConstrained(Basic{Board: b}, []string{
		`action.kind != "suicide" || robot.hp < 5`,
		`!action.has_target || action.target.y <= robot.location.y`,
	})
	if err != nil {
		t.Fatalf("NewConstrained: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
	if c.IsValidAction(e, action.Action{Kind: action.KindSuicide}) {
		t.Fatalf("suicide at hp 8 should be rejected")
	}
	if !c.IsValidAction(e, action.Guard()) {
		t.Fatalf("guard should pass")
	}
	if !c.IsValidAction(e, action.Action{Kind: action.KindMove, Target: at(2, 0)}) {
		t.Fatalf("move north should pass")
	}
	if !c.IsValidAction(e, action.Action{Kind: action.KindMove, Target: at(3, 1)}) {
		t.Fatalf("move east keeps y and should pass")
	}
	// Base rules still apply.
	if c.IsValidAction(e, action.Action{Kind: action.KindMove, Target: at(2, 2)}) {
		t.Fatalf("obstacle move should fail in base rules")
	}
}

func TestConstrained_CompileError(t *testing.T) {
	if _, err := NewConstrained(nil, []string{`robot.hp +`}); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := NewConstrained(nil, []string{`robot.hp`}); err == nil {
		t.Fatalf("expected error for non-bool constraint")
	}
}
