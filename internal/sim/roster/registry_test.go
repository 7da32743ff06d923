package roster

import (
	"errors"
	"testing"

	"rgsim/internal/sim/board"
)

func newRegistry(t *testing.T) (*Registry, *board.Board) {
	t.Helper()
	b, err := board.New(5, []board.Loc{{X: 2, Y: 2}})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	return New(b, Options{MaxHP: 50, CheckInvariants: true}), b
}

func TestRegistry_AddRemove(t *testing.T) {
	r, b := newRegistry(t)

	f, err := r.Add(board.Loc{X: 0, Y: 0}, Friendly, 10)
	if err != nil {
		t.Fatalf("Add friendly: %v", err)
	}
	h, err := r.Add(board.Loc{X: 4, Y: 4}, Hostile, 10)
	if err != nil {
		t.Fatalf("Add hostile: %v", err)
	}
	if f.ID() != 0 || h.ID() != 1 {
		t.Fatalf("ids = %d,%d want 0,1", f.ID(), h.ID())
	}
	if id, ok, _ := b.Get(board.Loc{X: 4, Y: 4}); !ok || id != h.ID() {
		t.Fatalf("board cell does not hold hostile robot")
	}

	if err := r.Remove(f.ID()); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := b.Get(board.Loc{X: 0, Y: 0}); ok {
		t.Fatalf("cell should be cleared after Remove")
	}
	if err := r.Remove(f.ID()); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("second Remove: want ErrUnknownEntity, got %v", err)
	}
	if err := r.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestRegistry_IDsNeverReused(t *testing.T) {
	r, _ := newRegistry(t)
	loc := board.Loc{X: 1, Y: 1}
	last := -1
	for i := 0; i < 10; i++ {
		e, err := r.Add(loc, Friendly, 5)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if e.ID() <= last {
			t.Fatalf("id %d not greater than previous %d", e.ID(), last)
		}
		last = e.ID()
		if err := r.Remove(e.ID()); err != nil {
			t.Fatalf("Remove: %v", err)
		}
	}
}

func TestRegistry_AddFailuresLeaveStateUnchanged(t *testing.T) {
	r, b := newRegistry(t)
	if _, err := r.Add(board.Loc{X: 0, Y: 0}, Friendly, 10); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cases := []struct {
		name string
		loc  board.Loc
		hp   int
		want error
	}{
		{"obstacle", board.Loc{X: 2, Y: 2}, 10, ErrObstacleCell},
		{"occupied", board.Loc{X: 0, Y: 0}, 10, ErrCellOccupied},
		{"out of bounds", board.Loc{X: 9, Y: 0}, 10, board.ErrOutOfBounds},
		{"zero hp", board.Loc{X: 1, Y: 0}, 0, ErrBadHP},
		{"hp above max", board.Loc{X: 1, Y: 0}, 51, ErrBadHP},
	}
	for _, tc := range cases {
		if _, err := r.Add(tc.loc, Friendly, tc.hp); !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, err)
		}
	}
	if r.Len() != 1 || len(b.Occupied()) != 1 {
		t.Fatalf("failed adds changed state: roster=%d occupied=%d", r.Len(), len(b.Occupied()))
	}
	if e, _ := r.Add(board.Loc{X: 1, Y: 0}, Hostile, 10); e.ID() != 1 {
		t.Fatalf("failed adds consumed ids: next id = %d", e.ID())
	}
}

func TestRegistry_MoveAndSetHP(t *testing.T) {
	r, b := newRegistry(t)
	e, _ := r.Add(board.Loc{X: 0, Y: 0}, Friendly, 10)
	o, _ := r.Add(board.Loc{X: 1, Y: 0}, Hostile, 10)

	if err := r.Move(e.ID(), board.Loc{X: 1, Y: 0}); !errors.Is(err, ErrCellOccupied) {
		t.Fatalf("Move onto robot: want ErrCellOccupied, got %v", err)
	}
	if err := r.Move(e.ID(), board.Loc{X: 2, Y: 2}); !errors.Is(err, ErrObstacleCell) {
		t.Fatalf("Move onto obstacle: want ErrObstacleCell, got %v", err)
	}
	if err := r.Move(e.ID(), board.Loc{X: 0, Y: 1}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, ok, _ := b.Get(board.Loc{X: 0, Y: 0}); ok {
		t.Fatalf("old cell still occupied")
	}
	if got, ok, _ := r.At(board.Loc{X: 0, Y: 1}); !ok || got.ID() != e.ID() {
		t.Fatalf("At(new) did not return moved robot")
	}

	if err := r.SetHP(o.ID(), 42); err != nil {
		t.Fatalf("SetHP: %v", err)
	}
	if o.HP() != 42 {
		t.Fatalf("hp = %d, want 42", o.HP())
	}
	if err := r.SetHP(o.ID(), 0); !errors.Is(err, ErrBadHP) {
		t.Fatalf("SetHP(0): want ErrBadHP, got %v", err)
	}
	if err := r.SetHP(99, 5); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("SetHP unknown: want ErrUnknownEntity, got %v", err)
	}
}

func TestRegistry_CheckDetectsDrift(t *testing.T) {
	r, b := newRegistry(t)
	if _, err := r.Add(board.Loc{X: 0, Y: 0}, Friendly, 10); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_ = b.Set(board.Loc{X: 3, Y: 3}, 77)
	if err := r.Check(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("Check: want ErrInconsistent, got %v", err)
	}
}

func TestEntity_Attr(t *testing.T) {
	r, _ := newRegistry(t)
	e, _ := r.Add(board.Loc{X: 3, Y: 1}, Friendly, 17)

	checks := map[string]any{
		AttrLocation: board.Loc{X: 3, Y: 1},
		AttrHP:       17,
		AttrPlayerID: 1,
		AttrRobotID:  0,
		AttrOwner:    "friendly",
	}
	for name, want := range checks {
		got, ok := e.Attr(name)
		if !ok || got != want {
			t.Fatalf("Attr(%q) = %v,%v want %v", name, got, ok, want)
		}
	}
	if _, ok := e.Attr("board"); ok {
		t.Fatalf("unknown attribute resolved")
	}
}

func TestParseOwner(t *testing.T) {
	for in, want := range map[string]Owner{"friendly": Friendly, "F": Friendly, "enemy": Hostile, "hostile": Hostile} {
		got, err := ParseOwner(in)
		if err != nil || got != want {
			t.Fatalf("ParseOwner(%q) = %v,%v", in, got, err)
		}
	}
	if _, err := ParseOwner("neutral"); err == nil {
		t.Fatalf("expected error for unknown owner")
	}
}
