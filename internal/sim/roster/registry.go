package roster

import (
	"fmt"

	"rgsim/internal/sim/board"
)

// Registry owns the roster of live robots and their board cells.
// It is not safe for concurrent use; the match serializes access.
type Registry struct {
	board *board.Board
	maxHP int
	check bool

	nextID   int
	entities []*Entity
	byID     map[int]*Entity
}

type Options struct {
	// MaxHP bounds SetHP; zero means unbounded.
	MaxHP int
	// CheckInvariants verifies the board/roster bijection after every mutation.
	CheckInvariants bool
}

func New(b *board.Board, opts Options) *Registry {
	return &Registry{
		board: b,
		maxHP: opts.MaxHP,
		check: opts.CheckInvariants,
		byID:  map[int]*Entity{},
	}
}

// NextID hands out ids in strictly increasing order. Ids are never reused.
func (r *Registry) NextID() int {
	id := r.nextID
	r.nextID++
	return id
}

func (r *Registry) Len() int { return len(r.entities) }

// Entities returns the roster in insertion order.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

func (r *Registry) Get(id int) (*Entity, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// At returns the robot on loc, if any.
func (r *Registry) At(loc board.Loc) (*Entity, bool, error) {
	id, ok, err := r.board.Get(loc)
	if err != nil || !ok {
		return nil, false, err
	}
	e, ok := r.byID[id]
	if !ok {
		return nil, false, fmt.Errorf("cell %s holds robot %d: %w", loc, id, ErrInconsistent)
	}
	return e, true, nil
}

// placeable reports whether loc can take a new occupant.
func (r *Registry) placeable(loc board.Loc) error {
	obstacle, err := r.board.IsObstacle(loc)
	if err != nil {
		return err
	}
	if obstacle {
		return fmt.Errorf("%s: %w", loc, ErrObstacleCell)
	}
	if id, ok, _ := r.board.Get(loc); ok {
		return fmt.Errorf("%s holds robot %d: %w", loc, id, ErrCellOccupied)
	}
	return nil
}

func (r *Registry) Add(loc board.Loc, owner Owner, hp int) (*Entity, error) {
	if err := r.placeable(loc); err != nil {
		return nil, err
	}
	if err := r.validHP(hp); err != nil {
		return nil, err
	}
	e := &Entity{id: r.NextID(), loc: loc, hp: hp, owner: owner}
	if err := r.board.Set(loc, e.id); err != nil {
		return nil, err
	}
	r.entities = append(r.entities, e)
	r.byID[e.id] = e
	return e, r.verify()
}

func (r *Registry) Remove(id int) error {
	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("robot %d: %w", id, ErrUnknownEntity)
	}
	if err := r.board.Clear(e.loc); err != nil {
		return err
	}
	delete(r.byID, id)
	for i, x := range r.entities {
		if x.id == id {
			r.entities = append(r.entities[:i], r.entities[i+1:]...)
			break
		}
	}
	return r.verify()
}

func (r *Registry) SetHP(id, hp int) error {
	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("robot %d: %w", id, ErrUnknownEntity)
	}
	if err := r.validHP(hp); err != nil {
		return err
	}
	e.hp = hp
	return nil
}

// Move relocates a robot, keeping its cell and the roster in step.
func (r *Registry) Move(id int, to board.Loc) error {
	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("robot %d: %w", id, ErrUnknownEntity)
	}
	if to == e.loc {
		return nil
	}
	if err := r.placeable(to); err != nil {
		return err
	}
	if err := r.board.Set(to, e.id); err != nil {
		return err
	}
	_ = r.board.Clear(e.loc)
	e.loc = to
	return r.verify()
}

func (r *Registry) validHP(hp int) error {
	if hp < 1 || (r.maxHP > 0 && hp > r.maxHP) {
		return fmt.Errorf("hp %d (max %d): %w", hp, r.maxHP, ErrBadHP)
	}
	return nil
}

func (r *Registry) verify() error {
	if !r.check {
		return nil
	}
	return r.Check()
}

// Check verifies that occupied cells and roster entries are in exact
// bijection.
func (r *Registry) Check() error {
	occupied := r.board.Occupied()
	if len(occupied) != len(r.entities) || len(r.byID) != len(r.entities) {
		return fmt.Errorf("%d occupied cells, %d robots: %w", len(occupied), len(r.entities), ErrInconsistent)
	}
	for _, e := range r.entities {
		id, ok, err := r.board.Get(e.loc)
		if err != nil {
			return fmt.Errorf("robot %d: %v: %w", e.id, err, ErrInconsistent)
		}
		if !ok || id != e.id {
			return fmt.Errorf("robot %d not on its cell %s: %w", e.id, e.loc, ErrInconsistent)
		}
	}
	return nil
}
