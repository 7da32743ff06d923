package board

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrOutOfBounds  = errors.New("location out of bounds")
	ErrObstacleCell = errors.New("cell is an obstacle")
)

// Loc is a board coordinate; (0,0) is the top-left cell.
type Loc struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (l Loc) String() string { return fmt.Sprintf("(%d,%d)", l.X, l.Y) }

func (l Loc) Add(dx, dy int) Loc { return Loc{X: l.X + dx, Y: l.Y + dy} }

// Key is the "x,y" form used when locations key script-visible objects.
func (l Loc) Key() string { return fmt.Sprintf("%d,%d", l.X, l.Y) }

func Manhattan(a, b Loc) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SortLocs orders locations row-major (y, then x).
func SortLocs(locs []Loc) {
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].Y != locs[j].Y {
			return locs[i].Y < locs[j].Y
		}
		return locs[i].X < locs[j].X
	})
}

// Reader is the read-only view of a board handed to collaborators that need
// local spatial queries (the rules engine). It never exposes mutation.
type Reader interface {
	Size() int
	InBounds(loc Loc) bool
	IsObstacle(loc Loc) (bool, error)
	Get(loc Loc) (id int, ok bool, err error)
}

type cellKind uint8

const (
	cellEmpty cellKind = iota
	cellObstacle
	cellOccupied
)

type cell struct {
	kind cellKind
	id   int
}

// Board is a fixed-size square grid. Obstacles are set once at construction;
// every other cell is empty or holds exactly one robot id.
type Board struct {
	size  int
	cells []cell
}

func New(size int, obstacles []Loc) (*Board, error) {
	if size <= 0 {
		return nil, fmt.Errorf("board size must be positive, got %d", size)
	}
	b := &Board{size: size, cells: make([]cell, size*size)}
	for _, o := range obstacles {
		i, err := b.index(o)
		if err != nil {
			return nil, fmt.Errorf("obstacle %s: %w", o, err)
		}
		b.cells[i] = cell{kind: cellObstacle}
	}
	return b, nil
}

func (b *Board) Size() int { return b.size }

func (b *Board) InBounds(loc Loc) bool {
	return loc.X >= 0 && loc.Y >= 0 && loc.X < b.size && loc.Y < b.size
}

func (b *Board) index(loc Loc) (int, error) {
	if !b.InBounds(loc) {
		return 0, fmt.Errorf("%s on %dx%d board: %w", loc, b.size, b.size, ErrOutOfBounds)
	}
	return loc.Y*b.size + loc.X, nil
}

func (b *Board) IsObstacle(loc Loc) (bool, error) {
	i, err := b.index(loc)
	if err != nil {
		return false, err
	}
	return b.cells[i].kind == cellObstacle, nil
}

// Get returns the id of the robot occupying loc, if any.
func (b *Board) Get(loc Loc) (int, bool, error) {
	i, err := b.index(loc)
	if err != nil {
		return 0, false, err
	}
	c := b.cells[i]
	if c.kind != cellOccupied {
		return 0, false, nil
	}
	return c.id, true, nil
}

// Set writes id into loc, replacing any previous occupant. Whether the
// placement is legal is the caller's concern; only obstacles are refused.
func (b *Board) Set(loc Loc, id int) error {
	i, err := b.index(loc)
	if err != nil {
		return err
	}
	if b.cells[i].kind == cellObstacle {
		return fmt.Errorf("%s: %w", loc, ErrObstacleCell)
	}
	b.cells[i] = cell{kind: cellOccupied, id: id}
	return nil
}

// Clear empties loc. Clearing an obstacle is a no-op.
func (b *Board) Clear(loc Loc) error {
	i, err := b.index(loc)
	if err != nil {
		return err
	}
	if b.cells[i].kind == cellOccupied {
		b.cells[i] = cell{}
	}
	return nil
}

func (b *Board) Obstacles() []Loc { return b.collect(cellObstacle) }

func (b *Board) Occupied() []Loc { return b.collect(cellOccupied) }

func (b *Board) collect(kind cellKind) []Loc {
	var out []Loc
	for i, c := range b.cells {
		if c.kind == kind {
			out = append(out, Loc{X: i % b.size, Y: i / b.size})
		}
	}
	return out
}

// Neighbors returns the in-bounds orthogonal neighbours of loc in a fixed
// order (north, east, south, west).
func (b *Board) Neighbors(loc Loc) []Loc {
	out := make([]Loc, 0, 4)
	for _, d := range [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}} {
		n := loc.Add(d[0], d[1])
		if b.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}
