// Package gameinfo builds the frozen, per-turn view of the board that is
// handed to robot controllers.
//
// A GameInfo holds only copies of whitelisted robot attributes. It never
// references live roster entities, so nothing a controller does with it can
// reach engine state, and one instance can be shared read-only by every
// decision made during a turn.
package gameinfo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"rgsim/internal/sim/board"
	"rgsim/internal/sim/roster"
)

// Attrs is a name -> value projection of one robot.
type Attrs map[string]any

func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Export renders the attributes as plain values for a script runtime:
// locations become [x, y] lists.
func (a Attrs) Export() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = ExportValue(v)
	}
	return out
}

// ExportValue converts one attribute value to its script form.
func ExportValue(v any) any {
	if loc, ok := v.(board.Loc); ok {
		return []any{loc.X, loc.Y}
	}
	return v
}

// Builder projects the roster into GameInfo values using a configured
// attribute whitelist.
type Builder struct {
	exposed   []string
	ownerOnly []string
}

func NewBuilder(exposed, ownerOnly []string) (*Builder, error) {
	seen := map[string]struct{}{}
	check := func(names []string) error {
		for _, n := range names {
			if !roster.IsKnownAttr(n) {
				return fmt.Errorf("unknown robot attribute %q", n)
			}
			if _, dup := seen[n]; dup {
				return fmt.Errorf("robot attribute %q listed twice", n)
			}
			seen[n] = struct{}{}
		}
		return nil
	}
	if err := check(exposed); err != nil {
		return nil, err
	}
	if err := check(ownerOnly); err != nil {
		return nil, err
	}
	return &Builder{
		exposed:   append([]string(nil), exposed...),
		ownerOnly: append([]string(nil), ownerOnly...),
	}, nil
}

func (b *Builder) Exposed() []string { return append([]string(nil), b.exposed...) }

// Private lists exposed and owner-only names, in that order.
func (b *Builder) Private() []string {
	out := make([]string, 0, len(b.exposed)+len(b.ownerOnly))
	out = append(out, b.exposed...)
	return append(out, b.ownerOnly...)
}

// Build copies the exposed attributes of every entity into a new GameInfo.
func (b *Builder) Build(entities []*roster.Entity, turn int) *GameInfo {
	g := &GameInfo{
		turn:   turn,
		robots: make(map[board.Loc]Attrs, len(entities)),
		locs:   make([]board.Loc, 0, len(entities)),
	}
	for _, e := range entities {
		g.robots[e.Location()] = Project(e, b.exposed)
		g.locs = append(g.locs, e.Location())
	}
	board.SortLocs(g.locs)
	return g
}

// Project copies the named attributes of e.
func Project(e *roster.Entity, names []string) Attrs {
	out := make(Attrs, len(names))
	for _, n := range names {
		if v, ok := e.Attr(n); ok {
			out[n] = v
		}
	}
	return out
}

// GameInfo is immutable once built.
type GameInfo struct {
	turn   int
	robots map[board.Loc]Attrs
	locs   []board.Loc
}

func (g *GameInfo) Turn() int { return g.turn }
func (g *GameInfo) Len() int  { return len(g.locs) }

// Locations returns occupied locations in row-major order.
func (g *GameInfo) Locations() []board.Loc {
	return append([]board.Loc(nil), g.locs...)
}

func (g *GameInfo) Robot(loc board.Loc) (Attrs, bool) {
	a, ok := g.robots[loc]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Export returns a freshly allocated tree of plain values:
//
//	{"turn": n, "robots": {"x,y": {"location": [x, y], "hp": ..., ...}}}
//
// Every call allocates new maps so a script mutating its copy cannot affect
// another controller's view.
func (g *GameInfo) Export() map[string]any {
	robots := make(map[string]any, len(g.locs))
	for _, loc := range g.locs {
		robots[loc.Key()] = g.robots[loc].Export()
	}
	return map[string]any{
		"turn":   g.turn,
		"robots": robots,
	}
}

type digestRobot struct {
	Loc   [2]int         `json:"loc"`
	Attrs map[string]any `json:"attrs"`
}

// Digest is a stable hash of the view, used to tie log entries to the state
// the controllers saw.
func (g *GameInfo) Digest() string {
	rows := make([]digestRobot, 0, len(g.locs))
	for _, loc := range g.locs {
		rows = append(rows, digestRobot{Loc: [2]int{loc.X, loc.Y}, Attrs: g.robots[loc].Export()})
	}
	// encoding/json sorts map keys, which keeps the encoding stable.
	b, _ := json.Marshal(struct {
		Turn   int           `json:"turn"`
		Robots []digestRobot `json:"robots"`
	}{g.turn, rows})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Names returns the attribute names present on the robot at loc, sorted.
func (g *GameInfo) Names(loc board.Loc) []string {
	a := g.robots[loc]
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
