package roster

import (
	"errors"
	"fmt"
	"strings"

	"rgsim/internal/sim/board"
)

var (
	ErrCellOccupied  = errors.New("cell is occupied")
	ErrObstacleCell  = board.ErrObstacleCell
	ErrUnknownEntity = errors.New("unknown entity")
	ErrBadHP         = errors.New("hp out of range")
	ErrInconsistent  = errors.New("roster and board disagree")
	ErrBadOwner      = errors.New("unknown owner")
)

// Owner is the side a robot plays for. The numeric values match the
// player_id attribute seen by controllers.
type Owner int

const (
	Hostile  Owner = 0
	Friendly Owner = 1
)

func (o Owner) String() string {
	if o == Friendly {
		return "friendly"
	}
	return "hostile"
}

func ParseOwner(s string) (Owner, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "friendly", "f", "teammate", "ally", "1":
		return Friendly, nil
	case "hostile", "e", "enemy", "0":
		return Hostile, nil
	}
	return Hostile, fmt.Errorf("%q: %w", s, ErrBadOwner)
}

// Attribute names an Entity can project to controllers.
const (
	AttrLocation = "location"
	AttrHP       = "hp"
	AttrPlayerID = "player_id"
	AttrRobotID  = "robot_id"
	AttrOwner    = "owner"
)

var knownAttrs = map[string]struct{}{
	AttrLocation: {},
	AttrHP:       {},
	AttrPlayerID: {},
	AttrRobotID:  {},
	AttrOwner:    {},
}

func IsKnownAttr(name string) bool {
	_, ok := knownAttrs[name]
	return ok
}

// Entity is one live robot. Its fields are only changed through the
// Registry so board occupancy stays in step with the roster.
type Entity struct {
	id    int
	loc   board.Loc
	hp    int
	owner Owner
}

func (e *Entity) ID() int             { return e.id }
func (e *Entity) Location() board.Loc { return e.loc }
func (e *Entity) HP() int             { return e.hp }
func (e *Entity) Owner() Owner        { return e.owner }
func (e *Entity) Friendly() bool      { return e.owner == Friendly }

func (e *Entity) String() string {
	return fmt.Sprintf("robot %d at %s", e.id, e.loc)
}

// Attr resolves a whitelistable attribute by name. Returned values are
// copies; nothing references back into the entity.
func (e *Entity) Attr(name string) (any, bool) {
	switch name {
	case AttrLocation:
		return e.loc, true
	case AttrHP:
		return e.hp, true
	case AttrPlayerID:
		return int(e.owner), true
	case AttrRobotID:
		return e.id, true
	case AttrOwner:
		return e.owner.String(), true
	}
	return nil, false
}
