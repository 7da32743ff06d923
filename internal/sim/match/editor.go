package match

import (
	"fmt"

	"rgsim/internal/sim/board"
	"rgsim/internal/sim/roster"
)

// RobotView is a detached copy of a robot's state for editors and reports.
type RobotView struct {
	ID       int          `json:"id"`
	Location board.Loc    `json:"location"`
	HP       int          `json:"hp"`
	Owner    roster.Owner `json:"owner"`
}

func viewOf(e *roster.Entity) RobotView {
	return RobotView{ID: e.ID(), Location: e.Location(), HP: e.HP(), Owner: e.Owner()}
}

// AddEntity places a new robot with the configured starting hp.
func (m *Match) AddEntity(loc board.Loc, owner roster.Owner) (RobotView, error) {
	var v RobotView
	err := m.edit(func() error {
		e, err := m.registry.Add(loc, owner, m.cfg.RobotHP)
		if err != nil {
			return err
		}
		v = viewOf(e)
		return nil
	})
	return v, err
}

// PlaceEntity adds a robot at loc, first removing whatever robot is there.
func (m *Match) PlaceEntity(loc board.Loc, owner roster.Owner) (RobotView, error) {
	var v RobotView
	err := m.edit(func() error {
		old, ok, err := m.registry.At(loc)
		if err != nil {
			return err
		}
		if obstacle, _ := m.board.IsObstacle(loc); obstacle {
			return fmt.Errorf("%s: %w", loc, roster.ErrObstacleCell)
		}
		if ok {
			if err := m.registry.Remove(old.ID()); err != nil {
				return err
			}
		}
		e, err := m.registry.Add(loc, owner, m.cfg.RobotHP)
		if err != nil {
			return err
		}
		v = viewOf(e)
		return nil
	})
	return v, err
}

func (m *Match) RemoveEntity(id int) error {
	return m.edit(func() error { return m.registry.Remove(id) })
}

// RemoveAt removes the robot on loc.
func (m *Match) RemoveAt(loc board.Loc) error {
	return m.edit(func() error {
		e, ok, err := m.registry.At(loc)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no robot at %s: %w", loc, roster.ErrUnknownEntity)
		}
		return m.registry.Remove(e.ID())
	})
}

func (m *Match) SetHP(id, hp int) error {
	return m.edit(func() error { return m.registry.SetHP(id, hp) })
}

func (m *Match) MoveEntity(id int, to board.Loc) error {
	return m.edit(func() error { return m.registry.Move(id, to) })
}

func (m *Match) SetTurn(n int) error {
	if n < 1 {
		return fmt.Errorf("turn %d: %w", n, ErrBadTurn)
	}
	return m.edit(func() error {
		m.turn = n
		return nil
	})
}

// AdvanceTurn increments the turn counter and returns the new value.
func (m *Match) AdvanceTurn() (int, error) {
	var n int
	err := m.edit(func() error {
		m.turn++
		n = m.turn
		return nil
	})
	return n, err
}

func (m *Match) Turn() int {
	var n int
	m.read(func() { n = m.turn })
	return n
}

func (m *Match) Size() int { return m.board.Size() }

func (m *Match) IsObstacle(loc board.Loc) (bool, error) { return m.board.IsObstacle(loc) }

func (m *Match) Obstacles() []board.Loc { return m.board.Obstacles() }

func (m *Match) EntityAt(loc board.Loc) (RobotView, bool, error) {
	var (
		v   RobotView
		ok  bool
		err error
	)
	m.read(func() {
		var e *roster.Entity
		e, ok, err = m.registry.At(loc)
		if ok {
			v = viewOf(e)
		}
	})
	return v, ok, err
}

// Entities lists robots in roster order.
func (m *Match) Entities() []RobotView {
	var out []RobotView
	m.read(func() {
		for _, e := range m.registry.Entities() {
			out = append(out, viewOf(e))
		}
	})
	return out
}

// Check verifies board/roster consistency.
func (m *Match) Check() error {
	var err error
	m.read(func() { err = m.registry.Check() })
	return err
}
