package match

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/roster"
	"rgsim/internal/sim/sandbox"
)

type Decision struct {
	RobotID  int
	Location board.Loc
	Action   action.Action
	// Proposed is what the controller returned when the rules rejected it.
	Proposed *action.Action
	Failure  sandbox.Failure
	Err      error
}

func (d Decision) Failed() bool { return d.Failure != sandbox.FailureNone }

type Resolution struct {
	Turn      int
	Digest    string
	Decisions []Decision
}

// Actions is the id -> action mapping for the pass.
func (r Resolution) Actions() map[int]action.Action {
	out := make(map[int]action.Action, len(r.Decisions))
	for _, d := range r.Decisions {
		out[d.RobotID] = d.Action
	}
	return out
}

func (r Resolution) Failures() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Failed() {
			n++
		}
	}
	return n
}

// ResolveTurn polls every friendly robot once against a single snapshot of
// the current board. Controller failures are contained per robot; the only
// error is ErrAlreadyResolving. The turn counter is left unchanged.
func (m *Match) ResolveTurn(ctx context.Context) (Resolution, error) {
	m.mu.Lock()
	if m.resolving {
		m.mu.Unlock()
		return Resolution{}, ErrAlreadyResolving
	}
	m.resolving = true
	turn := m.turn
	entities := m.registry.Entities()
	factory := m.factory
	r := m.rules
	tl := m.turnLogger
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.resolving = false
		m.mu.Unlock()
	}()

	start := time.Now()
	info := m.builder.Build(entities, turn)

	var friendly []*roster.Entity
	for _, e := range entities {
		if e.Friendly() {
			friendly = append(friendly, e)
		}
	}

	decisions := make([]Decision, len(friendly))
	decide := func(i int) {
		e := friendly[i]
		out := m.invoker.Decide(ctx, e, factory, info, r)
		decisions[i] = Decision{
			RobotID:  e.ID(),
			Location: e.Location(),
			Action:   out.Action,
			Proposed: out.Proposed,
			Failure:  out.Failure,
			Err:      out.Err,
		}
	}

	if m.cfg.Workers <= 1 || len(friendly) <= 1 {
		for i := range friendly {
			decide(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(m.cfg.Workers)
		for i := range friendly {
			i := i
			g.Go(func() error {
				decide(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := Resolution{Turn: turn, Digest: info.Digest(), Decisions: decisions}
	for _, d := range decisions {
		if !d.Failed() {
			continue
		}
		if d.Proposed != nil {
			m.log.Printf("turn %d: robot %d at %s: %s: rejected %s: %v", turn, d.RobotID, d.Location, d.Failure, *d.Proposed, d.Err)
		} else {
			m.log.Printf("turn %d: robot %d at %s: %s: %v", turn, d.RobotID, d.Location, d.Failure, d.Err)
		}
	}
	if tl != nil {
		if err := tl.WriteTurn(entryFor(m.id, res)); err != nil {
			m.log.Printf("turn log: %v", err)
		}
	}
	m.log.Printf("turn %d resolved: robots=%d failures=%d took=%s", turn, len(decisions), res.Failures(), time.Since(start).Round(time.Microsecond))
	return res, nil
}
