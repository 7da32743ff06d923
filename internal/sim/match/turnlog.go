package match

import (
	"errors"
	"strings"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/sandbox"
)

// TurnLogEntry is the durable record of one resolution pass.
type TurnLogEntry struct {
	MatchID   string           `json:"match_id"`
	Turn      int              `json:"turn"`
	Digest    string           `json:"digest"`
	Decisions []DecisionRecord `json:"decisions"`
}

type DecisionRecord struct {
	RobotID  int             `json:"robot_id"`
	Location board.Loc       `json:"location"`
	Action   action.Action   `json:"action"`
	Proposed *action.Action  `json:"proposed,omitempty"`
	Failure  sandbox.Failure `json:"failure,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func entryFor(matchID string, r Resolution) TurnLogEntry {
	e := TurnLogEntry{
		MatchID:   matchID,
		Turn:      r.Turn,
		Digest:    r.Digest,
		Decisions: make([]DecisionRecord, 0, len(r.Decisions)),
	}
	for _, d := range r.Decisions {
		rec := DecisionRecord{
			RobotID:  d.RobotID,
			Location: d.Location,
			Action:   d.Action,
			Proposed: d.Proposed,
			Failure:  d.Failure,
		}
		if d.Err != nil {
			rec.Error = firstLine(d.Err.Error())
		}
		e.Decisions = append(e.Decisions, rec)
	}
	return e
}

// firstLine drops panic stacks from persisted errors.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// TurnLoggers fans one entry out to several loggers.
type TurnLoggers []TurnLogger

func (ls TurnLoggers) WriteTurn(entry TurnLogEntry) error {
	var errs []error
	for _, l := range ls {
		if l == nil {
			continue
		}
		if err := l.WriteTurn(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
