package protocol

import (
	"strings"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/sandbox"
)

// HELLO (editor -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	EditorName      string `json:"editor_name,omitempty"`
}

// EditMsg carries every editor request; which fields are set depends on Type
// and is enforced by the request schema.
type EditMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ID              string `json:"id,omitempty"`

	X       *int   `json:"x,omitempty"`
	Y       *int   `json:"y,omitempty"`
	Owner   string `json:"owner,omitempty"`
	RobotID *int   `json:"robot_id,omitempty"`
	HP      int    `json:"hp,omitempty"`
	Turn    int    `json:"turn,omitempty"`
}

type Robot struct {
	ID       int    `json:"id"`
	Location [2]int `json:"location"`
	HP       int    `json:"hp"`
	Owner    string `json:"owner"`
}

// STATE (server -> editor)
type StateMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReplyTo         string   `json:"reply_to,omitempty"`
	MatchID         string   `json:"match_id"`
	Turn            int      `json:"turn"`
	Size            int      `json:"size"`
	Obstacles       [][2]int `json:"obstacles"`
	Robots          []Robot  `json:"robots"`
}

type DecisionOut struct {
	RobotID  int             `json:"robot_id"`
	Location [2]int          `json:"location"`
	Action   action.Action   `json:"action"`
	Proposed *action.Action  `json:"proposed,omitempty"`
	Failure  sandbox.Failure `json:"failure,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// RESOLVED (server -> editor): the action map of one pass.
type ResolvedMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	ReplyTo         string        `json:"reply_to,omitempty"`
	Turn            int           `json:"turn"`
	Digest          string        `json:"digest"`
	Decisions       []DecisionOut `json:"decisions"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReplyTo         string `json:"reply_to,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewState(m *match.Match, replyTo string) StateMsg {
	msg := StateMsg{
		Type:            TypeState,
		ProtocolVersion: Version,
		ReplyTo:         replyTo,
		MatchID:         m.ID(),
		Turn:            m.Turn(),
		Size:            m.Size(),
		Obstacles:       [][2]int{},
		Robots:          []Robot{},
	}
	for _, o := range m.Obstacles() {
		msg.Obstacles = append(msg.Obstacles, [2]int{o.X, o.Y})
	}
	for _, r := range m.Entities() {
		msg.Robots = append(msg.Robots, Robot{
			ID:       r.ID,
			Location: [2]int{r.Location.X, r.Location.Y},
			HP:       r.HP,
			Owner:    r.Owner.String(),
		})
	}
	return msg
}

func NewResolved(res match.Resolution, replyTo string) ResolvedMsg {
	msg := ResolvedMsg{
		Type:            TypeResolved,
		ProtocolVersion: Version,
		ReplyTo:         replyTo,
		Turn:            res.Turn,
		Digest:          res.Digest,
		Decisions:       make([]DecisionOut, 0, len(res.Decisions)),
	}
	for _, d := range res.Decisions {
		out := DecisionOut{
			RobotID:  d.RobotID,
			Location: [2]int{d.Location.X, d.Location.Y},
			Action:   d.Action,
			Proposed: d.Proposed,
			Failure:  d.Failure,
		}
		if d.Err != nil {
			out.Error = firstLine(d.Err.Error())
		}
		msg.Decisions = append(msg.Decisions, out)
	}
	return msg
}

func NewError(replyTo, code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		ReplyTo:         replyTo,
		Code:            code,
		Message:         message,
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
