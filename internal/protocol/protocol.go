package protocol

import "encoding/json"

const Version = "1.0"

// Message types. Requests flow editor -> server; STATE, RESOLVED and ERROR
// are server replies.
const (
	TypeHello       = "HELLO"
	TypeState       = "STATE"
	TypeAdd         = "ADD"
	TypePlace       = "PLACE"
	TypeRemove      = "REMOVE"
	TypeSetHP       = "SET_HP"
	TypeSetTurn     = "SET_TURN"
	TypeAdvanceTurn = "ADVANCE_TURN"
	TypeResolve     = "RESOLVE"
	TypeResolved    = "RESOLVED"
	TypeError       = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ID              string `json:"id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
