package protocol

import (
	"errors"

	"rgsim/internal/sim/board"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/roster"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Board/editor layer.
	ErrOutOfBounds   = "E_OUT_OF_BOUNDS"
	ErrObstacle      = "E_OBSTACLE"
	ErrOccupied      = "E_OCCUPIED"
	ErrUnknownEntity = "E_UNKNOWN_ENTITY"
	ErrBusy          = "E_BUSY"
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrOutOfBounds:     {},
	ErrObstacle:        {},
	ErrOccupied:        {},
	ErrUnknownEntity:   {},
	ErrBusy:            {},
	ErrBadRequest:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps an engine error to its wire code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, board.ErrOutOfBounds):
		return ErrOutOfBounds
	case errors.Is(err, roster.ErrObstacleCell):
		return ErrObstacle
	case errors.Is(err, roster.ErrCellOccupied):
		return ErrOccupied
	case errors.Is(err, roster.ErrUnknownEntity):
		return ErrUnknownEntity
	case errors.Is(err, match.ErrResolving), errors.Is(err, match.ErrAlreadyResolving):
		return ErrBusy
	case errors.Is(err, roster.ErrBadHP), errors.Is(err, match.ErrBadTurn), errors.Is(err, roster.ErrBadOwner):
		return ErrBadRequest
	}
	return ErrInternal
}
