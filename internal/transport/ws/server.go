package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	persistlog "rgsim/internal/persistence/log"
	"rgsim/internal/protocol"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/roster"
)

const outQueue = 16

// EditRecorder receives one entry per editor request.
type EditRecorder interface {
	WriteEdit(entry persistlog.EditEntry) error
}

// Server bridges board editors to one match. Every editor sees the same
// match; successful edits are pushed as STATE to all connected editors.
type Server struct {
	match     *match.Match
	log       *log.Logger
	validator *protocol.Validator

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	edits   EditRecorder
}

func NewServer(m *match.Match, v *protocol.Validator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		match:     m,
		log:       logger,
		validator: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // local editor
		},
		clients: map[chan []byte]struct{}{},
	}
}

func (s *Server) SetEditRecorder(r EditRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = r
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := s.register()
		defer s.unregister(out)

		if err := writeJSON(conn, protocol.NewState(s.match, "")); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply, changed := s.handle(ctx, msg)
			send(out, reply)
			if changed {
				s.broadcast(out)
			}
		}
	}
}

func (s *Server) register() chan []byte {
	out := make(chan []byte, outQueue)
	s.mu.Lock()
	s.clients[out] = struct{}{}
	s.mu.Unlock()
	return out
}

func (s *Server) unregister(out chan []byte) {
	s.mu.Lock()
	delete(s.clients, out)
	s.mu.Unlock()
}

// broadcast pushes the current STATE to every editor except skip.
func (s *Server) broadcast(skip chan []byte) {
	state := protocol.NewState(s.match, "")
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if c != skip {
			send(c, state)
		}
	}
}

// send drops the message if the editor is not keeping up.
func send(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

// handle validates and applies one request. changed reports whether the
// match was mutated.
func (s *Server) handle(ctx context.Context, raw []byte) (reply any, changed bool) {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "bad json"), false
	}
	if err := s.validator.Validate(raw); err != nil {
		return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, err.Error()), false
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, "bad protocol_version"), false
	}
	var req protocol.EditMsg
	if err := json.Unmarshal(raw, &req); err != nil {
		return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, err.Error()), false
	}

	reply, changed, err = s.apply(ctx, req)
	s.record(req, raw, err)
	if err != nil {
		if code := protocol.CodeFor(err); code == protocol.ErrInternal {
			s.log.Printf("%s: %v", req.Type, err)
		}
		return protocol.NewError(req.ID, protocol.CodeFor(err), err.Error()), false
	}
	return reply, changed
}

func (s *Server) apply(ctx context.Context, req protocol.EditMsg) (any, bool, error) {
	m := s.match
	switch req.Type {
	case protocol.TypeHello:
		return protocol.NewState(m, req.ID), false, nil

	case protocol.TypeAdd, protocol.TypePlace:
		owner, err := roster.ParseOwner(req.Owner)
		if err != nil {
			return nil, false, err
		}
		loc := board.Loc{X: *req.X, Y: *req.Y}
		if req.Type == protocol.TypeAdd {
			_, err = m.AddEntity(loc, owner)
		} else {
			_, err = m.PlaceEntity(loc, owner)
		}
		if err != nil {
			return nil, false, err
		}

	case protocol.TypeRemove:
		var err error
		if req.RobotID != nil {
			err = m.RemoveEntity(*req.RobotID)
		} else {
			err = m.RemoveAt(board.Loc{X: *req.X, Y: *req.Y})
		}
		if err != nil {
			return nil, false, err
		}

	case protocol.TypeSetHP:
		if err := m.SetHP(*req.RobotID, req.HP); err != nil {
			return nil, false, err
		}

	case protocol.TypeSetTurn:
		if err := m.SetTurn(req.Turn); err != nil {
			return nil, false, err
		}

	case protocol.TypeAdvanceTurn:
		if _, err := m.AdvanceTurn(); err != nil {
			return nil, false, err
		}

	case protocol.TypeResolve:
		res, err := m.ResolveTurn(ctx)
		if err != nil {
			return nil, false, err
		}
		return protocol.NewResolved(res, req.ID), false, nil

	default:
		return nil, false, errors.New("unsupported request " + req.Type)
	}
	return protocol.NewState(m, req.ID), true, nil
}

func (s *Server) record(req protocol.EditMsg, raw []byte, err error) {
	s.mu.Lock()
	rec := s.edits
	s.mu.Unlock()
	if rec == nil || req.Type == protocol.TypeHello {
		return
	}
	e := persistlog.EditEntry{
		MatchID: s.match.ID(),
		Turn:    s.match.Turn(),
		Op:      req.Type,
		Args:    json.RawMessage(raw),
	}
	if err != nil {
		e.Code = protocol.CodeFor(err)
		e.Error = err.Error()
	}
	if werr := rec.WriteEdit(e); werr != nil {
		s.log.Printf("edit log: %v", werr)
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// EditRecorders fans one entry out to several recorders.
type EditRecorders []EditRecorder

func (rs EditRecorders) WriteEdit(e persistlog.EditEntry) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.WriteEdit(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
