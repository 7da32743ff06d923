package match

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/gameinfo"
	"rgsim/internal/sim/maps"
	"rgsim/internal/sim/roster"
	"rgsim/internal/sim/rules"
	"rgsim/internal/sim/sandbox"
	"rgsim/internal/sim/tuning"
)

var (
	ErrAlreadyResolving = errors.New("turn resolution already in progress")
	ErrResolving        = errors.New("board is locked while a turn resolves")
	ErrBadTurn          = errors.New("turn must be >= 1")
)

type Config struct {
	StartTurn int
	RobotHP   int
	MaxHP     int

	Exposed   []string
	OwnerOnly []string

	Fallback    action.Action
	Budget      time.Duration
	Workers     int
	Constraints []string

	CheckInvariants bool
}

// ConfigFromTuning maps settings.yaml onto a match Config.
func ConfigFromTuning(t tuning.Tuning) (Config, error) {
	fb, err := t.Fallback()
	if err != nil {
		return Config{}, err
	}
	return Config{
		StartTurn:       t.StartTurn,
		RobotHP:         t.RobotHP,
		MaxHP:           t.MaxHP,
		Exposed:         t.ExposedProperties,
		OwnerOnly:       t.PlayerOnlyProperties,
		Fallback:        fb,
		Budget:          t.DecideBudget(),
		Workers:         t.Workers,
		Constraints:     t.Constraints,
		CheckInvariants: t.CheckInvariants,
	}, nil
}

type TurnLogger interface {
	WriteTurn(entry TurnLogEntry) error
}

// Match is one arena: board, roster, turn counter and the controller used
// for friendly robots. Editing calls are serialized with each other and are
// refused while a turn is being resolved.
type Match struct {
	id  string
	cfg Config
	log *log.Logger

	mu        sync.Mutex
	resolving bool
	turn      int

	board    *board.Board
	registry *roster.Registry
	builder  *gameinfo.Builder
	invoker  *sandbox.Invoker
	rules    rules.Rules
	factory  sandbox.Factory

	turnLogger TurnLogger
}

func New(cfg Config, m maps.Map, f sandbox.Factory, logger *log.Logger) (*Match, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.StartTurn == 0 {
		cfg.StartTurn = 1
	}
	if cfg.StartTurn < 1 {
		return nil, fmt.Errorf("start turn %d: %w", cfg.StartTurn, ErrBadTurn)
	}
	if cfg.RobotHP == 0 {
		cfg.RobotHP = tuning.Defaults().RobotHP
	}
	if cfg.RobotHP < 1 || (cfg.MaxHP > 0 && cfg.RobotHP > cfg.MaxHP) {
		return nil, fmt.Errorf("robot hp %d (max %d): %w", cfg.RobotHP, cfg.MaxHP, roster.ErrBadHP)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Fallback.Kind == "" {
		cfg.Fallback = action.Guard()
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}
	b, err := m.Board()
	if err != nil {
		return nil, err
	}
	builder, err := gameinfo.NewBuilder(cfg.Exposed, cfg.OwnerOnly)
	if err != nil {
		return nil, err
	}
	r, err := rules.NewConstrained(rules.Basic{Board: b}, cfg.Constraints)
	if err != nil {
		return nil, err
	}
	return &Match{
		id:   uuid.NewString(),
		cfg:  cfg,
		log:  logger,
		turn: cfg.StartTurn,

		board:    b,
		registry: roster.New(b, roster.Options{MaxHP: cfg.MaxHP, CheckInvariants: cfg.CheckInvariants}),
		builder:  builder,
		invoker: &sandbox.Invoker{
			Attrs:    builder.Private(),
			Budget:   cfg.Budget,
			Fallback: cfg.Fallback,
		},
		rules:   r,
		factory: f,
	}, nil
}

func (m *Match) ID() string { return m.id }

func (m *Match) SetTurnLogger(l TurnLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnLogger = l
}

// SetRules replaces the rules engine. Refused while resolving.
func (m *Match) SetRules(r rules.Rules) error {
	return m.edit(func() error {
		m.rules = r
		return nil
	})
}

func (m *Match) SetFactory(f sandbox.Factory) error {
	return m.edit(func() error {
		m.factory = f
		return nil
	})
}

// edit runs fn under the match lock unless a turn is resolving.
func (m *Match) edit(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolving {
		return ErrResolving
	}
	return fn()
}

func (m *Match) read(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}
