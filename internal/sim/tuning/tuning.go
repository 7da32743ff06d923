package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/gameinfo"
)

type Tuning struct {
	BoardSize int `yaml:"board_size" json:"board_size"`
	RobotHP   int `yaml:"robot_hp" json:"robot_hp"`
	MaxHP     int `yaml:"max_hp" json:"max_hp"`
	StartTurn int `yaml:"start_turn" json:"start_turn"`

	ExposedProperties    []string `yaml:"exposed_properties" json:"exposed_properties"`
	PlayerOnlyProperties []string `yaml:"player_only_properties" json:"player_only_properties"`

	FallbackAction string   `yaml:"fallback_action" json:"fallback_action"`
	DecideBudgetMs int      `yaml:"decide_budget_ms" json:"decide_budget_ms"`
	Workers        int      `yaml:"workers" json:"workers"`
	MaxCallStack   int      `yaml:"max_call_stack" json:"max_call_stack"`
	Constraints    []string `yaml:"constraints" json:"constraints,omitempty"`

	CheckInvariants bool `yaml:"check_invariants" json:"check_invariants"`
}

func Defaults() Tuning {
	return Tuning{
		BoardSize:            19,
		RobotHP:              50,
		MaxHP:                50,
		StartTurn:            1,
		ExposedProperties:    []string{"location", "hp", "player_id"},
		PlayerOnlyProperties: []string{"robot_id"},
		FallbackAction:       "guard",
		DecideBudgetMs:       300,
		Workers:              1,
		MaxCallStack:         512,
		CheckInvariants:      true,
	}
}

// Load reads settings.yaml over Defaults(). Keys missing from the file keep
// their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("settings.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("settings.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.BoardSize <= 0 {
		return fmt.Errorf("board_size must be positive")
	}
	if t.MaxHP <= 0 {
		return fmt.Errorf("max_hp must be positive")
	}
	if t.RobotHP < 1 || t.RobotHP > t.MaxHP {
		return fmt.Errorf("robot_hp must be in 1..%d", t.MaxHP)
	}
	if t.StartTurn < 1 {
		return fmt.Errorf("start_turn must be >= 1")
	}
	if t.DecideBudgetMs < 0 {
		return fmt.Errorf("decide_budget_ms must be >= 0")
	}
	if t.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if t.MaxCallStack < 0 {
		return fmt.Errorf("max_call_stack must be >= 0")
	}
	fb, err := t.Fallback()
	if err != nil {
		return fmt.Errorf("fallback_action: %w", err)
	}
	// The fallback must be legal from any cell.
	switch {
	case fb.Target != nil:
		return fmt.Errorf("fallback_action %s must not take a target", fb)
	case fb.Kind != action.KindGuard && fb.Kind != action.KindSuicide:
		return fmt.Errorf("fallback_action %q must be guard or suicide", fb.Kind)
	}
	if _, err := gameinfo.NewBuilder(t.ExposedProperties, t.PlayerOnlyProperties); err != nil {
		return err
	}
	return nil
}

func (t Tuning) Fallback() (action.Action, error) {
	if t.FallbackAction == "" {
		return action.Guard(), nil
	}
	return action.Parse(t.FallbackAction)
}

func (t Tuning) DecideBudget() time.Duration {
	return time.Duration(t.DecideBudgetMs) * time.Millisecond
}
