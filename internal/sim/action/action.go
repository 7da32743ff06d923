package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"rgsim/internal/sim/board"
)

var ErrMalformed = errors.New("malformed action")

// Kinds understood by the default rules. The engine itself only knows Guard.
const (
	KindMove    = "move"
	KindAttack  = "attack"
	KindGuard   = "guard"
	KindSuicide = "suicide"
)

// Action is the value a controller returns for its robot. The engine passes
// it to the rules engine without interpreting it.
type Action struct {
	Kind   string
	Target *board.Loc
}

// Guard is the engine fallback: hold position.
func Guard() Action { return Action{Kind: KindGuard} }

func (a Action) Equal(b Action) bool {
	if a.Kind != b.Kind {
		return false
	}
	if (a.Target == nil) != (b.Target == nil) {
		return false
	}
	return a.Target == nil || *a.Target == *b.Target
}

func (a Action) String() string {
	if a.Target == nil {
		return fmt.Sprintf("[%s]", a.Kind)
	}
	return fmt.Sprintf("[%s %d,%d]", a.Kind, a.Target.X, a.Target.Y)
}

func (a Action) MarshalJSON() ([]byte, error) {
	if a.Target == nil {
		return json.Marshal([]any{a.Kind})
	}
	return json.Marshal([]any{a.Kind, [2]int{a.Target.X, a.Target.Y}})
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	v, err := Decode(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Parse reads the short configuration form: "guard", "suicide", "move 1,2".
func Parse(s string) (Action, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return Action{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	a := Action{Kind: strings.ToLower(fields[0])}
	switch len(fields) {
	case 1:
		return a, nil
	case 2:
		var x, y int
		if _, err := fmt.Sscanf(fields[1], "%d,%d", &x, &y); err != nil {
			return Action{}, fmt.Errorf("%w: target %q", ErrMalformed, fields[1])
		}
		a.Target = &board.Loc{X: x, Y: y}
		return a, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrMalformed, s)
}

// Decode converts a value exported from a script runtime into an Action.
// Accepted shapes: ["guard"], ["move", [x, y]], ["attack", {x: .., y: ..}].
func Decode(v any) (Action, error) {
	list, ok := asList(v)
	if !ok {
		return Action{}, fmt.Errorf("%w: expected a list, got %T", ErrMalformed, v)
	}
	if len(list) == 0 || len(list) > 2 {
		return Action{}, fmt.Errorf("%w: expected 1 or 2 elements, got %d", ErrMalformed, len(list))
	}
	kind, ok := list[0].(string)
	if !ok || kind == "" {
		return Action{}, fmt.Errorf("%w: action name must be a string, got %T", ErrMalformed, list[0])
	}
	a := Action{Kind: kind}
	if len(list) == 1 {
		return a, nil
	}
	loc, err := decodeLoc(list[1])
	if err != nil {
		return Action{}, err
	}
	a.Target = &loc
	return a, nil
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func decodeLoc(v any) (board.Loc, error) {
	switch t := v.(type) {
	case board.Loc:
		return t, nil
	case *board.Loc:
		if t != nil {
			return *t, nil
		}
	case [2]int:
		return board.Loc{X: t[0], Y: t[1]}, nil
	case []int:
		if len(t) == 2 {
			return board.Loc{X: t[0], Y: t[1]}, nil
		}
	case []any:
		if len(t) == 2 {
			x, okx := asInt(t[0])
			y, oky := asInt(t[1])
			if okx && oky {
				return board.Loc{X: x, Y: y}, nil
			}
		}
	case map[string]any:
		x, okx := asInt(t["x"])
		y, oky := asInt(t["y"])
		if okx && oky {
			return board.Loc{X: x, Y: y}, nil
		}
	}
	return board.Loc{}, fmt.Errorf("%w: bad target %v", ErrMalformed, v)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
