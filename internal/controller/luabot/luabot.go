// Package luabot runs robot controllers written in Lua.
//
// A bot script defines a global function act(robot, game) returning an
// action table such as { "move", { x, y } } or { "guard" }.
package luabot

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/Shopify/go-lua"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/gameinfo"
	"rgsim/internal/sim/sandbox"
)

const (
	actName = "act"

	// hookEvery is how many VM instructions run between context checks.
	hookEvery = 1000
	// maxDepth bounds nesting in values returned by act.
	maxDepth = 8
)

// Globals removed from the base library: they reach the filesystem.
var blockedGlobals = []string{"dofile", "loadfile", "require", "collectgarbage"}

type Factory struct {
	name   string
	source string
}

func Load(path string) (*Factory, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(filepath.Base(path), string(src))
}

// New checks that source parses; each controller loads it again into its
// own state.
func New(name, source string) (*Factory, error) {
	l := lua.NewState()
	if err := lua.LoadBuffer(l, source, name, "t"); err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Factory{name: name, source: source}, nil
}

func (f *Factory) Name() string { return f.name }

func (f *Factory) NewController(ctx context.Context) (sandbox.Controller, error) {
	l := newState()
	if err := lua.LoadBuffer(l, f.source, f.name, "t"); err != nil {
		return nil, fmt.Errorf("load %s: %w", f.name, err)
	}
	stop := interruptOn(ctx, l)
	err := l.ProtectedCall(0, 0, 0)
	stop()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", f.name, scriptError(ctx, err))
	}
	l.Global(actName)
	isFn := l.IsFunction(-1)
	l.Pop(1)
	if !isFn {
		return nil, fmt.Errorf("%s: global function %s not defined", f.name, actName)
	}
	return &controller{l: l, attrs: map[string]any{}}, nil
}

func newState() *lua.State {
	l := lua.NewState()
	lua.Require(l, "_G", lua.BaseOpen, true)
	lua.Require(l, "table", lua.TableOpen, true)
	lua.Require(l, "string", lua.StringOpen, true)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(4)
	for _, name := range blockedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}
	return l
}

// interruptOn raises a Lua error at the next count hook once ctx is done.
// The returned func removes the hook.
func interruptOn(ctx context.Context, l *lua.State) func() {
	done := ctx.Done()
	if done == nil {
		return func() {}
	}
	lua.SetDebugHook(l, func(l *lua.State, _ lua.Debug) {
		select {
		case <-done:
			lua.Errorf(l, "interrupted: %s", ctx.Err())
		default:
		}
	}, lua.MaskCount, hookEvery)
	return func() { lua.SetDebugHook(l, nil, 0, 0) }
}

func scriptError(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %v", cerr, err)
	}
	return err
}

type controller struct {
	l     *lua.State
	attrs map[string]any
}

func (c *controller) Set(name string, value any) { c.attrs[name] = value }

func (c *controller) Get(name string) (any, bool) {
	v, ok := c.attrs[name]
	return v, ok
}

func (c *controller) Decide(ctx context.Context, info *gameinfo.GameInfo) (action.Action, error) {
	if err := ctx.Err(); err != nil {
		return action.Action{}, err
	}
	l := c.l
	l.SetTop(0)
	l.Global(actName)
	pushValue(l, gameinfo.Attrs(c.attrs).Export())
	pushValue(l, info.Export())
	stop := interruptOn(ctx, l)
	err := l.ProtectedCall(2, 1, 0)
	stop()
	if err != nil {
		return action.Action{}, fmt.Errorf("%s: %w", actName, scriptError(ctx, err))
	}
	defer l.Pop(1)
	if l.IsNil(-1) {
		return action.Action{}, fmt.Errorf("%w: %s returned nil", action.ErrMalformed, actName)
	}
	v, err := toGo(l, -1, 0)
	if err != nil {
		return action.Action{}, err
	}
	return action.Decode(v)
}

// pushValue pushes a plain Go value (as produced by GameInfo.Export) onto
// the stack. Lists become 1-based sequences.
func pushValue(l *lua.State, v any) {
	switch t := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(t)
	case int:
		l.PushInteger(t)
	case int64:
		l.PushInteger(int(t))
	case float64:
		l.PushNumber(t)
	case string:
		l.PushString(t)
	case []any:
		l.CreateTable(len(t), 0)
		for i, x := range t {
			pushValue(l, x)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		l.CreateTable(0, len(t))
		for _, k := range keys {
			pushValue(l, t[k])
			l.SetField(-2, k)
		}
	default:
		l.PushString(fmt.Sprint(t))
	}
}

func toGo(l *lua.State, index, depth int) (any, error) {
	switch l.TypeOf(index) {
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s, nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		if n == math.Trunc(n) && math.Abs(n) <= math.MaxInt32 {
			return int(n), nil
		}
		return n, nil
	case lua.TypeBoolean:
		return l.ToBoolean(index), nil
	case lua.TypeTable:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w: %s result nested deeper than %d", action.ErrMalformed, actName, maxDepth)
		}
		return tableToGo(l, index, depth+1)
	}
	return nil, nil
}

func tableToGo(l *lua.State, index, depth int) (any, error) {
	index = l.AbsIndex(index)
	isArray := true
	maxIndex, count := 0, 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if idx, ok := l.ToInteger(-2); ok && l.TypeOf(-2) == lua.TypeNumber && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}
	if isArray && count == maxIndex {
		out := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			v, err := toGo(l, -1, depth)
			l.Pop(1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	out := map[string]any{}
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			k, _ := l.ToString(-2)
			v, err := toGo(l, -1, depth)
			if err != nil {
				l.Pop(2)
				return nil, err
			}
			out[k] = v
		}
		l.Pop(1)
	}
	return out, nil
}
