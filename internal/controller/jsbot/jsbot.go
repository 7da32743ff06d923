// Package jsbot runs robot controllers written in JavaScript.
//
// A bot script defines a global Robot constructor:
//
//	function Robot() {}
//	Robot.prototype.act = function (game) {
//	  return ["move", [this.location[0] + 1, this.location[1]]];
//	};
//
// Every controller gets its own goja runtime, so state left behind by one
// decision is never visible to the next.
package jsbot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/gameinfo"
	"rgsim/internal/sim/sandbox"
)

const (
	ctorName = "Robot"
	actName  = "act"
)

type Options struct {
	// MaxCallStack caps script recursion depth; zero keeps goja's default.
	MaxCallStack int
	// Logger receives console.log output. Nil discards it.
	Logger *log.Logger
}

// Factory holds one compiled bot script.
type Factory struct {
	name    string
	program *goja.Program
	opts    Options
}

func Load(path string, opts Options) (*Factory, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(filepath.Base(path), string(src), opts)
}

func New(name, source string, opts Options) (*Factory, error) {
	prg, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Factory{name: name, program: prg, opts: opts}, nil
}

func (f *Factory) Name() string { return f.name }

// NewController builds a fresh runtime, runs the script and constructs one
// Robot instance.
func (f *Factory) NewController(ctx context.Context) (sandbox.Controller, error) {
	vm := goja.New()
	if f.opts.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(f.opts.MaxCallStack)
	}
	f.installConsole(vm)

	stop := watch(ctx, vm)
	defer stop()

	if _, err := vm.RunProgram(f.program); err != nil {
		return nil, scriptError(ctx, "run "+f.name, err)
	}
	ctor, ok := goja.AssertConstructor(vm.Get(ctorName))
	if !ok {
		return nil, fmt.Errorf("%s: global %s constructor not defined", f.name, ctorName)
	}
	obj, err := ctor(nil)
	if err != nil {
		return nil, scriptError(ctx, "new "+ctorName, err)
	}
	return &controller{vm: vm, robot: obj}, nil
}

func (f *Factory) installConsole(vm *goja.Runtime) {
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		f.opts.Logger.Printf("%s: %s", f.name, strings.Join(parts, " "))
		return goja.Undefined()
	})
	vm.Set("console", console)
}

type controller struct {
	vm    *goja.Runtime
	robot *goja.Object
}

func (c *controller) Set(name string, value any) {
	_ = c.robot.Set(name, c.vm.ToValue(gameinfo.ExportValue(value)))
}

func (c *controller) Get(name string) (any, bool) {
	v := c.robot.Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return v.Export(), true
}

func (c *controller) Decide(ctx context.Context, info *gameinfo.GameInfo) (action.Action, error) {
	act, ok := goja.AssertFunction(c.robot.Get(actName))
	if !ok {
		return action.Action{}, fmt.Errorf("robot has no %s method", actName)
	}

	stop := watch(ctx, c.vm)
	defer stop()

	res, err := act(c.robot, c.vm.ToValue(info.Export()))
	if err != nil {
		return action.Action{}, scriptError(ctx, actName, err)
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return action.Action{}, fmt.Errorf("%w: %s returned nothing", action.ErrMalformed, actName)
	}
	return action.Decode(res.Export())
}

// watch interrupts vm once ctx is done. The returned func stops watching.
func watch(ctx context.Context, vm *goja.Runtime) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() { close(done) }
}

func scriptError(ctx context.Context, what string, err error) error {
	if _, ok := err.(*goja.InterruptedError); ok && ctx.Err() != nil {
		return fmt.Errorf("%s interrupted: %w", what, ctx.Err())
	}
	return fmt.Errorf("%s: %w", what, err)
}
