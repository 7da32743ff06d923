// Package sandbox obtains decisions from untrusted robot controllers.
//
// Each decision runs against a fresh controller that only ever sees copies:
// the robot's whitelisted attributes and the shared read-only GameInfo.
// Whatever the controller does (return garbage, fail, panic, or run past its
// budget) is turned into an Outcome carrying the engine fallback action;
// Decide never returns an error and never panics.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/gameinfo"
	"rgsim/internal/sim/roster"
	"rgsim/internal/sim/rules"
)

// Controller is the untrusted decision unit for one robot and one decision.
type Controller interface {
	Set(name string, value any)
	Get(name string) (any, bool)
	Decide(ctx context.Context, info *gameinfo.GameInfo) (action.Action, error)
}

// Factory produces a brand-new Controller for every decision.
type Factory interface {
	NewController(ctx context.Context) (Controller, error)
}

type FactoryFunc func(ctx context.Context) (Controller, error)

func (f FactoryFunc) NewController(ctx context.Context) (Controller, error) { return f(ctx) }

type Failure string

const (
	FailureNone      Failure = ""
	FailureFactory   Failure = "factory"
	FailureError     Failure = "error"
	FailurePanic     Failure = "panic"
	FailureMalformed Failure = "malformed"
	FailureBudget    Failure = "budget"
	FailureInvalid   Failure = "invalid"
)

var (
	ErrBudgetExceeded = errors.New("decision budget exceeded")
	ErrInvalidAction  = errors.New("invalid action")
)

// Outcome is the result of one invocation. When Failure is set, Action holds
// the fallback and Proposed (if any) what the controller returned.
type Outcome struct {
	Action   action.Action
	Proposed *action.Action
	Failure  Failure
	Err      error
}

func (o Outcome) Failed() bool { return o.Failure != FailureNone }

type Invoker struct {
	// Attrs are copied from the live robot onto each controller.
	Attrs []string
	// Budget bounds one invocation; zero disables the limit.
	Budget   time.Duration
	Fallback action.Action
}

func (inv *Invoker) fallback() action.Action {
	if inv.Fallback.Kind == "" {
		return action.Guard()
	}
	return inv.Fallback
}

// Decide polls one robot's controller. It always returns a usable action.
func (inv *Invoker) Decide(ctx context.Context, e *roster.Entity, f Factory, info *gameinfo.GameInfo, r rules.Rules) Outcome {
	out := inv.invoke(ctx, e, f, info)
	if !out.Failed() {
		out = validate(e, out.Action, r)
	}
	if out.Failed() {
		out.Action = inv.fallback()
	}
	return out
}

type result struct {
	act action.Action
	out Outcome
}

func (inv *Invoker) invoke(ctx context.Context, e *roster.Entity, f Factory, info *gameinfo.GameInfo) Outcome {
	if f == nil {
		return Outcome{Failure: FailureFactory, Err: errors.New("no controller factory")}
	}
	attrs := gameinfo.Project(e, inv.Attrs)

	if inv.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Budget)
		defer cancel()
	}

	done := make(chan result, 1)
	go func() {
		done <- run(ctx, f, attrs, info)
	}()

	select {
	case res := <-done:
		if res.out.Failed() {
			return res.out
		}
		return Outcome{Action: res.act}
	case <-ctx.Done():
		// A controller that ignores its context is abandoned; its goroutine
		// can only write into the buffered channel.
		err := ctx.Err()
		if !errors.Is(err, context.DeadlineExceeded) {
			return Outcome{Failure: FailureError, Err: err}
		}
		return Outcome{Failure: FailureBudget, Err: fmt.Errorf("%w after %s", ErrBudgetExceeded, inv.Budget)}
	}
}

func run(ctx context.Context, f Factory, attrs gameinfo.Attrs, info *gameinfo.GameInfo) (res result) {
	defer func() {
		if p := recover(); p != nil {
			res = result{out: Outcome{Failure: FailurePanic, Err: fmt.Errorf("panic: %v\n%s", p, debug.Stack())}}
		}
	}()

	c, err := f.NewController(ctx)
	if err != nil {
		return result{out: Outcome{Failure: FailureFactory, Err: err}}
	}
	if c == nil {
		return result{out: Outcome{Failure: FailureFactory, Err: errors.New("factory returned nil controller")}}
	}
	for name, v := range attrs {
		c.Set(name, v)
	}
	act, err := c.Decide(ctx, info)
	if err != nil {
		return result{out: Outcome{Failure: classify(ctx, err), Err: err}}
	}
	return result{act: act}
}

func classify(ctx context.Context, err error) Failure {
	switch {
	case errors.Is(err, action.ErrMalformed):
		return FailureMalformed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrBudgetExceeded):
		return FailureBudget
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return FailureBudget
	}
	return FailureError
}

func validate(e *roster.Entity, a action.Action, r rules.Rules) (out Outcome) {
	proposed := a
	defer func() {
		if p := recover(); p != nil {
			out = Outcome{Proposed: &proposed, Failure: FailureInvalid, Err: fmt.Errorf("rules panicked on %s: %v", a, p)}
		}
	}()
	if r != nil && !r.IsValidAction(e, a) {
		return Outcome{Proposed: &proposed, Failure: FailureInvalid, Err: fmt.Errorf("%w %s from %s", ErrInvalidAction, a, e.Location())}
	}
	return Outcome{Action: a}
}
