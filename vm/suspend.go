package vm

import (
	"github.com/PuerkitoBio/gocoro"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/j45k4/flexscript-go/fsvalue"
)

// stackEntry bundles a CallStack with the gocoro.Coro that drives it. This
// is the Go port's implementation of spec.md §4.7's suspension protocol:
// rather than hand-rolling a save/resume state machine, each call stack's
// entire frame-dispatch loop runs inside a coroutine from the teacher's
// own gocoro dependency (the same library the teacher uses to drive its
// `for range` built-in's resumable iteration, here generalized to drive
// the whole script-level `Await` primitive instead of one loop
// construct — see SPEC_FULL.md §4.7).
type stackEntry struct {
	cs   *CallStack
	coro gocoro.Coro
}

// yieldSignal is the value a coroutine passes to gocoro.Ctx.Yield when an
// Await instruction executes: it carries the popped argument value that
// the host will see as RunResult.Value.
type yieldSignal struct {
	value fsvalue.Value
}

// coroResult is the value a coroutine function returns (its final,
// non-yielded result) once the outermost frame of its call stack
// finishes: either it produced a value, or it completed without one.
type coroResult struct {
	result RunResult
	err    error
}

// awaitCtx lets the dispatch loop call back into the suspending
// coroutine's Yield without threading gocoro.Ctx through every dispatch
// helper.
type awaitCtx struct {
	ctx gocoro.Ctx
}

// yield suspends the coroutine with value and blocks until the host calls
// Cont, returning the value the host resumed with.
func (a *awaitCtx) yield(value fsvalue.Value) (fsvalue.Value, error) {
	log.WithField("value", value.String()).Debug("flexscript: await suspending")
	resumed, err := a.ctx.Yield(yieldSignal{value: value})
	if err != nil {
		return fsvalue.Value{}, errors.Wrap(err, "flexscript: coroutine yield failed")
	}
	v, ok := resumed.(fsvalue.Value)
	if !ok {
		return fsvalue.Value{}, errors.New("flexscript: host resumed a suspended stack with a non-Value")
	}
	return v, nil
}

// startStack creates a new call stack, seeds its root frame, and starts
// its backing coroutine running the dispatch loop up to its first Await
// or completion.
func (vm *VM) startStack(cs *CallStack) (RunResult, error) {
	entry := &stackEntry{cs: cs, coro: gocoro.NewCoro()}

	// The VM's own mutex (held by the public entry point that called us,
	// per §5) already serializes access to vm.stacks — no internal
	// locking needed here.
	out, err := entry.coro.Start(func(ctx gocoro.Ctx, args ...interface{}) interface{} {
		res, runErr := vm.runLoop(cs, &awaitCtx{ctx: ctx})
		return coroResult{result: res, err: runErr}
	})
	if err != nil {
		return RunResult{}, errors.Wrap(err, "flexscript: failed to start call stack coroutine")
	}

	vm.stacks[cs.ID] = entry
	return vm.interpretCoroOutput(cs.ID, out)
}

// resumeStack pushes value onto the named stack's top frame and re-enters
// its coroutine (spec.md §4.7 "cont").
func (vm *VM) resumeStack(stackID uuid.UUID, value fsvalue.Value) (RunResult, error) {
	entry, ok := vm.stacks[stackID]
	if !ok {
		return RunResult{}, errors.Errorf("flexscript: unknown or already-completed stack id %s", stackID)
	}

	out, err := entry.coro.Resume(value)
	if err != nil {
		if err == gocoro.ErrEndOfCoro {
			return RunResult{}, errors.Errorf("flexscript: stack %s already completed", stackID)
		}
		return RunResult{}, errors.Wrap(err, "flexscript: failed to resume call stack coroutine")
	}
	return vm.interpretCoroOutput(stackID, out)
}

func (vm *VM) interpretCoroOutput(stackID uuid.UUID, out interface{}) (RunResult, error) {
	switch v := out.(type) {
	case yieldSignal:
		return awaitResult(stackID, v.value), nil
	case coroResult:
		delete(vm.stacks, stackID)
		return v.result, v.err
	default:
		return RunResult{}, errors.Errorf("flexscript: unexpected coroutine output %T", out)
	}
}
