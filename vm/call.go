package vm

import (
	"github.com/pkg/errors"

	"github.com/j45k4/flexscript-go/fsvalue"
	"github.com/j45k4/flexscript-go/ident"
)

// execCall implements Call(argc) dispatch (spec.md §4.5).
func (vm *VM) execCall(cs *CallStack, frame *Frame, argc int) error {
	calleeSV, err := frame.Pop()
	if err != nil {
		return err
	}
	args := make([]fsvalue.StackValue, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i], err = frame.Pop()
		if err != nil {
			return err
		}
	}

	switch calleeSV.Kind() {
	case fsvalue.StackFn:
		child := vm.scopes.CreateChildScope(frame.ScopeID)
		callee := newFrame(calleeSV.Block(), child)
		// Seed the new frame so the prelude's in-declaration-order Stores
		// consume the args in left-to-right source order: push them back
		// to front, leaving arg0 on top for the first Store.
		for i := argc - 1; i >= 0; i-- {
			callee.Push(args[i])
		}
		cs.push(callee)
		return nil

	case fsvalue.StackUndefIdent:
		frame.Push(fsvalue.SUndefCall(calleeSV.UndefID(), args))
		return nil

	case fsvalue.StackPropAccess:
		return vm.dispatchBuiltin(frame, calleeSV.Prop(), args)

	default:
		return errors.Wrapf(ErrInvalidCall, "call on a %s", calleeSV.Kind())
	}
}

// dispatchBuiltin implements the push/pop/map builtin methods of spec.md
// §4.5 point 3.
func (vm *VM) dispatchBuiltin(frame *Frame, prop fsvalue.PropAccess, args []fsvalue.StackValue) error {
	owner, ok := vm.scopes.Lookup(prop.Owner)
	if !ok {
		return errors.Wrap(ErrInvalidCall, "builtin method on a dangling Ptr")
	}

	switch prop.Prop {
	case ident.Push:
		if owner.Kind() != fsvalue.KindList {
			return errors.Wrap(ErrInvalidCall, "push on a non-List")
		}
		items := append([]fsvalue.Value{}, owner.List()...)
		for _, a := range args {
			v, err := a.ToValue()
			if err != nil {
				return err
			}
			items = append(items, v)
		}
		return vm.scopes.StoreNamed(prop.Owner.ScopeID, prop.Owner.VarID, fsvalue.ListOf(items))

	case ident.Pop:
		if owner.Kind() != fsvalue.KindList {
			return errors.Wrap(ErrInvalidCall, "pop on a non-List")
		}
		items := owner.List()
		if len(items) == 0 {
			return errors.New("flexscript: pop on an empty List")
		}
		last := items[len(items)-1]
		remaining := append([]fsvalue.Value{}, items[:len(items)-1]...)
		if err := vm.scopes.StoreNamed(prop.Owner.ScopeID, prop.Owner.VarID, fsvalue.ListOf(remaining)); err != nil {
			return err
		}
		frame.Push(fsvalue.FromValue(last))
		return nil

	case ident.Map:
		if owner.Kind() != fsvalue.KindList {
			return errors.Wrap(ErrInvalidCall, "map on a non-List")
		}
		if len(args) != 1 || args[0].Kind() != fsvalue.StackFn {
			return errors.Wrap(ErrInvalidCall, "map requires exactly one Fn argument")
		}
		frame.Builtin = BuiltinState{Kind: BuiltinMap, Map: MapState{
			ListPtr:     prop.Owner,
			LambdaBlock: args[0].Block(),
		}}
		return nil

	default:
		return errors.Wrapf(ErrInvalidCall, "unknown builtin method id %d", prop.Prop)
	}
}

// stepMap advances a frame's in-progress `map` BuiltinState by one turn
// (spec.md §4.5 point 3): either it pushes the next element's lambda
// frame, or — once every element has been processed — it materializes the
// result list and clears the builtin state.
func (vm *VM) stepMap(cs *CallStack, frame *Frame) error {
	ms := &frame.Builtin.Map
	list, ok := vm.scopes.Lookup(ms.ListPtr)
	if !ok {
		return errors.New("flexscript: map's source List was deleted mid-iteration")
	}
	items := list.List()

	if ms.Index >= len(items) {
		resultList := fsvalue.ListOf(append([]fsvalue.Value{}, ms.Results...))
		ptr, err := vm.scopes.StoreAnon(frame.ScopeID, resultList)
		if err != nil {
			return err
		}
		frame.Builtin = BuiltinState{}
		frame.Push(fsvalue.FromValue(fsvalue.PtrVal(ptr)))
		return nil
	}

	elem := items[ms.Index]
	child := vm.scopes.CreateChildScope(frame.ScopeID)
	lambdaFrame := newFrame(ms.LambdaBlock, child)
	lambdaFrame.FromMapStep = true
	// A single-parameter lambda (the only shape spec.md §8 scenario 7
	// exercises) must bind its element, not its index: push index first
	// so it sits underneath, leaving element on top for the lambda's
	// first (and, in the single-param case, only) Store.
	lambdaFrame.Push(fsvalue.SInt(int64(ms.Index)))
	lambdaFrame.Push(fsvalue.FromValue(elem))
	cs.push(lambdaFrame)
	return nil
}

// execRet implements Ret(has_value) (spec.md §4.5 "Return semantics").
// terminal is true once the outermost frame of the stack has returned.
func (vm *VM) execRet(cs *CallStack, frame *Frame, hasValue bool) (res RunResult, terminal bool, err error) {
	var retVal fsvalue.Value
	if hasValue {
		sv, perr := frame.Pop()
		if perr != nil {
			return RunResult{}, false, perr
		}
		retVal, err = sv.ToValue()
		if err != nil {
			return RunResult{}, false, err
		}
	} else {
		retVal = fsvalue.None
	}

	childScope := frame.ScopeID
	fromMapStep := frame.FromMapStep
	if _, err = cs.pop(); err != nil {
		return RunResult{}, false, err
	}

	parent, hasParent := cs.top()
	if hasParent {
		if retVal.Kind() == fsvalue.KindPtr && retVal.Ptr().ScopeID == childScope {
			// Open question 4 (SPEC_FULL.md §9 item 4): move_to runs before
			// the child scope is torn down, so a returned compound survives.
			moved, merr := vm.scopes.MoveTo(retVal.Ptr(), parent.ScopeID)
			if merr != nil {
				return RunResult{}, false, merr
			}
			retVal = fsvalue.PtrVal(moved)
		}
		vm.scopes.DeleteScope(childScope)
	} else if retVal.Kind() != fsvalue.KindPtr || retVal.Ptr().ScopeID != childScope {
		// No caller to move_to into. The returned value doesn't reference
		// this frame's own scope, so it's safe to reclaim (spec.md §8
		// scope invariant: every scope created during the call is either
		// deleted or reachable from the returned value).
		vm.scopes.DeleteScope(childScope)
	}

	if !hasParent {
		if hasValue {
			return valueResult(retVal), true, nil
		}
		return noneResult(), true, nil
	}

	if fromMapStep {
		parent.Builtin.Map.Results = append(parent.Builtin.Map.Results, retVal)
		parent.Builtin.Map.Index++
		return RunResult{}, false, nil
	}
	parent.Push(fsvalue.FromValue(retVal))
	return RunResult{}, false, nil
}
