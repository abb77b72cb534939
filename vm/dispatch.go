package vm

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/j45k4/flexscript-go/bytecode"
	"github.com/j45k4/flexscript-go/fsvalue"
	"github.com/j45k4/flexscript-go/ident"
)

// runLoop drains cs until its outermost frame returns or an Await yields
// through ac (spec.md §5: "one execution loop drains one call stack").
func (vm *VM) runLoop(cs *CallStack, ac *awaitCtx) (RunResult, error) {
	for {
		frame, ok := cs.top()
		if !ok {
			return noneResult(), nil
		}

		if frame.Builtin.Kind == BuiltinMap {
			if err := vm.stepMap(cs, frame); err != nil {
				return RunResult{}, err
			}
			continue
		}

		block := vm.comp.Blocks.Get(frame.Block)
		if frame.PC >= len(block) {
			// Running off the end of a block with no explicit Ret is an
			// implicit Ret(0): scenario 2 of spec.md §8 requires
			// `if false { return 1 }` (no statement after the if) to
			// produce RunResult::None rather than a fatal error.
			res, terminal, err := vm.execRet(cs, frame, false)
			if err != nil {
				return RunResult{}, err
			}
			if terminal {
				return res, nil
			}
			continue
		}
		instr := block[frame.PC]
		frame.PC++

		switch instr.Op {
		case bytecode.LoadConst:
			frame.Push(fsvalue.FromValue(vm.comp.Consts.Get(int(instr.Arg))))

		case bytecode.Load:
			id := ident.ID(instr.Arg)
			if val, ok := vm.scopes.LookupNamed(frame.ScopeID, id); ok {
				frame.Push(fsvalue.FromValue(val))
			} else {
				frame.Push(fsvalue.SUndefIdent(id))
			}

		case bytecode.Store:
			sv, err := frame.Pop()
			if err != nil {
				return RunResult{}, err
			}
			val, err := sv.ToValue()
			if err != nil {
				return RunResult{}, err
			}
			if err := vm.scopes.StoreNamed(frame.ScopeID, ident.ID(instr.Arg), val); err != nil {
				return RunResult{}, err
			}

		case bytecode.BinAdd, bytecode.BinSub, bytecode.BinMul, bytecode.BinDiv:
			a, b, err := vm.popArith(frame)
			if err != nil {
				return RunResult{}, err
			}
			result, err := applyArith(instr.Op, a, b)
			if err != nil {
				return RunResult{}, err
			}
			frame.Push(fsvalue.FromValue(result))

		case bytecode.Cmp:
			a, b, err := vm.popArith(frame)
			if err != nil {
				return RunResult{}, err
			}
			eq, err := fsvalue.Equal(a, b)
			if err != nil {
				return RunResult{}, err
			}
			frame.Push(fsvalue.SBool(eq))

		case bytecode.BinNeq:
			a, b, err := vm.popArith(frame)
			if err != nil {
				return RunResult{}, err
			}
			eq, err := fsvalue.Equal(a, b)
			if err != nil {
				return RunResult{}, err
			}
			frame.Push(fsvalue.SBool(!eq))

		case bytecode.BinLt, bytecode.BinLte, bytecode.BinGt, bytecode.BinGte:
			a, b, err := vm.popArith(frame)
			if err != nil {
				return RunResult{}, err
			}
			cmp, err := fsvalue.Compare(a, b)
			if err != nil {
				return RunResult{}, err
			}
			frame.Push(fsvalue.SBool(compareHolds(instr.Op, cmp)))

		case bytecode.Jump:
			log.WithField("target", instr.Arg).Debug("flexscript: jump")
			frame.PC = int(instr.Arg)

		case bytecode.JumpIfFalse:
			sv, err := frame.Pop()
			if err != nil {
				return RunResult{}, err
			}
			val, err := sv.ToValue()
			if err != nil {
				return RunResult{}, err
			}
			if !fsvalue.Truthy(val, vm.scopes.Lookup) {
				log.WithField("target", instr.Arg).Debug("flexscript: jump-if-false taken")
				frame.PC = int(instr.Arg)
			}

		case bytecode.Call:
			if err := vm.execCall(cs, frame, int(instr.Arg)); err != nil {
				return RunResult{}, err
			}

		case bytecode.Ret:
			res, terminal, err := vm.execRet(cs, frame, instr.HasValue())
			if err != nil {
				return RunResult{}, err
			}
			if terminal {
				return res, nil
			}

		case bytecode.Fn:
			frame.Push(fsvalue.SFn(bytecode.BlockID(instr.Arg)))

		case bytecode.MakeArray:
			if err := vm.execMakeArray(frame, int(instr.Arg)); err != nil {
				return RunResult{}, err
			}

		case bytecode.Obj:
			if err := vm.execObj(frame, int(instr.Arg)); err != nil {
				return RunResult{}, err
			}

		case bytecode.MakeIter:
			if err := vm.execMakeIter(frame); err != nil {
				return RunResult{}, err
			}

		case bytecode.Next:
			if err := vm.execNext(frame); err != nil {
				return RunResult{}, err
			}

		case bytecode.AccessProp:
			if err := vm.execAccessProp(frame, ident.ID(instr.Arg)); err != nil {
				return RunResult{}, err
			}

		case bytecode.Await:
			sv, err := frame.Pop()
			if err != nil {
				return RunResult{}, err
			}
			val, err := sv.ToValue()
			if err != nil {
				return RunResult{}, err
			}
			resumed, err := ac.yield(val)
			if err != nil {
				return RunResult{}, err
			}
			frame.Push(fsvalue.FromValue(resumed))

		default:
			return RunResult{}, errors.Errorf("flexscript: unimplemented opcode %s", instr.Op)
		}
	}
}

// popArith pops b then a (in that order, matching §4.4's "pop b, pop a")
// and converts both to scope Values for an arithmetic/comparison opcode.
func (vm *VM) popArith(frame *Frame) (a, b fsvalue.Value, err error) {
	bsv, err := frame.Pop()
	if err != nil {
		return fsvalue.Value{}, fsvalue.Value{}, err
	}
	asv, err := frame.Pop()
	if err != nil {
		return fsvalue.Value{}, fsvalue.Value{}, err
	}
	a, err = asv.ToValue()
	if err != nil {
		return fsvalue.Value{}, fsvalue.Value{}, err
	}
	b, err = bsv.ToValue()
	if err != nil {
		return fsvalue.Value{}, fsvalue.Value{}, err
	}
	return a, b, nil
}

func applyArith(op bytecode.Opcode, a, b fsvalue.Value) (fsvalue.Value, error) {
	switch op {
	case bytecode.BinAdd:
		return fsvalue.Add(a, b)
	case bytecode.BinSub:
		return fsvalue.Sub(a, b)
	case bytecode.BinMul:
		return fsvalue.Mul(a, b)
	case bytecode.BinDiv:
		return fsvalue.Div(a, b)
	}
	return fsvalue.Value{}, errors.Errorf("flexscript: %s is not an arithmetic opcode", op)
}

// compareHolds resolves open question 1 (SPEC_FULL.md §9 item 1): each
// ordering opcode checks the three-way Compare result against its own
// relation.
func compareHolds(op bytecode.Opcode, cmp int) bool {
	switch op {
	case bytecode.BinLt:
		return cmp < 0
	case bytecode.BinLte:
		return cmp <= 0
	case bytecode.BinGt:
		return cmp > 0
	case bytecode.BinGte:
		return cmp >= 0
	}
	return false
}

func (vm *VM) execMakeArray(frame *Frame, n int) error {
	items := make([]fsvalue.Value, n)
	for i := n - 1; i >= 0; i-- {
		sv, err := frame.Pop()
		if err != nil {
			return err
		}
		v, err := sv.ToValue()
		if err != nil {
			return err
		}
		items[i] = v
	}
	ptr, err := vm.scopes.StoreAnon(frame.ScopeID, fsvalue.ListOf(items))
	if err != nil {
		return err
	}
	frame.Push(fsvalue.FromValue(fsvalue.PtrVal(ptr)))
	return nil
}

func (vm *VM) execObj(frame *Frame, n int) error {
	nameSV, err := frame.Pop()
	if err != nil {
		return err
	}
	nameVal, err := nameSV.ToValue()
	if err != nil {
		return err
	}

	fields := make([]fsvalue.Field, n)
	for i := n - 1; i >= 0; i-- {
		valSV, err := frame.Pop()
		if err != nil {
			return err
		}
		val, err := valSV.ToValue()
		if err != nil {
			return err
		}
		keySV, err := frame.Pop()
		if err != nil {
			return err
		}
		keyVal, err := keySV.ToValue()
		if err != nil {
			return err
		}
		fields[i] = fsvalue.Field{Name: keyVal.Str(), Value: val}
	}

	obj := &fsvalue.ObjData{Props: fields}
	if nameVal.Kind() == fsvalue.KindStr {
		obj.Name = nameVal.Str()
		obj.HasName = true
	}
	ptr, err := vm.scopes.StoreAnon(frame.ScopeID, fsvalue.Obj(obj))
	if err != nil {
		return err
	}
	frame.Push(fsvalue.FromValue(fsvalue.PtrVal(ptr)))
	return nil
}

func (vm *VM) execMakeIter(frame *Frame) error {
	sv, err := frame.Pop()
	if err != nil {
		return err
	}
	val, err := sv.ToValue()
	if err != nil {
		return err
	}
	if val.Kind() != fsvalue.KindPtr {
		return errors.Wrapf(ErrIteratorMisuse, "MakeIter on a %s", sv.Kind())
	}
	iterPtr, err := vm.scopes.StoreAnon(frame.ScopeID, fsvalue.Iter(fsvalue.ListIter{List: val.Ptr()}))
	if err != nil {
		return err
	}
	frame.Push(fsvalue.FromValue(fsvalue.PtrVal(iterPtr)))
	return nil
}

func (vm *VM) execNext(frame *Frame) error {
	sv, err := frame.Peek()
	if err != nil {
		return err
	}
	val, err := sv.ToValue()
	if err != nil {
		return err
	}
	if val.Kind() != fsvalue.KindPtr {
		return errors.Wrap(ErrIteratorMisuse, "Next on a non-Ptr")
	}
	iterVal, ok := vm.scopes.Lookup(val.Ptr())
	if !ok || iterVal.Kind() != fsvalue.KindListIter {
		return errors.Wrap(ErrIteratorMisuse, "Next on a Ptr that is not a ListIter")
	}
	it := iterVal.ListIter()
	listVal, ok := vm.scopes.Lookup(it.List)
	if !ok {
		return errors.New("flexscript: iterator's underlying list was deleted")
	}
	items := listVal.List()
	if it.Index < len(items) {
		elem := items[it.Index]
		updated := fsvalue.Iter(fsvalue.ListIter{Index: it.Index + 1, List: it.List})
		if err := vm.scopes.StoreNamed(val.Ptr().ScopeID, val.Ptr().VarID, updated); err != nil {
			return err
		}
		frame.Push(fsvalue.FromValue(elem))
		return nil
	}
	if _, err := frame.Pop(); err != nil {
		return err
	}
	frame.Push(fsvalue.SNone())
	return nil
}

// execAccessProp implements AccessProp with open question 5's resolution
// (SPEC_FULL.md §9 item 5): builtin method names always produce a
// PropAccess; any other name resolves directly to the field's Value when
// owner is an Obj with a matching field, else falls back to PropAccess.
func (vm *VM) execAccessProp(frame *Frame, prop ident.ID) error {
	sv, err := frame.Pop()
	if err != nil {
		return err
	}
	val, err := sv.ToValue()
	if err != nil {
		return err
	}
	if val.Kind() != fsvalue.KindPtr {
		return errors.Wrapf(ErrInvalidCall, "AccessProp on a %s", sv.Kind())
	}
	owner := val.Ptr()

	if !ident.IsBuiltinMethod(prop) {
		if target, ok := vm.scopes.Lookup(owner); ok && target.Kind() == fsvalue.KindObj {
			if fv, ok := target.ObjData().Get(vm.comp.Idents.Name(prop)); ok {
				frame.Push(fsvalue.FromValue(fv))
				return nil
			}
		}
	}
	frame.Push(fsvalue.SPropAccess(fsvalue.PropAccess{Owner: owner, Prop: prop}))
	return nil
}
