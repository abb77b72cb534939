// Package vm executes Flexscript bytecode: the call stack, frame
// dispatch loop, built-in methods, and the await suspension protocol
// (spec.md §4.2, §4.4, §4.5, §4.7).
package vm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/j45k4/flexscript-go/bytecode"
	"github.com/j45k4/flexscript-go/compiler"
	"github.com/j45k4/flexscript-go/fsvalue"
	"github.com/j45k4/flexscript-go/ident"
	"github.com/j45k4/flexscript-go/parse"
	"github.com/j45k4/flexscript-go/scope"
)

// VM is the host-facing entry point (spec.md §6 "Host API"). It owns the
// compiler's shared tables (identifiers, constants, blocks), the scope
// arena, and every live call stack.
type VM struct {
	mu sync.Mutex

	comp   *compiler.Compiler
	scopes *scope.Manager
	stacks map[uuid.UUID]*stackEntry
}

// New creates an empty VM (spec.md §6 "new").
func New() *VM {
	return &VM{
		comp:   compiler.New(),
		scopes: scope.New(),
		stacks: make(map[uuid.UUID]*stackEntry),
	}
}

// CompileCode parses and lowers source into the top-level script block,
// returning its id (spec.md §6 "compile_code").
func (vm *VM) CompileCode(source string) (bytecode.BlockID, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	prog, err := parse.Parse(source)
	if err != nil {
		return 0, errors.Wrap(err, "flexscript: parse error")
	}
	blk, err := vm.comp.CompileScript(prog)
	if err != nil {
		return 0, errors.Wrap(err, "flexscript: compile error")
	}
	return blk, nil
}

// RunCode compiles and runs source to completion or its first suspension
// (spec.md §6 "run_code").
func (vm *VM) RunCode(source string) (RunResult, error) {
	blk, err := vm.CompileCode(source)
	if err != nil {
		return RunResult{}, err
	}
	return vm.RunBlk(blk, fsvalue.None)
}

// RunBlk creates a root scope and a root frame on a fresh call stack and
// runs it (spec.md §6 "run_blk"). arg, if not None, is pushed onto the
// root frame's operand stack before execution starts, letting a host seed
// a top-level block with an initial value.
func (vm *VM) RunBlk(block bytecode.BlockID, arg fsvalue.Value) (RunResult, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	rootScope := vm.scopes.CreateScope()
	cs := newCallStack()
	root := newFrame(block, rootScope)
	if arg.Kind() != fsvalue.KindNone {
		root.Push(fsvalue.FromValue(arg))
	}
	cs.push(root)

	return vm.startStack(cs)
}

// Cont resumes a suspended stack, pushing value onto its top frame's
// operand stack before re-entering the execution loop (spec.md §6
// "cont").
func (vm *VM) Cont(stackID uuid.UUID, value fsvalue.Value) (RunResult, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return vm.resumeStack(stackID, value)
}

// GetVal is host introspection into a scope slot (spec.md §6 "get_val").
func (vm *VM) GetVal(scopeID fsvalue.ScopeID, varID ident.ID) (fsvalue.Value, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return vm.scopes.Lookup(fsvalue.Ptr{VarID: varID, ScopeID: scopeID})
}

// Idents exposes the VM's identifier table so a host can intern/resolve
// names the same way the compiler does (e.g. to build a GetVal var_id from
// a source name).
func (vm *VM) Idents() *ident.Table {
	return vm.comp.Idents
}
