package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j45k4/flexscript-go/fsvalue"
)

// Scenario 1 (spec.md §8): return 1 + 1 - 1 -> Value(Int(1)).
func TestScenarioArithmeticReturn(t *testing.T) {
	res, err := New().RunCode(`return 1 + 1 - 1`)
	require.NoError(t, err)
	assert.Equal(t, ResultValue, res.Kind)
	assert.Equal(t, fsvalue.Int(1), res.Value)
}

// Scenario 2: if false { return 1 } -> None.
func TestScenarioFalseIfProducesNone(t *testing.T) {
	res, err := New().RunCode(`if false { return 1 }`)
	require.NoError(t, err)
	assert.Equal(t, ResultNone, res.Kind)
}

// Scenario 3: a closure call result participates in further arithmetic.
func TestScenarioClosureCallThenArithmetic(t *testing.T) {
	src := "a = () => return 1\nb = a()\nb = b + 1\nreturn b"
	res, err := New().RunCode(src)
	require.NoError(t, err)
	assert.Equal(t, ResultValue, res.Kind)
	assert.Equal(t, fsvalue.Int(2), res.Value)
}

// Scenario 4: for-loop accumulation over a list literal.
func TestScenarioForLoopAccumulation(t *testing.T) {
	src := "state = 0\nfor a in [1,2,3] { state = state - a }\nreturn state"
	res, err := New().RunCode(src)
	require.NoError(t, err)
	assert.Equal(t, ResultValue, res.Kind)
	assert.Equal(t, fsvalue.Int(-6), res.Value)
}

// Scenario 5: named instantiation literal.
func TestScenarioNamedInstantiation(t *testing.T) {
	vm := New()
	res, err := vm.RunCode(`return H1 { text: "lol" }`)
	require.NoError(t, err)
	require.Equal(t, ResultValue, res.Kind)
	require.Equal(t, fsvalue.KindPtr, res.Value.Kind())

	obj, ok := vm.scopes.Lookup(res.Value.Ptr())
	require.True(t, ok)
	require.Equal(t, fsvalue.KindObj, obj.Kind())
	assert.Equal(t, "H1", obj.ObjData().Name)
	require.Len(t, obj.ObjData().Props, 1)
	assert.Equal(t, "text", obj.ObjData().Props[0].Name)
	assert.Equal(t, fsvalue.Str("lol"), obj.ObjData().Props[0].Value)
}

// Scenario 6: await suspends with an UndefCall payload, then cont resumes
// with the host-supplied value as if it had simply been pushed.
func TestScenarioAwaitSuspendAndResume(t *testing.T) {
	vm := New()
	res, err := vm.RunCode(`return await(test())`)
	require.NoError(t, err)
	require.Equal(t, ResultAwait, res.Kind)
	require.Equal(t, fsvalue.KindUndefCall, res.Value.Kind())
	assert.Equal(t, "test", vm.Idents().Name(res.Value.UndefID()))
	assert.Empty(t, res.Value.UndefArgs())

	final, err := vm.Cont(res.StackID, fsvalue.Int(7))
	require.NoError(t, err)
	assert.Equal(t, ResultValue, final.Kind)
	assert.Equal(t, fsvalue.Int(7), final.Value)
}

// Scenario 7: map binds the list element (not the index) to a
// single-parameter lambda.
func TestScenarioMapOverList(t *testing.T) {
	vm := New()
	res, err := vm.RunCode(`return [1,2].map(p => return p * 2)`)
	require.NoError(t, err)
	require.Equal(t, ResultValue, res.Kind)
	require.Equal(t, fsvalue.KindPtr, res.Value.Kind())

	list, ok := vm.scopes.Lookup(res.Value.Ptr())
	require.True(t, ok)
	require.Equal(t, fsvalue.KindList, list.Kind())
	items := list.List()
	require.Len(t, items, 2)
	assert.Equal(t, fsvalue.Int(2), items[0])
	assert.Equal(t, fsvalue.Int(4), items[1])
}

// Property: Load after Store at the same scope depth returns the stored
// value.
func TestPropertyLoadAfterStoreSameDepth(t *testing.T) {
	res, err := New().RunCode(`x = 41
x = x + 1
return x`)
	require.NoError(t, err)
	assert.Equal(t, fsvalue.Int(42), res.Value)
}

// Property: MakeArray's resulting list preserves push order.
func TestPropertyMakeArrayPreservesOrder(t *testing.T) {
	vm := New()
	res, err := vm.RunCode(`return [3, 1, 2]`)
	require.NoError(t, err)
	list, ok := vm.scopes.Lookup(res.Value.Ptr())
	require.True(t, ok)
	items := list.List()
	require.Len(t, items, 3)
	assert.Equal(t, []fsvalue.Value{fsvalue.Int(3), fsvalue.Int(1), fsvalue.Int(2)}, items)
}

// Property: after run_blk returns a Value, no scope created during the
// call remains live except what the returned value reaches via Ptr
// chasing — a returned list's backing scope must have survived the
// move_to out of the function's child scope, while the function's own
// activation scope must be gone.
func TestPropertyNoDanglingScopesAfterReturn(t *testing.T) {
	vm := New()
	res, err := vm.RunCode(`f = () => return [1, 2]
return f()`)
	require.NoError(t, err)
	require.Equal(t, fsvalue.KindPtr, res.Value.Kind())

	list, ok := vm.scopes.Lookup(res.Value.Ptr())
	require.True(t, ok, "the returned list must still be reachable")
	assert.Len(t, list.List(), 2)
	// Scope 0 is the root scope; scope 1 is f's activation scope.
	assert.False(t, vm.scopes.Alive(fsvalue.ScopeID(1)), "the function's activation scope must be gone")
}

// Property: suspension round-trip — resuming an Await with v behaves as
// if v had simply been pushed where the Await instruction sat.
func TestPropertySuspensionRoundTrip(t *testing.T) {
	vm := New()
	res, err := vm.RunCode(`x = await(test())
return x + 1`)
	require.NoError(t, err)
	require.Equal(t, ResultAwait, res.Kind)

	final, err := vm.Cont(res.StackID, fsvalue.Int(10))
	require.NoError(t, err)
	assert.Equal(t, ResultValue, final.Kind)
	assert.Equal(t, fsvalue.Int(11), final.Value)
}

// Missing-name Load of an unbound identifier is not an error: it produces
// an UndefIdent rather than failing the run.
func TestMissingNameProducesUndefIdentNotError(t *testing.T) {
	vm := New()
	res, err := vm.RunCode(`return unbound`)
	require.NoError(t, err)
	require.Equal(t, ResultValue, res.Kind)
	assert.Equal(t, fsvalue.KindUndefIdent, res.Value.Kind())
}

// Invalid call target is fatal.
func TestCallOnNonCallableIsFatal(t *testing.T) {
	_, err := New().RunCode(`x = 1
return x()`)
	assert.Error(t, err)
}

// Type mismatch in an arithmetic opcode is fatal.
func TestArithTypeMismatchIsFatal(t *testing.T) {
	_, err := New().RunCode(`return "a" + 1`)
	assert.Error(t, err)
}

// GetVal lets a host introspect a scope slot directly while a stack is
// suspended. A fresh VM's first run_blk always roots its call on scope
// id 0, since the scope arena starts empty.
func TestGetValIntrospectionWhileSuspended(t *testing.T) {
	vm := New()
	res, err := vm.RunCode("x = 99\nawait(test())")
	require.NoError(t, err)
	require.Equal(t, ResultAwait, res.Kind)

	xID, ok := vm.Idents().Lookup("x")
	require.True(t, ok)
	v, ok := vm.GetVal(fsvalue.ScopeID(0), xID)
	require.True(t, ok)
	assert.Equal(t, fsvalue.Int(99), v)
}

// Once a stack runs to completion without returning a value, its root
// scope is reclaimed (spec.md §8 scope invariant): nothing in the
// returned None reaches it, so no state lingers.
func TestNoValueReturnReclaimsRootScope(t *testing.T) {
	vm := New()
	res, err := vm.RunCode(`x = 99`)
	require.NoError(t, err)
	assert.Equal(t, ResultNone, res.Kind)
	assert.False(t, vm.scopes.Alive(fsvalue.ScopeID(0)))
}
