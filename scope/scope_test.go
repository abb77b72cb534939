package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j45k4/flexscript-go/fsvalue"
)

func TestNamedLookupWalksParentChain(t *testing.T) {
	m := New()
	root := m.CreateScope()
	child := m.CreateChildScope(root)

	require.NoError(t, m.StoreNamed(root, 10, fsvalue.Int(1)))
	v, ok := m.LookupNamed(child, 10)
	require.True(t, ok)
	assert.Equal(t, fsvalue.Int(1), v)
}

func TestAnonymousLookupNeverWalksParent(t *testing.T) {
	m := New()
	root := m.CreateScope()
	child := m.CreateChildScope(root)

	ptr, err := m.StoreAnon(root, fsvalue.Int(5))
	require.NoError(t, err)

	// Re-address the same anonymous var id but rooted at the child scope:
	// invariant 2 says anonymous lookups never walk to the parent.
	_, ok := m.Lookup(fsvalue.Ptr{VarID: ptr.VarID, ScopeID: child})
	assert.False(t, ok)
}

func TestDeleteScopeInvalidatesPointers(t *testing.T) {
	m := New()
	s := m.CreateScope()
	ptr, err := m.StoreAnon(s, fsvalue.Int(1))
	require.NoError(t, err)

	m.DeleteScope(s)
	assert.False(t, m.Alive(s))
	_, ok := m.Lookup(ptr)
	assert.False(t, ok)
}

func TestMoveToRelocatesAndDeletesSource(t *testing.T) {
	m := New()
	caller := m.CreateScope()
	callee := m.CreateChildScope(caller)

	inner, err := m.StoreAnon(callee, fsvalue.Int(9))
	require.NoError(t, err)
	outer, err := m.StoreAnon(callee, fsvalue.ListOf([]fsvalue.Value{fsvalue.PtrVal(inner)}))
	require.NoError(t, err)

	moved, err := m.MoveTo(outer, caller)
	require.NoError(t, err)

	assert.Equal(t, caller, moved.ScopeID)
	movedVal, ok := m.Lookup(moved)
	require.True(t, ok)
	require.Equal(t, fsvalue.KindList, movedVal.Kind())

	innerPtr := movedVal.List()[0].Ptr()
	assert.Equal(t, caller, innerPtr.ScopeID, "nested Ptr must be relocated into the destination scope too")

	_, stillThere := m.Lookup(outer)
	assert.False(t, stillThere, "move_to must delete the source slot")
}

func TestDeepCopyIsStructurallyIndependent(t *testing.T) {
	m := New()
	s := m.CreateScope()
	inner, err := m.StoreAnon(s, fsvalue.Int(1))
	require.NoError(t, err)
	list := fsvalue.ListOf([]fsvalue.Value{fsvalue.PtrVal(inner)})

	copied, err := m.DeepCopy(s, list)
	require.NoError(t, err)

	origPtr := list.List()[0].Ptr()
	copiedPtr := copied.List()[0].Ptr()
	assert.NotEqual(t, origPtr.VarID, copiedPtr.VarID, "deep_copy must not alias the original slot")
}

func TestRemovePushesAnonIDOntoFreeList(t *testing.T) {
	m := New()
	s := m.CreateScope()
	first, err := m.StoreAnon(s, fsvalue.Int(1))
	require.NoError(t, err)
	require.NoError(t, m.Remove(s, first.VarID))

	second, err := m.StoreAnon(s, fsvalue.Int(2))
	require.NoError(t, err)
	assert.Equal(t, first.VarID, second.VarID, "freed anonymous ids should be reused")
}
