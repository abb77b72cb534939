// Package scope implements Flexscript's scope arena: the hierarchical
// value store that owns every live Value, resolves names by walking the
// parent chain, and lets compounds move across scope boundaries without
// leaving dangling Ptrs behind (spec.md §4.1).
package scope

import (
	"github.com/j45k4/flexscript-go/fsvalue"
	"github.com/j45k4/flexscript-go/ident"
	"github.com/pkg/errors"
)

// AnonThreshold is the boundary above which a var id is an
// anonymous-slot id rather than an interned identifier id (spec.md §3
// invariant 2). It must sit far above any realistic count of interned
// identifiers.
const AnonThreshold ident.ID = 1 << 32

// scopeEntry is one node of the append-only scope arena.
type scopeEntry struct {
	live     bool
	parent   fsvalue.ScopeID
	hasParent bool
	vars     map[ident.ID]fsvalue.Value
	nextAnon ident.ID
	freeList []ident.ID
}

// Manager owns the scope arena (spec.md §3 "Scope").
type Manager struct {
	scopes []scopeEntry
}

// New creates an empty scope manager.
func New() *Manager {
	return &Manager{}
}

// CreateScope creates a new root scope (no parent) and returns its id.
func (m *Manager) CreateScope() fsvalue.ScopeID {
	m.scopes = append(m.scopes, scopeEntry{
		live:     true,
		vars:     make(map[ident.ID]fsvalue.Value),
		nextAnon: AnonThreshold,
	})
	return fsvalue.ScopeID(len(m.scopes) - 1)
}

// CreateChildScope creates a new scope whose parent chain lookup falls
// through to parent.
func (m *Manager) CreateChildScope(parent fsvalue.ScopeID) fsvalue.ScopeID {
	id := m.CreateScope()
	m.scopes[id].parent = parent
	m.scopes[id].hasParent = true
	return id
}

// DeleteScope removes scope id, invalidating every Ptr referencing it
// (spec.md §3 invariant 1).
func (m *Manager) DeleteScope(id fsvalue.ScopeID) {
	m.scopes[id] = scopeEntry{}
}

func (m *Manager) entry(id fsvalue.ScopeID) (*scopeEntry, error) {
	if int(id) < 0 || int(id) >= len(m.scopes) || !m.scopes[id].live {
		return nil, errors.Errorf("scope: scope %d does not exist or was deleted", id)
	}
	return &m.scopes[id], nil
}

// StoreNamed overwrites or creates the named slot var in scope (spec.md
// §4.1 "store_named").
func (m *Manager) StoreNamed(id fsvalue.ScopeID, v ident.ID, val fsvalue.Value) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	e.vars[v] = val
	return nil
}

// StoreAnon allocates a fresh anonymous id in scope and stores val there,
// returning a Ptr to the new slot (spec.md §4.1 "store_anon"). Anonymous
// slots back compound literals (List, Obj, ListIter) per spec.md §3.
func (m *Manager) StoreAnon(id fsvalue.ScopeID, val fsvalue.Value) (fsvalue.Ptr, error) {
	e, err := m.entry(id)
	if err != nil {
		return fsvalue.Ptr{}, err
	}
	var varID ident.ID
	if n := len(e.freeList); n > 0 {
		varID = e.freeList[n-1]
		e.freeList = e.freeList[:n-1]
	} else {
		varID = e.nextAnon
		e.nextAnon++
	}
	e.vars[varID] = val
	return fsvalue.Ptr{VarID: varID, ScopeID: id}, nil
}

// Lookup resolves ptr to its value. Anonymous ids (>= AnonThreshold) are
// only ever searched in their owning scope; named ids walk the parent
// chain until found or the root is reached (spec.md §4.1 "lookup",
// invariant 2).
func (m *Manager) Lookup(ptr fsvalue.Ptr) (fsvalue.Value, bool) {
	cur := ptr.ScopeID
	anon := ptr.VarID >= AnonThreshold
	for {
		e, err := m.entry(cur)
		if err != nil {
			return fsvalue.Value{}, false
		}
		if v, ok := e.vars[ptr.VarID]; ok {
			return v, true
		}
		if anon || !e.hasParent {
			return fsvalue.Value{}, false
		}
		cur = e.parent
	}
}

// LookupNamed resolves a named identifier starting at scope id, walking
// the parent chain. Returns ok=false if not bound anywhere in the chain,
// which the compiler/VM surface as UndefIdent rather than an error
// (spec.md §4.1 "Failure").
func (m *Manager) LookupNamed(id fsvalue.ScopeID, v ident.ID) (fsvalue.Value, bool) {
	return m.Lookup(fsvalue.Ptr{VarID: v, ScopeID: id})
}

// Remove deletes the named slot in scope. If v is an anonymous id, the id
// is pushed onto the scope's free list for reuse (spec.md §4.1 "remove").
func (m *Manager) Remove(id fsvalue.ScopeID, v ident.ID) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	delete(e.vars, v)
	if v >= AnonThreshold {
		e.freeList = append(e.freeList, v)
	}
	return nil
}

// DeepCopy produces a structurally independent value: any inner Ptr is
// followed and cloned rather than shared (spec.md §4.1 "deep_copy").
func (m *Manager) DeepCopy(dstScope fsvalue.ScopeID, v fsvalue.Value) (fsvalue.Value, error) {
	switch v.Kind() {
	case fsvalue.KindPtr:
		target, ok := m.Lookup(v.Ptr())
		if !ok {
			return fsvalue.Value{}, errors.New("scope: deep_copy of a dangling Ptr")
		}
		copied, err := m.DeepCopy(dstScope, target)
		if err != nil {
			return fsvalue.Value{}, err
		}
		p, err := m.StoreAnon(dstScope, copied)
		if err != nil {
			return fsvalue.Value{}, err
		}
		return fsvalue.PtrVal(p), nil
	case fsvalue.KindList:
		items := make([]fsvalue.Value, len(v.List()))
		for i, item := range v.List() {
			cp, err := m.DeepCopy(dstScope, item)
			if err != nil {
				return fsvalue.Value{}, err
			}
			items[i] = cp
		}
		return fsvalue.ListOf(items), nil
	case fsvalue.KindObj:
		src := v.ObjData()
		dst := &fsvalue.ObjData{Name: src.Name, HasName: src.HasName}
		for _, f := range src.Props {
			cp, err := m.DeepCopy(dstScope, f.Value)
			if err != nil {
				return fsvalue.Value{}, err
			}
			dst.Set(f.Name, cp)
		}
		return fsvalue.Obj(dst), nil
	default:
		return v, nil
	}
}

// MoveTo reads the slot ptr points to, recursively relocates any inner
// Ptr into dstScope, deletes the source slot, and stores the rewritten
// value as a fresh anonymous slot of dstScope (spec.md §4.1 "move_to").
// This is how a returned compound value survives its defining scope being
// torn down (spec.md §4.5 return semantics).
func (m *Manager) MoveTo(ptr fsvalue.Ptr, dstScope fsvalue.ScopeID) (fsvalue.Ptr, error) {
	srcEntry, err := m.entry(ptr.ScopeID)
	if err != nil {
		return fsvalue.Ptr{}, err
	}
	val, ok := srcEntry.vars[ptr.VarID]
	if !ok {
		return fsvalue.Ptr{}, errors.Errorf("scope: move_to of unbound var %d in scope %d", ptr.VarID, ptr.ScopeID)
	}
	rewritten, err := m.relocate(val, dstScope)
	if err != nil {
		return fsvalue.Ptr{}, err
	}
	if err := m.Remove(ptr.ScopeID, ptr.VarID); err != nil {
		return fsvalue.Ptr{}, err
	}
	return m.StoreAnon(dstScope, rewritten)
}

// relocate rewrites any Ptr nested within v (at any depth) so that it
// points into dstScope instead of wherever it used to live, recursively
// moving the referenced slots along the way.
func (m *Manager) relocate(v fsvalue.Value, dstScope fsvalue.ScopeID) (fsvalue.Value, error) {
	switch v.Kind() {
	case fsvalue.KindPtr:
		if v.Ptr().ScopeID == dstScope {
			return v, nil
		}
		moved, err := m.MoveTo(v.Ptr(), dstScope)
		if err != nil {
			return fsvalue.Value{}, err
		}
		return fsvalue.PtrVal(moved), nil
	case fsvalue.KindList:
		items := make([]fsvalue.Value, len(v.List()))
		for i, item := range v.List() {
			r, err := m.relocate(item, dstScope)
			if err != nil {
				return fsvalue.Value{}, err
			}
			items[i] = r
		}
		return fsvalue.ListOf(items), nil
	case fsvalue.KindObj:
		src := v.ObjData()
		dst := &fsvalue.ObjData{Name: src.Name, HasName: src.HasName}
		for _, f := range src.Props {
			r, err := m.relocate(f.Value, dstScope)
			if err != nil {
				return fsvalue.Value{}, err
			}
			dst.Set(f.Name, r)
		}
		return fsvalue.Obj(dst), nil
	default:
		return v, nil
	}
}

// Alive reports whether scope id still exists (useful for the scope
// testable invariant in spec.md §8).
func (m *Manager) Alive(id fsvalue.ScopeID) bool {
	return int(id) >= 0 && int(id) < len(m.scopes) && m.scopes[id].live
}

// Snapshot returns a copy of every binding (named and anonymous) currently
// held directly in scope id; parent scopes are not included.
func (m *Manager) Snapshot(id fsvalue.ScopeID) (map[ident.ID]fsvalue.Value, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	out := make(map[ident.ID]fsvalue.Value, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out, nil
}
