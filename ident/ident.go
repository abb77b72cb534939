// Package ident interns identifier strings into small integer ids shared
// by the compiler and the VM.
package ident

import "sync"

// ID is an interned identifier id, or an anonymous scope slot id once it is
// at or above AnonThreshold (see package scope).
type ID uint64

// Reserved ids for built-in method names, occupying the low end of the id
// space as required by the data model (spec.md §3).
const (
	Push ID = iota
	Pop
	Map

	firstUserID
)

var builtinNames = [...]string{
	Push: "push",
	Pop:  "pop",
	Map:  "map",
}

// Table is a process-wide (per compiler+VM pair) identifier interner. The
// zero value is not usable; construct with New.
type Table struct {
	mu      sync.Mutex
	byName  map[string]ID
	byID    []string
	nextIx  ID
}

// New creates a Table pre-seeded with the reserved builtin method names.
func New() *Table {
	t := &Table{
		byName: make(map[string]ID, 16),
		byID:   make([]string, firstUserID, 64),
		nextIx: firstUserID,
	}
	for id, name := range builtinNames {
		t.byName[name] = ID(id)
		t.byID[id] = name
	}
	return t
}

// Intern returns the id for name, assigning a new one in first-seen order
// if this is the first time name is seen.
func (t *Table) Intern(name string) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byName[name]; ok {
		return id
	}
	id := t.nextIx
	t.nextIx++
	t.byName[name] = id
	t.byID = append(t.byID, name)
	return id
}

// Lookup returns the id already assigned to name, if any.
func (t *Table) Lookup(name string) (ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byName[name]
	return id, ok
}

// Name returns the source identifier string for id, for diagnostics. It
// panics if id was never interned by this table.
func (t *Table) Name(id ID) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byID[id]
}

// IsBuiltinMethod reports whether id names one of the reserved built-in
// method ids (push/pop/map).
func IsBuiltinMethod(id ID) bool {
	return id == Push || id == Pop || id == Map
}
