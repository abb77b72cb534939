// Package fsvalue holds Flexscript's runtime value representation: the
// tagged Value union that lives in scopes, the StackValue superset that
// lives on a frame's operand stack, and the Ptr handle that ties them
// together (spec.md §3).
package fsvalue

import (
	"fmt"

	"github.com/j45k4/flexscript-go/bytecode"
	"github.com/j45k4/flexscript-go/ident"
	"github.com/pkg/errors"
)

// ScopeID addresses a scope in the scope arena (package scope).
type ScopeID uint64

// Ptr is a stable reference to a variable slot: {var_id, scope_id} from
// spec.md §3.
type Ptr struct {
	VarID   ident.ID
	ScopeID ScopeID
}

// Value is the tagged union of every value that can live in a scope slot
// or the constant pool. Exactly one of the typed fields is meaningful,
// selected by Kind.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindFloat
	KindStr
	KindBool
	KindFn
	KindList
	KindObj
	KindListIter
	KindPtr
	KindUndefIdent
	KindUndefCall
)

// Value is the compound+scalar runtime value (spec.md §3 "Value"). Lists
// and Objs are heap-style: only ever referenced by a Ptr once stored in a
// scope slot, never copied onto a stack (invariant 3).
type Value struct {
	kind Kind

	i    int64
	f    float64
	s    string
	b    bool
	blk  bytecode.BlockID
	list []Value
	obj  *ObjData
	iter ListIter
	ptr  Ptr
	id   ident.ID
	args []Value
}

// ObjData is an object's payload: an optional type name and an ordered
// sequence of (name, Value) fields.
type ObjData struct {
	Name  string
	HasName bool
	Props []Field
}

// Field is one ordered (name, value) pair of an Obj.
type Field struct {
	Name  string
	Value Value
}

// Get returns the value of the named field and whether it was present.
func (o *ObjData) Get(name string) (Value, bool) {
	for _, f := range o.Props {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set overwrites an existing field or appends a new one, preserving
// source order for existing fields.
func (o *ObjData) Set(name string, v Value) {
	for i := range o.Props {
		if o.Props[i].Name == name {
			o.Props[i].Value = v
			return
		}
	}
	o.Props = append(o.Props, Field{Name: name, Value: v})
}

// ListIter is the internal state of a `for` loop's iterator (spec.md §3).
type ListIter struct {
	Index int
	List  Ptr
}

var None = Value{kind: KindNone}

func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Str(s string) Value    { return Value{kind: KindStr, s: s} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Fn(b bytecode.BlockID) Value { return Value{kind: KindFn, blk: b} }
func ListOf(vs []Value) Value     { return Value{kind: KindList, list: vs} }
func Obj(o *ObjData) Value        { return Value{kind: KindObj, obj: o} }
func Iter(it ListIter) Value       { return Value{kind: KindListIter, iter: it} }
func PtrVal(p Ptr) Value           { return Value{kind: KindPtr, ptr: p} }
func UndefIdent(id ident.ID) Value { return Value{kind: KindUndefIdent, id: id} }
func UndefCall(id ident.ID, args []Value) Value {
	return Value{kind: KindUndefCall, id: id, args: args}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string { return v.s }
func (v Value) Bool() bool { return v.b }
func (v Value) Block() bytecode.BlockID { return v.blk }
func (v Value) List() []Value { return v.list }
func (v Value) ObjData() *ObjData { return v.obj }
func (v Value) ListIter() ListIter { return v.iter }
func (v Value) Ptr() Ptr { return v.ptr }
func (v Value) UndefID() ident.ID { return v.id }
func (v Value) UndefArgs() []Value { return v.args }

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "none"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindStr:
		return fmt.Sprintf("%q", v.s)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindFn:
		return fmt.Sprintf("fn(block %d)", v.blk)
	case KindList:
		return fmt.Sprintf("list[%d]", len(v.list))
	case KindObj:
		if v.obj.HasName {
			return fmt.Sprintf("%s{...}", v.obj.Name)
		}
		return "obj{...}"
	case KindListIter:
		return fmt.Sprintf("iter(idx=%d)", v.iter.Index)
	case KindPtr:
		return fmt.Sprintf("ptr(var=%d,scope=%d)", v.ptr.VarID, v.ptr.ScopeID)
	case KindUndefIdent:
		return fmt.Sprintf("undef(%d)", v.id)
	case KindUndefCall:
		return fmt.Sprintf("undefcall(%d,argc=%d)", v.id, len(v.args))
	}
	return "?"
}

// StackKind distinguishes the StackValue variants, a superset of Kind
// minus compounds (which always live in a scope, referenced by Ptr) plus
// the transient PropAccess (spec.md §3).
type StackKind uint8

const (
	StackNone StackKind = iota
	StackInt
	StackFloat
	StackStr
	StackBool
	StackFn
	StackPtr
	StackUndefIdent
	StackUndefCall
	StackPropAccess
)

// PropAccess is a bound-method reference awaiting a Call: {owner, prop}.
type PropAccess struct {
	Owner Ptr
	Prop  ident.ID
}

// StackValue is the operand-stack variant of Value (spec.md §3).
type StackValue struct {
	kind StackKind

	i    int64
	f    float64
	s    string
	b    bool
	blk  bytecode.BlockID
	ptr  Ptr
	id   ident.ID
	args []StackValue
	prop PropAccess
}

func (sv StackValue) Kind() StackKind { return sv.kind }
func (sv StackValue) Int() int64 { return sv.i }
func (sv StackValue) Float() float64 { return sv.f }
func (sv StackValue) Str() string { return sv.s }
func (sv StackValue) Bool() bool { return sv.b }
func (sv StackValue) Block() bytecode.BlockID { return sv.blk }
func (sv StackValue) Ptr() Ptr { return sv.ptr }
func (sv StackValue) UndefID() ident.ID { return sv.id }
func (sv StackValue) UndefArgs() []StackValue { return sv.args }
func (sv StackValue) Prop() PropAccess { return sv.prop }

func SInt(i int64) StackValue     { return StackValue{kind: StackInt, i: i} }
func SFloat(f float64) StackValue { return StackValue{kind: StackFloat, f: f} }
func SStr(s string) StackValue    { return StackValue{kind: StackStr, s: s} }
func SBool(b bool) StackValue     { return StackValue{kind: StackBool, b: b} }
func SFn(b bytecode.BlockID) StackValue { return StackValue{kind: StackFn, blk: b} }
func SPtr(p Ptr) StackValue             { return StackValue{kind: StackPtr, ptr: p} }
func SUndefIdent(id ident.ID) StackValue { return StackValue{kind: StackUndefIdent, id: id} }
func SUndefCall(id ident.ID, args []StackValue) StackValue {
	return StackValue{kind: StackUndefCall, id: id, args: args}
}
func SPropAccess(p PropAccess) StackValue { return StackValue{kind: StackPropAccess, prop: p} }
func SNone() StackValue                    { return StackValue{kind: StackNone} }

func (sv StackValue) String() string {
	switch sv.kind {
	case StackNone:
		return "none"
	case StackInt:
		return fmt.Sprintf("%d", sv.i)
	case StackFloat:
		return fmt.Sprintf("%g", sv.f)
	case StackStr:
		return fmt.Sprintf("%q", sv.s)
	case StackBool:
		return fmt.Sprintf("%t", sv.b)
	case StackFn:
		return fmt.Sprintf("fn(block %d)", sv.blk)
	case StackPtr:
		return fmt.Sprintf("ptr(var=%d,scope=%d)", sv.ptr.VarID, sv.ptr.ScopeID)
	case StackUndefIdent:
		return fmt.Sprintf("undef(%d)", sv.id)
	case StackUndefCall:
		return fmt.Sprintf("undefcall(%d,argc=%d)", sv.id, len(sv.args))
	case StackPropAccess:
		return fmt.Sprintf("propaccess(var=%d,scope=%d,.%d)", sv.prop.Owner.VarID, sv.prop.Owner.ScopeID, sv.prop.Prop)
	}
	return "?"
}

// ToValue converts a StackValue into its scope-stored Value form, per
// spec.md §4.7 ("Await ... converts it to a Value so any
// StackValue::UndefCall becomes a Value::UndefCall").
func (sv StackValue) ToValue() (Value, error) {
	switch sv.kind {
	case StackNone:
		return None, nil
	case StackInt:
		return Int(sv.i), nil
	case StackFloat:
		return Float(sv.f), nil
	case StackStr:
		return Str(sv.s), nil
	case StackBool:
		return Bool(sv.b), nil
	case StackFn:
		return Fn(sv.blk), nil
	case StackPtr:
		return PtrVal(sv.ptr), nil
	case StackUndefIdent:
		return UndefIdent(sv.id), nil
	case StackUndefCall:
		args := make([]Value, len(sv.args))
		for i, a := range sv.args {
			v, err := a.ToValue()
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return UndefCall(sv.id, args), nil
	case StackPropAccess:
		return Value{}, errors.New("cannot convert an unresolved PropAccess to a value")
	}
	return Value{}, errors.Errorf("unknown stack value kind %d", sv.kind)
}

// FromValue lifts a scope-stored Value back onto the operand stack.
func FromValue(v Value) StackValue {
	switch v.kind {
	case KindNone:
		return SNone()
	case KindInt:
		return SInt(v.i)
	case KindFloat:
		return SFloat(v.f)
	case KindStr:
		return SStr(v.s)
	case KindBool:
		return SBool(v.b)
	case KindFn:
		return SFn(v.blk)
	case KindPtr:
		return SPtr(v.ptr)
	case KindUndefIdent:
		return SUndefIdent(v.id)
	case KindUndefCall:
		args := make([]StackValue, len(v.args))
		for i, a := range v.args {
			args[i] = FromValue(a)
		}
		return SUndefCall(v.id, args)
	}
	// Compounds (List, Obj, ListIter) never travel bare on the stack;
	// callers must have already wrapped them in a Ptr (invariant 3).
	panic(fmt.Sprintf("fsvalue: %v cannot be placed on the operand stack directly", v))
}
