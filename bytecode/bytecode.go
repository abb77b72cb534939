// Package bytecode defines Flexscript's linear instruction stream: the
// Opcode set, a fixed-shape Instr, and the append-only Block table that
// the compiler populates and the VM dispatches against.
package bytecode

import "fmt"

// Opcode is one instruction in the instruction set (spec.md §4.4).
type Opcode uint8

const (
	LoadConst Opcode = iota
	Load
	Store
	BinAdd
	BinSub
	BinMul
	BinDiv
	Cmp
	// BinLt/BinLte/BinGt/BinGte/BinNeq resolve open question 1 (SPEC_FULL §9):
	// comparisons beyond equality get their own opcodes rather than being
	// composed from Cmp, so the VM never needs to re-derive ordering from
	// an equality-only primitive.
	BinLt
	BinLte
	BinGt
	BinGte
	BinNeq
	Jump
	JumpIfFalse
	Call
	Ret
	Fn
	MakeArray
	Obj
	MakeIter
	Next
	AccessProp
	Await
)

var names = [...]string{
	LoadConst:   "LoadConst",
	Load:        "Load",
	Store:       "Store",
	BinAdd:      "BinAdd",
	BinSub:      "BinSub",
	BinMul:      "BinMul",
	BinDiv:      "BinDiv",
	Cmp:         "Cmp",
	BinLt:       "BinLt",
	BinLte:      "BinLte",
	BinGt:       "BinGt",
	BinGte:      "BinGte",
	BinNeq:      "BinNeq",
	Jump:        "Jump",
	JumpIfFalse: "JumpIfFalse",
	Call:        "Call",
	Ret:         "Ret",
	Fn:          "Fn",
	MakeArray:   "MakeArray",
	Obj:         "Obj",
	MakeIter:    "MakeIter",
	Next:        "Next",
	AccessProp:  "AccessProp",
	Await:       "Await",
}

func (op Opcode) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// Instr is one decoded instruction: an opcode plus at most one operand, as
// required by the opcode table in spec.md §4.4 (no opcode there needs more
// than one). This is a deliberate simplification of the teacher's
// byte-packed Instr (which multiplexes a Flag selector into the operand
// word) — bytecode persistence is a Flexscript non-goal, so there is no
// pressure to keep instructions byte-addressable; see DESIGN.md.
type Instr struct {
	Op  Opcode
	Arg int64
}

// HasValue is Ret's boolean operand spelled out, since Ret's Arg is 0 or 1.
func (i Instr) HasValue() bool { return i.Arg != 0 }

func (i Instr) String() string {
	switch i.Op {
	case BinAdd, BinSub, BinMul, BinDiv, Cmp, BinLt, BinLte, BinGt, BinGte, BinNeq,
		MakeIter, Next, Await:
		return i.Op.String()
	default:
		return fmt.Sprintf("%s %d", i.Op, i.Arg)
	}
}

// Block is one numbered, immutable instruction sequence. Block 0 is always
// the top-level script (spec.md §3).
type Block []Instr

// Blocks is the append-only block table. BlockID 0 is reserved for the
// top-level script and is always present once any block is appended via
// NewScriptBlock.
type Blocks struct {
	blocks []Block
}

// BlockID indexes into Blocks.
type BlockID int

// NewScriptBlock reserves block 0 for the top-level script and returns its
// id (always 0).
func (b *Blocks) NewScriptBlock() BlockID {
	if len(b.blocks) == 0 {
		b.blocks = append(b.blocks, Block{})
	}
	return 0
}

// Append adds a new, empty block (e.g. for a function literal's body) and
// returns its id.
func (b *Blocks) Append() BlockID {
	b.blocks = append(b.blocks, Block{})
	return BlockID(len(b.blocks) - 1)
}

// Emit appends instr to the given block and returns the index the
// instruction now occupies within that block (useful for back-patching
// jump targets).
func (b *Blocks) Emit(id BlockID, instr Instr) int {
	b.blocks[id] = append(b.blocks[id], instr)
	return len(b.blocks[id]) - 1
}

// Patch overwrites the instruction at position pos within block id. Used
// to back-patch forward jump targets once they're known.
func (b *Blocks) Patch(id BlockID, pos int, instr Instr) {
	b.blocks[id][pos] = instr
}

// Len returns the number of instructions currently in block id.
func (b *Blocks) Len(id BlockID) int {
	return len(b.blocks[id])
}

// Get returns the block for id.
func (b *Blocks) Get(id BlockID) Block {
	return b.blocks[id]
}

// Count returns the number of blocks in the table.
func (b *Blocks) Count() int {
	return len(b.blocks)
}
