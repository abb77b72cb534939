// Package compiler lowers ast.Node trees into Flexscript bytecode: linear
// instruction sequences appended into numbered blocks, with side effects
// on the constant pool and identifier table (spec.md §4.3).
package compiler

import (
	"github.com/j45k4/flexscript-go/ast"
	"github.com/j45k4/flexscript-go/bytecode"
	"github.com/j45k4/flexscript-go/fsvalue"
	"github.com/j45k4/flexscript-go/ident"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedNode is returned for AST node kinds the compiler does not
// (yet) lower — the SQL/XML/struct/enum/range variants spec.md §9 item 2
// leaves unimplemented. Flexscript fails compilation rather than panics.
var ErrUnsupportedNode = errors.New("flexscript: unsupported AST node")

// Consts is the append-only constant pool (spec.md §3).
type Consts struct {
	values []fsvalue.Value
}

// Add appends v and returns its constant pool index.
func (c *Consts) Add(v fsvalue.Value) int {
	c.values = append(c.values, v)
	return len(c.values) - 1
}

// Get returns the constant at index k.
func (c *Consts) Get(k int) fsvalue.Value { return c.values[k] }

// Len returns the number of constants in the pool.
func (c *Consts) Len() int { return len(c.values) }

// Compiler lowers AST nodes into bytecode, sharing an identifier table and
// block/constant tables with the VM that will execute the result (spec.md
// §3 "Ids are stable for the lifetime of the compiler+VM pair").
type Compiler struct {
	Idents *ident.Table
	Consts *Consts
	Blocks *bytecode.Blocks
}

// New creates a Compiler with fresh, linked tables.
func New() *Compiler {
	return &Compiler{
		Idents: ident.New(),
		Consts: &Consts{},
		Blocks: &bytecode.Blocks{},
	}
}

// CompileScript compiles prog into block 0, the top-level script block
// (spec.md §3 "Block 0 is the top-level script").
func (c *Compiler) CompileScript(prog *ast.Program) (bytecode.BlockID, error) {
	blk := c.Blocks.NewScriptBlock()
	if err := c.compileStmts(blk, prog.Stmts); err != nil {
		return 0, err
	}
	return blk, nil
}

func (c *Compiler) compileStmts(blk bytecode.BlockID, stmts []ast.Node) error {
	for _, s := range stmts {
		if err := c.compileStmt(blk, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) emit(blk bytecode.BlockID, op bytecode.Opcode, arg int64) int {
	return c.Blocks.Emit(blk, bytecode.Instr{Op: op, Arg: arg})
}

func (c *Compiler) compileStmt(blk bytecode.BlockID, n ast.Node) error {
	switch s := n.(type) {
	case *ast.Assign:
		if err := c.compileExpr(blk, s.Value); err != nil {
			return err
		}
		id := c.Idents.Intern(s.Name)
		c.emit(blk, bytecode.Store, int64(id))
		return nil

	case *ast.If:
		return c.compileIf(blk, s)

	case *ast.For:
		return c.compileFor(blk, s)

	case *ast.Return:
		if s.Value != nil {
			if err := c.compileExpr(blk, s.Value); err != nil {
				return err
			}
			c.emit(blk, bytecode.Ret, 1)
		} else {
			c.emit(blk, bytecode.Ret, 0)
		}
		return nil

	case *ast.ExprStmt:
		return c.compileExpr(blk, s.Expr)

	default:
		return errors.Wrapf(ErrUnsupportedNode, "statement %T", n)
	}
}

func (c *Compiler) compileIf(blk bytecode.BlockID, s *ast.If) error {
	if err := c.compileExpr(blk, s.Cond); err != nil {
		return err
	}
	jumpIfFalsePos := c.emit(blk, bytecode.JumpIfFalse, -1)

	if err := c.compileStmts(blk, s.Then); err != nil {
		return err
	}

	hasElse := s.ElseIf != nil || s.Else != nil
	var jumpOverElsePos int
	if hasElse {
		// SPEC_FULL.md §9 item 6 / spec.md §9 item 6: emit the
		// unconditional jump over the else branch that the original
		// source omitted.
		jumpOverElsePos = c.emit(blk, bytecode.Jump, -1)
	}

	elseStart := c.Blocks.Len(blk)
	c.Blocks.Patch(blk, jumpIfFalsePos, bytecode.Instr{Op: bytecode.JumpIfFalse, Arg: int64(elseStart)})

	if s.ElseIf != nil {
		if err := c.compileIf(blk, s.ElseIf); err != nil {
			return err
		}
	} else if s.Else != nil {
		if err := c.compileStmts(blk, s.Else); err != nil {
			return err
		}
	}

	if hasElse {
		afterElse := c.Blocks.Len(blk)
		c.Blocks.Patch(blk, jumpOverElsePos, bytecode.Instr{Op: bytecode.Jump, Arg: int64(afterElse)})
	}
	return nil
}

func (c *Compiler) compileFor(blk bytecode.BlockID, s *ast.For) error {
	if err := c.compileExpr(blk, s.Iterable); err != nil {
		return err
	}
	c.emit(blk, bytecode.MakeIter, 0)

	loopStart := c.Blocks.Len(blk)
	c.emit(blk, bytecode.Next, 0)

	varID := c.Idents.Intern(s.VarName)
	c.emit(blk, bytecode.Store, int64(varID))
	c.emit(blk, bytecode.Load, int64(varID))
	exitJumpPos := c.emit(blk, bytecode.JumpIfFalse, -1)

	if err := c.compileStmts(blk, s.Body); err != nil {
		return err
	}
	c.emit(blk, bytecode.Jump, int64(loopStart))

	exitPos := c.Blocks.Len(blk)
	c.Blocks.Patch(blk, exitJumpPos, bytecode.Instr{Op: bytecode.JumpIfFalse, Arg: int64(exitPos)})
	return nil
}

func (c *Compiler) compileExpr(blk bytecode.BlockID, n ast.Node) error {
	switch e := n.(type) {
	case *ast.IntLit:
		k := c.Consts.Add(fsvalue.Int(e.Value))
		c.emit(blk, bytecode.LoadConst, int64(k))
		return nil

	case *ast.FloatLit:
		k := c.Consts.Add(fsvalue.Float(e.Value))
		c.emit(blk, bytecode.LoadConst, int64(k))
		return nil

	case *ast.StrLit:
		k := c.Consts.Add(fsvalue.Str(e.Value))
		c.emit(blk, bytecode.LoadConst, int64(k))
		return nil

	case *ast.BoolLit:
		k := c.Consts.Add(fsvalue.Bool(e.Value))
		c.emit(blk, bytecode.LoadConst, int64(k))
		return nil

	case *ast.Ident:
		id := c.Idents.Intern(e.Name)
		c.emit(blk, bytecode.Load, int64(id))
		return nil

	case *ast.BinOp:
		return c.compileBinOp(blk, e)

	case *ast.ArrayLit:
		for _, item := range e.Items {
			if err := c.compileExpr(blk, item); err != nil {
				return err
			}
		}
		c.emit(blk, bytecode.MakeArray, int64(len(e.Items)))
		return nil

	case *ast.ObjectLit:
		return c.compileObjectLit(blk, e)

	case *ast.PropAccess:
		if err := c.compileExpr(blk, e.Object); err != nil {
			return err
		}
		id := c.Idents.Intern(e.Prop)
		c.emit(blk, bytecode.AccessProp, int64(id))
		return nil

	case *ast.FuncLit:
		return c.compileFuncLit(blk, e)

	case *ast.Call:
		return c.compileCall(blk, e)

	default:
		return errors.Wrapf(ErrUnsupportedNode, "expression %T", n)
	}
}

var binOpcode = map[ast.BinOpKind]bytecode.Opcode{
	ast.OpAdd: bytecode.BinAdd,
	ast.OpSub: bytecode.BinSub,
	ast.OpMul: bytecode.BinMul,
	ast.OpDiv: bytecode.BinDiv,
	ast.OpEq:  bytecode.Cmp,
	ast.OpLt:  bytecode.BinLt,
	ast.OpLte: bytecode.BinLte,
	ast.OpGt:  bytecode.BinGt,
	ast.OpGte: bytecode.BinGte,
	ast.OpNeq: bytecode.BinNeq,
}

func (c *Compiler) compileBinOp(blk bytecode.BlockID, e *ast.BinOp) error {
	if err := c.compileExpr(blk, e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(blk, e.Right); err != nil {
		return err
	}
	op, ok := binOpcode[e.Op]
	if !ok {
		return errors.Errorf("compiler: unknown binary operator %d", e.Op)
	}
	c.emit(blk, op, 0)
	return nil
}

func (c *Compiler) compileObjectLit(blk bytecode.BlockID, e *ast.ObjectLit) error {
	for _, f := range e.Fields {
		k := c.Consts.Add(fsvalue.Str(f.Key))
		c.emit(blk, bytecode.LoadConst, int64(k))
		if err := c.compileExpr(blk, f.Value); err != nil {
			return err
		}
	}
	if e.Name != "" {
		k := c.Consts.Add(fsvalue.Str(e.Name))
		c.emit(blk, bytecode.LoadConst, int64(k))
	} else {
		k := c.Consts.Add(fsvalue.None)
		c.emit(blk, bytecode.LoadConst, int64(k))
	}
	c.emit(blk, bytecode.Obj, int64(len(e.Fields)))
	return nil
}

func (c *Compiler) compileFuncLit(blk bytecode.BlockID, e *ast.FuncLit) error {
	fnBlk := c.Blocks.Append()
	for _, param := range e.Params {
		id := c.Idents.Intern(param)
		c.emit(fnBlk, bytecode.Store, int64(id))
	}
	if err := c.compileStmts(fnBlk, e.Body); err != nil {
		return err
	}
	log.WithFields(log.Fields{"block": fnBlk, "params": len(e.Params)}).Debug("compiled function literal")
	c.emit(blk, bytecode.Fn, int64(fnBlk))
	return nil
}

func (c *Compiler) compileCall(blk bytecode.BlockID, e *ast.Call) error {
	if callee, ok := e.Callee.(*ast.Ident); ok && callee.Name == "await" {
		if len(e.Args) != 1 {
			return errors.New("compiler: await takes exactly one argument")
		}
		if err := c.compileExpr(blk, e.Args[0]); err != nil {
			return err
		}
		c.emit(blk, bytecode.Await, 0)
		return nil
	}
	for _, arg := range e.Args {
		if err := c.compileExpr(blk, arg); err != nil {
			return err
		}
	}
	if err := c.compileExpr(blk, e.Callee); err != nil {
		return err
	}
	c.emit(blk, bytecode.Call, int64(len(e.Args)))
	return nil
}
