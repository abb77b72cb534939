package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j45k4/flexscript-go/ast"
	"github.com/j45k4/flexscript-go/bytecode"
)

func TestCompileLiteralReturn(t *testing.T) {
	c := New()
	prog := &ast.Program{Stmts: []ast.Node{
		&ast.Return{Value: &ast.IntLit{Value: 42}},
	}}
	blk, err := c.CompileScript(prog)
	require.NoError(t, err)
	assert.Equal(t, bytecode.BlockID(0), blk)

	instrs := c.Blocks.Get(blk)
	require.Len(t, instrs, 2)
	assert.Equal(t, bytecode.LoadConst, instrs[0].Op)
	assert.Equal(t, bytecode.Ret, instrs[1].Op)
	assert.Equal(t, int64(1), instrs[1].Arg)
}

func TestCompileBareReturnEmitsRetZero(t *testing.T) {
	c := New()
	prog := &ast.Program{Stmts: []ast.Node{&ast.Return{}}}
	blk, err := c.CompileScript(prog)
	require.NoError(t, err)
	instrs := c.Blocks.Get(blk)
	require.Len(t, instrs, 1)
	assert.Equal(t, bytecode.Ret, instrs[0].Op)
	assert.Equal(t, int64(0), instrs[0].Arg)
}

func TestCompileAssignThenLoad(t *testing.T) {
	c := New()
	prog := &ast.Program{Stmts: []ast.Node{
		&ast.Assign{Name: "x", Value: &ast.IntLit{Value: 1}},
		&ast.Return{Value: &ast.Ident{Name: "x"}},
	}}
	blk, err := c.CompileScript(prog)
	require.NoError(t, err)
	instrs := c.Blocks.Get(blk)
	require.Len(t, instrs, 4)
	assert.Equal(t, bytecode.Store, instrs[1].Op)
	assert.Equal(t, bytecode.Load, instrs[2].Op)
	assert.Equal(t, instrs[1].Arg, instrs[2].Arg, "assign and its later load must share the same interned id")
}

func TestCompileBinOpOrdering(t *testing.T) {
	c := New()
	e := &ast.BinOp{Op: ast.OpSub, Left: &ast.IntLit{Value: 5}, Right: &ast.IntLit{Value: 3}}
	blk := c.Blocks.NewScriptBlock()
	require.NoError(t, c.compileExpr(blk, e))
	instrs := c.Blocks.Get(blk)
	require.Len(t, instrs, 3)
	assert.Equal(t, bytecode.LoadConst, instrs[0].Op)
	assert.Equal(t, bytecode.LoadConst, instrs[1].Op)
	assert.Equal(t, bytecode.BinSub, instrs[2].Op)
	assert.Equal(t, fsvalueInt(c, 0), int64(5))
	assert.Equal(t, fsvalueInt(c, 1), int64(3))
}

func fsvalueInt(c *Compiler, k int) int64 {
	return c.Consts.Get(k).Int()
}

func TestCompileOrderingOperators(t *testing.T) {
	c := New()
	blk := c.Blocks.NewScriptBlock()
	for op, want := range map[ast.BinOpKind]bytecode.Opcode{
		ast.OpLt:  bytecode.BinLt,
		ast.OpLte: bytecode.BinLte,
		ast.OpGt:  bytecode.BinGt,
		ast.OpGte: bytecode.BinGte,
		ast.OpNeq: bytecode.BinNeq,
		ast.OpEq:  bytecode.Cmp,
	} {
		pos := c.Blocks.Len(blk)
		require.NoError(t, c.compileExpr(blk, &ast.BinOp{Op: op, Left: &ast.IntLit{Value: 1}, Right: &ast.IntLit{Value: 2}}))
		instrs := c.Blocks.Get(blk)
		assert.Equal(t, want, instrs[len(instrs)-1].Op, "op %d", op)
		_ = pos
	}
}

func TestCompileIfElseEmitsUnconditionalJumpOverElse(t *testing.T) {
	// SPEC_FULL.md §9 item 6: the compiler must emit a Jump over the else
	// branch so falling out of `then` doesn't also execute `else`.
	c := New()
	s := &ast.If{
		Cond: &ast.BoolLit{Value: true},
		Then: []ast.Node{&ast.Return{Value: &ast.IntLit{Value: 1}}},
		Else: []ast.Node{&ast.Return{Value: &ast.IntLit{Value: 2}}},
	}
	blk := c.Blocks.NewScriptBlock()
	require.NoError(t, c.compileIf(blk, s))
	instrs := c.Blocks.Get(blk)

	var sawJumpBeforeElseRet bool
	for i, instr := range instrs {
		if instr.Op == bytecode.Jump && i+1 < len(instrs) {
			sawJumpBeforeElseRet = true
		}
	}
	assert.True(t, sawJumpBeforeElseRet, "expected an unconditional Jump patched to land after the else block")

	// JumpIfFalse must land exactly on the first else instruction, not
	// fall through into the then-branch's trailing Jump.
	var jumpIfFalse bytecode.Instr
	for _, instr := range instrs {
		if instr.Op == bytecode.JumpIfFalse {
			jumpIfFalse = instr
			break
		}
	}
	elseRetPos := -1
	for i, instr := range instrs {
		if instr.Op == bytecode.Ret && i > 0 && instrs[i-1].Op == bytecode.LoadConst {
			if c.Consts.Get(int(instrs[i-1].Arg)).Int() == 2 {
				elseRetPos = i - 1
			}
		}
	}
	require.NotEqual(t, -1, elseRetPos)
	assert.Equal(t, int64(elseRetPos), jumpIfFalse.Arg)
}

func TestCompileForLoopLowersToIterProtocol(t *testing.T) {
	c := New()
	s := &ast.For{
		VarName:  "a",
		Iterable: &ast.ArrayLit{Items: []ast.Node{&ast.IntLit{Value: 1}}},
		Body:     []ast.Node{&ast.ExprStmt{Expr: &ast.Ident{Name: "a"}}},
	}
	blk := c.Blocks.NewScriptBlock()
	require.NoError(t, c.compileFor(blk, s))
	instrs := c.Blocks.Get(blk)

	var ops []bytecode.Opcode
	for _, instr := range instrs {
		ops = append(ops, instr.Op)
	}
	assert.Contains(t, ops, bytecode.MakeIter)
	assert.Contains(t, ops, bytecode.Next)
	assert.Contains(t, ops, bytecode.JumpIfFalse)
	assert.Contains(t, ops, bytecode.Jump)
}

func TestCompileFuncLitAppendsNewBlock(t *testing.T) {
	c := New()
	c.Blocks.NewScriptBlock()
	fn := &ast.FuncLit{
		Params: []string{"p"},
		Body:   []ast.Node{&ast.Return{Value: &ast.Ident{Name: "p"}}},
	}
	blk := c.Blocks.NewScriptBlock()
	require.NoError(t, c.compileExpr(blk, fn))
	assert.Equal(t, 2, c.Blocks.Count(), "func lit must append a new block distinct from the script block")

	outer := c.Blocks.Get(blk)
	last := outer[len(outer)-1]
	assert.Equal(t, bytecode.Fn, last.Op)

	fnBody := c.Blocks.Get(bytecode.BlockID(last.Arg))
	require.Len(t, fnBody, 3)
	assert.Equal(t, bytecode.Store, fnBody[0].Op)
	assert.Equal(t, bytecode.Load, fnBody[1].Op)
	assert.Equal(t, bytecode.Ret, fnBody[2].Op)
}

func TestCompileAwaitCallEmitsAwaitNotCall(t *testing.T) {
	c := New()
	call := &ast.Call{
		Callee: &ast.Ident{Name: "await"},
		Args:   []ast.Node{&ast.Call{Callee: &ast.Ident{Name: "test"}}},
	}
	blk := c.Blocks.NewScriptBlock()
	require.NoError(t, c.compileExpr(blk, call))
	instrs := c.Blocks.Get(blk)
	last := instrs[len(instrs)-1]
	assert.Equal(t, bytecode.Await, last.Op)
}

func TestCompilePropAccessCallGoesThroughAccessPropThenCall(t *testing.T) {
	c := New()
	call := &ast.Call{
		Callee: &ast.PropAccess{Object: &ast.Ident{Name: "list"}, Prop: "map"},
		Args:   []ast.Node{&ast.FuncLit{Params: []string{"p"}, Body: []ast.Node{&ast.Return{Value: &ast.Ident{Name: "p"}}}}},
	}
	blk := c.Blocks.NewScriptBlock()
	require.NoError(t, c.compileExpr(blk, call))
	instrs := c.Blocks.Get(blk)

	var sawAccessProp, sawCallAfter bool
	for _, instr := range instrs {
		if instr.Op == bytecode.AccessProp {
			sawAccessProp = true
		}
		if instr.Op == bytecode.Call && sawAccessProp {
			sawCallAfter = true
		}
	}
	assert.True(t, sawAccessProp)
	assert.True(t, sawCallAfter)
}

func TestCompileUnsupportedNodeErrors(t *testing.T) {
	c := New()
	blk := c.Blocks.NewScriptBlock()
	// A bare IntLit in statement position (not wrapped in ExprStmt) is not
	// one of the statement kinds compileStmt recognizes.
	err := c.compileStmt(blk, &ast.IntLit{Value: 1})
	assert.ErrorIs(t, err, ErrUnsupportedNode)
}
