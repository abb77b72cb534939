// Command flexscript is Flexscript's CLI front-end: a thin, out-of-core
// shell (spec.md §1, §6) around the parse/compiler/vm packages.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/j45k4/flexscript-go/ast"
	"github.com/j45k4/flexscript-go/bytecode"
	"github.com/j45k4/flexscript-go/compiler"
	"github.com/j45k4/flexscript-go/parse"
	"github.com/j45k4/flexscript-go/vm"
)

func main() {
	app := &cli.App{
		Name:  "flexscript",
		Usage: "compiler and VM front-end for Flexscript scripts",
		Commands: []*cli.Command{
			rawastCmd,
			astCmd,
			runCmd,
			dumpCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("flexscript: %v", err))
		os.Exit(1)
	}
}

func readSource(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit("expected a single script path argument", 2)
	}
	b, err := os.ReadFile(c.Args().First())
	if err != nil {
		return "", cli.Exit(err, 1)
	}
	return string(b), nil
}

var rawastCmd = &cli.Command{
	Name:      "rawast",
	Usage:     "print the raw token stream",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		src, err := readSource(c)
		if err != nil {
			return err
		}
		lx := parse.NewLexer(src)
		for {
			tok, err := lx.Next()
			if err != nil {
				return cli.Exit(err, 1)
			}
			fmt.Println(tok.String())
			if tok.Kind == parse.TokEOF {
				return nil
			}
		}
	},
}

var astCmd = &cli.Command{
	Name:      "ast",
	Usage:     "print the structured AST",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		src, err := readSource(c)
		if err != nil {
			return err
		}
		prog, err := parse.Parse(src)
		if err != nil {
			return cli.Exit(err, 1)
		}
		for _, s := range prog.Stmts {
			printNode(s, 0)
		}
		return nil
	},
}

var runCmd = &cli.Command{
	Name:      "run",
	Usage:     "compile and run a script to completion",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		src, err := readSource(c)
		if err != nil {
			return err
		}
		machine := vm.New()
		res, err := machine.RunCode(src)
		if err != nil {
			return cli.Exit(err, 1)
		}
		switch res.Kind {
		case vm.ResultValue:
			fmt.Println(res.Value.String())
		case vm.ResultNone:
			fmt.Println("none")
		case vm.ResultAwait:
			// A bare CLI run has no host-side effect handler to resolve
			// an UndefCall, so a suspension here is the end of the road
			// for `run` — report it rather than hang.
			fmt.Fprintln(os.Stderr, color.YellowString(
				"script suspended on await (stack %s): %s", res.StackID, res.Value.String()))
			return cli.Exit("unresolved await", 1)
		}
		return nil
	},
}

var dumpCmd = &cli.Command{
	Name:      "dump",
	Usage:     "compile and print disassembled bytecode blocks and constants",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		src, err := readSource(c)
		if err != nil {
			return err
		}
		prog, err := parse.Parse(src)
		if err != nil {
			return cli.Exit(err, 1)
		}
		comp := compiler.New()
		if _, err := comp.CompileScript(prog); err != nil {
			return cli.Exit(err, 1)
		}
		dumpBlocks(comp)
		return nil
	},
}

func dumpBlocks(comp *compiler.Compiler) {
	blockHeader := color.New(color.FgCyan, color.Bold)
	opColor := color.New(color.FgGreen)
	argColor := color.New(color.FgYellow)

	for i := 0; i < comp.Blocks.Count(); i++ {
		id := bytecode.BlockID(i)
		blockHeader.Printf("block %d:\n", id)
		blk := comp.Blocks.Get(id)
		for pc, instr := range blk {
			fmt.Printf("  %4d  ", pc)
			opColor.Print(instr.Op.String())
			if s := instr.String(); s != instr.Op.String() {
				fmt.Print(" ")
				argColor.Printf("%d", instr.Arg)
			}
			fmt.Println()
		}
	}

	if n := comp.Consts.Len(); n > 0 {
		blockHeader.Println("constants:")
		for i := 0; i < n; i++ {
			fmt.Printf("  %4d  %s\n", i, comp.Consts.Get(i).String())
		}
	}
}

func printNode(n ast.Node, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	switch v := n.(type) {
	case *ast.If:
		fmt.Printf("%sIf\n", indent)
		printNode(v.Cond, depth+1)
		for _, s := range v.Then {
			printNode(s, depth+1)
		}
		if v.ElseIf != nil {
			printNode(v.ElseIf, depth)
		} else {
			for _, s := range v.Else {
				printNode(s, depth+1)
			}
		}
	case *ast.For:
		fmt.Printf("%sFor %s in\n", indent, v.VarName)
		printNode(v.Iterable, depth+1)
		for _, s := range v.Body {
			printNode(s, depth+1)
		}
	case *ast.FuncLit:
		fmt.Printf("%sFuncLit(%v)\n", indent, v.Params)
		for _, s := range v.Body {
			printNode(s, depth+1)
		}
	case *ast.Call:
		fmt.Printf("%sCall\n", indent)
		printNode(v.Callee, depth+1)
		for _, a := range v.Args {
			printNode(a, depth+1)
		}
	case *ast.BinOp:
		fmt.Printf("%sBinOp(%d)\n", indent, v.Op)
		printNode(v.Left, depth+1)
		printNode(v.Right, depth+1)
	case *ast.Assign:
		fmt.Printf("%sAssign %s\n", indent, v.Name)
		printNode(v.Value, depth+1)
	case *ast.Return:
		fmt.Printf("%sReturn\n", indent)
		if v.Value != nil {
			printNode(v.Value, depth+1)
		}
	case *ast.ExprStmt:
		printNode(v.Expr, depth)
	default:
		fmt.Printf("%s%T %+v\n", indent, n, n)
	}
}
