package parse

import (
	"fmt"

	"github.com/j45k4/flexscript-go/ast"
)

// Parser is a recursive-descent parser over the token stream produced by
// Lexer. It is deliberately minimal: no error recovery, no incremental
// reparse, matching spec.md §1's framing of the parser as a thin external
// collaborator.
type Parser struct {
	lex  *Lexer
	cur  Token
	peek Token
}

// Parse parses src into a *ast.Program.
func Parse(src string) (*ast.Program, error) {
	p := &Parser{lex: NewLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmts, err := p.parseStmts(TokEOF)
	if err != nil {
		return nil, err
	}
	return &ast.Program{Stmts: stmts}, nil
}

func (p *Parser) advance() error {
	p.cur = p.peek
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) expect(k TokKind, what string) (Token, error) {
	if p.cur.Kind != k {
		return Token{}, fmt.Errorf("parse: expected %s at line %d, got %q", what, p.cur.Line, p.cur.Text)
	}
	t := p.cur
	if err := p.advance(); err != nil {
		return Token{}, err
	}
	return t, nil
}

// parseStmts parses statements until `until` is seen (without consuming
// it).
func (p *Parser) parseStmts(until TokKind) ([]ast.Node, error) {
	var stmts []ast.Node
	for p.cur.Kind != until && p.cur.Kind != TokEOF {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *Parser) parseBlock() ([]ast.Node, error) {
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	stmts, err := p.parseStmts(TokRBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Node, error) {
	switch p.cur.Kind {
	case TokIf:
		return p.parseIf()
	case TokFor:
		return p.parseFor()
	case TokReturn:
		return p.parseReturn()
	case TokIdent:
		// Disambiguate `name = expr` from a bare expression statement.
		if p.peek.Kind == TokEq {
			name := p.cur.Text
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &ast.Assign{Name: name, Value: val}, nil
		}
		fallthrough
	default:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Expr: expr}, nil
	}
}

func (p *Parser) parseIf() (ast.Node, error) {
	if err := p.advance(); err != nil { // consume 'if'
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node := &ast.If{Cond: cond, Then: then}
	if p.cur.Kind == TokElse {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == TokIf {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			node.ElseIf = elseIf.(*ast.If)
		} else {
			elseBlock, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			node.Else = elseBlock
		}
	}
	return node, nil
}

func (p *Parser) parseFor() (ast.Node, error) {
	if err := p.advance(); err != nil { // consume 'for'
		return nil, err
	}
	name, err := p.expect(TokIdent, "loop variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokIn, "'in'"); err != nil {
		return nil, err
	}
	iterable, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.For{VarName: name.Text, Iterable: iterable, Body: body}, nil
}

func (p *Parser) parseReturn() (ast.Node, error) {
	if err := p.advance(); err != nil { // consume 'return'
		return nil, err
	}
	if p.cur.Kind == TokRBrace || p.cur.Kind == TokEOF {
		return &ast.Return{}, nil
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Return{Value: val}, nil
}

// Precedence climbing: comparisons bind loosest, then + -, then * /.
func (p *Parser) parseExpr() (ast.Node, error) { return p.parseComparison() }

func (p *Parser) parseComparison() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOpKind
		switch p.cur.Kind {
		case TokEqEq:
			op = ast.OpEq
		case TokNeq:
			op = ast.OpNeq
		case TokLt:
			op = ast.OpLt
		case TokLte:
			op = ast.OpLte
		case TokGt:
			op = ast.OpGt
		case TokGte:
			op = ast.OpGte
		default:
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() (ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokPlus || p.cur.Kind == TokMinus {
		op := ast.OpAdd
		if p.cur.Kind == TokMinus {
			op = ast.OpSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokStar || p.cur.Kind == TokSlash {
		op := ast.OpMul
		if p.cur.Kind == TokSlash {
			op = ast.OpDiv
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary handles a leading `-`, which the lexer always tokenizes as
// TokMinus (never folded into the literal by the lexer, so `a-1` and
// `a - 1` lex identically and only differ in how the parser nests them).
// A literal operand folds directly into a negative literal (spec.md §6
// "decimal integers (optional leading -)"); any other operand desugars to
// `0 - expr`.
func (p *Parser) parseUnary() (ast.Node, error) {
	if p.cur.Kind == TokMinus {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch lit := operand.(type) {
		case *ast.IntLit:
			return &ast.IntLit{Value: -lit.Value}, nil
		case *ast.FloatLit:
			return &ast.FloatLit{Value: -lit.Value}, nil
		}
		return &ast.BinOp{Op: ast.OpSub, Left: &ast.IntLit{Value: 0}, Right: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case TokDot:
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, err := p.expect(TokIdent, "property name")
			if err != nil {
				return nil, err
			}
			expr = &ast.PropAccess{Object: expr, Prop: name.Text}
		case TokLParen:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.Call{Callee: expr, Args: args}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Node, error) {
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []ast.Node
	for p.cur.Kind != TokRParen {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	switch p.cur.Kind {
	case TokInt:
		v, err := ParseIntLiteral(p.cur.Text)
		if err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.IntLit{Value: v}, nil
	case TokFloat:
		v, err := ParseFloatLiteral(p.cur.Text)
		if err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.FloatLit{Value: v}, nil
	case TokStr:
		s := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StrLit{Value: s}, nil
	case TokTrue, TokFalse:
		v := p.cur.Kind == TokTrue
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BoolLit{Value: v}, nil
	case TokAwait:
		if err := p.advance(); err != nil {
			return nil, err
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.Call{Callee: &ast.Ident{Name: "await"}, Args: args}, nil
	case TokLBracket:
		return p.parseArrayLit()
	case TokLBrace:
		return p.parseObjectLit("")
	case TokLParen:
		return p.parseParenOrFunc()
	case TokIdent:
		name := p.cur.Text
		// `Name { ... }` named instantiation, or single-arg paren-free
		// arrow function `x => expr`.
		if p.peek.Kind == TokLBrace {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return p.parseObjectLit(name)
		}
		if p.peek.Kind == TokArrow {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return p.parseArrowBody([]string{name})
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Ident{Name: name}, nil
	}
	return nil, fmt.Errorf("parse: unexpected token %q at line %d", p.cur.Text, p.cur.Line)
}

func (p *Parser) parseArrayLit() (ast.Node, error) {
	if _, err := p.expect(TokLBracket, "'['"); err != nil {
		return nil, err
	}
	var items []ast.Node
	for p.cur.Kind != TokRBracket {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &ast.ArrayLit{Items: items}, nil
}

func (p *Parser) parseObjectLit(name string) (ast.Node, error) {
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	var fields []ast.ObjectField
	for p.cur.Kind != TokRBrace {
		key, err := p.expect(TokIdent, "field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.ObjectField{Key: key.Text, Value: val})
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.ObjectLit{Name: name, Fields: fields}, nil
}

// parseParenOrFunc disambiguates a parenthesized expression from a
// zero/multi-argument function literal `(args) => body`.
func (p *Parser) parseParenOrFunc() (ast.Node, error) {
	// Look ahead: `()` is always a zero-arg function literal; a bare
	// parenthesized expression never starts with `)`.
	if p.peek.Kind == TokRParen {
		if err := p.advance(); err != nil { // consume '('
			return nil, err
		}
		if err := p.advance(); err != nil { // consume ')'
			return nil, err
		}
		if _, err := p.expect(TokArrow, "'=>'"); err != nil {
			return nil, err
		}
		return p.parseArrowBody(nil)
	}

	// Try to parse as a parameter list: identifiers and commas only,
	// followed by `)` then `=>`. Since Flexscript has no multi-arg
	// expressions inside parens other than a single sub-expression, a
	// parameter list is distinguished by every token up to the matching
	// `)` being an identifier or comma.
	//
	// p.lex is a *Lexer, so copying the Parser alone would only snapshot
	// the two-token lookahead, not the lexer's own scan position — a
	// failed attempt that consumed more than the lookahead window would
	// leave the lexer unable to re-produce the tokens we rewound `cur`/
	// `peek` to. Lexer itself is a plain value (rune slice header + two
	// ints), so dereferencing it gives a real rewind point.
	save := *p
	savedLex := *p.lex
	params, ok := p.tryParseParamList()
	if ok {
		return p.parseArrowBody(params)
	}
	*p = save
	*p.lex = savedLex

	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) tryParseParamList() ([]string, bool) {
	if p.cur.Kind != TokLParen {
		return nil, false
	}
	if err := p.advance(); err != nil {
		return nil, false
	}
	var params []string
	for p.cur.Kind != TokRParen {
		if p.cur.Kind != TokIdent {
			return nil, false
		}
		params = append(params, p.cur.Text)
		if err := p.advance(); err != nil {
			return nil, false
		}
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, false
			}
		} else if p.cur.Kind != TokRParen {
			return nil, false
		}
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, false
	}
	if p.cur.Kind != TokArrow {
		return nil, false
	}
	if err := p.advance(); err != nil { // consume '=>'
		return nil, false
	}
	return params, true
}

func (p *Parser) parseArrowBody(params []string) (ast.Node, error) {
	switch p.cur.Kind {
	case TokLBrace:
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.FuncLit{Params: params, Body: body}, nil
	case TokReturn:
		// A bare `return expr` directly after `=>`, with no braces, is
		// accepted as a single-statement body (see test scenario 3 in
		// spec.md §8: `a = () => return 1`).
		ret, err := p.parseReturn()
		if err != nil {
			return nil, err
		}
		return &ast.FuncLit{Params: params, Body: []ast.Node{ret}}, nil
	default:
		// Expression-bodied arrow: `p => expr` is sugar for
		// `p => { return expr }`.
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.FuncLit{Params: params, Body: []ast.Node{&ast.Return{Value: expr}}}, nil
	}
}
