// Package parser implements a hand-written recursive-descent parser that
// turns a core/lexer token stream into a core/ast.Program (spec.md §4.1).
// T's grammar is not HCL, but diagnostics reuse hcl.Diagnostics the same way
// the teacher's HCL-based scanner does, so callers get familiar tooling
// (position ranges, Error()-formatted messages) for free.
package parser

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"tlang/core/ast"
	"tlang/core/lexer"
	"tlang/core/token"
)

// Parser consumes a fixed token slice produced by the lexer.
type Parser struct {
	filename string
	toks     []token.Token
	pos      int
	diags    hcl.Diagnostics
}

// Parse tokenizes and parses src in one call, returning the Program and any
// diagnostics. A non-empty error-severity Diagnostics means the Program may
// be partial; callers should treat the parse as failed.
func Parse(filename, src string) (*ast.Program, hcl.Diagnostics) {
	toks := lexer.New(filename, src).Tokenize()
	p := &Parser{filename: filename, toks: toks}
	return p.parseProgram(), p.diags
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peekKind() token.Kind { return p.toks[p.pos].Kind }

func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(rng hcl.Range, format string, args ...interface{}) {
	p.diags = append(p.diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Syntax error",
		Detail:   fmt.Sprintf(format, args...),
		Subject:  &rng,
	})
}

// skipNewlines consumes any run of NEWLINE tokens, used between statements
// and around tokens where newlines are not significant (inside brackets).
func (p *Parser) skipNewlines() {
	for p.peekKind() == token.NEWLINE {
		p.advance()
	}
}

func (p *Parser) expect(k token.Kind) (token.Token, bool) {
	if p.peekKind() == k {
		return p.advance(), true
	}
	p.errorf(p.cur().Range, "expected %s, found %s %q", k, p.peekKind(), p.cur().Literal)
	return p.cur(), false
}

func (p *Parser) parseProgram() *ast.Program {
	start := p.cur().Range
	var stmts []ast.Expr
	p.skipStatementSeps()
	for p.peekKind() != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		if !p.skipStatementSeps() && p.peekKind() != token.EOF {
			p.errorf(p.cur().Range, "expected newline or ';' between statements, found %q", p.cur().Literal)
			p.advance()
		}
	}
	end := p.cur().Range
	return &ast.Program{Base: baseFrom(joinRange(start, end)), Statements: stmts}
}

// skipStatementSeps consumes NEWLINE/SEMI tokens, returning true if at least
// one was consumed.
func (p *Parser) skipStatementSeps() bool {
	consumed := false
	for p.peekKind() == token.NEWLINE || p.peekKind() == token.SEMI {
		p.advance()
		consumed = true
	}
	return consumed
}

func baseFrom(r hcl.Range) ast.Base { return ast.Base{Rng: r} }

func joinRange(a, b hcl.Range) hcl.Range {
	return hcl.Range{Filename: a.Filename, Start: a.Start, End: b.End}
}

func (p *Parser) parseStatement() ast.Expr {
	if p.peekKind() == token.IDENT && (p.peekAt(1).Kind == token.ASSIGN || p.peekAt(1).Kind == token.REASSIGN) {
		return p.parseAssign()
	}
	return p.parseExpr()
}

func (p *Parser) parseAssign() ast.Expr {
	name := p.advance()
	rebind := p.peekKind() == token.REASSIGN
	p.advance() // '=' or ':='
	p.skipNewlines()
	val := p.parseExpr()
	return &ast.Assign{
		Base: baseFrom(joinRange(name.Range, val.Range())),
		Name:   name.Literal,
		Rebind: rebind,
		Value:  val,
		Doc:    name.DocComment,
	}
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parsePipeExpr()
}

func (p *Parser) parsePipeExpr() ast.Expr {
	x := p.parseOrExpr()
	for p.peekKind() == token.PIPEOP || p.peekKind() == token.SAFEPIPE {
		safe := p.peekKind() == token.SAFEPIPE
		p.advance()
		p.skipNewlines()
		rhs := p.parseOrExpr()
		call, ok := rhs.(*ast.Call)
		if !ok {
			// Bare function reference piped to: `x |> f` means `f(x)`.
			call = &ast.Call{Base: baseFrom(rhs.Range()), Fn: rhs}
		}
		x = &ast.Pipe{Base: baseFrom(joinRange(x.Range(), rhs.Range())), Safe: safe, X: x, Call: call}
	}
	return x
}

func (p *Parser) parseOrExpr() ast.Expr {
	x := p.parseAndExpr()
	for p.peekKind() == token.OROR || p.peekKind() == token.OR || p.peekKind() == token.BPIPEOP {
		op := p.advance()
		opStr := "||"
		if op.Kind == token.BPIPEOP {
			opStr = ".|"
		}
		p.skipNewlines()
		y := p.parseAndExpr()
		x = &ast.Binary{Base: baseFrom(joinRange(x.Range(), y.Range())), Op: opStr, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseAndExpr() ast.Expr {
	x := p.parseCmpExpr()
	for p.peekKind() == token.ANDAND || p.peekKind() == token.AND || p.peekKind() == token.BAMP {
		op := p.advance()
		opStr := "&&"
		if op.Kind == token.BAMP {
			opStr = ".&"
		}
		p.skipNewlines()
		y := p.parseCmpExpr()
		x = &ast.Binary{Base: baseFrom(joinRange(x.Range(), y.Range())), Op: opStr, X: x, Y: y}
	}
	return x
}

var cmpOps = map[token.Kind]string{
	token.EQ: "==", token.NEQ: "!=", token.LT: "<", token.GT: ">", token.LE: "<=", token.GE: ">=",
	token.BEQ: ".==", token.BLE: ".<=", token.BGE: ".>=", token.BLT: ".<", token.BGT: ".>",
}

func (p *Parser) parseCmpExpr() ast.Expr {
	x := p.parseAddExpr()
	if opStr, ok := cmpOps[p.peekKind()]; ok {
		p.advance()
		p.skipNewlines()
		y := p.parseAddExpr()
		x = &ast.Binary{Base: baseFrom(joinRange(x.Range(), y.Range())), Op: opStr, X: x, Y: y}
	}
	return x
}

var addOps = map[token.Kind]string{token.PLUS: "+", token.MINUS: "-", token.BPLUS: ".+", token.BMINUS: ".-"}
var mulOps = map[token.Kind]string{token.STAR: "*", token.SLASH: "/", token.PERCENT: "%", token.BSTAR: ".*", token.BSLASH: "./"}

func (p *Parser) parseAddExpr() ast.Expr {
	x := p.parseMulExpr()
	for {
		opStr, ok := addOps[p.peekKind()]
		if !ok {
			break
		}
		p.advance()
		p.skipNewlines()
		y := p.parseMulExpr()
		x = &ast.Binary{Base: baseFrom(joinRange(x.Range(), y.Range())), Op: opStr, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseMulExpr() ast.Expr {
	x := p.parseUnary()
	for {
		opStr, ok := mulOps[p.peekKind()]
		if !ok {
			break
		}
		p.advance()
		p.skipNewlines()
		y := p.parseUnary()
		x = &ast.Binary{Base: baseFrom(joinRange(x.Range(), y.Range())), Op: opStr, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseUnary() ast.Expr {
	if p.peekKind() == token.MINUS || p.peekKind() == token.BANG || p.peekKind() == token.NOT {
		op := p.advance()
		opStr := "-"
		if op.Kind == token.BANG || op.Kind == token.NOT {
			opStr = "!"
		}
		x := p.parseUnary()
		return &ast.Unary{Base: baseFrom(joinRange(op.Range, x.Range())), Op: opStr, X: x}
	}
	return p.parseFormula()
}

func (p *Parser) parseFormula() ast.Expr {
	x := p.parsePostfix()
	if p.peekKind() == token.TILDE {
		p.advance()
		p.skipNewlines()
		y := p.parsePostfix()
		return &ast.Formula{Base: baseFrom(joinRange(x.Range(), y.Range())), Lhs: x, Rhs: y}
	}
	return x
}

func (p *Parser) parsePostfix() ast.Expr {
	x := p.parseAtom()
	for {
		switch p.peekKind() {
		case token.LPAREN:
			p.advance()
			args := p.parseArgs()
			closeT, _ := p.expect(token.RPAREN)
			x = &ast.Call{Base: baseFrom(joinRange(x.Range(), closeT.Range)), Fn: x, Args: args}
		case token.DOT:
			p.advance()
			nameT, _ := p.expect(token.IDENT)
			recv := x
			call := &ast.Call{
				Base: baseFrom(joinRange(x.Range(), nameT.Range)),
				Fn:   &ast.Ident{Base: baseFrom(nameT.Range), Name: nameT.Literal},
				Args: []ast.Arg{{Expr: recv}},
				Dot:  true,
			}
			if p.peekKind() == token.LPAREN {
				p.advance()
				extra := p.parseArgs()
				closeT, _ := p.expect(token.RPAREN)
				call.Args = append(call.Args, extra...)
				call.Base = baseFrom(joinRange(x.Range(), closeT.Range))
			}
			x = call
		default:
			return x
		}
	}
}

func (p *Parser) parseArgs() []ast.Arg {
	var args []ast.Arg
	p.skipNewlines()
	if p.peekKind() == token.RPAREN {
		return args
	}
	for {
		p.skipNewlines()
		if p.peekKind() == token.RPAREN {
			break // trailing comma
		}
		args = append(args, p.parseArg())
		p.skipNewlines()
		if p.peekKind() != token.COMMA {
			break
		}
		p.advance()
	}
	p.skipNewlines()
	return args
}

func (p *Parser) parseArg() ast.Arg {
	if p.peekKind() == token.IDENT && (p.peekAt(1).Kind == token.ASSIGN || p.peekAt(1).Kind == token.COLON) {
		name := p.advance()
		p.advance() // '=' or ':'
		p.skipNewlines()
		v := p.parseExpr()
		n := name.Literal
		return ast.Arg{Name: &n, Expr: v}
	}
	return ast.Arg{Expr: p.parseExpr()}
}

func (p *Parser) parseAtom() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case token.INT:
		p.advance()
		var v int64
		fmt.Sscanf(t.Literal, "%d", &v)
		return &ast.IntLit{Base: baseFrom(t.Range), Value: v}
	case token.FLOAT:
		p.advance()
		var v float64
		fmt.Sscanf(t.Literal, "%g", &v)
		return &ast.FloatLit{Base: baseFrom(t.Range), Value: v}
	case token.STRING:
		p.advance()
		return &ast.StringLit{Base: baseFrom(t.Range), Value: t.Literal}
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{Base: baseFrom(t.Range), Value: true}
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{Base: baseFrom(t.Range), Value: false}
	case token.NULL:
		p.advance()
		return &ast.NullLit{Base: baseFrom(t.Range)}
	case token.NA:
		p.advance()
		return &ast.NALit{Base: baseFrom(t.Range)}
	case token.IDENT:
		p.advance()
		return &ast.Ident{Base: baseFrom(t.Range), Name: t.Literal}
	case token.COLUMNREF:
		p.advance()
		return &ast.ColumnRef{Base: baseFrom(t.Range), Name: t.Literal}
	case token.LPAREN:
		p.advance()
		p.skipNewlines()
		x := p.parseExpr()
		p.skipNewlines()
		closeT, _ := p.expect(token.RPAREN)
		_ = closeT
		return x
	case token.LBRACKET:
		return p.parseListLit()
	case token.LBRACE:
		return p.parseDictLit()
	case token.IF:
		return p.parseIf()
	case token.PIPELINE:
		return p.parsePipelineBlock()
	case token.INTENT:
		return p.parseIntentBlock()
	case token.BACKSLASH:
		return p.parseLambda()
	default:
		p.errorf(t.Range, "unexpected token %s %q", t.Kind, t.Literal)
		p.advance()
		return &ast.NullLit{Base: baseFrom(t.Range)}
	}
}

func (p *Parser) parseListLit() ast.Expr {
	open := p.advance() // '['
	var entries []ast.ListEntry
	p.skipNewlines()
	for p.peekKind() != token.RBRACKET && p.peekKind() != token.EOF {
		var name *string
		if p.peekKind() == token.IDENT && (p.peekAt(1).Kind == token.COLON) {
			n := p.advance()
			p.advance() // ':'
			nm := n.Literal
			name = &nm
		}
		p.skipNewlines()
		e := p.parseExpr()
		entries = append(entries, ast.ListEntry{Name: name, Expr: e})
		p.skipNewlines()
		if p.peekKind() != token.COMMA {
			break
		}
		p.advance()
		p.skipNewlines()
	}
	closeT, _ := p.expect(token.RBRACKET)
	return &ast.ListLit{Base: baseFrom(joinRange(open.Range, closeT.Range)), Entries: entries}
}

func (p *Parser) parseDictLit() ast.Expr {
	open := p.advance() // '{'
	var entries []ast.DictEntry
	p.skipNewlines()
	for p.peekKind() != token.RBRACE && p.peekKind() != token.EOF {
		keyT, _ := p.expect(token.IDENT)
		p.expect(token.COLON)
		p.skipNewlines()
		v := p.parseExpr()
		entries = append(entries, ast.DictEntry{Key: keyT.Literal, Value: v})
		p.skipNewlines()
		if p.peekKind() != token.COMMA {
			break
		}
		p.advance()
		p.skipNewlines()
	}
	closeT, _ := p.expect(token.RBRACE)
	return &ast.DictLit{Base: baseFrom(joinRange(open.Range, closeT.Range)), Entries: entries}
}

func (p *Parser) parseIf() ast.Expr {
	ifT := p.advance()
	p.expect(token.LPAREN)
	p.skipNewlines()
	cond := p.parseExpr()
	p.skipNewlines()
	p.expect(token.RPAREN)
	p.skipNewlines()
	then := p.parseExpr()
	p.skipNewlines()
	p.expect(token.ELSE)
	p.skipNewlines()
	els := p.parseExpr()
	return &ast.IfExpr{Base: baseFrom(joinRange(ifT.Range, els.Range())), Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseLambda() ast.Expr {
	bs := p.advance() // '\'
	p.expect(token.LPAREN)
	var params []string
	variadic := false
	p.skipNewlines()
	for p.peekKind() != token.RPAREN && p.peekKind() != token.EOF {
		nameT, _ := p.expect(token.IDENT)
		if p.peekKind() == token.DOT && p.peekAt(1).Kind == token.DOT {
			// `rest...` variadic tail (parameter name, then the dots): the
			// lexer tokenizes `.` singly, so DOTs after the name signal the
			// ellipsis.
			p.advance()
			p.advance()
			if p.peekKind() == token.DOT {
				p.advance()
			}
			variadic = true
		}
		params = append(params, nameT.Literal)
		p.skipNewlines()
		if p.peekKind() != token.COMMA {
			break
		}
		p.advance()
		p.skipNewlines()
	}
	p.expect(token.RPAREN)
	p.skipNewlines()
	body := p.parseExpr()
	return &ast.Lambda{Base: baseFrom(joinRange(bs.Range, body.Range())), Params: params, Variadic: variadic, Body: body}
}

func (p *Parser) parsePipelineBlock() ast.Expr {
	kw := p.advance() // 'pipeline'
	p.expect(token.LBRACE)
	p.skipStatementSeps()
	var nodes []ast.PipelineNode
	for p.peekKind() != token.RBRACE && p.peekKind() != token.EOF {
		nameT, _ := p.expect(token.IDENT)
		p.expect(token.ASSIGN)
		p.skipNewlines()
		v := p.parseExpr()
		nodes = append(nodes, ast.PipelineNode{Name: nameT.Literal, Value: v})
		p.skipStatementSeps()
	}
	closeT, _ := p.expect(token.RBRACE)
	return &ast.PipelineBlock{Base: baseFrom(joinRange(kw.Range, closeT.Range)), Nodes: nodes}
}

func (p *Parser) parseIntentBlock() ast.Expr {
	kw := p.advance() // 'intent'
	p.expect(token.LBRACE)
	p.skipNewlines()
	var fields []ast.IntentField
	for p.peekKind() != token.RBRACE && p.peekKind() != token.EOF {
		keyT, _ := p.expect(token.IDENT)
		p.expect(token.COLON)
		p.skipNewlines()
		v := p.parseExpr()
		fields = append(fields, ast.IntentField{Key: keyT.Literal, Value: v})
		p.skipNewlines()
		if p.peekKind() == token.COMMA {
			p.advance()
			p.skipNewlines()
		}
	}
	closeT, _ := p.expect(token.RBRACE)
	return &ast.IntentBlock{Base: baseFrom(joinRange(kw.Range, closeT.Range)), Fields: fields}
}
