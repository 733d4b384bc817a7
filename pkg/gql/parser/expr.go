package parser

import (
	"strconv"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/lexer"
	"github.com/orneryd/graphlite/pkg/gqlerr"
)

// parseExpr parses a full expression at the lowest precedence (OR), per
// spec §4.3's "expression constructs including CASE, comparison,
// arithmetic, string/date/math functions, and aggregate functions",
// following ISO GQL's usual logical-then-comparison-then-arithmetic
// precedence ladder.
func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		tok, _ := p.next()
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(tok)}, Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseXor() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("XOR") {
		tok, _ := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(tok)}, Op: "XOR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		tok, _ := p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(tok)}, Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.atKeyword("NOT") {
		tok, _ := p.next()
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Base: ast.Base{Pos: toPos(tok)}, Op: "NOT", Expr: e}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true, "=~": true}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		t, _ := p.peek()
		switch {
		case t.Kind == lexer.Punct && comparisonOps[t.Text]:
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(t)}, Op: t.Text, Left: left, Right: right}
		case t.Kind == lexer.Keyword && t.Text == "IN":
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(t)}, Op: "IN", Left: left, Right: right}
		case t.Kind == lexer.Keyword && t.Text == "STARTS":
			p.next()
			if _, err := p.expectKeyword("WITH"); err != nil {
				return nil, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(t)}, Op: "STARTS WITH", Left: left, Right: right}
		case t.Kind == lexer.Keyword && t.Text == "ENDS":
			p.next()
			if _, err := p.expectKeyword("WITH"); err != nil {
				return nil, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(t)}, Op: "ENDS WITH", Left: left, Right: right}
		case t.Kind == lexer.Keyword && t.Text == "CONTAINS":
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(t)}, Op: "CONTAINS", Left: left, Right: right}
		case t.Kind == lexer.Keyword && t.Text == "IS":
			p.next()
			not := false
			if p.atKeyword("NOT") {
				p.next()
				not = true
			}
			if _, err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			left = &ast.IsNullOp{Base: ast.Base{Pos: toPos(t)}, Expr: left, Not: not}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atPunct("+") || p.atPunct("-") {
		t, _ := p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(t)}, Op: t.Text, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atPunct("*") || p.atPunct("/") || p.atPunct("%") {
		t, _ := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: toPos(t)}, Op: t.Text, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.atPunct("-") {
		t, _ := p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Base: ast.Base{Pos: toPos(t)}, Op: "-", Expr: e}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles property access, index access and list-slicing
// chained onto a primary expression: a.prop[0].other.
func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if p.atPunct(".") {
			t, _ := p.next()
			propTok, err := p.labelOrIdent()
			if err != nil {
				return nil, err
			}
			e = &ast.PropertyAccess{Base: ast.Base{Pos: toPos(t)}, Target: e, Property: propTok}
			continue
		}
		if p.atPunct("[") {
			t, _ := p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			e = &ast.IndexAccess{Base: ast.Base{Pos: toPos(t)}, Target: e, Index: idx}
			continue
		}
		break
	}
	return e, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t, err := p.peek()
	if err != nil {
		return nil, gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}

	switch {
	case t.Kind == lexer.Int:
		p.next()
		n, _ := strconv.ParseInt(t.Text, 10, 64)
		return &ast.Literal{Base: ast.Base{Pos: toPos(t)}, Kind: ast.LitInt, Int: n}, nil
	case t.Kind == lexer.Float:
		p.next()
		f, _ := strconv.ParseFloat(t.Text, 64)
		return &ast.Literal{Base: ast.Base{Pos: toPos(t)}, Kind: ast.LitFloat, Flt: f}, nil
	case t.Kind == lexer.String:
		p.next()
		return &ast.Literal{Base: ast.Base{Pos: toPos(t)}, Kind: ast.LitString, Str: t.Text}, nil
	case t.Kind == lexer.Param:
		p.next()
		return &ast.Param{Base: ast.Base{Pos: toPos(t)}, Name: t.Text}, nil
	case t.Kind == lexer.Keyword && t.Text == "TRUE":
		p.next()
		return &ast.Literal{Base: ast.Base{Pos: toPos(t)}, Kind: ast.LitBool, Bool: true}, nil
	case t.Kind == lexer.Keyword && t.Text == "FALSE":
		p.next()
		return &ast.Literal{Base: ast.Base{Pos: toPos(t)}, Kind: ast.LitBool, Bool: false}, nil
	case t.Kind == lexer.Keyword && t.Text == "NULL":
		p.next()
		return &ast.Literal{Base: ast.Base{Pos: toPos(t)}, Kind: ast.LitNull}, nil
	case t.Kind == lexer.Keyword && t.Text == "CASE":
		return p.parseCase()
	case t.Kind == lexer.Punct && t.Text == "(":
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.Kind == lexer.Punct && t.Text == "[":
		return p.parseListLiteralOrComprehension()
	case t.Kind == lexer.Punct && t.Text == "{":
		m, err := p.parseMapLiteral()
		if err != nil {
			return nil, err
		}
		return &ast.Literal{Base: ast.Base{Pos: toPos(t)}, Kind: ast.LitMap, Map: m}, nil
	case t.Kind == lexer.Ident:
		return p.parseIdentOrCall()
	default:
		return nil, gqlerr.Syntax(toLoc(t), "unexpected token %q in expression", t.Text)
	}
}

func (p *Parser) parseListLiteralOrComprehension() (ast.Expr, error) {
	openTok, _ := p.next() // [
	if p.atPunct("]") {
		p.next()
		return &ast.Literal{Base: ast.Base{Pos: toPos(openTok)}, Kind: ast.LitList}, nil
	}

	// Disambiguate [x IN list WHERE cond | expr] from a plain list literal
	// by lookahead: a comprehension starts with IDENT IN.
	if t, _ := p.peek(); t.Kind == lexer.Ident {
		save := *p.lex
		varTok, _ := p.next()
		if p.atKeyword("IN") {
			p.next()
			src, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			lc := &ast.ListComprehension{Base: ast.Base{Pos: toPos(openTok)}, Var: varTok.Text, Source: src}
			if p.atKeyword("WHERE") {
				p.next()
				where, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				lc.Where = where
			}
			if p.atPunct("|") {
				p.next()
				proj, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				lc.Expr = proj
			}
			if _, err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			return lc, nil
		}
		*p.lex = save
	}

	var items []ast.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return &ast.Literal{Base: ast.Base{Pos: toPos(openTok)}, Kind: ast.LitList, List: items}, nil
}

func (p *Parser) parseCase() (ast.Expr, error) {
	startTok, _ := p.next() // CASE
	c := &ast.CaseExpr{Base: ast.Base{Pos: toPos(startTok)}}
	if !p.atKeyword("WHEN") {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Operand = operand
	}
	for p.atKeyword("WHEN") {
		p.next()
		when, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, ast.CaseWhen{When: when, Then: then})
	}
	if p.atKeyword("ELSE") {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Else = e
	}
	if _, err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Parser) parseIdentOrCall() (ast.Expr, error) {
	t, _ := p.next()
	if p.atPunct("(") {
		return p.parseFuncCall(t.Text, toPos(t))
	}
	return &ast.Ident{Base: ast.Base{Pos: toPos(t)}, Name: t.Text}, nil
}

func (p *Parser) parseFuncCall(name string, pos ast.Pos) (ast.Expr, error) {
	p.next() // (
	call := &ast.FuncCall{Base: ast.Base{Pos: pos}, Name: name}
	if p.atPunct("*") {
		p.next()
		call.Star = true
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return call, nil
	}
	if p.atPunct(")") {
		p.next()
		return call, nil
	}
	if p.atKeyword("DISTINCT") {
		p.next()
		call.Distinct = true
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, e)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return call, nil
}
