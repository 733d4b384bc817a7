package parser

import (
	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/lexer"
	"github.com/orneryd/graphlite/pkg/gqlerr"
)

func (p *Parser) parseMatch() (ast.Clause, error) {
	optional := false
	startTok, _ := p.peek()
	if p.atKeyword("OPTIONAL") {
		p.next()
		optional = true
		if _, err := p.expectKeyword("MATCH"); err != nil {
			return nil, err
		}
	} else {
		p.next() // MATCH
	}

	patterns, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	m := &ast.MatchClause{Optional: optional, Patterns: patterns, Pos: toPos(startTok)}
	if p.atKeyword("WHERE") {
		p.next()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.Where = where
	}
	return m, nil
}

func (p *Parser) parseProjectItems() ([]*ast.ProjectItem, bool, error) {
	distinct := false
	if p.atKeyword("DISTINCT") {
		p.next()
		distinct = true
	}
	var items []*ast.ProjectItem
	for {
		t, _ := p.peek()
		if p.atPunct("*") {
			p.next()
			items = append(items, &ast.ProjectItem{Star: true, Pos: toPos(t)})
		} else {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, false, err
			}
			item := &ast.ProjectItem{Expr: expr, Pos: toPos(t)}
			if p.atKeyword("AS") {
				p.next()
				aliasTok, err := p.aliasIdent()
				if err != nil {
					return nil, false, err
				}
				item.Alias = aliasTok
			}
			items = append(items, item)
		}
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return items, distinct, nil
}

func (p *Parser) aliasIdent() (string, error) {
	t, err := p.next()
	if err != nil {
		return "", gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}
	if t.Kind != lexer.Ident && t.Kind != lexer.Keyword {
		return "", gqlerr.Syntax(toLoc(t), "unexpected token %q, expected an alias", t.Text)
	}
	return t.Text, nil
}

// parseGroupHaving consumes the optional GROUP BY/HAVING modifiers that
// trail a WITH/RETURN clause's projection items (and WHERE, for WITH),
// ahead of ORDER BY/SKIP/LIMIT.
func (p *Parser) parseGroupHaving() ([]ast.Expr, ast.Expr, error) {
	var groupBy []ast.Expr
	var having ast.Expr

	if p.atKeyword("GROUP") {
		p.next()
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, nil, err
			}
			groupBy = append(groupBy, e)
			if p.atPunct(",") {
				p.next()
				continue
			}
			break
		}
	}
	if p.atKeyword("HAVING") {
		t, _ := p.peek()
		p.next()
		if len(groupBy) == 0 {
			return nil, nil, gqlerr.Syntax(toLoc(t), "HAVING clause requires GROUP BY clause")
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, nil, err
		}
		having = e
	}
	return groupBy, having, nil
}

func (p *Parser) parseOrderSkipLimit() ([]*ast.OrderItem, ast.Expr, ast.Expr, error) {
	var order []*ast.OrderItem
	var skip, limit ast.Expr

	if p.atKeyword("ORDER") {
		p.next()
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, nil, nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, nil, nil, err
			}
			desc := false
			if p.atKeyword("DESC") {
				p.next()
				desc = true
			} else if p.atKeyword("ASC") {
				p.next()
			}
			order = append(order, &ast.OrderItem{Expr: e, Descending: desc})
			if p.atPunct(",") {
				p.next()
				continue
			}
			break
		}
	}
	if p.atKeyword("SKIP") {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, nil, nil, err
		}
		skip = e
	}
	if p.atKeyword("LIMIT") {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, nil, nil, err
		}
		limit = e
	}
	return order, skip, limit, nil
}

func (p *Parser) parseWith() (ast.Clause, error) {
	startTok, _ := p.next() // WITH
	items, distinct, err := p.parseProjectItems()
	if err != nil {
		return nil, err
	}
	w := &ast.WithClause{Items: items, Distinct: distinct, Pos: toPos(startTok)}
	if p.atKeyword("WHERE") {
		p.next()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		w.Where = where
	}
	groupBy, having, err := p.parseGroupHaving()
	if err != nil {
		return nil, err
	}
	w.GroupBy, w.Having = groupBy, having
	order, skip, limit, err := p.parseOrderSkipLimit()
	if err != nil {
		return nil, err
	}
	w.OrderBy, w.Skip, w.Limit = order, skip, limit
	return w, nil
}

func (p *Parser) parseReturn() (ast.Clause, error) {
	startTok, _ := p.next() // RETURN
	items, distinct, err := p.parseProjectItems()
	if err != nil {
		return nil, err
	}
	r := &ast.ReturnClause{Items: items, Distinct: distinct, Pos: toPos(startTok)}
	groupBy, having, err := p.parseGroupHaving()
	if err != nil {
		return nil, err
	}
	r.GroupBy, r.Having = groupBy, having
	order, skip, limit, err := p.parseOrderSkipLimit()
	if err != nil {
		return nil, err
	}
	r.OrderBy, r.Skip, r.Limit = order, skip, limit
	return r, nil
}

func (p *Parser) parseUnwind() (ast.Clause, error) {
	startTok, _ := p.next() // UNWIND
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	asTok, err := p.aliasIdent()
	if err != nil {
		return nil, err
	}
	return &ast.UnwindClause{Expr: e, As: asTok, Pos: toPos(startTok)}, nil
}

func (p *Parser) parseInsert() (ast.Clause, error) {
	startTok, _ := p.next() // INSERT
	paths, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	return &ast.InsertClause{Paths: paths, Pos: toPos(startTok)}, nil
}

func (p *Parser) parseSet() (ast.Clause, error) {
	startTok, _ := p.next() // SET
	s := &ast.SetClause{Pos: toPos(startTok)}
	for {
		varTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.atPunct(":") {
			p.next()
			label, err := p.labelOrIdent()
			if err != nil {
				return nil, err
			}
			s.Items = append(s.Items, &ast.SetItem{Kind: ast.SetLabel, Var: varTok.Text, Label: label})
		} else if p.atPunct(".") {
			p.next()
			propTok, err := p.labelOrIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct("="); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			s.Items = append(s.Items, &ast.SetItem{Kind: ast.SetProperty, Var: varTok.Text, Property: propTok, Value: val})
		} else if p.atPunct("=") {
			p.next()
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			s.Items = append(s.Items, &ast.SetItem{Kind: ast.SetAllProps, Var: varTok.Text, Value: val})
		} else {
			t, _ := p.peek()
			return nil, gqlerr.Syntax(toLoc(t), "unexpected token %q in SET", t.Text).WithExpected(".", ":", "=")
		}
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return s, nil
}

func (p *Parser) parseRemove() (ast.Clause, error) {
	startTok, _ := p.next() // REMOVE
	r := &ast.RemoveClause{Pos: toPos(startTok)}
	for {
		varTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.atPunct(":") {
			p.next()
			label, err := p.labelOrIdent()
			if err != nil {
				return nil, err
			}
			r.Items = append(r.Items, &ast.RemoveItem{Var: varTok.Text, Label: label})
		} else {
			if _, err := p.expectPunct("."); err != nil {
				return nil, err
			}
			propTok, err := p.labelOrIdent()
			if err != nil {
				return nil, err
			}
			r.Items = append(r.Items, &ast.RemoveItem{Var: varTok.Text, Property: propTok})
		}
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return r, nil
}

func (p *Parser) parseDelete() (ast.Clause, error) {
	startTok, _ := p.peek()
	detach := false
	if p.atKeyword("DETACH") {
		p.next()
		detach = true
		if _, err := p.expectKeyword("DELETE"); err != nil {
			return nil, err
		}
	} else {
		p.next() // DELETE
	}
	d := &ast.DeleteClause{Detach: detach, Pos: toPos(startTok)}
	for {
		t, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		d.Vars = append(d.Vars, t.Text)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return d, nil
}

func (p *Parser) parseCall() (ast.Clause, error) {
	startTok, _ := p.next() // CALL
	var name string
	for {
		t, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		name += t.Text
		if p.atPunct(".") {
			p.next()
			name += "."
			continue
		}
		break
	}
	c := &ast.CallClause{Procedure: name, Pos: toPos(startTok)}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	if !p.atPunct(")") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, e)
			if p.atPunct(",") {
				p.next()
				continue
			}
			break
		}
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if p.atKeyword("YIELD") {
		p.next()
		for {
			t, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			c.Yield = append(c.Yield, t.Text)
			if p.atPunct(",") {
				p.next()
				continue
			}
			break
		}
	}
	return c, nil
}
