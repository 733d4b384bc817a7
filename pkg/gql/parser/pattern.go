package parser

import (
	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/lexer"
	"github.com/orneryd/graphlite/pkg/gqlerr"
)

// parsePatternList parses a comma-separated list of pattern paths, as used
// by MATCH and INSERT.
func (p *Parser) parsePatternList() ([]*ast.PatternPath, error) {
	var paths []*ast.PatternPath
	for {
		path, err := p.parsePatternPath()
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	return paths, nil
}

// parsePatternPath parses one node-(rel-node)* pattern, e.g.
// (a:Person)-[r:KNOWS]->(b).
func (p *Parser) parsePatternPath() (*ast.PatternPath, error) {
	startTok, _ := p.peek()
	path := &ast.PatternPath{Pos: toPos(startTok)}

	first, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	path.Nodes = append(path.Nodes, first)

	for p.atPunct("-") || p.atPunct("<-") {
		rel, err := p.parseRelPattern()
		if err != nil {
			return nil, err
		}
		node, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		path.Rels = append(path.Rels, rel)
		path.Nodes = append(path.Nodes, node)
	}
	return path, nil
}

func (p *Parser) parseNodePattern() (*ast.NodePattern, error) {
	openTok, err := p.expectPunct("(")
	if err != nil {
		return nil, err
	}
	n := &ast.NodePattern{Pos: toPos(openTok)}

	if t, _ := p.peek(); t.Kind == lexer.Ident {
		tok, _ := p.next()
		n.Var = tok.Text
	}
	for p.atPunct(":") {
		p.next()
		labelTok, err := p.labelOrIdent()
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, labelTok)
	}
	if p.atPunct("{") {
		m, err := p.parseMapLiteral()
		if err != nil {
			return nil, err
		}
		n.Props = m
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return n, nil
}

// labelOrIdent accepts a label/relationship-type token, which may be a
// keyword that isn't otherwise reserved in this position (GQL labels are
// free-form tags, spec §1 non-goals).
func (p *Parser) labelOrIdent() (string, error) {
	t, err := p.next()
	if err != nil {
		return "", gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}
	if t.Kind != lexer.Ident && t.Kind != lexer.Keyword {
		return "", gqlerr.Syntax(toLoc(t), "unexpected token %q, expected a label", t.Text).WithExpected("identifier")
	}
	return t.Text, nil
}

func (p *Parser) parseRelPattern() (*ast.RelPattern, error) {
	dir := ast.RelRight
	tok, _ := p.peek()
	if p.atPunct("<-") {
		p.next()
		dir = ast.RelLeft
	} else {
		if _, err := p.expectPunct("-"); err != nil {
			return nil, err
		}
	}

	rel := &ast.RelPattern{Direction: dir, Pos: toPos(tok)}
	if p.atPunct("[") {
		p.next()
		if t, _ := p.peek(); t.Kind == lexer.Ident {
			vtok, _ := p.next()
			rel.Var = vtok.Text
		}
		if p.atPunct(":") {
			p.next()
			for {
				typeTok, err := p.labelOrIdent()
				if err != nil {
					return nil, err
				}
				rel.Types = append(rel.Types, typeTok)
				if p.atPunct("|") {
					p.next()
					continue
				}
				break
			}
		}
		if p.atPunct("{") {
			m, err := p.parseMapLiteral()
			if err != nil {
				return nil, err
			}
			rel.Props = m
		}
		if _, err := p.expectPunct("]"); err != nil {
			return nil, err
		}
	}

	if p.atPunct("->") {
		p.next()
		if dir == ast.RelLeft {
			return nil, gqlerr.Syntax(toLoc(tok), "relationship pattern cannot point both directions")
		}
		rel.Direction = ast.RelRight
	} else if p.atPunct("-") {
		p.next()
		if dir != ast.RelLeft {
			rel.Direction = ast.RelEither
		}
	} else {
		return nil, gqlerr.Syntax(toLoc(tok), "unterminated relationship pattern").WithExpected("-", "->")
	}
	return rel, nil
}

func (p *Parser) parseMapLiteral() (*ast.MapLiteral, error) {
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	m := &ast.MapLiteral{}
	if p.atPunct("}") {
		p.next()
		return m, nil
	}
	for {
		keyTok, err := p.labelOrIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, keyTok)
		m.Values = append(m.Values, val)
		if p.atPunct(",") {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return m, nil
}
