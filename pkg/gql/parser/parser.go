// Package parser implements GraphLite's recursive-descent GQL parser and
// post-parse semantic validation pass (spec §4.3). It consumes
// pkg/gql/lexer tokens and builds the pkg/gql/ast tree; the clause keyword
// set and precedence table are drawn from the teacher's
// pkg/cypher/parser.go and pkg/cypher/clauses.go, generalized from regex
// clause-splitting to a real grammar.
package parser

import (
	"strconv"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/lexer"
	"github.com/orneryd/graphlite/pkg/gqlerr"
)

// Parser holds the lexer and lookahead state for one parse.
type Parser struct {
	lex *lexer.Lexer
}

// Parse parses a single GQL statement from src and runs semantic
// validation (spec §4.3's "Semantic validation pass"). Parse errors are
// SyntaxError; validation failures are SemanticError.
func Parse(src string) (ast.Statement, error) {
	p := &Parser{lex: lexer.New(src)}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if err := Validate(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) peek() (lexer.Token, error) { return p.lex.Peek() }
func (p *Parser) next() (lexer.Token, error) { return p.lex.Next() }

func toLoc(t lexer.Token) gqlerr.Location {
	return gqlerr.Location{Line: t.Line, Column: t.Column, Token: t.Text}
}
func toPos(t lexer.Token) ast.Pos { return ast.Pos{Line: t.Line, Column: t.Column} }

// expectKeyword consumes and returns the next token if it is the named
// keyword, else raises SyntaxError with an expectation list.
func (p *Parser) expectKeyword(kw string) (lexer.Token, error) {
	t, err := p.next()
	if err != nil {
		return t, gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}
	if t.Kind != lexer.Keyword || t.Text != kw {
		return t, gqlerr.Syntax(toLoc(t), "unexpected token %q", t.Text).WithExpected(kw)
	}
	return t, nil
}

func (p *Parser) expectPunct(punct string) (lexer.Token, error) {
	t, err := p.next()
	if err != nil {
		return t, gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}
	if t.Kind != lexer.Punct || t.Text != punct {
		return t, gqlerr.Syntax(toLoc(t), "unexpected token %q", t.Text).WithExpected(punct)
	}
	return t, nil
}

func (p *Parser) expectIdent() (lexer.Token, error) {
	t, err := p.next()
	if err != nil {
		return t, gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}
	if t.Kind != lexer.Ident {
		return t, gqlerr.Syntax(toLoc(t), "unexpected token %q", t.Text).WithExpected("identifier")
	}
	return t, nil
}

// atKeyword reports (without consuming) whether the next token is keyword kw.
func (p *Parser) atKeyword(kw string) bool {
	t, err := p.peek()
	return err == nil && t.Kind == lexer.Keyword && t.Text == kw
}

func (p *Parser) atPunct(punct string) bool {
	t, err := p.peek()
	return err == nil && t.Kind == lexer.Punct && t.Text == punct
}

func (p *Parser) atEOF() bool {
	t, err := p.peek()
	return err == nil && t.Kind == lexer.EOF
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	t, err := p.peek()
	if err != nil {
		return nil, gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}

	switch {
	case t.Kind == lexer.Keyword && (t.Text == "CREATE" || t.Text == "DROP" || t.Text == "ALTER"):
		return p.parseDDL()
	case t.Kind == lexer.Keyword && t.Text == "SESSION":
		return p.parseSessionSet()
	case t.Kind == lexer.Keyword && (t.Text == "BEGIN" || t.Text == "COMMIT" || t.Text == "ROLLBACK"):
		return p.parseTxnControl()
	default:
		return p.parseQuery()
	}
}

func (p *Parser) parseDDL() (ast.Statement, error) {
	opTok, _ := p.next()
	var op ast.SchemaOp
	switch opTok.Text {
	case "CREATE":
		op = ast.OpCreate
	case "DROP":
		op = ast.OpDrop
	case "ALTER":
		op = ast.OpAlter
	}

	kindTok, err := p.next()
	if err != nil {
		return nil, gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}
	switch {
	case kindTok.Kind == lexer.Keyword && kindTok.Text == "SCHEMA":
		nameTok, err := p.parseSchemaPath()
		if err != nil {
			return nil, err
		}
		return &ast.SchemaStatement{Op: op, Name: nameTok, Pos: toPos(opTok)}, nil
	case kindTok.Kind == lexer.Keyword && kindTok.Text == "GRAPH":
		path, err := p.parseSchemaPath()
		if err != nil {
			return nil, err
		}
		schemaName, graphName := splitGraphPath(path)
		return &ast.GraphStatement{Op: op, SchemaName: schemaName, GraphName: graphName, Pos: toPos(opTok)}, nil
	default:
		return nil, gqlerr.Syntax(toLoc(kindTok), "unexpected token %q", kindTok.Text).WithExpected("SCHEMA", "GRAPH")
	}
}

// parseSchemaPath parses a dotted/slashed path or bare identifier as a raw
// string, since schema paths like "/social" aren't plain identifiers.
func (p *Parser) parseSchemaPath() (string, error) {
	var out string
	for {
		t, err := p.next()
		if err != nil {
			return "", gqlerr.New(gqlerr.KindSyntax, "%v", err)
		}
		if t.Kind == lexer.Punct && t.Text == "/" {
			out += "/"
			continue
		}
		if t.Kind == lexer.Ident || t.Kind == lexer.Keyword {
			out += t.Text
		} else {
			return "", gqlerr.Syntax(toLoc(t), "unexpected token %q in path", t.Text).WithExpected("identifier")
		}
		nt, err := p.peek()
		if err != nil || !(nt.Kind == lexer.Punct && nt.Text == "/") {
			break
		}
	}
	if out == "" {
		return "", gqlerr.Syntax(gqlerr.Location{}, "expected a schema/graph path")
	}
	return out, nil
}

func splitGraphPath(path string) (schema, graph string) {
	idx := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

func (p *Parser) parseSessionSet() (ast.Statement, error) {
	sessTok, _ := p.next()
	if _, err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	t, err := p.next()
	if err != nil {
		return nil, gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}
	switch {
	case t.Kind == lexer.Keyword && t.Text == "SCHEMA":
		name, err := p.parseSchemaPath()
		if err != nil {
			return nil, err
		}
		return &ast.SessionSetStatement{Schema: true, Name: name, Pos: toPos(sessTok)}, nil
	case t.Kind == lexer.Keyword && t.Text == "GRAPH":
		name, err := p.parseSchemaPath()
		if err != nil {
			return nil, err
		}
		return &ast.SessionSetStatement{Schema: false, Name: name, Pos: toPos(sessTok)}, nil
	default:
		return nil, gqlerr.Syntax(toLoc(t), "unexpected token %q", t.Text).WithExpected("SCHEMA", "GRAPH")
	}
}

func (p *Parser) parseTxnControl() (ast.Statement, error) {
	opTok, _ := p.next()
	var op ast.TxnOp
	switch opTok.Text {
	case "BEGIN":
		op = ast.TxnBegin
	case "COMMIT":
		op = ast.TxnCommit
	case "ROLLBACK":
		op = ast.TxnRollback
	}
	// Optional trailing TRANSACTION keyword.
	if p.atKeyword("TRANSACTION") {
		p.next()
	}
	isolation := ""
	if op == ast.TxnBegin && p.atKeyword("ISOLATION") {
		p.next()
		if _, err := p.expectKeyword("LEVEL"); err != nil {
			return nil, err
		}
		isolation = ""
		for {
			t, err := p.next()
			if err != nil {
				return nil, gqlerr.New(gqlerr.KindSyntax, "%v", err)
			}
			if t.Kind != lexer.Keyword && t.Kind != lexer.Ident {
				return nil, gqlerr.Syntax(toLoc(t), "unexpected token %q in isolation level", t.Text)
			}
			if isolation != "" {
				isolation += " "
			}
			isolation += t.Text
			nt, err := p.peek()
			if err != nil || nt.Kind == lexer.EOF {
				break
			}
			if (nt.Kind == lexer.Keyword || nt.Kind == lexer.Ident) && (nt.Text == "READ" || nt.Text == "REPEATABLE" || nt.Text == "SERIALIZABLE" || nt.Text == "COMMITTED" || nt.Text == "UNCOMMITTED") {
				continue
			}
			break
		}
	}
	return &ast.TxnStatement{Op: op, Isolation: isolation, Pos: toPos(opTok)}, nil
}

// parseQuery parses a sequence of pipeline clauses, optionally followed by
// a UNION/INTERSECT/EXCEPT combinator against another query (spec §4.3,
// §4.5.4).
func (p *Parser) parseQuery() (*ast.Query, error) {
	q := &ast.Query{}
	for {
		if p.atEOF() {
			break
		}
		if p.atSetOpKeyword() {
			break
		}
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		q.Clauses = append(q.Clauses, clause)
	}
	if len(q.Clauses) == 0 {
		t, _ := p.peek()
		return nil, gqlerr.Syntax(toLoc(t), "empty query")
	}
	if p.atSetOpKeyword() {
		setOp, err := p.parseSetOp()
		if err != nil {
			return nil, err
		}
		q.SetOp = setOp
	}
	return q, nil
}

func (p *Parser) atSetOpKeyword() bool {
	return p.atKeyword("UNION") || p.atKeyword("INTERSECT") || p.atKeyword("EXCEPT")
}

func (p *Parser) parseSetOp() (*ast.SetOp, error) {
	t, _ := p.next()
	kind := ast.SetOpUnion
	switch t.Text {
	case "UNION":
		kind = ast.SetOpUnion
		if p.atKeyword("ALL") {
			p.next()
			kind = ast.SetOpUnionAll
		}
	case "INTERSECT":
		kind = ast.SetOpIntersect
	case "EXCEPT":
		kind = ast.SetOpExcept
	}
	right, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	return &ast.SetOp{Kind: kind, Right: right, Pos: toPos(t)}, nil
}

func (p *Parser) parseClause() (ast.Clause, error) {
	t, err := p.peek()
	if err != nil {
		return nil, gqlerr.New(gqlerr.KindSyntax, "%v", err)
	}
	if t.Kind != lexer.Keyword {
		return nil, gqlerr.Syntax(toLoc(t), "unexpected token %q, expected a clause keyword", t.Text)
	}
	switch t.Text {
	case "MATCH", "OPTIONAL":
		return p.parseMatch()
	case "WITH":
		return p.parseWith()
	case "RETURN":
		return p.parseReturn()
	case "UNWIND":
		return p.parseUnwind()
	case "INSERT":
		return p.parseInsert()
	case "SET":
		return p.parseSet()
	case "REMOVE":
		return p.parseRemove()
	case "DELETE", "DETACH":
		return p.parseDelete()
	case "CALL":
		return p.parseCall()
	default:
		return nil, gqlerr.Syntax(toLoc(t), "unexpected clause keyword %q", t.Text)
	}
}

func mustAtoi(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
