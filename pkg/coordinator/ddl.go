package coordinator

import (
	"github.com/orneryd/graphlite/pkg/catalog"
	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/session"
)

// executeSchemaDDL handles CREATE/DROP SCHEMA (spec §4.2). ALTER SCHEMA
// is parsed but not a named operation anywhere in the spec; it reports
// Internal rather than silently doing nothing.
func (c *Coordinator) executeSchemaDDL(s *session.Session, st *ast.SchemaStatement) (*ResultStream, error) {
	if err := c.catalog.CheckPermission(s.Principal, catalog.OpDDL, st.Name); err != nil {
		return nil, err
	}
	switch st.Op {
	case ast.OpCreate:
		if _, err := c.catalog.CreateSchema(st.Name); err != nil {
			return nil, err
		}
	case ast.OpDrop:
		if err := c.catalog.DropSchema(st.Name); err != nil {
			return nil, err
		}
	default:
		return nil, gqlerr.Internal(nil, "ALTER SCHEMA is not a supported operation")
	}
	return emptyStream(), nil
}

// executeGraphDDL handles CREATE/DROP GRAPH (spec §4.2). An empty
// SchemaName means the session's current schema.
func (c *Coordinator) executeGraphDDL(s *session.Session, st *ast.GraphStatement) (*ResultStream, error) {
	schema := st.SchemaName
	if schema == "" {
		schema = s.CurrentSchema()
		if schema == "" {
			return nil, gqlerr.Semantic(gqlerr.Location{}, "no current schema set; run SESSION SET SCHEMA first")
		}
	}
	if err := c.catalog.CheckPermission(s.Principal, catalog.OpDDL, schema+"/"+st.GraphName); err != nil {
		return nil, err
	}
	switch st.Op {
	case ast.OpCreate:
		if _, err := c.catalog.CreateGraph(schema, st.GraphName); err != nil {
			return nil, err
		}
	case ast.OpDrop:
		if err := c.catalog.DropGraph(schema, st.GraphName); err != nil {
			return nil, err
		}
	default:
		return nil, gqlerr.Internal(nil, "ALTER GRAPH is not a supported operation")
	}
	return emptyStream(), nil
}

// executeSessionSet handles SESSION SET SCHEMA|GRAPH <name> (spec §3's
// "session's current-graph, if set, must name an existing graph").
func (c *Coordinator) executeSessionSet(s *session.Session, st *ast.SessionSetStatement) (*ResultStream, error) {
	var err error
	if st.Schema {
		err = s.SetCurrent(st.Name, "")
	} else {
		err = s.SetCurrent(s.CurrentSchema(), st.Name)
	}
	if err != nil {
		return nil, err
	}
	return emptyStream(), nil
}

// executeTxnControl handles BEGIN/COMMIT/ROLLBACK [TRANSACTION] (spec
// §4.6, §6's begin/commit/rollback).
func (c *Coordinator) executeTxnControl(s *session.Session, st *ast.TxnStatement) (*ResultStream, error) {
	switch st.Op {
	case ast.TxnBegin:
		isolation := isolationOf(st.Isolation)
		if _, err := c.sessmgr.Begin(s, isolation); err != nil {
			return nil, err
		}
	case ast.TxnCommit:
		t := s.Txn()
		if t == nil {
			return nil, gqlerr.Conflict("no active transaction to commit")
		}
		if err := c.sessmgr.Commit(s, t); err != nil {
			return nil, err
		}
	case ast.TxnRollback:
		t := s.Txn()
		if t == nil {
			return nil, gqlerr.Conflict("no active transaction to roll back")
		}
		if err := c.sessmgr.Rollback(s, t); err != nil {
			return nil, err
		}
	}
	return emptyStream(), nil
}

func isolationOf(name string) session.Isolation {
	switch name {
	case "REPEATABLE READ":
		return session.RepeatableRead
	case "SERIALIZABLE":
		return session.Serializable
	case "READ UNCOMMITTED":
		return session.ReadUncommitted
	default:
		return session.ReadCommitted
	}
}

// emptyStream is returned by DDL/session/transaction-control statements,
// which produce no rows.
func emptyStream() *ResultStream {
	return cachedResultStream(nil, nil)
}
