package catalog

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/storage"
)

// Catalog records live under the reserved TreeCatalog tag (spec §6), with a
// further sub-namespace byte distinguishing schemas/graphs/users/roles so
// that a full-catalog scan at Open can recover each kind without ambiguity.
const (
	subSchema byte = 0x01
	subGraph  byte = 0x02
	subUser   byte = 0x03
	subRole   byte = 0x04
)

func catalogKey(sub byte, parts ...string) []byte {
	buf := []byte{storage.TreeCatalog, sub}
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, 0)
		}
		buf = append(buf, []byte(p)...)
	}
	return buf
}

func catalogPrefix(sub byte) []byte { return []byte{storage.TreeCatalog, sub} }

// schemaRecord is the gob envelope persisted for a Schema.
type schemaRecord struct {
	ID      uint32
	Name    string
	Graphs  map[string]uint32
	Version uint64
}

func toSchemaRecord(s *Schema) schemaRecord {
	return schemaRecord{ID: s.ID, Name: s.Name, Graphs: s.Graphs, Version: s.Version}
}

func fromSchemaRecord(r schemaRecord) *Schema {
	return &Schema{ID: r.ID, Name: r.Name, Graphs: r.Graphs, Version: r.Version}
}

// graphRecord is the gob envelope persisted for a Graph.
type graphRecord struct {
	ID          uint32
	SchemaID    uint32
	SchemaName  string
	Name        string
	Version     uint64
	DataVersion uint64
}

func toGraphRecord(g *Graph) graphRecord {
	return graphRecord{
		ID: g.ID, SchemaID: g.SchemaID, SchemaName: g.SchemaName, Name: g.Name,
		Version: g.Version, DataVersion: g.DataVersion,
	}
}

func fromGraphRecord(r graphRecord) *Graph {
	return &Graph{
		ID: r.ID, SchemaID: r.SchemaID, SchemaName: r.SchemaName, Name: r.Name,
		Version: r.Version, DataVersion: r.DataVersion,
	}
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("graphlite: encode catalog record: %w", err)
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return fmt.Errorf("graphlite: decode catalog record: %w", err)
	}
	return nil
}

func (c *Catalog) putSchema(s *Schema) error {
	txn := c.engine.Begin()
	putSchemaRecordInto(txn, s)
	return txn.Commit()
}

func putSchemaRecordInto(txn *storage.Transaction, s *Schema) {
	b, err := gobEncode(toSchemaRecord(s))
	if err != nil {
		panic(err) // schemaRecord has no unexportable/cyclic fields; encode cannot fail
	}
	txn.RawPut(catalogKey(subSchema, s.Name), b)
}

func deleteSchemaRecord(txn *storage.Transaction, name string) {
	txn.RawDelete(catalogKey(subSchema, name))
}

func putGraphRecord(txn *storage.Transaction, g *Graph) {
	b, err := gobEncode(toGraphRecord(g))
	if err != nil {
		panic(err)
	}
	txn.RawPut(catalogKey(subGraph, g.SchemaName, g.Name), b)
}

func deleteGraphRecord(txn *storage.Transaction, schemaName, graphName string) {
	txn.RawDelete(catalogKey(subGraph, schemaName, graphName))
}

// deleteGraphData removes every node, edge, adjacency and index entry
// scoped to gp, within txn's batch, so that DropGraph/DropSchema destroy
// contained data atomically with the catalog record (spec §4.2).
func deleteGraphData(txn *storage.Transaction, gp storage.GraphPrefix) error {
	prefixes := [][]byte{
		storage.NodeScanPrefix(gp),
		storage.EdgeScanPrefix(gp),
		storage.TreePrefix(storage.TreeAdjOut, gp),
		storage.TreePrefix(storage.TreeAdjIn, gp),
		storage.TreePrefix(storage.TreeIndex, gp),
	}
	for _, prefix := range prefixes {
		var keys [][]byte
		if err := txn.RawScanPrefix(prefix, func(key, _ []byte) error {
			keys = append(keys, append([]byte(nil), key...))
			return nil
		}); err != nil {
			return gqlerr.StorageUnavailable(err)
		}
		for _, k := range keys {
			txn.RawDelete(k)
		}
	}
	return nil
}

func (c *Catalog) load() error {
	txn := c.engine.Begin()
	defer txn.Rollback()

	maxSchemaID, maxGraphID := uint32(0), uint32(0)

	if err := txn.RawScanPrefix(catalogPrefix(subSchema), func(_, value []byte) error {
		var r schemaRecord
		if err := gobDecode(value, &r); err != nil {
			return gqlerr.Corruption("schema", err)
		}
		s := fromSchemaRecord(r)
		c.schemas[s.Name] = s
		if s.ID > maxSchemaID {
			maxSchemaID = s.ID
		}
		return nil
	}); err != nil {
		return err
	}

	if err := txn.RawScanPrefix(catalogPrefix(subGraph), func(_, value []byte) error {
		var r graphRecord
		if err := gobDecode(value, &r); err != nil {
			return gqlerr.Corruption("graph", err)
		}
		g := fromGraphRecord(r)
		c.graphs[g.ID] = g
		if g.ID > maxGraphID {
			maxGraphID = g.ID
		}
		return nil
	}); err != nil {
		return err
	}

	if err := txn.RawScanPrefix(catalogPrefix(subUser), func(_, value []byte) error {
		var r userRecord
		if err := gobDecode(value, &r); err != nil {
			return gqlerr.Corruption("user", err)
		}
		c.users[r.Name] = fromUserRecord(r)
		return nil
	}); err != nil {
		return err
	}

	if err := txn.RawScanPrefix(catalogPrefix(subRole), func(_, value []byte) error {
		var r roleRecord
		if err := gobDecode(value, &r); err != nil {
			return gqlerr.Corruption("role", err)
		}
		c.roles[r.Name] = fromRoleRecord(r)
		return nil
	}); err != nil {
		return err
	}

	c.nextSchemaID.Store(maxSchemaID)
	c.nextGraphID.Store(maxGraphID)
	return nil
}
