package engine

import (
	"strings"

	"github.com/vjrajchauhan/pivot-engine/storage"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// relCol describes one column of an intermediate relation: its output
// name and the table qualifier it is reachable under.
type relCol struct {
	Table string // qualifier (alias or table name), may be empty
	Name  string
	Type  value.Type
}

// relation is a materialized intermediate result: column metadata plus
// row tuples. All executor stages consume and produce relations.
type relation struct {
	cols []relCol
	rows [][]value.Value
}

func newRelation(cols []relCol) *relation {
	return &relation{cols: cols}
}

// oneEmptyRow returns the relation a FROM-less SELECT scans: no columns,
// exactly one row.
func oneEmptyRow() *relation {
	return &relation{rows: [][]value.Value{{}}}
}

// fromStore materializes a table store under the given qualifier.
func fromStore(store *storage.Store, qualifier string) *relation {
	schema := store.Schema()
	cols := make([]relCol, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = relCol{Table: qualifier, Name: c.Name, Type: c.Type}
	}
	rel := newRelation(cols)
	for r := 0; r < store.RowCount(); r++ {
		rel.rows = append(rel.rows, store.Row(r))
	}
	return rel
}

// lookup resolves a possibly qualified column reference. The match is
// case-insensitive; an unqualified name matching more than one column
// is ambiguous.
func (rel *relation) lookup(qualifier, name string) (idx int, ambiguous, found bool) {
	idx = -1
	for i, c := range rel.cols {
		if qualifier != "" && !strings.EqualFold(c.Table, qualifier) {
			continue
		}
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		if found {
			return -1, true, false
		}
		idx, found = i, true
	}
	return idx, false, found
}

// columnIndex is lookup with errors attached.
func (rel *relation) columnIndex(qualifier, name string) (int, error) {
	full := name
	if qualifier != "" {
		full = qualifier + "." + name
	}
	idx, ambiguous, found := rel.lookup(qualifier, name)
	if ambiguous {
		return -1, storage.Schemaf("ambiguous column reference %q", full)
	}
	if !found {
		return -1, storage.Schemaf("unknown column %q", full)
	}
	return idx, nil
}

// withQualifier returns a copy of the relation's columns under a new
// qualifier (FROM-item aliasing hides the underlying names).
func (rel *relation) withQualifier(alias string, colAliases []string) (*relation, error) {
	cols := make([]relCol, len(rel.cols))
	copy(cols, rel.cols)
	for i := range cols {
		cols[i].Table = alias
	}
	if len(colAliases) > 0 {
		if len(colAliases) != len(cols) {
			return nil, storage.Schemaf("alias list has %d columns, relation has %d", len(colAliases), len(cols))
		}
		for i, a := range colAliases {
			cols[i].Name = a
		}
	}
	return &relation{cols: cols, rows: rel.rows}, nil
}

// rowKey builds a grouping/distinct key for a row projected through the
// given column indexes (nil means all columns).
func rowKey(row []value.Value, idxs []int) string {
	var b strings.Builder
	if idxs == nil {
		for _, v := range row {
			v.Key(&b)
		}
	} else {
		for _, i := range idxs {
			row[i].Key(&b)
		}
	}
	return b.String()
}

// valuesKey builds a key over an already-projected tuple.
func valuesKey(vals []value.Value) string {
	var b strings.Builder
	for _, v := range vals {
		v.Key(&b)
	}
	return b.String()
}
