package engine

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/catalog"
	"github.com/vjrajchauhan/pivot-engine/storage"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// columnFromDef translates a parsed column definition into a storage
// column. PRIMARY KEY implies NOT NULL and UNIQUE.
func columnFromDef(def *ast.ColumnDef) (storage.Column, error) {
	t, err := typeFromAST(def.Type)
	if err != nil {
		return storage.Column{}, err
	}
	col := storage.Column{Name: def.Name, Type: t, Nullable: true}
	for _, c := range def.Constraints {
		switch c.Type {
		case ast.ConstraintNotNull:
			col.Nullable = false
		case ast.ConstraintUnique:
			col.Unique = true
		case ast.ConstraintPrimaryKey:
			col.PrimaryKey = true
			col.Nullable = false
			col.Unique = true
		case ast.ConstraintDefault:
			col.Default = c.Default
		case ast.ConstraintCheck:
			col.Check = c.Check
		}
	}
	return col, nil
}

func (e *Engine) execCreateTable(s *ast.CreateTableStmt) (*QueryResult, error) {
	if e.cat.Has(s.Table.Name) {
		if s.IfNotExists {
			return statusResult("OK"), nil
		}
		return nil, &catalog.Error{Kind: catalog.AlreadyExists, Name: s.Table.Name}
	}

	if s.As != nil {
		return e.execCreateTableAs(s)
	}

	cols := make([]storage.Column, 0, len(s.Columns))
	for _, def := range s.Columns {
		col, err := columnFromDef(def)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	schema, err := storage.NewSchema(cols)
	if err != nil {
		return nil, err
	}

	for _, tc := range s.Constraints {
		switch tc.Type {
		case ast.ConstraintCheck:
			schema.Checks = append(schema.Checks, tc.Check)
		case ast.ConstraintPrimaryKey, ast.ConstraintUnique:
			if len(tc.Columns) == 1 {
				ci, ok := schema.ColumnIndex(tc.Columns[0])
				if !ok {
					return nil, storage.Schemaf("unknown column %q in table constraint", tc.Columns[0])
				}
				schema.Columns[ci].Unique = true
				if tc.Type == ast.ConstraintPrimaryKey {
					schema.Columns[ci].PrimaryKey = true
					schema.Columns[ci].Nullable = false
				}
				continue
			}
			for _, name := range tc.Columns {
				ci, ok := schema.ColumnIndex(name)
				if !ok {
					return nil, storage.Schemaf("unknown column %q in table constraint", name)
				}
				if tc.Type == ast.ConstraintPrimaryKey {
					schema.Columns[ci].Nullable = false
				}
			}
			schema.UniqueSets = append(schema.UniqueSets, tc.Columns)
		}
	}

	if err := e.cat.Register(s.Table.Name, storage.NewStore(schema)); err != nil {
		return nil, errors.Wrap(err, "create table")
	}
	e.txn.record(&undoCreateTable{name: s.Table.Name})
	return statusResult("CREATE TABLE"), nil
}

// execCreateTableAs materializes a query into a new table. Column types
// come from the result's metadata, falling back to the first non-NULL
// value of each column.
func (e *Engine) execCreateTableAs(s *ast.CreateTableStmt) (*QueryResult, error) {
	rel, err := e.execQuery(s.As)
	if err != nil {
		return nil, err
	}

	cols := make([]storage.Column, len(rel.cols))
	for i, c := range rel.cols {
		t := c.Type
		if t.Kind == value.KindNull {
			for _, row := range rel.rows {
				if !row[i].IsNull() {
					t = row[i].Type()
					break
				}
			}
		}
		if t.Kind == value.KindNull {
			t = value.Type{Kind: value.KindUtf8}
		}
		cols[i] = storage.Column{Name: c.Name, Type: t, Nullable: true}
	}

	schema, err := storage.NewSchema(cols)
	if err != nil {
		return nil, err
	}
	store := storage.NewStore(schema)
	for _, row := range rel.rows {
		if _, err := store.AppendRow(row); err != nil {
			return nil, errors.Wrap(err, "create table as")
		}
	}

	if err := e.cat.Register(s.Table.Name, store); err != nil {
		return nil, errors.Wrap(err, "create table as")
	}
	e.txn.record(&undoCreateTable{name: s.Table.Name})
	return statusResult(fmt.Sprintf("CREATE TABLE %d", len(rel.rows))), nil
}

func (e *Engine) execDropTable(s *ast.DropTableStmt) (*QueryResult, error) {
	for _, tn := range s.Tables {
		entry, err := e.cat.Get(tn.Name)
		if err != nil {
			if s.IfExists {
				continue
			}
			return nil, err
		}
		if entry.Kind != catalog.KindTable {
			return nil, planErrf("%q is a view; use DROP VIEW", tn.Name)
		}
		dropped, err := e.cat.Drop(tn.Name)
		if err != nil {
			return nil, errors.Wrap(err, "drop table")
		}
		e.txn.record(&undoDropTable{entry: dropped})
	}
	return statusResult("DROP TABLE"), nil
}

func (e *Engine) execAlterTable(s *ast.AlterTableStmt) (*QueryResult, error) {
	switch a := s.Action.(type) {
	case *ast.AddColumn:
		store, err := e.mutableTable(s.Table.Name)
		if err != nil {
			return nil, err
		}
		col, err := columnFromDef(a.Column)
		if err != nil {
			return nil, err
		}
		fill := value.Null()
		if col.Default != nil {
			fill, err = (&evalCtx{e: e}).eval(col.Default)
			if err != nil {
				return nil, err
			}
		}
		if err := store.AddColumn(col, fill); err != nil {
			return nil, errors.Wrap(err, "alter table")
		}
		e.txn.record(&undoAddColumn{table: s.Table.Name, name: col.Name})
		return statusResult("ALTER TABLE"), nil

	case *ast.DropColumn:
		store, err := e.mutableTable(s.Table.Name)
		if err != nil {
			return nil, err
		}
		idx, ok := store.Schema().ColumnIndex(a.Name)
		if !ok {
			return nil, storage.Schemaf("unknown column %q", a.Name)
		}
		def, vals, mask, err := store.DropColumn(a.Name)
		if err != nil {
			return nil, errors.Wrap(err, "alter table")
		}
		e.txn.record(&undoDropColumn{table: s.Table.Name, idx: idx, def: def, vals: vals, mask: mask})
		return statusResult("ALTER TABLE"), nil

	case *ast.RenameColumn:
		store, err := e.mutableTable(s.Table.Name)
		if err != nil {
			return nil, err
		}
		if err := store.RenameColumn(a.OldName, a.NewName); err != nil {
			return nil, errors.Wrap(err, "alter table")
		}
		e.txn.record(&undoRenameColumn{table: s.Table.Name, oldName: a.OldName, newName: a.NewName})
		return statusResult("ALTER TABLE"), nil

	case *ast.RenameTable:
		if _, err := e.mutableTable(s.Table.Name); err != nil {
			return nil, err
		}
		if err := e.cat.Rename(s.Table.Name, a.NewName); err != nil {
			return nil, errors.Wrap(err, "alter table")
		}
		e.txn.record(&undoRenameTable{oldName: s.Table.Name, newName: a.NewName})
		return statusResult("ALTER TABLE"), nil

	default:
		return nil, planErrf("unsupported ALTER TABLE action %T", s.Action)
	}
}

func (e *Engine) execCreateView(s *ast.CreateViewStmt) (*QueryResult, error) {
	if entry, err := e.cat.Get(s.Name.Name); err == nil {
		if s.IfNotExists {
			return statusResult("OK"), nil
		}
		if s.OrReplace && entry.Kind == catalog.KindView {
			e.txn.record(&undoReplaceView{
				name:      entry.Name,
				prevQuery: entry.ViewQuery,
				prevCols:  entry.ViewColumns,
			})
			if err := e.cat.CreateView(s.Name.Name, s.Select, s.Columns, true); err != nil {
				return nil, errors.Wrap(err, "create view")
			}
			return statusResult("CREATE VIEW"), nil
		}
		return nil, &catalog.Error{Kind: catalog.AlreadyExists, Name: s.Name.Name}
	}

	if err := e.cat.CreateView(s.Name.Name, s.Select, s.Columns, false); err != nil {
		return nil, errors.Wrap(err, "create view")
	}
	e.txn.record(&undoCreateView{name: s.Name.Name})
	return statusResult("CREATE VIEW"), nil
}

func (e *Engine) execDropView(s *ast.DropViewStmt) (*QueryResult, error) {
	entry, err := e.cat.Get(s.Name.Name)
	if err != nil {
		if s.IfExists {
			return statusResult("OK"), nil
		}
		return nil, err
	}
	if entry.Kind != catalog.KindView {
		return nil, planErrf("%q is a table; use DROP TABLE", s.Name.Name)
	}
	dropped, err := e.cat.Drop(s.Name.Name)
	if err != nil {
		return nil, errors.Wrap(err, "drop view")
	}
	e.txn.record(&undoDropTable{entry: dropped})
	return statusResult("DROP VIEW"), nil
}
