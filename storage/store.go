package storage

import (
	"strings"

	"github.com/vjrajchauhan/pivot-engine/value"
)

// Store is a columnar row store: for each column a dense value slice
// plus a parallel validity bitmap. All columns share one row count.
type Store struct {
	schema *Schema
	cols   [][]value.Value
	masks  []*NullMask
	rows   int
}

// NewStore creates an empty store with the given schema.
func NewStore(schema *Schema) *Store {
	s := &Store{schema: schema}
	s.cols = make([][]value.Value, len(schema.Columns))
	s.masks = make([]*NullMask, len(schema.Columns))
	for i := range s.masks {
		s.masks[i] = &NullMask{}
	}
	return s
}

// Schema returns the store's schema.
func (s *Store) Schema() *Schema { return s.schema }

// RowCount returns the number of rows.
func (s *Store) RowCount() int { return s.rows }

// AppendRow validates, coerces, and appends one row. CHECK expressions
// are the executor's responsibility; everything else is enforced here.
func (s *Store) AppendRow(vals []value.Value) (int, error) {
	if len(vals) != len(s.schema.Columns) {
		return 0, Schemaf("expected %d values, got %d", len(s.schema.Columns), len(vals))
	}

	coerced := make([]value.Value, len(vals))
	for i, col := range s.schema.Columns {
		v, err := value.Coerce(vals[i], col.Type)
		if err != nil {
			return 0, err
		}
		if err := s.checkColumnValue(i, -1, v); err != nil {
			return 0, err
		}
		coerced[i] = v
	}

	if err := s.checkUniqueSets(-1, coerced); err != nil {
		return 0, err
	}

	for i, v := range coerced {
		s.cols[i] = append(s.cols[i], v)
		s.masks[i].Push(!v.IsNull())
	}
	s.rows++
	return s.rows - 1, nil
}

// checkUniqueSets enforces table-level UNIQUE/PRIMARY KEY column sets
// for a candidate full row, ignoring skipRow. A set with any NULL
// member never conflicts.
func (s *Store) checkUniqueSets(skipRow int, row []value.Value) error {
	for _, set := range s.schema.UniqueSets {
		idxs := make([]int, 0, len(set))
		anyNull := false
		for _, name := range set {
			ci, ok := s.schema.ColumnIndex(name)
			if !ok {
				return Schemaf("unknown column %q in table constraint", name)
			}
			if row[ci].IsNull() {
				anyNull = true
			}
			idxs = append(idxs, ci)
		}
		if anyNull {
			continue
		}
		for r := 0; r < s.rows; r++ {
			if r == skipRow {
				continue
			}
			match := true
			for _, ci := range idxs {
				if value.Compare(s.Value(r, ci), row[ci]) != value.Equal {
					match = false
					break
				}
			}
			if match {
				return &ConstraintViolation{Constraint: "UNIQUE", Column: strings.Join(set, ", "),
					Detail: "duplicate key"}
			}
		}
	}
	return nil
}

// checkColumnValue enforces NOT NULL and UNIQUE/PRIMARY KEY for a value
// destined for column col, ignoring row skipRow during the duplicate
// scan (-1 to scan all rows). NULL is never a duplicate of NULL.
func (s *Store) checkColumnValue(col, skipRow int, v value.Value) error {
	def := s.schema.Columns[col]
	if v.IsNull() {
		if !def.Nullable || def.PrimaryKey {
			name := "NOT NULL"
			if def.PrimaryKey {
				name = "PRIMARY KEY"
			}
			return &ConstraintViolation{Constraint: name, Column: def.Name, Detail: "value is NULL"}
		}
		return nil
	}
	if def.Unique || def.PrimaryKey {
		for r := 0; r < s.rows; r++ {
			if r == skipRow || !s.masks[col].Get(r) {
				continue
			}
			if value.Compare(s.cols[col][r], v) == value.Equal {
				name := "UNIQUE"
				if def.PrimaryKey {
					name = "PRIMARY KEY"
				}
				return &ConstraintViolation{Constraint: name, Column: def.Name, Detail: "duplicate value " + v.Text()}
			}
		}
	}
	return nil
}

// Value returns the value at (row, col); an invalid slot reads as NULL.
func (s *Store) Value(row, col int) value.Value {
	if !s.masks[col].Get(row) {
		return value.Null()
	}
	return s.cols[col][row]
}

// ValueByName returns the value in the named column.
func (s *Store) ValueByName(row int, name string) (value.Value, error) {
	col, ok := s.schema.ColumnIndex(name)
	if !ok {
		return value.Null(), Schemaf("unknown column %q", name)
	}
	return s.Value(row, col), nil
}

// Row returns a copy of one full row.
func (s *Store) Row(row int) []value.Value {
	out := make([]value.Value, len(s.cols))
	for c := range s.cols {
		out[c] = s.Value(row, c)
	}
	return out
}

// SetValue coerces and writes one cell, enforcing column constraints.
func (s *Store) SetValue(row, col int, v value.Value) error {
	coerced, err := value.Coerce(v, s.schema.Columns[col].Type)
	if err != nil {
		return err
	}
	if err := s.checkColumnValue(col, row, coerced); err != nil {
		return err
	}
	if len(s.schema.UniqueSets) > 0 {
		candidate := s.Row(row)
		candidate[col] = coerced
		if err := s.checkUniqueSets(row, candidate); err != nil {
			return err
		}
	}
	s.cols[col][row] = coerced
	s.masks[col].Set(row, !coerced.IsNull())
	return nil
}

// setValueUnchecked writes one cell without constraint checks; undo
// replay uses it to restore prior state exactly.
func (s *Store) setValueUnchecked(row, col int, v value.Value) {
	s.cols[col][row] = v
	s.masks[col].Set(row, !v.IsNull())
}

// RestoreValue writes a prior value back without validation.
func (s *Store) RestoreValue(row, col int, v value.Value) {
	s.setValueUnchecked(row, col, v)
}

// DeleteRow removes the row at idx and returns its prior contents.
func (s *Store) DeleteRow(idx int) []value.Value {
	old := s.Row(idx)
	for c := range s.cols {
		s.cols[c] = append(s.cols[c][:idx], s.cols[c][idx+1:]...)
		s.masks[c].Remove(idx)
	}
	s.rows--
	return old
}

// InsertRowAt reinserts a row at idx without validation; undo replay
// uses it to reverse DeleteRow.
func (s *Store) InsertRowAt(idx int, vals []value.Value) {
	for c := range s.cols {
		s.cols[c] = append(s.cols[c], value.Null())
		copy(s.cols[c][idx+1:], s.cols[c][idx:])
		s.cols[c][idx] = vals[c]
		s.masks[c].Insert(idx, !vals[c].IsNull())
	}
	s.rows++
}

// AddColumn appends a column definition, filling existing rows with the
// given value (NULL unless a default was evaluated by the caller).
// A NOT NULL column without a usable fill value is rejected.
func (s *Store) AddColumn(def Column, fill value.Value) error {
	if _, exists := s.schema.ColumnIndex(def.Name); exists {
		return Schemaf("column %q already exists", def.Name)
	}
	coerced, err := value.Coerce(fill, def.Type)
	if err != nil {
		return err
	}
	if coerced.IsNull() && (!def.Nullable || def.PrimaryKey) && s.rows > 0 {
		return &ConstraintViolation{Constraint: "NOT NULL", Column: def.Name,
			Detail: "cannot add NOT NULL column without a DEFAULT to a non-empty table"}
	}

	s.schema.Columns = append(s.schema.Columns, def)
	col := make([]value.Value, s.rows)
	mask := &NullMask{}
	for i := 0; i < s.rows; i++ {
		col[i] = coerced
		mask.Push(!coerced.IsNull())
	}
	s.cols = append(s.cols, col)
	s.masks = append(s.masks, mask)
	return nil
}

// DropColumn removes a column and returns its definition and contents
// for undo.
func (s *Store) DropColumn(name string) (Column, []value.Value, *NullMask, error) {
	idx, ok := s.schema.ColumnIndex(name)
	if !ok {
		return Column{}, nil, nil, Schemaf("unknown column %q", name)
	}
	if len(s.schema.Columns) == 1 {
		return Column{}, nil, nil, Schemaf("cannot drop the only column of a table")
	}
	def := s.schema.Columns[idx]
	vals := s.cols[idx]
	mask := s.masks[idx]
	s.schema.Columns = append(s.schema.Columns[:idx], s.schema.Columns[idx+1:]...)
	s.cols = append(s.cols[:idx], s.cols[idx+1:]...)
	s.masks = append(s.masks[:idx], s.masks[idx+1:]...)
	return def, vals, mask, nil
}

// RestoreColumn reinserts a dropped column at position idx.
func (s *Store) RestoreColumn(idx int, def Column, vals []value.Value, mask *NullMask) {
	s.schema.Columns = append(s.schema.Columns, Column{})
	copy(s.schema.Columns[idx+1:], s.schema.Columns[idx:])
	s.schema.Columns[idx] = def

	s.cols = append(s.cols, nil)
	copy(s.cols[idx+1:], s.cols[idx:])
	s.cols[idx] = vals

	s.masks = append(s.masks, nil)
	copy(s.masks[idx+1:], s.masks[idx:])
	s.masks[idx] = mask
}

// RenameColumn renames a column in place.
func (s *Store) RenameColumn(oldName, newName string) error {
	idx, ok := s.schema.ColumnIndex(oldName)
	if !ok {
		return Schemaf("unknown column %q", oldName)
	}
	if other, exists := s.schema.ColumnIndex(newName); exists && other != idx {
		return Schemaf("column %q already exists", newName)
	}
	s.schema.Columns[idx].Name = newName
	return nil
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	c := &Store{schema: s.schema.Clone(), rows: s.rows}
	c.cols = make([][]value.Value, len(s.cols))
	c.masks = make([]*NullMask, len(s.masks))
	for i := range s.cols {
		c.cols[i] = append([]value.Value(nil), s.cols[i]...)
		c.masks[i] = s.masks[i].Clone()
	}
	return c
}
