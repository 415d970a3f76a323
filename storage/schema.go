package storage

import (
	"fmt"
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// SchemaError reports a structural problem: wrong arity, unknown or
// duplicate column, or an ambiguous reference.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string { return e.Msg }

// Schemaf builds a SchemaError.
func Schemaf(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Msg: fmt.Sprintf(format, args...)}
}

// ConstraintViolation reports a NOT NULL, UNIQUE/PRIMARY KEY, or CHECK
// failure.
type ConstraintViolation struct {
	Constraint string // "NOT NULL", "UNIQUE", "PRIMARY KEY", "CHECK"
	Column     string
	Detail     string
}

func (e *ConstraintViolation) Error() string {
	msg := fmt.Sprintf("%s constraint violated", e.Constraint)
	if e.Column != "" {
		msg += " for column " + e.Column
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Column describes one column: name, declared type, nullability, an
// optional default expression, and uniqueness constraints. The CHECK
// expression is carried here as metadata; the executor evaluates it at
// write time since evaluation needs the expression engine.
type Column struct {
	Name       string
	Type       value.Type
	Nullable   bool
	Default    ast.Expr
	Unique     bool
	PrimaryKey bool
	Check      ast.Expr
}

// Schema is an ordered sequence of column definitions with unique
// (case-sensitive) names, plus table-level constraints. Table-level
// CHECK expressions are engine-evaluated; UNIQUE/PRIMARY KEY column
// sets are enforced here.
type Schema struct {
	Columns    []Column
	Checks     []ast.Expr
	UniqueSets [][]string
}

// NewSchema validates column-name uniqueness and builds a Schema.
func NewSchema(cols []Column) (*Schema, error) {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, dup := seen[c.Name]; dup {
			return nil, Schemaf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return &Schema{Columns: cols}, nil
}

// ColumnIndex finds a column by name. The match is exact first and
// falls back to case-insensitive when exactly one column matches.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return i, true
		}
	}
	idx, found := -1, false
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			if found {
				return -1, false // ambiguous
			}
			idx, found = i, true
		}
	}
	return idx, found
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	cols := append([]Column(nil), s.Columns...)
	sets := make([][]string, len(s.UniqueSets))
	for i, set := range s.UniqueSets {
		sets[i] = append([]string(nil), set...)
	}
	return &Schema{Columns: cols, Checks: append([]ast.Expr(nil), s.Checks...), UniqueSets: sets}
}
