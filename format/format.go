// Package format renders AST nodes back to SQL text. The engine uses it
// to derive output column names, to fingerprint grouping expressions,
// and to label EXPLAIN plan nodes.
package format

import (
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/token"
)

// Expr renders an expression to SQL text.
func Expr(e ast.Expr) string {
	var b strings.Builder
	writeExpr(&b, e)
	return b.String()
}

// DataType renders a data type.
func DataType(dt *ast.DataType) string {
	if dt == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(dt.Name)
	if dt.Precision != nil {
		b.WriteByte('(')
		writeInt(&b, *dt.Precision)
		if dt.Scale != nil {
			b.WriteByte(',')
			writeInt(&b, *dt.Scale)
		}
		b.WriteByte(')')
	}
	return b.String()
}

func writeInt(b *strings.Builder, n int) {
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	if neg {
		i--
		buf[i] = '-'
	}
	b.Write(buf[i:])
}

func writeExpr(b *strings.Builder, e ast.Expr) {
	switch ex := e.(type) {
	case *ast.Literal:
		writeLiteral(b, ex)

	case *ast.ColName:
		b.WriteString(strings.Join(ex.Parts, "."))

	case *ast.StarExpr:
		if ex.TableName != "" {
			b.WriteString(ex.TableName)
			b.WriteByte('.')
		}
		b.WriteByte('*')

	case *ast.ParenExpr:
		b.WriteByte('(')
		writeExpr(b, ex.Expr)
		b.WriteByte(')')

	case *ast.BinaryExpr:
		writeExpr(b, ex.Left)
		b.WriteByte(' ')
		b.WriteString(ex.Op.String())
		b.WriteByte(' ')
		writeExpr(b, ex.Right)

	case *ast.UnaryExpr:
		if ex.Op == token.NOT {
			b.WriteString("NOT ")
		} else {
			b.WriteString(ex.Op.String())
		}
		writeExpr(b, ex.Operand)

	case *ast.FuncExpr:
		b.WriteString(ex.Name)
		b.WriteByte('(')
		if ex.Distinct {
			b.WriteString("DISTINCT ")
		}
		if ex.Star {
			b.WriteByte('*')
		}
		for i, arg := range ex.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, arg)
		}
		b.WriteByte(')')
		if ex.Over != nil {
			b.WriteString(" OVER (")
			writeWindowSpec(b, ex.Over)
			b.WriteByte(')')
		}

	case *ast.CastExpr:
		if ex.Try {
			b.WriteString("TRY_CAST(")
		} else {
			b.WriteString("CAST(")
		}
		writeExpr(b, ex.Expr)
		b.WriteString(" AS ")
		b.WriteString(DataType(ex.Type))
		b.WriteByte(')')

	case *ast.CaseExpr:
		b.WriteString("CASE")
		if ex.Operand != nil {
			b.WriteByte(' ')
			writeExpr(b, ex.Operand)
		}
		for _, when := range ex.Whens {
			b.WriteString(" WHEN ")
			writeExpr(b, when.Cond)
			b.WriteString(" THEN ")
			writeExpr(b, when.Result)
		}
		if ex.Else != nil {
			b.WriteString(" ELSE ")
			writeExpr(b, ex.Else)
		}
		b.WriteString(" END")

	case *ast.InExpr:
		writeExpr(b, ex.Expr)
		if ex.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (")
		if ex.Select != nil {
			b.WriteString("<subquery>")
		}
		for i, v := range ex.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, v)
		}
		b.WriteByte(')')

	case *ast.BetweenExpr:
		writeExpr(b, ex.Expr)
		if ex.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" BETWEEN ")
		writeExpr(b, ex.Low)
		b.WriteString(" AND ")
		writeExpr(b, ex.High)

	case *ast.LikeExpr:
		writeExpr(b, ex.Expr)
		if ex.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" LIKE ")
		writeExpr(b, ex.Pattern)

	case *ast.IsExpr:
		writeExpr(b, ex.Expr)
		b.WriteString(" IS ")
		if ex.Not {
			b.WriteString("NOT ")
		}
		switch ex.What {
		case ast.IsNull:
			b.WriteString("NULL")
		case ast.IsTrue:
			b.WriteString("TRUE")
		case ast.IsFalse:
			b.WriteString("FALSE")
		case ast.IsUnknown:
			b.WriteString("UNKNOWN")
		}

	case *ast.DistinctFromExpr:
		writeExpr(b, ex.Left)
		b.WriteString(" IS ")
		if ex.Not {
			b.WriteString("NOT ")
		}
		b.WriteString("DISTINCT FROM ")
		writeExpr(b, ex.Right)

	case *ast.ExistsExpr:
		if ex.Not {
			b.WriteString("NOT ")
		}
		b.WriteString("EXISTS (<subquery>)")

	case *ast.Subquery:
		b.WriteString("(<subquery>)")

	case *ast.IntervalExpr:
		b.WriteString("INTERVAL ")
		writeExpr(b, ex.Value)
		if ex.Unit != "" {
			b.WriteByte(' ')
			b.WriteString(ex.Unit)
		}

	case *ast.ExtractExpr:
		b.WriteString("EXTRACT(")
		b.WriteString(ex.Field)
		b.WriteString(" FROM ")
		writeExpr(b, ex.Source)
		b.WriteByte(')')

	case *ast.TrimExpr:
		b.WriteString("TRIM(")
		writeExpr(b, ex.Expr)
		b.WriteByte(')')

	case *ast.SubstringExpr:
		b.WriteString("SUBSTRING(")
		writeExpr(b, ex.Expr)
		if ex.From != nil {
			b.WriteString(", ")
			writeExpr(b, ex.From)
		}
		if ex.For != nil {
			b.WriteString(", ")
			writeExpr(b, ex.For)
		}
		b.WriteByte(')')

	case *ast.PositionExpr:
		b.WriteString("POSITION(")
		writeExpr(b, ex.Needle)
		b.WriteString(" IN ")
		writeExpr(b, ex.Haystack)
		b.WriteByte(')')

	default:
		b.WriteString("<expr>")
	}
}

func writeLiteral(b *strings.Builder, lit *ast.Literal) {
	switch lit.Type {
	case ast.LiteralNull:
		b.WriteString("NULL")
	case ast.LiteralString:
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(lit.Value, "'", "''"))
		b.WriteByte('\'')
	case ast.LiteralDate:
		b.WriteString("DATE '")
		b.WriteString(lit.Value)
		b.WriteByte('\'')
	case ast.LiteralTimestamp:
		b.WriteString("TIMESTAMP '")
		b.WriteString(lit.Value)
		b.WriteByte('\'')
	case ast.LiteralTime:
		b.WriteString("TIME '")
		b.WriteString(lit.Value)
		b.WriteByte('\'')
	default:
		b.WriteString(lit.Value)
	}
}

func writeWindowSpec(b *strings.Builder, spec *ast.WindowSpec) {
	if spec.Name != "" {
		b.WriteString(spec.Name)
		return
	}
	wrote := false
	if len(spec.PartitionBy) > 0 {
		b.WriteString("PARTITION BY ")
		for i, e := range spec.PartitionBy {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, e)
		}
		wrote = true
	}
	if len(spec.OrderBy) > 0 {
		if wrote {
			b.WriteByte(' ')
		}
		b.WriteString("ORDER BY ")
		for i, o := range spec.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, o.Expr)
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
}

// ColumnName derives the output column name for an unaliased select
// expression: bare columns use their own name, everything else uses the
// rendered expression.
func ColumnName(e ast.Expr) string {
	if col, ok := e.(*ast.ColName); ok {
		return col.Name()
	}
	return Expr(e)
}
