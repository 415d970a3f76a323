package pivot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjrajchauhan/pivot-engine/ast"
)

func textRows(res *QueryResult) [][]string {
	out := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		line := make([]string, len(row))
		for j, v := range row {
			line[j] = v.Text()
		}
		out[i] = line
	}
	return out
}

func seedSales(t *testing.T) *DB {
	t.Helper()
	db := New()
	db.MustExecute("CREATE TABLE sales (region VARCHAR, product VARCHAR, amt INTEGER)")
	db.MustExecute(`INSERT INTO sales VALUES
		('N', 'widget', 10), ('N', 'gadget', 20), ('S', 'widget', 30), ('S', 'widget', 5)`)
	return db
}

func TestExecute(t *testing.T) {
	db := seedSales(t)
	res, err := db.Execute("SELECT region, SUM(amt) FROM sales GROUP BY region ORDER BY region")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"N", "30"}, {"S", "35"}}, textRows(res))
}

func TestParseFacade(t *testing.T) {
	stmt, err := Parse("SELECT 1")
	require.NoError(t, err)
	if _, ok := stmt.(*ast.SelectStmt); !ok {
		t.Fatalf("expected SelectStmt, got %T", stmt)
	}

	stmts, err := ParseAll("SELECT 1; SELECT 2")
	require.NoError(t, err)
	assert.Len(t, stmts, 2)

	_, err = Parse("SELECT FROM")
	assert.Error(t, err)
}

func TestGroupByHelper(t *testing.T) {
	db := seedSales(t)
	res, err := db.GroupBy("sales", []string{"region"}, []Aggregation{
		{Func: "SUM", Column: "amt", Alias: "total"},
		{Func: "COUNT"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "total", "count"}, res.Columns)
	assert.Equal(t, [][]string{{"N", "30", "2"}, {"S", "35", "2"}}, textRows(res))
}

func TestScalarHelpers(t *testing.T) {
	db := seedSales(t)

	v, err := db.Sum("sales", "amt")
	require.NoError(t, err)
	assert.Equal(t, int64(65), v.Int())

	v, err = db.Max("sales", "amt")
	require.NoError(t, err)
	assert.Equal(t, int64(30), v.Int())

	n, err := db.Count("sales")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPivotTableHelper(t *testing.T) {
	db := seedSales(t)
	res, err := db.PivotTable("sales", "SUM", "amt", "product", []string{"widget", "gadget"})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "widget", "gadget"}, res.Columns)
	assert.Equal(t, [][]string{{"N", "10", "20"}, {"S", "35", "NULL"}}, textRows(res))
}

func TestFilterAndSortHelpers(t *testing.T) {
	db := seedSales(t)

	res, err := db.Filter("sales", Cmp(">", Col("amt"), Lit(15)))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)

	res, err = db.Filter("sales", And(
		Cmp("=", Col("region"), Lit("S")),
		Cmp("<", Col("amt"), Lit(10)),
	))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"S", "widget", "5"}}, textRows(res))

	res, err = db.Sort("sales", []SortKey{{Column: "amt", Desc: true}})
	require.NoError(t, err)
	assert.Equal(t, "30", textRows(res)[0][2])
}

func TestCSVThroughEngine(t *testing.T) {
	db := New()
	csv := "city,pop\nparis,2100000\nlyon,520000\n"
	require.NoError(t, db.LoadCSV("cities", strings.NewReader(csv), CSVOptions{Delimiter: ',', HasHeader: true}))

	res, err := db.Execute("SELECT city FROM cities WHERE pop > 1000000")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"paris"}}, textRows(res))

	var buf bytes.Buffer
	require.NoError(t, db.ExportCSV("cities", &buf, CSVOptions{Delimiter: ',', HasHeader: true}))
	assert.Equal(t, csv, buf.String())
}

func TestMustExecutePanics(t *testing.T) {
	db := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	db.MustExecute("SELECT * FROM nope")
}
