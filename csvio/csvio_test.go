package csvio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjrajchauhan/pivot-engine/value"
)

func TestReadInference(t *testing.T) {
	input := strings.Join([]string{
		"id,score,day,seen,label",
		"1,1.5,2024-01-01,2024-01-01 10:00:00,abc",
		"2,2,2024-06-15,2024-06-15 00:00:00,def",
		"3,,2024-12-31,,",
	}, "\n")

	store, err := Read(strings.NewReader(input), DefaultOptions())
	require.NoError(t, err)

	schema := store.Schema()
	require.Len(t, schema.Columns, 5)
	assert.Equal(t, value.KindInt64, schema.Columns[0].Type.Kind)
	assert.Equal(t, value.KindFloat64, schema.Columns[1].Type.Kind)
	assert.Equal(t, value.KindDate, schema.Columns[2].Type.Kind)
	assert.Equal(t, value.KindTimestamp, schema.Columns[3].Type.Kind)
	assert.Equal(t, value.KindUtf8, schema.Columns[4].Type.Kind)

	assert.Equal(t, 3, store.RowCount())
	assert.True(t, store.Value(2, 1).IsNull())
	assert.True(t, store.Value(2, 4).IsNull())
	assert.Equal(t, "2024-06-15", store.Value(1, 2).Text())
}

func TestReadNoHeader(t *testing.T) {
	store, err := Read(strings.NewReader("1,a\n2,b\n"), Options{Delimiter: ',', HasHeader: false})
	require.NoError(t, err)
	assert.Equal(t, []string{"column1", "column2"}, store.Schema().Names())
	assert.Equal(t, 2, store.RowCount())
}

func TestReadCustomDelimiter(t *testing.T) {
	store, err := Read(strings.NewReader("a;b\n1;2\n"), Options{Delimiter: ';', HasHeader: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.Value(0, 1).Int())
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader(""), DefaultOptions())
	assert.Error(t, err)

	_, err = Read(strings.NewReader("a,b\n1\n"), DefaultOptions())
	assert.Error(t, err)

	_, err = Read(strings.NewReader("a\n1\n"), Options{Delimiter: ',', Quote: '\''})
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	input := "id,score,name\n1,1.5,ann\n2,,bob\n3,3.25,\n"
	store, err := Read(strings.NewReader(input), DefaultOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, DefaultOptions()))

	again, err := Read(strings.NewReader(buf.String()), DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, store.RowCount(), again.RowCount())
	require.Equal(t, store.Schema().Names(), again.Schema().Names())
	for r := 0; r < store.RowCount(); r++ {
		for c := range store.Schema().Columns {
			a, b := store.Value(r, c), again.Value(r, c)
			if a.IsNull() {
				assert.True(t, b.IsNull(), "row %d col %d", r, c)
				continue
			}
			assert.Equal(t, value.Equal, value.Compare(a, b), "row %d col %d", r, c)
		}
	}
}
