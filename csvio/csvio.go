// Package csvio loads delimited text into stores and writes stores back
// out. Reading infers column types by successive parse attempts
// (Int64, Float64, Date, Timestamp, then Utf8); writing uses the
// engine's canonical textual forms with NULL as the empty string.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/vjrajchauhan/pivot-engine/storage"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// Options configure the codec.
type Options struct {
	Delimiter rune
	HasHeader bool
	Quote     rune
}

// DefaultOptions is comma-delimited with a header row.
func DefaultOptions() Options {
	return Options{Delimiter: ',', HasHeader: true, Quote: '"'}
}

func (o Options) normalize() (Options, error) {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	if o.Quote != '"' {
		return o, fmt.Errorf("csvio: only the %q quote character is supported", '"')
	}
	return o, nil
}

// Read parses delimited text into a new store, inferring each column's
// type. Empty fields are NULL.
func Read(r io.Reader, opts Options) (*storage.Store, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csvio: empty input")
	}

	var header []string
	if opts.HasHeader {
		header = records[0]
		records = records[1:]
	} else {
		for i := range records[0] {
			header = append(header, fmt.Sprintf("column%d", i+1))
		}
	}

	width := len(header)
	for i, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("csvio: record %d has %d fields, expected %d", i+1, len(rec), width)
		}
	}

	types := make([]value.Type, width)
	for c := 0; c < width; c++ {
		types[c] = inferColumnType(records, c)
	}

	cols := make([]storage.Column, width)
	for c := 0; c < width; c++ {
		cols[c] = storage.Column{Name: header[c], Type: types[c], Nullable: true}
	}
	schema, err := storage.NewSchema(cols)
	if err != nil {
		return nil, err
	}

	store := storage.NewStore(schema)
	for _, rec := range records {
		row := make([]value.Value, width)
		for c, field := range rec {
			if field == "" {
				row[c] = value.Null()
				continue
			}
			row[c] = value.Str(field)
		}
		if _, err := store.AppendRow(row); err != nil {
			return nil, errors.Wrap(err, "load row")
		}
	}
	return store, nil
}

// inferColumnType finds the narrowest type every non-empty field of a
// column parses as.
func inferColumnType(records [][]string, col int) value.Type {
	isInt, isFloat, isDate, isTimestamp := true, true, true, true
	sawValue := false

	for _, rec := range records {
		field := rec[col]
		if field == "" {
			continue
		}
		sawValue = true

		if isInt {
			if _, err := strconv.ParseInt(field, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(field, 64); err != nil {
				isFloat = false
			}
		}
		if isDate {
			if _, err := value.ParseDate(field); err != nil {
				isDate = false
			}
		}
		if isTimestamp {
			if _, err := value.ParseTimestamp(field); err != nil {
				isTimestamp = false
			}
		}
	}

	switch {
	case !sawValue:
		return value.Type{Kind: value.KindUtf8}
	case isInt:
		return value.Type{Kind: value.KindInt64}
	case isFloat:
		return value.Type{Kind: value.KindFloat64}
	case isDate:
		return value.Type{Kind: value.KindDate}
	case isTimestamp:
		return value.Type{Kind: value.KindTimestamp}
	default:
		return value.Type{Kind: value.KindUtf8}
	}
}

// Write renders a store as delimited text.
func Write(w io.Writer, store *storage.Store, opts Options) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = opts.Delimiter

	if opts.HasHeader {
		if err := cw.Write(store.Schema().Names()); err != nil {
			return errors.Wrap(err, "write header")
		}
	}

	for r := 0; r < store.RowCount(); r++ {
		row := store.Row(r)
		fields := make([]string, len(row))
		for i, v := range row {
			if v.IsNull() {
				fields[i] = ""
				continue
			}
			fields[i] = v.Text()
		}
		if err := cw.Write(fields); err != nil {
			return errors.Wrap(err, "write row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush")
}
