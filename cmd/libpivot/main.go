// libpivot exposes the engine behind a C ABI. Build it as a shared
// library:
//
//	go build -buildmode=c-shared -o libpivot.so ./cmd/libpivot
//
// Handles are opaque integers into process-local registries; one engine
// handle must stay on one caller thread. Results are formatted as text,
// with NULL rendered as "NULL".
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	pivot "github.com/vjrajchauhan/pivot-engine"
)

var (
	engines      = map[C.longlong]*pivot.DB{}
	results      = map[C.longlong]*pivot.QueryResult{}
	nextEngineID C.longlong = 1
	nextResultID C.longlong = 1
)

//export pivot_engine_new
func pivot_engine_new() C.longlong {
	id := nextEngineID
	nextEngineID++
	engines[id] = pivot.New()
	return id
}

//export pivot_engine_free
func pivot_engine_free(handle C.longlong) {
	delete(engines, handle)
}

// pivot_engine_execute runs one SQL statement. It returns a result
// handle, or 0 on error; pivot_engine_last_error returns the message.
//
//export pivot_engine_execute
func pivot_engine_execute(handle C.longlong, sql *C.char) C.longlong {
	db, ok := engines[handle]
	if !ok {
		lastError = "invalid engine handle"
		return 0
	}
	res, err := db.Execute(C.GoString(sql))
	if err != nil {
		lastError = err.Error()
		return 0
	}
	lastError = ""
	id := nextResultID
	nextResultID++
	results[id] = res
	return id
}

var lastError string

//export pivot_engine_last_error
func pivot_engine_last_error() *C.char {
	return C.CString(lastError)
}

//export pivot_result_row_count
func pivot_result_row_count(handle C.longlong) C.longlong {
	res, ok := results[handle]
	if !ok {
		return -1
	}
	return C.longlong(res.RowCount())
}

//export pivot_result_column_count
func pivot_result_column_count(handle C.longlong) C.longlong {
	res, ok := results[handle]
	if !ok {
		return -1
	}
	return C.longlong(res.ColumnCount())
}

// pivot_result_column_name returns a malloc'd string the caller frees.
//
//export pivot_result_column_name
func pivot_result_column_name(handle C.longlong, col C.longlong) *C.char {
	res, ok := results[handle]
	if !ok || col < 0 || int(col) >= res.ColumnCount() {
		return nil
	}
	return C.CString(res.Columns[col])
}

// pivot_result_value returns the scalar at (row, col) in its textual
// form; NULL renders as "NULL". The caller frees the string.
//
//export pivot_result_value
func pivot_result_value(handle C.longlong, row, col C.longlong) *C.char {
	res, ok := results[handle]
	if !ok || row < 0 || int(row) >= res.RowCount() || col < 0 || int(col) >= res.ColumnCount() {
		return nil
	}
	return C.CString(res.Get(int(row), int(col)).Text())
}

//export pivot_result_free
func pivot_result_free(handle C.longlong) {
	delete(results, handle)
}

//export pivot_string_free
func pivot_string_free(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func main() {}
