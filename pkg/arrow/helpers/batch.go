// Package helpers provides typed column access for Arrow record batches.
package helpers

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Column returns the named column from a RecordBatch, or an error if not found.
func Column(batch arrow.Record, name string) (arrow.Array, error) {
	indices := batch.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("column %q not found in schema", name)
	}
	return batch.Column(indices[0]), nil
}

// StringColumn returns the named utf8 column.
func StringColumn(batch arrow.Record, name string) (*array.String, error) {
	col, err := Column(batch, name)
	if err != nil {
		return nil, err
	}
	s, ok := col.(*array.String)
	if !ok {
		return nil, fmt.Errorf("column %q is %s, not utf8", name, col.DataType())
	}
	return s, nil
}

// TimestampColumn returns the named timestamp column and its unit.
func TimestampColumn(batch arrow.Record, name string) (*array.Timestamp, arrow.TimeUnit, error) {
	col, err := Column(batch, name)
	if err != nil {
		return nil, 0, err
	}
	ts, ok := col.(*array.Timestamp)
	if !ok {
		return nil, 0, fmt.Errorf("column %q is %s, not timestamp", name, col.DataType())
	}
	return ts, col.DataType().(*arrow.TimestampType).Unit, nil
}
