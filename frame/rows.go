// Copyright (c) 2025 ADBC Drivers Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// RowIterator walks an Arrow RecordReader one row at a time, crossing batch
// boundaries transparently.
type RowIterator struct {
	reader     array.RecordReader
	numCols    int
	row        []any
	batch      arrow.RecordBatch
	currentRow int
	rowsRead   int64
	done       bool
	err        error
}

// NewRowIterator returns an iterator over reader. The reader stays owned by
// the caller.
func NewRowIterator(reader array.RecordReader) (*RowIterator, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	numCols := len(reader.Schema().Fields())
	return &RowIterator{
		reader:  reader,
		numCols: numCols,
		row:     make([]any, numCols),
	}, nil
}

// Next loads the next row. It returns false at the end of the stream or on
// error.
func (it *RowIterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}

	for it.batch == nil || it.currentRow >= int(it.batch.NumRows()) {
		if !it.advance() {
			return false
		}
	}

	schema := it.reader.Schema()
	for colIdx := range it.numCols {
		value, err := Value(it.batch.Column(colIdx), it.currentRow)
		if err != nil {
			it.err = fmt.Errorf("failed to convert row %d, col %d (%s): %w",
				it.rowsRead, colIdx, schema.Field(colIdx).Name, err)
			return false
		}
		it.row[colIdx] = value
	}
	it.currentRow++
	it.rowsRead++
	return true
}

func (it *RowIterator) advance() bool {
	if it.batch != nil {
		it.batch.Release()
		it.batch = nil
	}
	if !it.reader.Next() {
		if err := it.reader.Err(); err != nil {
			it.err = err
		}
		it.done = true
		return false
	}
	it.batch = it.reader.RecordBatch()
	it.batch.Retain()
	it.currentRow = 0
	return true
}

// Row returns the values of the current row. The slice is reused by the
// next call to Next.
func (it *RowIterator) Row() []any {
	return it.row
}

// RowsRead is the number of rows returned so far.
func (it *RowIterator) RowsRead() int64 {
	return it.rowsRead
}

func (it *RowIterator) Err() error {
	return it.err
}

// Close releases the batch held by the iterator.
func (it *RowIterator) Close() {
	if it.batch != nil {
		it.batch.Release()
		it.batch = nil
	}
}

// NewRecordBatch builds a record batch from row-major values.
func NewRecordBatch(alloc memory.Allocator, schema *arrow.Schema, rows [][]any) (arrow.RecordBatch, error) {
	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	for rowIdx, row := range rows {
		if len(row) != len(schema.Fields()) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", rowIdx, len(row), len(schema.Fields()))
		}
		for colIdx, value := range row {
			if err := Append(builder.Field(colIdx), value); err != nil {
				return nil, fmt.Errorf("row %d, col %d (%s): %w", rowIdx, colIdx, schema.Field(colIdx).Name, err)
			}
		}
	}
	return builder.NewRecordBatch(), nil
}
